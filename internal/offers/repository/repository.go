// Package repository implements offer persistence on Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scv_dedup_backend/internal/offers/domain"
	"scv_dedup_backend/platform/apperr"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx, so repository methods
// run either standalone or inside an enclosing transaction.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides access to the offers and audit tables.
type Repository struct {
	db DB
}

// New creates an offers repository.
func New(db DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const offerColumns = `id, customer_id, campaign_id, offer_type, amount_paise,
	validity_start, validity_end, status, retry_count, created_at, updated_at`

func scanOffer(row pgx.Row) (domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CampaignID, &o.OfferType, &o.AmountPaise,
		&o.ValidityStart, &o.ValidityEnd, &o.Status, &o.RetryCount,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetByID fetches a single offer.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM scv_offers WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate fetches an offer with a row lock. Only meaningful on a
// transaction-bound repository; it serializes concurrent processing
// attempts for the same offer.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM scv_offers WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *Repository) getOne(ctx context.Context, query string, id uuid.UUID) (domain.Offer, error) {
	o, err := scanOffer(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Offer{}, apperr.NotFound("offer not found")
	}
	if err != nil {
		return domain.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// CreatePending inserts a new offer in PENDING state.
func (r *Repository) CreatePending(ctx context.Context, o *domain.Offer) error {
	query := `
		INSERT INTO scv_offers (
			id, customer_id, campaign_id, offer_type, amount_paise,
			validity_start, validity_end, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING')
		RETURNING status, retry_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		o.ID, o.CustomerID, o.CampaignID, o.OfferType, o.AmountPaise,
		o.ValidityStart, o.ValidityEnd,
	).Scan(&o.Status, &o.RetryCount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// ListComparisonSet returns the customer's offers eligible for duplicate
// comparison against an incoming offer of the given type: PENDING or ACTIVE
// offers, scoped to TOP_UP only for a top-up offer and to everything except
// TOP_UP otherwise. Uses the (customer_id, offer_type, status) index.
func (r *Repository) ListComparisonSet(ctx context.Context, customerID uuid.UUID, incomingType domain.OfferType) ([]domain.Offer, error) {
	query := `
		SELECT ` + offerColumns + `
		FROM scv_offers
		WHERE customer_id = $1
		  AND status IN ('PENDING', 'ACTIVE')
		  AND (
			($2 = 'TOP_UP' AND offer_type = 'TOP_UP') OR
			($2 <> 'TOP_UP' AND offer_type <> 'TOP_UP')
		  )
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, customerID, string(incomingType))
	if err != nil {
		return nil, fmt.Errorf("list comparison set: %w", err)
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comparison set: %w", err)
	}
	return out, nil
}

// Transition moves an offer from an expected status to a new one and writes
// the audit row in the same statement scope. The guard on the expected old
// status makes concurrent transitions lose cleanly instead of double
// applying. retryDelta is added to retry_count (0 for most transitions).
func (r *Repository) Transition(ctx context.Context, entry domain.AuditEntry, retryDelta int) error {
	query := `
		UPDATE scv_offers
		SET status = $2, retry_count = retry_count + $3, updated_at = now()
		WHERE id = $1 AND status = $4`

	tag, err := r.db.Exec(ctx, query,
		entry.OfferID, string(entry.NewStatus), retryDelta, string(entry.OldStatus),
	)
	if err != nil {
		return fmt.Errorf("transition offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("offer status changed concurrently").WithOp("offers.Transition")
	}

	return r.InsertAudit(ctx, entry)
}

// InsertAudit appends an audit row without touching the offer itself. Used
// for parked records, whose status does not change.
func (r *Repository) InsertAudit(ctx context.Context, entry domain.AuditEntry) error {
	query := `
		INSERT INTO scv_offer_audit_log (offer_id, old_status, new_status, rule, reason, matched_on)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		entry.OfferID, string(entry.OldStatus), string(entry.NewStatus),
		entry.Rule, entry.Reason, entry.MatchedOn,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the full transition history of an offer, oldest first.
func (r *Repository) ListAudit(ctx context.Context, offerID uuid.UUID) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, offer_id, old_status, new_status, rule, reason, matched_on, created_at
		FROM scv_offer_audit_log
		WHERE offer_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, offerID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.OfferID, &e.OldStatus, &e.NewStatus, &e.Rule, &e.Reason, &e.MatchedOn, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}
