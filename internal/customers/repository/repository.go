// Package repository implements customer profile persistence on Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scv_dedup_backend/internal/customers/domain"
	"scv_dedup_backend/platform/apperr"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index violation.
const uniqueViolation = "23505"

// DB is satisfied by both *pgxpool.Pool and pgx.Tx, so repository methods
// run either standalone or inside an enclosing transaction.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides access to the customers table.
type Repository struct {
	db DB
}

// New creates a customers repository.
func New(db DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const profileColumns = `id, pan, aadhaar, mobile, email, first_name, last_name,
	address_line, city, pincode, version, live_book_id, live_book_flag,
	created_at, updated_at`

func scanProfile(row pgx.Row) (domain.CustomerProfile, error) {
	var p domain.CustomerProfile
	err := row.Scan(
		&p.ID, &p.PAN, &p.Aadhaar, &p.Mobile, &p.Email,
		&p.FirstName, &p.LastName, &p.AddressLine, &p.City, &p.Pincode,
		&p.Version, &p.LiveBookID, &p.LiveBookFlag,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// GetByID fetches a single profile.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.CustomerProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM scv_customers WHERE id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomerProfile{}, apperr.NotFound("customer not found")
	}
	if err != nil {
		return domain.CustomerProfile{}, fmt.Errorf("get customer: %w", err)
	}
	return p, nil
}

// FindByIdentityKeys returns every profile matching any of the present
// identity keys, annotated with the key(s) each profile matched on.
// Read-only; safe to call repeatedly.
func (r *Repository) FindByIdentityKeys(ctx context.Context, keys domain.IdentityKeys) ([]domain.Candidate, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM scv_customers
		WHERE (pan = $1 AND $1 <> '')
		   OR (aadhaar = $2 AND $2 <> '')
		   OR (mobile = $3 AND $3 <> '')
		   OR (email = $4 AND $4 <> '')
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, keys.PAN, keys.Aadhaar, keys.Mobile, keys.Email)
	if err != nil {
		return nil, fmt.Errorf("find by identity keys: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, domain.Candidate{
			Profile:   p,
			MatchedOn: matchedKeys(p, keys),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find by identity keys: %w", err)
	}
	return candidates, nil
}

// matchedKeys computes which of the lookup keys the stored profile matched.
// Key order follows the tie-break priority.
func matchedKeys(p domain.CustomerProfile, keys domain.IdentityKeys) []domain.MatchKey {
	var matched []domain.MatchKey
	if keys.PAN != "" && p.PAN != nil && *p.PAN == keys.PAN {
		matched = append(matched, domain.MatchKeyPAN)
	}
	if keys.Aadhaar != "" && p.Aadhaar != nil && *p.Aadhaar == keys.Aadhaar {
		matched = append(matched, domain.MatchKeyAadhaar)
	}
	if keys.Mobile != "" && p.Mobile != nil && *p.Mobile == keys.Mobile {
		matched = append(matched, domain.MatchKeyMobile)
	}
	if keys.Email != "" && p.Email != nil && *p.Email == keys.Email {
		matched = append(matched, domain.MatchKeyEmail)
	}
	return matched
}

// Create inserts a new profile. The insert runs in a nested transaction so
// a unique violation does not poison an enclosing transaction; callers get
// apperr.KindConflict and are expected to re-resolve and merge (the
// create-then-fallback-to-merge pattern).
func (r *Repository) Create(ctx context.Context, p *domain.CustomerProfile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create customer: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scv_customers (
			id, pan, aadhaar, mobile, email, first_name, last_name,
			address_line, city, pincode, live_book_id, live_book_flag
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING version, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		p.ID, p.PAN, p.Aadhaar, p.Mobile, p.Email,
		p.FirstName, p.LastName, p.AddressLine, p.City, p.Pincode,
		p.LiveBookID, p.LiveBookFlag,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Wrap(apperr.KindConflict, "profile already exists for identity key", err).
				WithOp("customers.Create")
		}
		return fmt.Errorf("create customer: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateCAS writes mutable profile fields guarded by the version counter.
// Zero affected rows means another writer got there first; callers re-read
// and retry within their bounded retry budget.
func (r *Repository) UpdateCAS(ctx context.Context, p *domain.CustomerProfile) error {
	query := `
		UPDATE scv_customers
		SET pan = $2, aadhaar = $3, mobile = $4, email = $5,
			first_name = $6, last_name = $7, address_line = $8, city = $9,
			pincode = $10, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $11`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.PAN, p.Aadhaar, p.Mobile, p.Email,
		p.FirstName, p.LastName, p.AddressLine, p.City, p.Pincode,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.PersistenceConflict("profile version mismatch").WithOp("customers.UpdateCAS")
	}

	p.Version++
	return nil
}

// SetLiveBook records the live-book verdict on the profile.
func (r *Repository) SetLiveBook(ctx context.Context, id uuid.UUID, liveBookID *string, flag bool) error {
	query := `
		UPDATE scv_customers
		SET live_book_id = $2, live_book_flag = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, liveBookID, flag)
	if err != nil {
		return fmt.Errorf("set live book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("customer not found")
	}
	return nil
}
