package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	custrepo "scv_dedup_backend/internal/customers/repository"
	"scv_dedup_backend/internal/offers/repository"
)

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgxRunner runs units of work on a single pgx transaction, handing the
// callback transaction-bound repositories.
type PgxRunner struct {
	pool     TxBeginner
	offers   *repository.Repository
	profiles *custrepo.Repository
}

// NewPgxRunner creates a runner over the shared pool.
func NewPgxRunner(pool TxBeginner, offers *repository.Repository, profiles *custrepo.Repository) *PgxRunner {
	return &PgxRunner{pool: pool, offers: offers, profiles: profiles}
}

// InTx begins a transaction, runs fn with transaction-bound stores, and
// commits when fn succeeds. Any error rolls everything back.
func (r *PgxRunner) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stores := Stores{
		Offers:   r.offers.WithTx(tx),
		Profiles: r.profiles.WithTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
