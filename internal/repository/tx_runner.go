package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepositories are bound to a single transaction.
type TxRepositories struct {
	Tickets   TicketRepository
	FollowUps FollowUpRepository
	Media     MediaRepository
}

// Transactor runs fn atomically. Returning an error rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// TxRunner implements Transactor on a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

var _ Transactor = (*TxRunner)(nil)

// NewTxRunner builds the runner with the pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx begins a transaction, hands fn tx-bound repositories and commits on success.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := TxRepositories{
		Tickets:   NewTicketRepository(tx),
		FollowUps: NewFollowUpRepository(tx),
		Media:     NewMediaRepository(tx),
	}
	if err := fn(repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
