package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Transactor implements ports.Transactor on top of the connection pool.
type Transactor struct {
	pool Pool
	log  zerolog.Logger
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool, log zerolog.Logger) *Transactor {
	return &Transactor{pool: pool, log: log}
}

// WithinTx runs fn in one database transaction. If ctx already carries a
// transaction, fn joins it and the outer caller owns commit and rollback.
// A top-level scope that aborts on serialization failure or deadlock is
// retried once from scratch.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	err := t.run(ctx, fn)
	if err != nil && isRetryable(err) {
		t.log.Warn().Err(err).Msg("transaction aborted by conflict, retrying once")
		err = t.run(ctx, fn)
	}
	return err
}

func (t *Transactor) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	finished := false
	defer func() {
		if !finished {
			tx.Rollback(ctx) //nolint:errcheck
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	finished = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
