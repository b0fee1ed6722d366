package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/tx"
)

const defaultReviewTxTimeout = 5 * time.Second

// reviewPostgresTx runs a review decision inside a database transaction. The
// ledger transition and the binding rebind both pick the transaction up from
// the context, so they commit or roll back together.
type reviewPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newReviewPostgresTx(db *sql.DB, timeout time.Duration) *reviewPostgresTx {
	return &reviewPostgresTx{db: db, timeout: timeout}
}

func (t *reviewPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultReviewTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
