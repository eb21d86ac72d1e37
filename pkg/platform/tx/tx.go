// Package tx lets store methods share one SQL transaction through a context.
package tx

import (
	"context"
	"database/sql"
	"errors"
)

type txKey struct{}

// From returns the transaction opened by an enclosing Run, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(txKey{}).(*sql.Tx)
	return t, ok && t != nil
}

// Run calls fn inside a transaction. Nested calls join the outer
// transaction and leave commit to it. A panic in fn rolls back and is
// re-raised.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	if outer, ok := From(ctx); ok {
		return fn(ctx, outer)
	}
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := t.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
	}()
	if err = fn(context.WithValue(ctx, txKey{}, t), t); err != nil {
		return err
	}
	committed = true
	return t.Commit()
}
