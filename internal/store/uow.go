package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/sldstore/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxStarter opens database transactions.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx (nested savepoint).
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork is a single database transaction. Exactly one of Commit or
// Rollback must be called; afterwards every method returns ErrClosed.
//
// A UnitOfWork is not safe for concurrent use. Pipelines that need
// parallelism open one UnitOfWork each.
type UnitOfWork struct {
	tx     pgx.Tx
	closed bool
}

// Begin starts a transaction on db.
func Begin(ctx context.Context, db TxStarter) (*UnitOfWork, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return &UnitOfWork{tx: tx}, nil
}

// Exec runs a mutating statement.
func (u *UnitOfWork) Exec(ctx context.Context, stmt string, args ...any) (pgconn.CommandTag, error) {
	if u.closed {
		return pgconn.CommandTag{}, ErrClosed
	}
	tag, err := u.tx.Exec(ctx, stmt, args...)
	if err != nil {
		return pgconn.CommandTag{}, &StatementError{Stmt: stmt, Err: err}
	}
	return tag, nil
}

// QueryOne scans the first row of stmt into dest.
// Returns ErrNotFound when the query yields no rows.
func (u *UnitOfWork) QueryOne(ctx context.Context, stmt string, args []any, dest ...any) error {
	if u.closed {
		return ErrClosed
	}
	err := u.tx.QueryRow(ctx, stmt, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return &StatementError{Stmt: stmt, Err: err}
	}
	return nil
}

// QueryMany runs stmt and collects every row with fn, in result order.
// An empty result is an empty slice, not an error.
func QueryMany[T any](ctx context.Context, u *UnitOfWork, stmt string, args []any, fn pgx.RowToFunc[T]) ([]T, error) {
	if u.closed {
		return nil, ErrClosed
	}
	rows, err := u.tx.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &StatementError{Stmt: stmt, Err: err}
	}
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, &StatementError{Stmt: stmt, Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Commit makes every statement of the unit visible. The unit is closed
// even when commit fails; the database has rolled the transaction back.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	u.closed = true
	if err := u.tx.Commit(ctx); err != nil {
		return &StatementError{Stmt: "COMMIT", Err: err}
	}
	return nil
}

// Rollback discards every statement of the unit. It runs on a context
// detached from ctx's cancellation so cancelled pipelines still undo.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	u.closed = true
	if err := u.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return &StatementError{Stmt: "ROLLBACK", Err: err}
	}
	return nil
}

// Closed reports whether Commit or Rollback has been called.
func (u *UnitOfWork) Closed() bool {
	return u.closed
}

// Run executes fn inside one transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics. The error from fn is
// returned unchanged; a failed rollback is logged, not returned.
func Run(ctx context.Context, db TxStarter, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	uow, err := Begin(ctx, db)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			uow.rollbackQuietly(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx, uow); err != nil {
		uow.rollbackQuietly(ctx)
		return err
	}

	if uow.closed {
		return fmt.Errorf("store: unit of work closed inside Run: %w", ErrClosed)
	}
	return uow.Commit(ctx)
}

func (u *UnitOfWork) rollbackQuietly(ctx context.Context) {
	if u.closed {
		return
	}
	if err := u.Rollback(ctx); err != nil {
		logging.FromContext(ctx).Error("rollback failed", "error", err)
	}
}
