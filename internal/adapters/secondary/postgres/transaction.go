package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// ErrWriteInReadOnly is returned when a write unit of work is started from
// inside a stats snapshot.
var ErrWriteInReadOnly = errors.New("write transaction requested inside a read-only transaction")

var (
	ticketWriteTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
	// Stats aggregates must agree with each other, so they read one snapshot.
	statsSnapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

// TransactionManager runs ticket writes and stats reads inside pgx
// transactions that travel on the context.
type TransactionManager struct {
	pool *pgxpool.Pool
}

var _ ports.TransactionManager = (*TransactionManager)(nil)

func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	return &TransactionManager{pool: pool}
}

// WithTransaction runs fn in a read-committed write transaction. Repositories
// called with the context handed to fn join it.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tm.run(ctx, ticketWriteTx, fn)
}

// WithReadOnlyTransaction runs fn in a read-only repeatable-read transaction,
// so every query in fn sees the same set of tickets.
func (tm *TransactionManager) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tm.run(ctx, statsSnapshotTx, fn)
}

// run joins a transaction already on ctx. Otherwise it begins one with opts,
// commits when fn succeeds and rolls back on error or panic.
func (tm *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	if outer, ok := txFromContext(ctx); ok {
		if outer.readOnly && opts.AccessMode != pgx.ReadOnly {
			return ErrWriteInReadOnly
		}
		return fn(ctx)
	}

	tx, err := tm.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", accessMode(opts), err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback must still reach the server when ctx is already cancelled.
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if err != nil && rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback %s transaction: %w", accessMode(opts), rbErr))
		}
	}()

	if err = fn(contextWithTx(ctx, tx, opts.AccessMode == pgx.ReadOnly)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s transaction: %w", accessMode(opts), err)
	}
	committed = true
	return nil
}

func accessMode(opts pgx.TxOptions) string {
	if opts.AccessMode == pgx.ReadOnly {
		return "read-only"
	}
	return "write"
}

type txContextKey struct{}

type activeTx struct {
	tx       pgx.Tx
	readOnly bool
}

func contextWithTx(ctx context.Context, tx pgx.Tx, readOnly bool) context.Context {
	return context.WithValue(ctx, txContextKey{}, activeTx{tx: tx, readOnly: readOnly})
}

func txFromContext(ctx context.Context) (activeTx, bool) {
	active, ok := ctx.Value(txContextKey{}).(activeTx)
	return active, ok
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetDBTX returns the transaction on ctx, or the pool when there is none.
func GetDBTX(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if active, ok := txFromContext(ctx); ok {
		return active.tx
	}
	return pool
}
