// Package composables carries request-scoped infrastructure (the pgx pool,
// an in-flight transaction, the authenticated ApiKey/session context) on
// context.Context so repositories and services never take them as explicit
// constructor dependencies.
package composables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxKey string

const (
	poolCtxKey ctxKey = "pool"
	txCtxKey   ctxKey = "tx"
)

// ErrNoPool is returned by UsePool when the context was never seeded with a
// pool, which always indicates a wiring bug (middleware ordering, a worker
// goroutine that forgot to carry the request context).
var ErrNoPool = errors.New("composables: no pool in context")

// ErrNoTx is returned by repository methods that require an active
// transaction when none has been attached to the context.
var ErrNoTx = errors.New("composables: no transaction in context")

// WithPool attaches the pgx pool to ctx.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolCtxKey, pool)
}

// UsePool retrieves the pool attached by WithPool.
func UsePool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(poolCtxKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPool
	}
	return pool, nil
}

// WithTx attaches an in-flight transaction to ctx. Repositories that see a
// transaction prefer it over the pool so a service can compose several
// repository calls into one atomic unit.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey, tx)
}

// UsePoolTx retrieves the transaction attached by WithTx, if any.
func UsePoolTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey).(pgx.Tx)
	return tx, ok && tx != nil
}

// Querier is the subset of *pgxpool.Pool and pgx.Tx that raw-SQL
// repositories need; it lets a repository method run unmodified whether or
// not it's inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UseQuerier returns the in-flight transaction if one is attached, otherwise
// the pool, so repositories can run either inside or outside a transaction
// with the same call.
func UseQuerier(ctx context.Context) (Querier, error) {
	if tx, ok := UsePoolTx(ctx); ok {
		return tx, nil
	}
	pool, err := UsePool(ctx)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
