package database

import "context"

type txKey struct{}

// txScope is the transaction carried by a context. Only the scope that
// opened the transaction may end it.
type txScope struct {
	tx    Transaction
	owner bool
}

func withTx(ctx context.Context, tx Transaction, owner bool) context.Context {
	return context.WithValue(ctx, txKey{}, txScope{tx: tx, owner: owner})
}

func scopeFrom(ctx context.Context) (txScope, bool) {
	scope, ok := ctx.Value(txKey{}).(txScope)
	return scope, ok && scope.tx != nil
}

// ExecutorFromContext returns the transaction opened by a UnitOfWork, or
// conn when the call runs outside one.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if scope, ok := scopeFrom(ctx); ok {
		return scope.tx
	}
	return conn
}

// UnitOfWork opens one transaction per outermost Begin. Nested Begin calls
// join it, and their Commit and Rollback are no-ops, so a service that
// calls another service still writes atomically.
type UnitOfWork struct {
	conn Connection
}

func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if scope, ok := scopeFrom(ctx); ok {
		return withTx(ctx, scope.tx, false), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return withTx(ctx, tx, true), nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	return end(ctx, Transaction.Commit)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return end(ctx, Transaction.Rollback)
}

func end(ctx context.Context, fn func(Transaction, context.Context) error) error {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return errNoTransaction
	}
	if !scope.owner {
		return nil
	}
	return fn(scope.tx, ctx)
}
