package database

import (
	"context"
	"errors"
)

// Row is satisfied by *sql.Row and pgx.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows; pgx rows are adapted by the postgres package.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports how many rows a write touched. Keys are UUIDs generated in
// Go, so no insert id is exposed.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs '?'-placeholder SQL against a connection or a transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open database handle shared by every repository.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

// RequireAffected turns a write that touched no rows into missing.
func RequireAffected(result Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

var errNoTransaction = errors.New("no transaction in context")
