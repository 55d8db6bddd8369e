// Package storage contains the storage-agnostic contracts the output writer
// is built on, the writer itself, and the backend registry.
//
// Backends (postgres, sqlite, mssql, mysql) implement Conn and register an
// Opener for their kind at init time; importing storage/all enables them all.
package storage

import (
	"context"
	"errors"

	"ffietl/internal/ddl"
)

// ErrColumnMismatch is returned (wrapped) by a backend when an append names a
// column the destination table does not have.
var ErrColumnMismatch = errors.New("storage: destination is missing columns")

// Execer is the statement surface shared by connections and transactions.
type Execer interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error
	// CopyInto appends rows (aligned to columns) to the table fqn and reports
	// the number of rows written.
	CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error)
}

// Conn is an open destination database.
type Conn interface {
	Execer

	Dialect() ddl.Dialect

	// Query runs a statement and returns every row. Driver byte slices are
	// returned as strings.
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)

	// Columns describes the columns of fqn in table order, or returns nil
	// when the table does not exist.
	Columns(ctx context.Context, fqn string) ([]ddl.ColumnDef, error)

	BeginTx(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is a transaction on a Conn.
type Tx interface {
	Execer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DependencyHooks detach and reattach objects (views, grants) that depend on
// a table while it is rebuilt. Both run inside the rebuild transaction.
type DependencyHooks interface {
	Detach(ctx context.Context, tx Tx, schema, table string) error
	Reattach(ctx context.Context, tx Tx, schema, table string) error
}

// NopHooks preserves nothing.
type NopHooks struct{}

func (NopHooks) Detach(context.Context, Tx, string, string) error   { return nil }
func (NopHooks) Reattach(context.Context, Tx, string, string) error { return nil }
