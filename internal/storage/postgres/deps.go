package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"ffietl/internal/storage"
)

// depsSQL installs deps_saved_ddl and the two PL/pgSQL functions that save,
// drop and later restore the views (and their grants and comments) built on
// a table.
//
//go:embed deps.sql
var depsSQL string

// DepsHooks preserves dependent views across a table rebuild using the
// functions installed by EnsureDepsFunctions.
type DepsHooks struct{}

var _ storage.DependencyHooks = DepsHooks{}

// Detach saves the DDL of every view depending on schema.table and drops
// the views.
func (DepsHooks) Detach(ctx context.Context, tx storage.Tx, schema, table string) error {
	if err := tx.Exec(ctx, "SELECT deps_save_and_drop_dependencies($1, $2)", schemaOr(schema), table); err != nil {
		return fmt.Errorf("save dependencies of %s.%s: %w", schemaOr(schema), table, err)
	}
	return nil
}

// Reattach replays the saved DDL for schema.table.
func (DepsHooks) Reattach(ctx context.Context, tx storage.Tx, schema, table string) error {
	if err := tx.Exec(ctx, "SELECT deps_restore_dependencies($1, $2)", schemaOr(schema), table); err != nil {
		return fmt.Errorf("restore dependencies of %s.%s: %w", schemaOr(schema), table, err)
	}
	return nil
}

// EnsureDepsFunctions installs (or replaces) the dependency functions. It
// is idempotent.
func EnsureDepsFunctions(ctx context.Context, conn storage.Conn) error {
	if err := conn.Exec(ctx, depsSQL); err != nil {
		return fmt.Errorf("install dependency functions: %w", err)
	}
	return nil
}

func schemaOr(schema string) string {
	if schema == "" {
		return DefaultSchema
	}
	return schema
}
