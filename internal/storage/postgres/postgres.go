// Package postgres implements storage.Conn on a pgx v5 pool. Appends use
// COPY; tables are described from the system catalogs.
//
// The pool sits behind the poolLike seam so the adapter can be tested with
// a fake instead of a live server.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ffietl/internal/ddl"
	"ffietl/internal/storage"
)

// SQLSTATE for a column the relation does not have.
const undefinedColumn = "42703"

// DefaultSchema is used when a table name carries no schema.
const DefaultSchema = "public"

// poolLike is the subset of *pgxpool.Pool the adapter uses.
type poolLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// DB is a storage.Conn on a pgx pool.
type DB struct{ pool poolLike }

var _ storage.Conn = (*DB)(nil)

// newPool is a test hook that points to connect by default.
var newPool = connect

func connect(ctx context.Context, dsn string) (poolLike, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Open connects to dsn.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: DSN must not be empty")
	}
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func init() {
	storage.Register(string(ddl.Postgres), func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Dialect implements storage.Conn.
func (p *DB) Dialect() ddl.Dialect { return ddl.Postgres }

// Exec implements storage.Conn. Statements without arguments go over the
// simple protocol, so multi-statement scripts are accepted.
func (p *DB) Exec(ctx context.Context, q string, args ...any) error {
	_, err := p.pool.Exec(ctx, q, args...)
	return classify(err)
}

// Query implements storage.Conn.
func (p *DB) Query(ctx context.Context, q string, args ...any) ([][]any, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows)
}

// CopyInto implements storage.Conn.
func (p *DB) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	n, err := p.pool.CopyFrom(ctx, identifier(fqn), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", fqn, classify(err))
	}
	return n, nil
}

// Columns implements storage.Conn. Types are rendered by format_type, so
// they can be fed back into CREATE TABLE unchanged.
func (p *DB) Columns(ctx context.Context, fqn string) ([]ddl.ColumnDef, error) {
	schema, table := ddl.SplitFQN(fqn)
	if schema == "" {
		schema = DefaultSchema
	}
	rows, err := p.Query(ctx, `SELECT a.attname, format_type(a.atttypid, a.atttypmod)
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", fqn, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]ddl.ColumnDef, 0, len(rows))
	for _, r := range rows {
		out = append(out, ddl.ColumnDef{
			Name:     fmt.Sprint(r[0]),
			SQLType:  strings.ToUpper(fmt.Sprint(r[1])),
			Nullable: true,
		})
	}
	return out, nil
}

// BeginTx implements storage.Conn.
func (p *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close implements storage.Conn.
func (p *DB) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// Tx wraps pgx.Tx as a storage.Tx.
type Tx struct{ tx pgx.Tx }

// Exec implements storage.Tx.
func (t *Tx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.Exec(ctx, q, args...)
	return classify(err)
}

// CopyInto implements storage.Tx.
func (t *Tx) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	n, err := t.tx.CopyFrom(ctx, identifier(fqn), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", fqn, classify(err))
	}
	return n, nil
}

// Commit implements storage.Tx.
func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

// Rollback implements storage.Tx.
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// identifier converts "schema.table" into a pgx.Identifier.
func identifier(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedColumn {
		return fmt.Errorf("%w: %w", storage.ErrColumnMismatch, err)
	}
	return err
}

func collect(rows pgx.Rows) ([][]any, error) {
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
