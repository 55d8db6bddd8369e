// Package sqlstore implements storage.Conn over database/sql for SQLite
// (modernc.org/sqlite), SQL Server (go-mssqldb) and MySQL
// (go-sql-driver/mysql). Appends are batched multi-row INSERTs sized to the
// dialect's bind parameter limit.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ffietl/internal/ddl"
	"ffietl/internal/storage"
)

// maxInsertRows caps the rows of one VALUES list; SQL Server rejects more
// than 1000.
const maxInsertRows = 1000

// DB is a storage.Conn backed by a *sql.DB.
type DB struct {
	db      *sql.DB
	dialect ddl.Dialect
}

var _ storage.Conn = (*DB)(nil)

// New wraps an open *sql.DB speaking dialect d.
func New(db *sql.DB, d ddl.Dialect) *DB { return &DB{db: db, dialect: d} }

// Open opens and pings a database for dialect d.
func Open(ctx context.Context, d ddl.Dialect, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d)
	}
	driver, err := driverName(d, dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d, err)
	}
	if d == ddl.SQLite {
		// One connection keeps :memory: databases and transactions coherent.
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d, err)
	}
	if d == ddl.SQLite {
		_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	}
	return New(db, d), nil
}

// Dialect implements storage.Conn.
func (s *DB) Dialect() ddl.Dialect { return s.dialect }

// Exec implements storage.Conn.
func (s *DB) Exec(ctx context.Context, q string, args ...any) error {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return classify(s.dialect, err)
	}
	return nil
}

// Query implements storage.Conn.
func (s *DB) Query(ctx context.Context, q string, args ...any) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(s.dialect, err)
	}
	return collect(rows)
}

// CopyInto implements storage.Conn. The batches run in one transaction.
func (s *DB) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", s.dialect, err)
	}
	n, err := insertRows(ctx, tx, s.dialect, fqn, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", s.dialect, err)
	}
	return n, nil
}

// Columns implements storage.Conn.
func (s *DB) Columns(ctx context.Context, fqn string) ([]ddl.ColumnDef, error) {
	schema, table := ddl.SplitFQN(fqn)
	var (
		rows [][]any
		err  error
	)
	switch s.dialect {
	case ddl.SQLite:
		rows, err = s.Query(ctx, "SELECT name, type FROM pragma_table_info(?)", table)
	case ddl.MSSQL:
		if schema == "" {
			schema = "dbo"
		}
		rows, err = s.Query(ctx, `SELECT COLUMN_NAME,
  CASE
    WHEN CHARACTER_MAXIMUM_LENGTH = -1 THEN DATA_TYPE + '(MAX)'
    WHEN CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN DATA_TYPE + '(' + CAST(CHARACTER_MAXIMUM_LENGTH AS VARCHAR(10)) + ')'
    ELSE DATA_TYPE
  END
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`, schema, table)
	case ddl.MySQL:
		q := `SELECT COLUMN_NAME, COLUMN_TYPE FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = %s AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
		if schema == "" {
			rows, err = s.Query(ctx, fmt.Sprintf(q, "DATABASE()"), table)
		} else {
			rows, err = s.Query(ctx, fmt.Sprintf(q, "?"), schema, table)
		}
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", s.dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: describe %s: %w", s.dialect, fqn, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]ddl.ColumnDef, 0, len(rows))
	for _, r := range rows {
		out = append(out, ddl.ColumnDef{
			Name:     fmt.Sprint(r[0]),
			SQLType:  strings.ToUpper(textOrEmpty(r[1])),
			Nullable: true,
		})
	}
	return out, nil
}

// BeginTx implements storage.Conn.
func (s *DB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", s.dialect, err)
	}
	return &Tx{tx: tx, dialect: s.dialect}, nil
}

// Close implements storage.Conn.
func (s *DB) Close(context.Context) error { return s.db.Close() }

// Tx is a storage.Tx backed by a *sql.Tx.
type Tx struct {
	tx      *sql.Tx
	dialect ddl.Dialect
}

// Exec implements storage.Tx.
func (t *Tx) Exec(ctx context.Context, q string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
		return classify(t.dialect, err)
	}
	return nil
}

// CopyInto implements storage.Tx.
func (t *Tx) CopyInto(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	return insertRows(ctx, t.tx, t.dialect, fqn, columns, rows)
}

// Commit implements storage.Tx.
func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }

// Rollback implements storage.Tx.
func (t *Tx) Rollback(context.Context) error { return t.tx.Rollback() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRows(ctx context.Context, ex execer, d ddl.Dialect, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: insert into %s: columns must not be empty", d, fqn)
	}
	per := d.MaxParams() / len(columns)
	if per > maxInsertRows {
		per = maxInsertRows
	}
	if per < 1 {
		return 0, fmt.Errorf("%s: insert into %s: %d columns exceed the parameter limit", d, fqn, len(columns))
	}

	var inserted int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		batch := rows[start:end]
		args := make([]any, 0, len(batch)*len(columns))
		for _, r := range batch {
			if len(r) != len(columns) {
				return inserted, fmt.Errorf("%s: insert into %s: row length %d != columns length %d", d, fqn, len(r), len(columns))
			}
			args = append(args, r...)
		}
		if _, err := ex.ExecContext(ctx, d.InsertSQL(fqn, columns, len(batch)), args...); err != nil {
			return inserted, fmt.Errorf("%s: insert into %s: %w", d, fqn, classify(d, err))
		}
		inserted += int64(len(batch))
	}
	return inserted, nil
}

func collect(rows *sql.Rows) ([][]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func textOrEmpty(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
