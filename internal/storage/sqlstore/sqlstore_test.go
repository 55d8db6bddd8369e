package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffietl/internal/ddl"
	"ffietl/internal/storage"
)

func memDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ddl.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		d    ddl.Dialect
		err  error
		want bool
	}{
		{"mysql unknown column", ddl.MySQL, &mysql.MySQLError{Number: 1054, Message: "Unknown column 'x'"}, true},
		{"mysql other", ddl.MySQL, &mysql.MySQLError{Number: 1062}, false},
		{"mssql invalid column", ddl.MSSQL, mssql.Error{Number: 207, Message: "Invalid column name 'x'."}, true},
		{"mssql wrapped", ddl.MSSQL, fmt.Errorf("insert: %w", mssql.Error{Number: 207}), true},
		{"mssql other", ddl.MSSQL, mssql.Error{Number: 2627}, false},
		{"plain error", ddl.SQLite, errors.New("has no column named x"), false},
		{"nil", ddl.MySQL, nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classify(c.d, c.err)
			assert.Equal(t, c.want, errors.Is(got, storage.ErrColumnMismatch))
			if c.err != nil {
				assert.Contains(t, got.Error(), c.err.Error())
			}
		})
	}
}

func TestSQLiteMissingColumnIsClassified(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	require.NoError(t, db.Exec(ctx, `CREATE TABLE "plot" ("plot_id" TEXT)`))

	_, err := db.CopyInto(ctx, "plot", []string{"plot_id", "elevation"}, [][]any{{"A", "1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrColumnMismatch)

	_, err = db.Query(ctx, `SELECT nope FROM plot`)
	assert.ErrorIs(t, err, storage.ErrColumnMismatch)
}

func TestColumnsAbsentTable(t *testing.T) {
	cols, err := memDB(t).Columns(context.Background(), "nothing_here")
	require.NoError(t, err)
	assert.Nil(t, cols)
}

func TestCopyIntoBatches(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	require.NoError(t, db.Exec(ctx, `CREATE TABLE "t" ("a" INTEGER, "b" TEXT)`))

	rows := make([][]any, 2500)
	for i := range rows {
		rows[i] = []any{int64(i), fmt.Sprint("r", i)}
	}
	n, err := db.CopyInto(ctx, "t", []string{"a", "b"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), n)

	got, err := db.Query(ctx, `SELECT COUNT(*), MAX("a") FROM "t"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2500), int64(2499)}}, got)
}

func TestCopyIntoRejectsRaggedRows(t *testing.T) {
	ctx := context.Background()
	db := memDB(t)
	require.NoError(t, db.Exec(ctx, `CREATE TABLE "t" ("a" TEXT, "b" TEXT)`))

	_, err := db.CopyInto(ctx, "t", []string{"a", "b"}, [][]any{{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row length 1 != columns length 2")

	got, err := db.Query(ctx, `SELECT COUNT(*) FROM "t"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0)}}, got)
}

// recordingExecer counts statements and their bind arguments.
type recordingExecer struct {
	stmts []string
	args  []int
}

func (r *recordingExecer) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	r.stmts = append(r.stmts, q)
	r.args = append(r.args, len(args))
	return nil, nil
}

func TestInsertRowsRespectsDialectLimits(t *testing.T) {
	cols := make([]string, 3)
	for i := range cols {
		cols[i] = fmt.Sprint("c", i)
	}
	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{1, 2, 3}
	}

	rec := &recordingExecer{}
	n, err := insertRows(context.Background(), rec, ddl.MSSQL, "dbo.t", cols, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)
	// 2099 parameters / 3 columns = 699 rows per statement.
	assert.Equal(t, []int{699 * 3, 699 * 3, 102 * 3}, rec.args)
	assert.True(t, strings.HasPrefix(rec.stmts[0], "INSERT INTO [dbo].[t] ([c0], [c1], [c2]) VALUES (@p1, @p2, @p3), "))

	rec = &recordingExecer{}
	_, err = insertRows(context.Background(), rec, ddl.MySQL, "t", cols, rows)
	require.NoError(t, err)
	assert.Equal(t, []int{1000 * 3, 500 * 3}, rec.args)
}

func TestDriverName(t *testing.T) {
	name, err := driverName(ddl.SQLite, "file:x.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)

	name, err = driverName(ddl.MySQL, "user:pw@tcp(localhost:3306)/ffi")
	require.NoError(t, err)
	assert.Equal(t, "mysql", name)

	name, err = driverName(ddl.MSSQL, "sqlserver://sa:pw@localhost:1433?database=ffi")
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", name)

	_, err = driverName(ddl.MySQL, "not a dsn")
	assert.Error(t, err)

	_, err = driverName(ddl.Postgres, "postgres://x")
	assert.Error(t, err)
}

func TestRegisteredKinds(t *testing.T) {
	orig := openDB
	defer func() { openDB = orig }()

	var got []string
	openDB = func(_ context.Context, d ddl.Dialect, dsn string) (*DB, error) {
		got = append(got, string(d)+" "+dsn)
		return New(nil, d), nil
	}

	for _, kind := range []string{"sqlite", "mssql", "mysql"} {
		conn, err := storage.Open(context.Background(), storage.Config{Kind: kind, DSN: "dsn"})
		require.NoError(t, err)
		assert.Equal(t, ddl.Dialect(kind), conn.Dialect())
	}
	assert.Equal(t, []string{"sqlite dsn", "mssql dsn", "mysql dsn"}, got)
}
