package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"modernc.org/sqlite"

	"ffietl/internal/ddl"
	"ffietl/internal/storage"
)

// Server error numbers for a column the table does not have.
const (
	mssqlInvalidColumn = 207
	mysqlBadFieldError = 1054
)

// openDB is a test hook that points to Open by default.
var openDB = Open

func init() {
	for _, d := range []ddl.Dialect{ddl.SQLite, ddl.MSSQL, ddl.MySQL} {
		d := d
		storage.Register(string(d), func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
			return openDB(ctx, d, cfg.DSN)
		})
	}
}

// driverName validates dsn for dialect d and returns the database/sql
// driver to open it with.
func driverName(d ddl.Dialect, dsn string) (string, error) {
	switch d {
	case ddl.SQLite:
		return "sqlite", nil
	case ddl.MSSQL:
		if _, err := msdsn.Parse(dsn); err != nil {
			return "", fmt.Errorf("mssql dsn: %w", err)
		}
		return "sqlserver", nil
	case ddl.MySQL:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return "mysql", nil
	}
	return "", fmt.Errorf("sqlstore: unsupported dialect %q", d)
}

// classify wraps driver errors that mean "unknown column" with
// storage.ErrColumnMismatch.
func classify(d ddl.Dialect, err error) error {
	if err == nil || errors.Is(err, storage.ErrColumnMismatch) {
		return err
	}
	if missingColumn(d, err) {
		return fmt.Errorf("%w: %w", storage.ErrColumnMismatch, err)
	}
	return err
}

func missingColumn(d ddl.Dialect, err error) bool {
	switch d {
	case ddl.SQLite:
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		msg := se.Error()
		return strings.Contains(msg, "has no column named") || strings.Contains(msg, "no such column")
	case ddl.MSSQL:
		var me mssql.Error
		return errors.As(err, &me) && me.Number == mssqlInvalidColumn
	case ddl.MySQL:
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlBadFieldError
	}
	return false
}
