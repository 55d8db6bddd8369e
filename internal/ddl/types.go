package ddl

import (
	"fmt"
	"strings"

	"ffietl/internal/frame"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
//   - Default: raw default expression
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// TableDef holds the possibly schema-qualified table name and an ordered
// list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect is one of the supported SQL dialects.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
	MySQL    Dialect = "mysql"
)

// ParseDialect accepts the dialect names used in configuration.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("ddl: unknown dialect %q", s)
}

// MapKind maps a frame column kind onto the dialect's SQL type.
//
//	kind   postgres          sqlite   mssql          mysql
//	int    BIGINT            INTEGER  BIGINT         BIGINT
//	float  DOUBLE PRECISION  REAL     FLOAT          DOUBLE
//	bool   BOOLEAN           INTEGER  BIT            BOOLEAN
//	time   TIMESTAMP         TEXT     DATETIME2      DATETIME
//	text   TEXT              TEXT     NVARCHAR(MAX)  TEXT
func (d Dialect) MapKind(k frame.Kind) string {
	switch d {
	case SQLite:
		switch k {
		case frame.KindInt, frame.KindBool:
			return "INTEGER"
		case frame.KindFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	case MSSQL:
		switch k {
		case frame.KindInt:
			return "BIGINT"
		case frame.KindFloat:
			return "FLOAT"
		case frame.KindBool:
			return "BIT"
		case frame.KindTime:
			return "DATETIME2"
		default:
			return "NVARCHAR(MAX)"
		}
	case MySQL:
		switch k {
		case frame.KindInt:
			return "BIGINT"
		case frame.KindFloat:
			return "DOUBLE"
		case frame.KindBool:
			return "BOOLEAN"
		case frame.KindTime:
			return "DATETIME"
		default:
			return "TEXT"
		}
	default:
		switch k {
		case frame.KindInt:
			return "BIGINT"
		case frame.KindFloat:
			return "DOUBLE PRECISION"
		case frame.KindBool:
			return "BOOLEAN"
		case frame.KindTime:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	}
}

// FromTable derives a nullable-everywhere table definition from the columns
// and kinds of t.
func (d Dialect) FromTable(fqn string, t *frame.Table) TableDef {
	def := TableDef{FQN: fqn}
	for _, c := range t.Columns() {
		def.Columns = append(def.Columns, ColumnDef{
			Name:     c,
			SQLType:  d.MapKind(t.Kind(c)),
			Nullable: true,
		})
	}
	return def
}
