// Package ddl renders the SQL the output writer issues: CREATE TABLE from a
// small TableDef model, plus the rename/copy/drop statements used when a
// destination table is rebuilt with extra columns.
//
// Every statement is rendered for a Dialect, which decides identifier
// quoting, bind placeholders and the type names columns map to.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement for t.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//   - Identifiers are quoted for the dialect.
func (d Dialect) BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		d.QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// QuoteIdent quotes a single identifier segment:
//
//	postgres, sqlite  "name"   (embedded " doubled)
//	mssql             [name]   (embedded ] doubled)
//	mysql             `name`   (embedded ` doubled)
func (d Dialect) QuoteIdent(id string) string {
	switch d {
	case MSSQL:
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
	}
}

// QuoteFQN quotes a possibly schema-qualified name like "public.plot".
// Empty segments are ignored.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// FQN joins schema and table. SQLite has no schemas, so the schema is
// dropped there.
func (d Dialect) FQN(schema, table string) string {
	if schema == "" || d == SQLite {
		return table
	}
	return schema + "." + table
}

// SplitFQN splits "schema.table" into its parts; a bare name has no schema.
func SplitFQN(fqn string) (schema, table string) {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}

// RenameTableSQL renames fqn to newName within the same schema.
func (d Dialect) RenameTableSQL(fqn, newName string) string {
	schema, _ := SplitFQN(fqn)
	switch d {
	case MSSQL:
		return fmt.Sprintf("EXEC sp_rename N'%s', N'%s'",
			strings.ReplaceAll(d.QuoteFQN(fqn), "'", "''"),
			strings.ReplaceAll(newName, "'", "''"))
	case MySQL:
		return fmt.Sprintf("RENAME TABLE %s TO %s", d.QuoteFQN(fqn), d.QuoteFQN(d.FQN(schema, newName)))
	default:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteFQN(fqn), d.QuoteIdent(newName))
	}
}

// DropTableSQL drops fqn.
func (d Dialect) DropTableSQL(fqn string) string {
	return "DROP TABLE " + d.QuoteFQN(fqn)
}

// DropTableIfExistsSQL drops fqn when it exists.
func (d Dialect) DropTableIfExistsSQL(fqn string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
}

// TransactionalDDL reports whether CREATE, RENAME and DROP TABLE can be
// rolled back. MySQL commits implicitly around each of them.
func (d Dialect) TransactionalDDL() bool { return d != MySQL }

// CopyRowsSQL copies cols from src into dst.
func (d Dialect) CopyRowsSQL(dst, src string, cols []string) string {
	list := d.columnList(cols)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", d.QuoteFQN(dst), list, list, d.QuoteFQN(src))
}

// DistinctSQL selects the distinct values of col.
func (d Dialect) DistinctSQL(fqn, col string) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s", d.QuoteIdent(col), d.QuoteFQN(fqn))
}

// InsertSQL renders a multi-row INSERT for rows rows of cols, with bind
// placeholders numbered from 1.
func (d Dialect) InsertSQL(fqn string, cols []string, rows int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteFQN(fqn), d.columnList(cols))
	n := 0
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range cols {
			if c > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteString(d.Placeholder(n))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// Placeholder is the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return fmt.Sprintf("$%d", n)
	case MSSQL:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// MaxParams is the bind parameter limit per statement.
func (d Dialect) MaxParams() int {
	switch d {
	case MSSQL:
		return 2100 - 1
	case SQLite:
		return 32766
	default:
		return 65535
	}
}

func (d Dialect) columnList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.QuoteIdent(c)
	}
	return strings.Join(q, ", ")
}
