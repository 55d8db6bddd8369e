package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ffietl/internal/ddl"
	"ffietl/internal/frame"
	"ffietl/internal/tables"
)

// Evolve step names that decide whether a failed rebuild must be undone by
// hand.
const (
	stepRename     = "rename to backup"
	stepDropBackup = "drop backup"
)

// BackupSuffix names the copy a table is renamed to while it is rebuilt.
const BackupSuffix = "_backup"

// ReferenceKeys maps the reference tables to their key column. Rows whose
// key already exists at the destination are not written again.
var ReferenceKeys = map[string]string{
	tables.Species:          "symbol",
	tables.MonitoringStatus: "monitoring_status",
	tables.AdminUnit:        "admin_unit",
}

// Writer writes final output tables to a destination, creating tables on
// first use and rebuilding them when a later document brings new columns.
type Writer struct {
	Conn   Conn
	Hooks  DependencyHooks // nil means NopHooks
	Schema string
	Logger *zap.Logger // nil means no logging
}

// Result describes one Write.
type Result struct {
	Table    string
	Rows     int64    // rows appended
	Filtered int      // reference rows dropped because their key exists
	Created  bool     // destination table was created
	Evolved  bool     // destination table was rebuilt with extra columns
	Added    []string // columns added by the rebuild
}

// Write appends the rows of f to the table named f.Name.
//
// Reference tables are filtered against the destination first; a failed
// lookup counts as an empty destination. Nothing is written for an empty
// table. An append rejected with ErrColumnMismatch triggers Evolve.
func (w *Writer) Write(ctx context.Context, f *frame.Frame) (Result, error) {
	res := Result{Table: f.Name}
	t := f.Table()
	if t == nil {
		return res, fmt.Errorf("write %s: frame holds pivots, not rows", f.Name)
	}
	d := w.Conn.Dialect()
	fqn := d.FQN(w.Schema, f.Name)
	log := w.log().With(zap.String("table", fqn))

	t = w.filterExisting(ctx, f.Name, fqn, t, &res)
	if t.Len() == 0 {
		log.Debug("nothing to write", zap.Int("filtered", res.Filtered))
		return res, nil
	}

	existing, err := w.Conn.Columns(ctx, fqn)
	if err != nil {
		return res, fmt.Errorf("write %s: describe: %w", fqn, err)
	}
	if existing == nil {
		stmt, err := d.BuildCreateTableSQL(d.FromTable(fqn, t))
		if err != nil {
			return res, fmt.Errorf("write %s: %w", fqn, err)
		}
		if err := w.Conn.Exec(ctx, stmt); err != nil {
			return res, fmt.Errorf("write %s: create: %w", fqn, err)
		}
		res.Created = true
		log.Info("created table", zap.Int("columns", t.Width()))
	}

	n, err := w.Conn.CopyInto(ctx, fqn, t.Columns(), rowsOf(t))
	switch {
	case errors.Is(err, ErrColumnMismatch):
		log.Info("destination lacks columns; rebuilding", zap.Error(err))
		added, err := w.Evolve(ctx, fqn, existing, t)
		if err != nil {
			return res, err
		}
		res.Evolved, res.Added = true, added
		n = int64(t.Len())
	case err != nil:
		return res, fmt.Errorf("write %s: append: %w", fqn, err)
	}
	res.Rows = n

	log.Info("table written",
		zap.Int64("rows", res.Rows),
		zap.Int("filtered", res.Filtered),
		zap.Bool("created", res.Created),
		zap.Bool("evolved", res.Evolved),
	)
	return res, nil
}

// Evolve rebuilds fqn with the union of its current columns and the columns
// of t, then appends t. In one transaction it detaches dependents, renames
// the table to its backup name, creates the widened table, appends t (nil
// for columns t lacks), copies the backup rows back, drops the backup and
// reattaches dependents. Any failure rolls the whole rebuild back.
//
// Dialects without transactional DDL (MySQL) cannot roll back the rename.
// There a failure before the backup is dropped is undone by hand: the
// partial table is dropped and the backup renamed back.
//
// It returns the names of the added columns.
func (w *Writer) Evolve(ctx context.Context, fqn string, existing []ddl.ColumnDef, t *frame.Table) ([]string, error) {
	d := w.Conn.Dialect()
	schema, table := ddl.SplitFQN(fqn)
	backup := d.FQN(schema, table+BackupSuffix)

	have := make(map[string]bool, len(existing))
	oldCols := make([]string, 0, len(existing))
	union := make([]ddl.ColumnDef, 0, len(existing)+t.Width())
	for _, c := range existing {
		if c.SQLType == "" {
			c.SQLType = d.MapKind(frame.KindText)
		}
		c.Nullable = true
		have[c.Name] = true
		oldCols = append(oldCols, c.Name)
		union = append(union, c)
	}
	var added []string
	for _, c := range d.FromTable(fqn, t).Columns {
		if !have[c.Name] {
			union = append(union, c)
			added = append(added, c.Name)
		}
	}
	allCols := make([]string, len(union))
	for i, c := range union {
		allCols[i] = c.Name
	}
	create, err := d.BuildCreateTableSQL(ddl.TableDef{FQN: fqn, Columns: union})
	if err != nil {
		return nil, fmt.Errorf("evolve %s: %w", fqn, err)
	}
	widened := t.Project(allCols...)

	tx, err := w.Conn.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("evolve %s: begin: %w", fqn, err)
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"detach dependencies", func() error { return w.hooks().Detach(ctx, tx, schema, table) }},
		{stepRename, func() error { return tx.Exec(ctx, d.RenameTableSQL(fqn, table+BackupSuffix)) }},
		{"create", func() error { return tx.Exec(ctx, create) }},
		{"append", func() error {
			_, err := tx.CopyInto(ctx, fqn, allCols, rowsOf(widened))
			return err
		}},
		{"restore rows", func() error { return tx.Exec(ctx, d.CopyRowsSQL(fqn, backup, oldCols)) }},
		{stepDropBackup, func() error { return tx.Exec(ctx, d.DropTableSQL(backup)) }},
		{"reattach dependencies", func() error { return w.hooks().Reattach(ctx, tx, schema, table) }},
	}
	renamed, dropped := false, false
	for _, s := range steps {
		if err := s.run(); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				w.log().Warn("rollback failed", zap.String("table", fqn), zap.Error(rbErr))
			}
			if renamed && !dropped && !d.TransactionalDDL() {
				if rsErr := w.restoreBackup(ctx, fqn, backup, table); rsErr != nil {
					return nil, fmt.Errorf("evolve %s: %s: %w (restore from %s failed: %v)", fqn, s.name, err, backup, rsErr)
				}
			}
			return nil, fmt.Errorf("evolve %s: %s: %w", fqn, s.name, err)
		}
		switch s.name {
		case stepRename:
			renamed = true
		case stepDropBackup:
			dropped = true
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("evolve %s: commit: %w", fqn, err)
	}
	w.log().Info("table rebuilt", zap.String("table", fqn), zap.Strings("added", added))
	return added, nil
}

// restoreBackup puts the backup of fqn back in place after a failed rebuild
// whose DDL was committed implicitly.
func (w *Writer) restoreBackup(ctx context.Context, fqn, backup, table string) error {
	d := w.Conn.Dialect()
	if err := w.Conn.Exec(ctx, d.DropTableIfExistsSQL(fqn)); err != nil {
		return err
	}
	if err := w.Conn.Exec(ctx, d.RenameTableSQL(backup, table)); err != nil {
		return err
	}
	w.log().Warn("rebuild undone; backup restored", zap.String("table", fqn))
	return nil
}

// AlreadyIngested reports whether file_info holds a row for this document
// fingerprint and schema version. A missing file_info table means no.
func (w *Writer) AlreadyIngested(ctx context.Context, fileID, version string) (bool, error) {
	d := w.Conn.Dialect()
	fqn := d.FQN(w.Schema, tables.FileInfo)
	cols, err := w.Conn.Columns(ctx, fqn)
	if err != nil {
		return false, fmt.Errorf("file_info: %w", err)
	}
	if cols == nil {
		return false, nil
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s AND %s = %s",
		d.QuoteIdent("file_id"), d.QuoteFQN(fqn),
		d.QuoteIdent("file_id"), d.Placeholder(1),
		d.QuoteIdent("ffi_version"), d.Placeholder(2),
	)
	rows, err := w.Conn.Query(ctx, q, fileID, version)
	if err != nil {
		return false, fmt.Errorf("file_info: %w", err)
	}
	return len(rows) > 0, nil
}

// ForgetIngested deletes the file_info row of a document so a later run
// converts it again. A missing file_info table is not an error.
func (w *Writer) ForgetIngested(ctx context.Context, fileID, version string) error {
	d := w.Conn.Dialect()
	fqn := d.FQN(w.Schema, tables.FileInfo)
	cols, err := w.Conn.Columns(ctx, fqn)
	if err != nil {
		return fmt.Errorf("file_info: %w", err)
	}
	if cols == nil {
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s = %s",
		d.QuoteFQN(fqn),
		d.QuoteIdent("file_id"), d.Placeholder(1),
		d.QuoteIdent("ffi_version"), d.Placeholder(2),
	)
	if err := w.Conn.Exec(ctx, q, fileID, version); err != nil {
		return fmt.Errorf("file_info: %w", err)
	}
	return nil
}

func (w *Writer) filterExisting(ctx context.Context, name, fqn string, t *frame.Table, res *Result) *frame.Table {
	key, ok := ReferenceKeys[name]
	if !ok || !t.Has(key) {
		return t
	}
	found, err := w.Conn.Query(ctx, w.Conn.Dialect().DistinctSQL(fqn, key))
	if err != nil {
		w.log().Debug("reference lookup failed; keeping all rows", zap.String("table", fqn), zap.Error(err))
		return t
	}
	seen := make(map[string]struct{}, len(found))
	for _, r := range found {
		if len(r) > 0 && r[0] != nil {
			seen[keyText(r[0])] = struct{}{}
		}
	}
	keys := t.Values(key)
	out := t.Filter(func(i int) bool {
		if keys[i] == nil {
			return true
		}
		_, dup := seen[keyText(keys[i])]
		return !dup
	})
	res.Filtered = t.Len() - out.Len()
	return out
}

func (w *Writer) hooks() DependencyHooks {
	if w.Hooks == nil {
		return NopHooks{}
	}
	return w.Hooks
}

func (w *Writer) log() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

func rowsOf(t *frame.Table) [][]any {
	out := make([][]any, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

func keyText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
