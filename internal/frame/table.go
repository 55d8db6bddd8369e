// Package frame holds the in-memory tables that an FFI export is flattened
// into and the transforms that turn them into output tables.
//
// A Table is a plain column-ordered grid of cells. Before casting every cell
// is either a string or nil; casting converts whole columns to int64,
// float64, bool or time.Time and records the column Kind so DDL can be
// derived from it. Projection never fails on an unknown column: the column
// is produced as all nil instead.
package frame

import (
	"fmt"
	"time"
)

// Kind is the storage kind of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

// Field is one named cell, used when rows are built column by column.
type Field struct {
	Name  string
	Value any
}

// Rename maps a source column onto an output column name.
type Rename struct {
	From string
	To   string
}

// Table is a row-major grid with an ordered, unique column list.
type Table struct {
	cols  []string
	index map[string]int
	kinds []Kind
	rows  [][]any
}

// NewTable returns an empty table with the given columns. Duplicate names
// are ignored after their first occurrence.
func NewTable(cols ...string) *Table {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		t.AddColumn(c)
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Len is the row count.
func (t *Table) Len() int { return len(t.rows) }

// Width is the column count.
func (t *Table) Width() int { return len(t.cols) }

// Row returns row i. The slice is shared with the table; callers must not
// modify it.
func (t *Table) Row(i int) []any { return t.rows[i] }

// Get returns the cell at row i, column col, or nil when the column does not
// exist.
func (t *Table) Get(i int, col string) any {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	return t.rows[i][j]
}

// Kind returns the kind of col; absent columns report KindText.
func (t *Table) Kind(col string) Kind {
	if j, ok := t.index[col]; ok {
		return t.kinds[j]
	}
	return KindText
}

// Values returns a copy of the column, or nil when it does not exist.
func (t *Table) Values(col string) []any {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Clone returns a deep copy of the grid. Cell values are shared, which is
// safe because they are immutable scalars.
func (t *Table) Clone() *Table {
	c := &Table{
		cols:  append([]string(nil), t.cols...),
		index: make(map[string]int, len(t.index)),
		kinds: append([]Kind(nil), t.kinds...),
		rows:  make([][]any, len(t.rows)),
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	for i, r := range t.rows {
		c.rows[i] = append([]any(nil), r...)
	}
	return c
}

// AddColumn appends an all-nil column when it is absent and returns its
// position.
func (t *Table) AddColumn(col string) int {
	if j, ok := t.index[col]; ok {
		return j
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	j := len(t.cols)
	t.cols = append(t.cols, col)
	t.kinds = append(t.kinds, KindText)
	t.index[col] = j
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], nil)
	}
	return j
}

// AppendRow appends one row given in column order.
func (t *Table) AppendRow(vals ...any) error {
	if len(vals) != len(t.cols) {
		return fmt.Errorf("frame: row has %d values, table has %d columns", len(vals), len(t.cols))
	}
	t.rows = append(t.rows, append([]any(nil), vals...))
	return nil
}

// AppendFields appends one row given as named cells. Unknown names become new
// columns; columns not named in fields are nil for this row.
func (t *Table) AppendFields(fields []Field) {
	for _, f := range fields {
		t.AddColumn(f.Name)
	}
	row := make([]any, len(t.cols))
	for _, f := range fields {
		row[t.index[f.Name]] = f.Value
	}
	t.rows = append(t.rows, row)
}

// SetColumn broadcasts v into every row of col, creating it if needed.
func (t *Table) SetColumn(col string, v any) {
	j := t.AddColumn(col)
	for _, r := range t.rows {
		r[j] = v
	}
	t.kinds[j] = kindOf(v)
}

// SetValues replaces col with vals, which must have one entry per row.
func (t *Table) SetValues(col string, vals []any) error {
	if len(vals) != len(t.rows) {
		return fmt.Errorf("frame: column %q has %d values, table has %d rows", col, len(vals), len(t.rows))
	}
	j := t.AddColumn(col)
	for i, r := range t.rows {
		r[j] = vals[i]
	}
	t.kinds[j] = KindText
	for _, v := range vals {
		if v != nil {
			t.kinds[j] = kindOf(v)
			break
		}
	}
	return nil
}

func (t *Table) setKind(col string, k Kind) {
	if j, ok := t.index[col]; ok {
		t.kinds[j] = k
	}
}

// renameAt changes the name of column j. When the new name is already taken
// the earlier column keeps the lookup slot.
func (t *Table) renameAt(j int, name string) {
	t.cols[j] = name
	t.index = make(map[string]int, len(t.cols))
	for i := len(t.cols) - 1; i >= 0; i-- {
		t.index[t.cols[i]] = i
	}
}

// Project returns a new table with exactly cols, in that order. Columns the
// source lacks are all nil.
func (t *Table) Project(cols ...string) *Table {
	rs := make([]Rename, len(cols))
	for i, c := range cols {
		rs[i] = Rename{From: c, To: c}
	}
	return t.ProjectRenaming(rs...)
}

// ProjectRenaming is Project with each source column renamed on the way out.
func (t *Table) ProjectRenaming(renames ...Rename) *Table {
	out := NewTable()
	src := make([]int, 0, len(renames))
	for _, r := range renames {
		if out.Has(r.To) {
			continue
		}
		out.AddColumn(r.To)
		j, ok := t.index[r.From]
		if ok {
			out.kinds[len(out.kinds)-1] = t.kinds[j]
		} else {
			j = -1
		}
		src = append(src, j)
	}
	out.rows = make([][]any, len(t.rows))
	for i, r := range t.rows {
		row := make([]any, len(src))
		for k, j := range src {
			if j >= 0 {
				row[k] = r[j]
			}
		}
		out.rows[i] = row
	}
	return out
}

// Filter returns a new table holding the rows for which keep is true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := &Table{
		cols:  append([]string(nil), t.cols...),
		index: make(map[string]int, len(t.index)),
		kinds: append([]Kind(nil), t.kinds...),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, append([]any(nil), r...))
		}
	}
	return out
}

func kindOf(v any) Kind {
	switch v.(type) {
	case int64, int:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	default:
		return KindText
	}
}
