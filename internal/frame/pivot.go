package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Long-format columns a pivot reads.
const (
	PivotField  = "field_name"
	PivotValue  = "data_value"
	PivotType   = "data_type"
	PivotMethod = "method"
)

// Pivot turns (index, field_name, data_value) rows into one row per index
// tuple with one column per field name. Rows with a nil index value are
// dropped. Method data frames are split by method first and yield one frame
// per method, named after it; every other role yields one frame.
//
// Each resulting frame is cast using the data_type column when present and
// then has its column names cleaned. Afterwards f holds only the result.
func (f *Frame) Pivot(index ...string) error {
	t := f.rows()
	if !t.Has(PivotField) || !t.Has(PivotValue) {
		return fmt.Errorf("pivot %s: need %s and %s: %w", f.Name, PivotField, PivotValue, ErrNotPivotable)
	}

	var out []*Frame
	if f.Role == RoleMethodData {
		if !t.Has(PivotMethod) {
			return fmt.Errorf("pivot %s: need %s: %w", f.Name, PivotMethod, ErrNotPivotable)
		}
		frames, err := f.pivotGrouped(t, index)
		if err != nil {
			return err
		}
		out = frames
	} else {
		rows := make([]int, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			if !nilIndex(t, i, index) {
				rows = append(rows, i)
			}
		}
		p := pivotRows(t, rows, index, nil)
		pf := Wrap(f.Name, f.Role, p)
		if t.Has(PivotType) {
			if err := pf.Cast(declaredTypes(t, allRows(t)), index...); err != nil {
				return err
			}
		}
		if err := pf.CleanColumnNames(); err != nil {
			return err
		}
		out = []*Frame{pf}
	}
	f.content = Pivoted{Frames: out}
	return nil
}

func (f *Frame) pivotGrouped(t *Table, index []string) ([]*Frame, error) {
	data := map[string][]int{}
	empty := map[string][]int{}
	for i := 0; i < t.Len(); i++ {
		m, ok := t.Get(i, PivotMethod).(string)
		if !ok {
			continue
		}
		if nilIndex(t, i, index) {
			empty[m] = append(empty[m], i)
		} else {
			data[m] = append(data[m], i)
		}
	}
	methods := make([]string, 0, len(data))
	for m := range data {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	out := make([]*Frame, 0, len(methods))
	for _, m := range methods {
		var extra []string
		for _, i := range empty[m] {
			if name, ok := t.Get(i, PivotField).(string); ok {
				extra = append(extra, name)
			}
		}
		p := pivotRows(t, data[m], index, extra)
		pf := Wrap(CleanName(m), f.Role, p)
		typed := append(append([]int(nil), data[m]...), empty[m]...)
		if err := pf.Cast(declaredTypes(t, typed), index...); err != nil {
			return nil, err
		}
		if err := pf.CleanColumnNames(); err != nil {
			return nil, err
		}
		out = append(out, pf)
	}
	return out, nil
}

// pivotRows builds the wide table from the given long rows. extra names
// columns that must exist even without any value.
func pivotRows(t *Table, rows []int, index, extra []string) *Table {
	type wide struct {
		key  []any
		vals map[string]any
	}
	byKey := map[string]*wide{}
	var order []*wide
	fields := map[string]bool{}
	for _, name := range extra {
		fields[name] = true
	}
	var buf []byte
	for _, i := range rows {
		name, ok := t.Get(i, PivotField).(string)
		if !ok {
			continue
		}
		fields[name] = true
		key := make([]any, len(index))
		buf = buf[:0]
		for k, c := range index {
			key[k] = t.Get(i, c)
			buf = appendCell(buf, key[k])
		}
		w, ok := byKey[string(buf)]
		if !ok {
			w = &wide{key: key, vals: map[string]any{}}
			byKey[string(buf)] = w
			order = append(order, w)
		}
		if _, set := w.vals[name]; !set {
			w.vals[name] = t.Get(i, PivotValue)
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !contains(index, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	sort.SliceStable(order, func(a, b int) bool {
		return compareKeys(order[a].key, order[b].key) < 0
	})

	out := NewTable(append(append([]string(nil), index...), names...)...)
	for _, c := range index {
		out.setKind(c, t.Kind(c))
	}
	for _, w := range order {
		row := make([]any, 0, out.Width())
		row = append(row, w.key...)
		for _, name := range names {
			row = append(row, w.vals[name])
		}
		_ = out.AppendRow(row...)
	}
	return out
}

// declaredTypes maps field names to their data type over the given rows.
// Later rows win.
func declaredTypes(t *Table, rows []int) map[string]string {
	types := map[string]string{}
	for _, i := range rows {
		name, ok := t.Get(i, PivotField).(string)
		if !ok {
			continue
		}
		if tag, ok := t.Get(i, PivotType).(string); ok {
			types[name] = tag
		}
	}
	return types
}

func allRows(t *Table) []int {
	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func nilIndex(t *Table, i int, index []string) bool {
	for _, c := range index {
		if t.Get(i, c) == nil {
			return true
		}
	}
	return false
}

// compareKeys orders index tuples, numerically where both cells are numbers.
func compareKeys(a, b []any) int {
	for k := range a {
		as, bs := textOf(a[k]), textOf(b[k])
		af, aerr := strconv.ParseFloat(as, 64)
		bf, berr := strconv.ParseFloat(bs, 64)
		if aerr == nil && berr == nil {
			if af != bf {
				if af < bf {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(as, bs); c != 0 {
			return c
		}
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
