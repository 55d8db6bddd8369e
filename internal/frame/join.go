package frame

import "fmt"

// JoinSuffix is appended to a right-hand column whose name is already taken
// by the left side.
const JoinSuffix = "_y"

// LeftJoin keeps every row of t and pairs it with each row of right whose
// rightOn value equals the row's leftOn value. Rows without a partner get nil
// right-hand cells. Nil keys never match, and a key column missing on either
// side means nothing matches.
//
// Output columns are t's columns followed by right's. When leftOn and rightOn
// share a name the right key is dropped; any other clash is resolved by
// suffixing the right column with JoinSuffix.
func (t *Table) LeftJoin(right *Table, leftOn, rightOn string) *Table {
	out := NewTable(t.cols...)
	copy(out.kinds, t.kinds)

	type rcol struct {
		src int
		dst int
	}
	var rcols []rcol
	for j, c := range right.cols {
		if c == rightOn && leftOn == rightOn {
			continue
		}
		name := c
		for out.Has(name) {
			name += JoinSuffix
		}
		dst := out.AddColumn(name)
		out.kinds[dst] = right.kinds[j]
		rcols = append(rcols, rcol{src: j, dst: dst})
	}

	matches := map[string][]int{}
	li, lok := t.index[leftOn]
	ri, rok := right.index[rightOn]
	if lok && rok {
		for i, r := range right.rows {
			if k, ok := joinKey(r[ri]); ok {
				matches[k] = append(matches[k], i)
			}
		}
	}

	width := len(out.cols)
	emit := func(l []any, r []any) {
		row := make([]any, width)
		copy(row, l)
		if r != nil {
			for _, c := range rcols {
				row[c.dst] = r[c.src]
			}
		}
		out.rows = append(out.rows, row)
	}
	for _, l := range t.rows {
		var hits []int
		if lok && rok {
			if k, ok := joinKey(l[li]); ok {
				hits = matches[k]
			}
		}
		if len(hits) == 0 {
			emit(l, nil)
			continue
		}
		for _, h := range hits {
			emit(l, right.rows[h])
		}
	}
	return out
}

func joinKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	default:
		return fmt.Sprint(x), true
	}
}
