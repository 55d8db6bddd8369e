package frame

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Dedup drops rows that repeat an earlier row, keeping the first. With a
// subset only those columns are compared; absent subset columns compare as
// nil.
func (f *Frame) Dedup(subset ...string) {
	t := f.rows()
	cols := make([]int, 0, len(t.cols))
	if len(subset) == 0 {
		for j := range t.cols {
			cols = append(cols, j)
		}
	} else {
		for _, c := range subset {
			if j, ok := t.index[c]; ok {
				cols = append(cols, j)
			} else {
				cols = append(cols, -1)
			}
		}
	}

	seen := make(map[xxh3.Uint128]struct{}, t.Len())
	var buf []byte
	kept := t.rows[:0]
	for _, r := range t.rows {
		buf = buf[:0]
		for _, j := range cols {
			var v any
			if j >= 0 {
				v = r[j]
			}
			buf = appendCell(buf, v)
		}
		h := xxh3.Hash128(buf)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
}

// DedupFields keeps the first row for each index tuple and field name. It
// collapses attribute rows that differ only in columns the pivot ignores.
func (f *Frame) DedupFields(index ...string) error {
	if f.Role != RoleEventDetail && f.Role != RoleMethodData {
		return fmt.Errorf("dedup fields on %s (%s): %w", f.Name, f.Role, ErrRole)
	}
	f.Dedup(append(append([]string(nil), index...), PivotField)...)
	return nil
}

// appendCell writes a type-tagged, length-prefixed encoding of v so that
// distinct cell sequences never encode alike.
func appendCell(b []byte, v any) []byte {
	var s string
	switch x := v.(type) {
	case nil:
		return append(b, 0)
	case string:
		b = append(b, 1)
		s = x
	case int64:
		b = append(b, 2)
		s = strconv.FormatInt(x, 10)
	case float64:
		b = append(b, 3)
		s = strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		b = append(b, 4)
		s = strconv.FormatBool(x)
	case time.Time:
		b = append(b, 5)
		s = x.UTC().Format(time.RFC3339Nano)
	default:
		b = append(b, 6)
		s = fmt.Sprint(x)
	}
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}
