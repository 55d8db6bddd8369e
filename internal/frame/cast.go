package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownType is returned when a column's declared type tag is not
	// one of the FFI data types.
	ErrUnknownType = errors.New("unknown data type")
	// ErrUnmappedField is returned when a column has no declared type.
	ErrUnmappedField = errors.New("field has no declared data type")
	// ErrCast is returned when a cell cannot be read as its declared type.
	ErrCast = errors.New("cannot cast value")
)

// typeKinds maps FFI data type names onto column kinds.
var typeKinds = map[string]Kind{
	"Float":     KindFloat,
	"Long":      KindInt,
	"Boolean":   KindBool,
	"Date/Time": KindTime,
	"Text":      KindText,
	"Index":     KindInt,
	"Species":   KindText,
	"Memo":      KindText,
	"GUID":      KindText,
}

// KindForType returns the column kind of an FFI data type name.
func KindForType(tag string) (Kind, bool) {
	k, ok := typeKinds[tag]
	return k, ok
}

// timeLayouts are the date/time renderings seen in FFI exports.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// castTable converts every column of t except those in exclude to the kind
// its declared type maps to. Integer columns turn nil into 0 and text
// columns turn nil into "".
func castTable(t *Table, types map[string]string, exclude []string) error {
	skip := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		skip[c] = true
	}
	for j, col := range t.cols {
		if skip[col] {
			continue
		}
		tag, ok := types[col]
		if !ok {
			return fmt.Errorf("column %q: %w", col, ErrUnmappedField)
		}
		kind, ok := typeKinds[tag]
		if !ok {
			return fmt.Errorf("column %q type %q: %w", col, tag, ErrUnknownType)
		}
		for i, r := range t.rows {
			v, err := castValue(r[j], kind)
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", col, i, err)
			}
			r[j] = v
		}
		t.kinds[j] = kind
	}
	return nil
}

func castValue(v any, kind Kind) (any, error) {
	switch kind {
	case KindInt:
		return castInt(v)
	case KindFloat:
		return castFloat(v)
	case KindBool:
		return castBool(v)
	case KindTime:
		return castTime(v)
	default:
		if v == nil {
			return "", nil
		}
		return textOf(v), nil
	}
}

func castInt(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return int64(0), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: %v as integer", ErrCast, x)
		}
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return int64(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// "12.0" is a whole number rendered as a float.
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("%w: %q as integer", ErrCast, x)
	default:
		return nil, fmt.Errorf("%w: %T as integer", ErrCast, v)
	}
}

func castFloat(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as float", ErrCast, x)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %T as float", ErrCast, v)
	}
}

func castBool(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "":
			return nil, nil
		case "true", "t", "yes", "y", "1", "-1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q as boolean", ErrCast, x)
	default:
		return nil, fmt.Errorf("%w: %T as boolean", ErrCast, v)
	}
}

func castTime(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%w: %q as date/time", ErrCast, x)
	default:
		return nil, fmt.Errorf("%w: %T as date/time", ErrCast, v)
	}
}
