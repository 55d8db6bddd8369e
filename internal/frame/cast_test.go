package frame

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast(t *testing.T) {
	f := Wrap("t", RoleGeneric, mkTable(t,
		[]string{"event_id", "count", "cover", "alive", "when", "note"},
		[]any{"E1", "12", "1.5", "True", "2004-07-09T00:00:00", nil},
		[]any{"E2", nil, nil, nil, nil, "x"},
	))
	types := map[string]string{
		"count": "Long",
		"cover": "Float",
		"alive": "Boolean",
		"when":  "Date/Time",
		"note":  "Memo",
	}
	require.NoError(t, f.Cast(types, "event_id"))
	tab := f.Table()

	assert.Equal(t, []any{int64(12), int64(0)}, tab.Values("count"))
	assert.Equal(t, []any{1.5, nil}, tab.Values("cover"))
	assert.Equal(t, []any{true, nil}, tab.Values("alive"))
	assert.Equal(t, []any{time.Date(2004, 7, 9, 0, 0, 0, 0, time.UTC), nil}, tab.Values("when"))
	assert.Equal(t, []any{"", "x"}, tab.Values("note"))
	assert.Equal(t, []any{"E1", "E2"}, tab.Values("event_id"))

	assert.Equal(t, KindInt, tab.Kind("count"))
	assert.Equal(t, KindFloat, tab.Kind("cover"))
	assert.Equal(t, KindBool, tab.Kind("alive"))
	assert.Equal(t, KindTime, tab.Kind("when"))
	assert.Equal(t, KindText, tab.Kind("note"))
}

func TestCastErrors(t *testing.T) {
	mk := func() *Frame {
		return Wrap("t", RoleGeneric, mkTable(t, []string{"a"}, []any{"abc"}))
	}

	err := mk().Cast(map[string]string{})
	require.True(t, errors.Is(err, ErrUnmappedField), "got %v", err)

	err = mk().Cast(map[string]string{"a": "Blob"})
	require.True(t, errors.Is(err, ErrUnknownType), "got %v", err)

	err = mk().Cast(map[string]string{"a": "Long"})
	require.True(t, errors.Is(err, ErrCast), "got %v", err)

	require.NoError(t, mk().Cast(map[string]string{"a": "GUID"}))
}

func TestCastIntegralFloatText(t *testing.T) {
	f := Wrap("t", RoleGeneric, mkTable(t, []string{"n"}, []any{"3.0"}, []any{" 7 "}))
	require.NoError(t, f.Cast(map[string]string{"n": "Index"}))
	assert.Equal(t, []any{int64(3), int64(7)}, f.Table().Values("n"))
}

func TestKindForType(t *testing.T) {
	k, ok := KindForType("Species")
	assert.True(t, ok)
	assert.Equal(t, KindText, k)
	_, ok = KindForType("Picture")
	assert.False(t, ok)
}
