package frame

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mkTable builds a table from a header and rows; it fails the test on a
// malformed row.
func mkTable(t *testing.T, cols []string, rows ...[]any) *Table {
	t.Helper()
	tab := NewTable(cols...)
	for _, r := range rows {
		require.NoError(t, tab.AppendRow(r...))
	}
	return tab
}

func rowsOf(t *Table) [][]any {
	out := make([][]any, t.Len())
	for i := range out {
		out[i] = append([]any(nil), t.Row(i)...)
	}
	return out
}

func TestProjectFillsMissingColumns(t *testing.T) {
	src := mkTable(t, []string{"a", "b"},
		[]any{"1", "x"},
		[]any{"2", nil},
		[]any{"3", "z"},
	)
	got := src.Project("b", "missing", "a")

	assert.Equal(t, []string{"b", "missing", "a"}, got.Columns())
	require.Equal(t, src.Len(), got.Len())
	for i := 0; i < got.Len(); i++ {
		assert.Nil(t, got.Get(i, "missing"), "row %d", i)
	}
	want := [][]any{{"x", nil, "1"}, {nil, nil, "2"}, {"z", nil, "3"}}
	if diff := cmp.Diff(want, rowsOf(got)); diff != "" {
		t.Fatalf("project mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectRenamingDoesNotTouchSource(t *testing.T) {
	src := mkTable(t, []string{"RegistrationUnit_Name", "RegistrationUnit_Comment"},
		[]any{"Yosemite", "note"},
	)
	got := src.ProjectRenaming(
		Rename{From: "RegistrationUnit_Name", To: "admin_unit"},
		Rename{From: "RegistrationUnit_Comment", To: "details"},
		Rename{From: "Nope", To: "unit_identifier"},
	)
	assert.Equal(t, []string{"admin_unit", "details", "unit_identifier"}, got.Columns())
	assert.Equal(t, []any{"Yosemite", "note", nil}, got.Row(0))
	assert.Equal(t, []string{"RegistrationUnit_Name", "RegistrationUnit_Comment"}, src.Columns())
}

func TestProjectEmptySource(t *testing.T) {
	got := NewTable().Project("a", "b")
	assert.Equal(t, []string{"a", "b"}, got.Columns())
	assert.Equal(t, 0, got.Len())
}

func TestAppendFieldsUnionsColumns(t *testing.T) {
	tab := NewTable()
	tab.AppendFields([]Field{{Name: "a", Value: "1"}})
	tab.AppendFields([]Field{{Name: "b", Value: "2"}})
	assert.Equal(t, []string{"a", "b"}, tab.Columns())
	assert.Equal(t, [][]any{{"1", nil}, {nil, "2"}}, rowsOf(tab))
}

func TestSetValuesLengthMismatch(t *testing.T) {
	tab := mkTable(t, []string{"a"}, []any{"1"}, []any{"2"})
	require.Error(t, tab.SetValues("b", []any{"x"}))
	require.NoError(t, tab.SetValues("b", []any{int64(1), int64(2)}))
	assert.Equal(t, KindInt, tab.Kind("b"))
}

func TestAppendRowWidth(t *testing.T) {
	tab := NewTable("a", "b")
	require.Error(t, tab.AppendRow("only one"))
}

func TestLeftJoin(t *testing.T) {
	left := mkTable(t, []string{"id", "name", "ref"},
		[]any{"1", "a", "r1"},
		[]any{"2", "b", "r2"},
		[]any{"3", "c", nil},
	)
	right := mkTable(t, []string{"ref_id", "name", "v"},
		[]any{"r1", "x", "10"},
		[]any{"r1", "y", "11"},
		[]any{nil, "n", "12"},
	)
	got := left.LeftJoin(right, "ref", "ref_id")

	assert.Equal(t, []string{"id", "name", "ref", "ref_id", "name_y", "v"}, got.Columns())
	want := [][]any{
		{"1", "a", "r1", "r1", "x", "10"},
		{"1", "a", "r1", "r1", "y", "11"},
		{"2", "b", "r2", nil, nil, nil},
		{"3", "c", nil, nil, nil, nil},
	}
	if diff := cmp.Diff(want, rowsOf(got)); diff != "" {
		t.Fatalf("join mismatch (-want +got):\n%s", diff)
	}
}

func TestLeftJoinSharedKeyName(t *testing.T) {
	left := mkTable(t, []string{"k", "a"}, []any{"1", "x"})
	right := mkTable(t, []string{"k", "b"}, []any{"1", "y"})
	got := left.LeftJoin(right, "k", "k")
	assert.Equal(t, []string{"k", "a", "b"}, got.Columns())
	assert.Equal(t, []any{"1", "x", "y"}, got.Row(0))
}

func TestLeftJoinMissingKeyColumn(t *testing.T) {
	left := mkTable(t, []string{"k"}, []any{"1"}, []any{"2"})
	right := NewTable()
	got := left.LeftJoin(right, "k", "absent")
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"k"}, got.Columns())

	right = mkTable(t, []string{"rk", "v"}, []any{"1", "x"})
	got = left.LeftJoin(right, "absent", "rk")
	assert.Equal(t, [][]any{{"1", nil, nil}, {"2", nil, nil}}, rowsOf(got))
}

func TestFilter(t *testing.T) {
	tab := mkTable(t, []string{"a"}, []any{"1"}, []any{"2"}, []any{"3"})
	got := tab.Filter(func(i int) bool { return tab.Get(i, "a") != "2" })
	assert.Equal(t, [][]any{{"1"}, {"3"}}, rowsOf(got))
	assert.Equal(t, 3, tab.Len())
}
