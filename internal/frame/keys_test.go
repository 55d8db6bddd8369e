package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayNumber(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{"1900-01-01", 0, true},
		{"1900-01-02", 1, true},
		{"1900-01-01T00:00:00", 0, true},
		{"2000-03-01T13:45:00-07:00", 36584, true},
		{time.Date(1900, 1, 31, 9, 0, 0, 0, time.UTC), 30, true},
		{"1899-12-31", -1, true},
		{"2300-01-01", 146097, true},
		{"9999-12-31", 2958463, true},
		{"1500-01-01", -146097, true},
		{"2021-02-30", 0, false},
		{"not a date", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := DayNumber(c.in)
		assert.Equal(t, c.ok, ok, "%v", c.in)
		if c.ok {
			assert.Equal(t, c.want, got, "%v", c.in)
		}
	}
}

func TestEventKeyFarDatesStayDistinct(t *testing.T) {
	a := EventKey("2300-01-01", "Yosemite", "P1")
	b := EventKey("2400-06-15", "Yosemite", "P1")
	assert.Equal(t, "YOSEM-P1-146097", a)
	assert.NotEqual(t, a, b)
}

func TestPlotKey(t *testing.T) {
	assert.Equal(t, "YOSEM-ABCD01", PlotKey("Yosemite National Park", "ABCD 01"))
	assert.Equal(t, "SEKI-FPIPO1T", PlotKey("SE-KI_NP", "FPIPO1-T"))
	assert.Equal(t, "-", PlotKey(nil, nil))
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "YOSEM-ABCD01-0", EventKey("1900-01-01T00:00:00", "Yosemite", "ABCD 01"))
	assert.Equal(t, "YOSEM-ABCD01-", EventKey("garbage", "Yosemite", "ABCD 01"))
}

func TestKeysAreDeterministicAcrossRowOrder(t *testing.T) {
	cols := []string{ColAdminName, ColPlotName, ColEventDate}
	rows := [][]any{
		{"Yosemite", "P1", "2001-06-01"},
		{"Sequoia", "P2", "2001-06-02"},
		{"Yosemite", "P1", "2001-06-01"},
	}
	forward := mkTable(t, cols, rows...)
	backward := mkTable(t, cols, rows[2], rows[1], rows[0])

	fw := New("sampling_event", RoleSamplingEvent, forward).Table()
	bw := New("sampling_event", RoleSamplingEvent, backward).Table()
	again := New("sampling_event", RoleSamplingEvent, forward).Table()

	require.Equal(t, fw.Get(0, EventID), fw.Get(2, EventID))
	assert.Equal(t, fw.Get(0, EventID), bw.Get(2, EventID))
	assert.Equal(t, fw.Get(1, EventID), bw.Get(1, EventID))
	assert.Equal(t, fw.Values(EventID), again.Values(EventID))
	assert.NotEqual(t, fw.Get(0, EventID), fw.Get(1, EventID))
}

func TestPlotRoleDerivesPlotIDOnly(t *testing.T) {
	src := mkTable(t, []string{ColAdminName, ColPlotName}, []any{"Yosemite", "P 1"})
	f := New("plot", RolePlot, src)
	assert.Equal(t, "YOSEM-P1", f.Table().Get(0, PlotID))
	assert.False(t, f.Table().Has(EventID))
	assert.False(t, src.Has(PlotID), "source table must not change")

	g := New("project", RoleGeneric, src)
	assert.False(t, g.Table().Has(PlotID))
}
