package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Derived key columns and the source columns they are built from.
const (
	PlotID  = "PlotID"
	EventID = "EventID"

	ColEventDate = "SampleEvent_Date"
	ColPlotName  = "MacroPlot_Name"
	ColAdminName = "RegistrationUnit_Name"
)

// KeySeparator joins synthetic key fragments.
const KeySeparator = "-"

const secondsPerDay = 24 * 60 * 60

var (
	ymdPattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dayZero    = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// PlotKey builds ADMIN-PLOT for a plot row.
func PlotKey(admin, plot any) string {
	return adminFragment(admin) + KeySeparator + plotFragment(plot)
}

// EventKey builds ADMIN-PLOT-DAYNUM for a sampling event row. A date that
// cannot be read leaves the day fragment empty.
func EventKey(date, admin, plot any) string {
	day := ""
	if d, ok := DayNumber(date); ok {
		day = strconv.Itoa(d)
	}
	return PlotKey(admin, plot) + KeySeparator + day
}

// DayNumber returns the count of whole days between 1900-01-01 and the
// calendar date held in v. v may be a time.Time or a string containing a
// YYYY-MM-DD date; the time of day is ignored.
func DayNumber(v any) (int, bool) {
	var y, m, d int
	switch x := v.(type) {
	case time.Time:
		y, m, d = x.Year(), int(x.Month()), x.Day()
	case string:
		parts := ymdPattern.FindStringSubmatch(x)
		if parts == nil {
			return 0, false
		}
		y, _ = strconv.Atoi(parts[1])
		m, _ = strconv.Atoi(parts[2])
		d, _ = strconv.Atoi(parts[3])
	default:
		return 0, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return 0, false
	}
	return int((t.Unix() - dayZero.Unix()) / secondsPerDay), true
}

// adminFragment is the first five characters of the admin unit name,
// upper-cased, without hyphens, underscores or spaces.
func adminFragment(v any) string {
	s := []rune(textOf(v))
	if len(s) > 5 {
		s = s[:5]
	}
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return r.Replace(strings.ToUpper(string(s)))
}

// plotFragment keeps only the letters and digits of the plot name,
// upper-cased.
func plotFragment(v any) string {
	var b strings.Builder
	for _, r := range textOf(v) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// deriveKeys fills PlotID or EventID for frames whose role carries one.
func deriveKeys(t *Table, role Role) {
	var col string
	var key func(i int) string
	switch role {
	case RolePlot:
		col = PlotID
		key = func(i int) string {
			return PlotKey(t.Get(i, ColAdminName), t.Get(i, ColPlotName))
		}
	case RoleSamplingEvent:
		col = EventID
		key = func(i int) string {
			return EventKey(t.Get(i, ColEventDate), t.Get(i, ColAdminName), t.Get(i, ColPlotName))
		}
	default:
		return
	}
	vals := make([]any, t.Len())
	for i := range vals {
		vals[i] = key(i)
	}
	_ = t.SetValues(col, vals)
}
