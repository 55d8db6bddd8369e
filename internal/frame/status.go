package frame

import (
	"regexp"
	"strings"
)

// Monitoring status source columns.
const (
	ColStatusPrefix  = "MonitoringStatus_Prefix"
	ColStatusBase    = "MonitoringStatus_Base"
	ColStatusSuffix  = "MonitoringStatus_Suffix"
	ColStatusDefault = "SampleEvent_DefaultMonitoringStatus"
)

// Monitoring status derived columns.
const (
	StatusPrefix     = "status_prefix"
	MonitoringType   = "monitoring_type"
	TimeFrame        = "time_frame"
	MonitoringStatus = "monitoring_status"
)

var digitRun = regexp.MustCompile(`\d+`)

// StatusParts is a monitoring status split into its categories.
type StatusParts struct {
	Prefix    string
	Type      string
	TimeFrame string
}

// Status is the composite label, e.g. "1yearPostBurn".
func (p StatusParts) Status() string {
	return p.TimeFrame + p.Prefix + p.Type
}

// ClassifyStatus splits a monitoring status given its four source fields.
// Nil fields are treated as empty.
func ClassifyStatus(prefix, base, suffix, def any) StatusParts {
	fields := []string{
		strings.ToLower(textOf(prefix)),
		strings.ToLower(textOf(base)),
		strings.ToLower(textOf(suffix)),
		strings.ToLower(textOf(def)),
	}
	var p StatusParts
	switch {
	case anyContains(fields, "post"):
		p.Prefix = "Post"
	case anyContains(fields, "pre"):
		p.Prefix = "Pre"
	}
	switch {
	case anyContains(fields, "treatment"):
		p.Type = "Treatment"
	case anyContains(fields, "measure"):
		p.Type = "Measure"
	case anyContains(fields, "burn"):
		p.Type = "Burn"
	}

	// The default status wins, then prefix, suffix and base.
	for _, s := range []string{fields[3], fields[0], fields[2], fields[1]} {
		if run := digitRun.FindString(s); run != "" {
			if len(run) <= 2 {
				p.TimeFrame = run + "year"
			}
			break
		}
	}
	return p
}

func anyContains(fields []string, sub string) bool {
	for _, f := range fields {
		if strings.Contains(f, sub) {
			return true
		}
	}
	return false
}

// decomposeStatus adds the four derived status columns when any source
// column is present and none of the derived ones are. It reports whether
// it ran.
func decomposeStatus(t *Table) bool {
	if !t.Has(ColStatusPrefix) && !t.Has(ColStatusBase) && !t.Has(ColStatusSuffix) && !t.Has(ColStatusDefault) {
		return false
	}
	if t.Has(StatusPrefix) || t.Has(MonitoringType) || t.Has(TimeFrame) || t.Has(MonitoringStatus) {
		return false
	}
	n := t.Len()
	prefix := make([]any, n)
	kind := make([]any, n)
	frame := make([]any, n)
	status := make([]any, n)
	for i := 0; i < n; i++ {
		p := ClassifyStatus(t.Get(i, ColStatusPrefix), t.Get(i, ColStatusBase), t.Get(i, ColStatusSuffix), t.Get(i, ColStatusDefault))
		prefix[i], kind[i], frame[i], status[i] = p.Prefix, p.Type, p.TimeFrame, p.Status()
	}
	_ = t.SetValues(StatusPrefix, prefix)
	_ = t.SetValues(MonitoringType, kind)
	_ = t.SetValues(TimeFrame, frame)
	_ = t.SetValues(MonitoringStatus, status)
	return true
}
