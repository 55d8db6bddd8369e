package frame

import (
	"errors"
	"fmt"
)

// Role selects the automatic steps a frame runs when it is built.
type Role int

const (
	RoleGeneric Role = iota
	RolePlot
	RoleSamplingEvent
	RoleMonitoringStatus
	RoleEventDetail
	RoleMethodData
)

func (r Role) String() string {
	switch r {
	case RolePlot:
		return "plot"
	case RoleSamplingEvent:
		return "sampling_event"
	case RoleMonitoringStatus:
		return "monitoring_status"
	case RoleEventDetail:
		return "event_detail"
	case RoleMethodData:
		return "method_data"
	default:
		return "generic"
	}
}

var (
	// ErrNotPivotable is returned by Pivot when the frame lacks the columns a
	// pivot needs.
	ErrNotPivotable = errors.New("frame cannot be pivoted")
	// ErrRole is returned when an operation does not apply to the frame's role.
	ErrRole = errors.New("operation not valid for frame role")
	// ErrColumnCollision is returned when two columns clean to one name.
	ErrColumnCollision = errors.New("columns clean to the same name")
)

// Content is what a frame holds: Rows before a pivot, Pivoted after.
type Content interface {
	isContent()
}

// Rows is row-level content.
type Rows struct {
	Table *Table
}

// Pivoted is the result of a pivot. The pre-pivot rows are gone.
type Pivoted struct {
	Frames []*Frame
}

func (Rows) isContent()    {}
func (Pivoted) isContent() {}

// Frame is a named table with a role.
type Frame struct {
	Name    string
	Role    Role
	content Content
}

// New copies t into a frame and runs the automatic steps for role: key
// derivation for plots and sampling events, monitoring status decomposition
// wherever status columns are present, and attribute normalization for
// event detail and method data.
func New(name string, role Role, t *Table) *Frame {
	f := Wrap(name, role, t.Clone())
	tab := f.Table()
	deriveKeys(tab, role)
	if decomposeStatus(tab) && role == RoleMonitoringStatus {
		f.Dedup()
	}
	normalizeAttributes(tab, role)
	return f
}

// Wrap makes a frame around t without copying it or running any steps.
func Wrap(name string, role Role, t *Table) *Frame {
	return &Frame{Name: name, Role: role, content: Rows{Table: t}}
}

// Content returns the frame content.
func (f *Frame) Content() Content { return f.content }

// Table returns the rows, or nil once the frame is pivoted.
func (f *Frame) Table() *Table {
	if r, ok := f.content.(Rows); ok {
		return r.Table
	}
	return nil
}

// Frames returns the pivot result, or nil when the frame is not pivoted.
func (f *Frame) Frames() []*Frame {
	if p, ok := f.content.(Pivoted); ok {
		return p.Frames
	}
	return nil
}

// Len is the row count; pivoted frames have none.
func (f *Frame) Len() int {
	if t := f.Table(); t != nil {
		return t.Len()
	}
	return 0
}

func (f *Frame) rows() *Table {
	t := f.Table()
	if t == nil {
		panic(fmt.Sprintf("frame %q: row operation on pivoted frame", f.Name))
	}
	return t
}

// Select projects the frame onto cols. Missing columns are all nil.
func (f *Frame) Select(cols ...string) *Frame {
	return Wrap(f.Name, f.Role, f.rows().Project(cols...))
}

// SelectRenaming projects and renames. Missing columns are all nil.
func (f *Frame) SelectRenaming(renames ...Rename) *Frame {
	return Wrap(f.Name, f.Role, f.rows().ProjectRenaming(renames...))
}

// SetColumn broadcasts v into col.
func (f *Frame) SetColumn(col string, v any) { f.rows().SetColumn(col, v) }

// SetValues replaces col with one value per row.
func (f *Frame) SetValues(col string, vals []any) error {
	return f.rows().SetValues(col, vals)
}

// Cast converts columns to the kinds of their declared FFI types. types maps
// column name to type tag; columns in exclude are left alone.
func (f *Frame) Cast(types map[string]string, exclude ...string) error {
	if err := castTable(f.rows(), types, exclude); err != nil {
		return fmt.Errorf("cast %s: %w", f.Name, err)
	}
	return nil
}

// CleanColumnNames rewrites every column name with CleanName. The frame is
// left unchanged when two columns would end up with the same name.
func (f *Frame) CleanColumnNames() error {
	t := f.rows()
	clean := make([]string, len(t.cols))
	from := make(map[string]string, len(t.cols))
	for j, c := range t.cols {
		clean[j] = CleanName(c)
		if prev, dup := from[clean[j]]; dup {
			return fmt.Errorf("%s: %w: %q and %q are both %q", f.Name, ErrColumnCollision, prev, c, clean[j])
		}
		from[clean[j]] = c
	}
	for j, c := range clean {
		t.renameAt(j, c)
	}
	return nil
}
