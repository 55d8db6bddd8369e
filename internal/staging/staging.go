// Package staging builds the pre-joined tables that several output tables
// share. Keys and monitoring status categories are derived here, once per
// document.
package staging

import (
	"ffietl/internal/ffi"
	"ffietl/internal/frame"
)

// Staging frame names.
const (
	PlotLinkage      = "plot"
	MonitoringStatus = "monitoring_status"
	EventLinkage     = "sampling_event"
	Project          = "project"
	AdminUnit        = "admin_unit"
	AttrLinkage      = "attr_data"
)

// Set holds the six staging frames of one document.
type Set struct {
	Plot             *frame.Frame
	MonitoringStatus *frame.Frame
	Event            *frame.Frame
	Project          *frame.Frame
	AdminUnit        *frame.Frame
	Attr             *frame.Frame
}

// Frames returns the staging frames in build order.
func (s *Set) Frames() []*frame.Frame {
	return []*frame.Frame{s.Plot, s.MonitoringStatus, s.Event, s.Project, s.AdminUnit, s.Attr}
}

// Tables returns the staging tables by name, for dumping.
func (s *Set) Tables() map[string]*frame.Table {
	out := make(map[string]*frame.Table, 6)
	for _, f := range s.Frames() {
		out["staging_"+f.Name] = f.Table()
	}
	return out
}

// Build joins the document's record tables into the staging set. The plot
// linkage is built first because the event linkage joins against its rows
// and reuses its PlotID.
func Build(doc *ffi.Document) *Set {
	s := &Set{}

	plots := doc.Table(ffi.MacroPlot).
		LeftJoin(doc.Table(ffi.RegistrationUnit), "MacroPlot_RegistrationUnit_GUID", "RegistrationUnit_GUID").
		LeftJoin(doc.Table(ffi.MMProjectUnitMacroPlot), "MacroPlot_GUID", "MM_MacroPlot_GUID").
		LeftJoin(doc.Table(ffi.ProjectUnit), "MM_ProjectUnit_GUID", "ProjectUnit_GUID")
	s.Plot = frame.New(PlotLinkage, frame.RolePlot, plots)

	status := doc.Table(ffi.MMMonitoringStatusSampleEvt).
		LeftJoin(doc.Table(ffi.MonitoringStatus), "MM_MonitoringStatus_GUID", "MonitoringStatus_GUID").
		LeftJoin(doc.Table(ffi.SampleEvent), "MM_SampleEvent_GUID", "SampleEvent_GUID").
		LeftJoin(doc.Table(ffi.MacroPlot), "SampleEvent_Plot_GUID", "MacroPlot_GUID")
	s.MonitoringStatus = frame.New(MonitoringStatus, frame.RoleMonitoringStatus, status)

	events := doc.Table(ffi.SampleEvent).
		LeftJoin(s.Plot.Table(), "SampleEvent_Plot_GUID", "MacroPlot_GUID").
		LeftJoin(doc.Table(ffi.MMMonitoringStatusSampleEvt), "SampleEvent_GUID", "MM_SampleEvent_GUID").
		LeftJoin(doc.Table(ffi.MonitoringStatus), "MM_MonitoringStatus_GUID", "MonitoringStatus_GUID")
	s.Event = frame.New(EventLinkage, frame.RoleSamplingEvent, events)

	projects := doc.Table(ffi.ProjectUnit).
		LeftJoin(doc.Table(ffi.RegistrationUnit), "ProjectUnit_RegistrationUnitGUID", "RegistrationUnit_GUID")
	s.Project = frame.New(Project, frame.RoleGeneric, projects)

	s.AdminUnit = frame.New(AdminUnit, frame.RoleGeneric, doc.Table(ffi.RegistrationUnit))

	attrs := doc.Table(ffi.MethodAttribute).
		LeftJoin(doc.Table(ffi.AttributeData), "MethodAtt_ID", "AttributeData_MethodAtt_ID").
		LeftJoin(doc.Table(ffi.Method), "MethodAtt_Method_GUID", "Method_GUID").
		LeftJoin(doc.Table(ffi.LUDataType), "MethodAtt_DataType_GUID", "LU_DataType_GUID")
	s.Attr = frame.New(AttrLinkage, frame.RoleGeneric, attrs)

	return s
}
