// Package tables assembles the output tables of one document from its
// record tables and staging frames. The recipes are fixed and run in a
// fixed order; method data expands into one table per method.
package tables

import (
	"fmt"

	"ffietl/internal/ffi"
	"ffietl/internal/frame"
	"ffietl/internal/staging"
)

// Output table names, in write order. method_data never appears as a table
// itself: it is replaced by its per-method pivots.
const (
	FileInfo         = "file_info"
	AdminUnit        = "admin_unit"
	SamplingEvent    = "sampling_event"
	MonitoringStatus = "monitoring_status"
	Project          = "project"
	Species          = "species"
	Plot             = "plot"
	ProjectPlot      = "project_plot"
	EventDetail      = "event_detail"
	MethodData       = "method_data"
)

// Order lists the base recipes in the order they are built and written.
var Order = []string{
	FileInfo, AdminUnit, SamplingEvent, MonitoringStatus, Project,
	Species, Plot, ProjectPlot, EventDetail, MethodData,
}

type recipe func(doc *ffi.Document, s *staging.Set) (*frame.Frame, error)

var recipes = map[string]recipe{
	FileInfo:         fileInfo,
	AdminUnit:        adminUnit,
	SamplingEvent:    samplingEvent,
	MonitoringStatus: monitoringStatus,
	Project:          project,
	Species:          species,
	Plot:             plot,
	ProjectPlot:      projectPlot,
	EventDetail:      eventDetail,
	MethodData:       methodData,
}

// Assemble builds every output table. Pivoted recipes contribute their
// pivot frames: a single pivot keeps the recipe's name, several pivots keep
// their own. Any error aborts the whole document.
func Assemble(doc *ffi.Document, s *staging.Set) ([]*frame.Frame, error) {
	var out []*frame.Frame
	for _, name := range Order {
		f, err := recipes[name](doc, s)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", name, err)
		}
		if pivots := f.Frames(); pivots != nil {
			if len(pivots) == 1 && name != MethodData {
				pivots[0].Name = name
			}
			out = append(out, pivots...)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func renames(pairs ...string) []frame.Rename {
	rs := make([]frame.Rename, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rs = append(rs, frame.Rename{From: pairs[i], To: pairs[i+1]})
	}
	return rs
}

func fileInfo(doc *ffi.Document, _ *staging.Set) (*frame.Frame, error) {
	t := frame.NewTable("file_id", "file", "ffi_version")
	if err := t.AppendRow(doc.Fingerprint, doc.Origin, doc.Version); err != nil {
		return nil, err
	}
	return frame.Wrap(FileInfo, frame.RoleGeneric, t), nil
}

func adminUnit(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.AdminUnit.SelectRenaming(renames(
		"RegistrationUnit_Name", "admin_unit",
		"RegistrationUnit_Comment", "details",
	)...)
	f.Name = AdminUnit
	f.SetColumn("unit_identifier", "")
	return f, nil
}

func samplingEvent(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.Event.SelectRenaming(renames(
		frame.EventID, "event_id",
		frame.PlotID, "plot_id",
		"SampleEvent_Date", "event_date",
		"SampleEvent_Who", "personnel",
		"SampleEvent_Comment", "note",
		frame.MonitoringStatus, "monitoring_status",
	)...)
	f.Name = SamplingEvent
	f.Dedup()
	return f, nil
}

func monitoringStatus(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.MonitoringStatus.Select(frame.MonitoringStatus, frame.StatusPrefix, frame.MonitoringType, frame.TimeFrame)
	f.Name = MonitoringStatus
	f.Dedup()
	return f, nil
}

func project(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.Project.SelectRenaming(renames(
		"ProjectUnit_Name", "project_name",
		"RegistrationUnit_Name", "admin_unit",
		"ProjectUnit_DateIn", "date_created",
		"ProjectUnit_Description", "details",
		"ProjectUnit_Objective", "treatment_goals",
		"ProjectUnit_Agency", "project_agency",
		"ProjectUnit_Area", "area",
		"ProjectUnit_AreaUnits", "area_units",
	)...)
	f.Name = Project
	return f, nil
}

func species(doc *ffi.Document, _ *staging.Set) (*frame.Frame, error) {
	f := frame.New(Species, frame.RoleGeneric, doc.Table(ffi.MasterSpecies)).SelectRenaming(renames(
		"MasterSpecies_Symbol", "symbol",
		"MasterSpecies_ScientificName", "scientific_name",
		"MasterSpecies_CommonName", "common_name",
		"MasterSpecies_ITIS_TSN", "itis_tsn",
		"MasterSpecies_Genus", "genus",
		"MasterSpecies_Family", "family",
		"MasterSpecies_Nativity", "nativity",
		"MasterSpecies_Lifecycle", "lifecycle",
	)...)
	return f, nil
}

func plot(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.Plot.SelectRenaming(renames(
		frame.PlotID, "plot_id",
		"MacroPlot_Name", "plot_name",
		"RegistrationUnit_Name", "admin_unit",
		"MacroPlot_Purpose", "purpose",
		"MacroPlot_Type", "plot_type",
		"MacroPlot_DD_Lat", "lat",
		"MacroPlot_DD_Long", "long",
		"MacroPlot_DateIn", "date_created",
		"MacroPlot_Elevation", "elevation",
		"MacroPlot_ElevationUnits", "elevation_units",
		"MacroPlot_Azimuth", "azimuth",
		"MacroPlot_Aspect", "aspect",
		"MacroPlot_SlopeHill", "hill_slope",
		"MacroPlot_SlopeTransect", "slope_transect",
		"MacroPlot_Comment", "comment",
		"MacroPlot_Metadata", "metadata",
	)...)
	f.Name = Plot
	// A plot linked to several projects appears once per project in the
	// linkage.
	f.Dedup()
	return f, nil
}

func projectPlot(_ *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	f := s.Plot.SelectRenaming(renames(
		frame.PlotID, "plot_id",
		"ProjectUnit_Name", "project_name",
	)...)
	f.Name = ProjectPlot
	return f, nil
}

func eventDetail(doc *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	joined := doc.Table(ffi.SampleData).
		LeftJoin(s.Event.Table(), "SampleData_SampleEvent_GUID", "SampleEvent_GUID").
		LeftJoin(doc.Table(ffi.SampleAttribute), "SampleData_SampleAtt_ID", "SampleAtt_ID").
		LeftJoin(doc.Table(ffi.Method), "SampleAtt_Method_ID", "Method_ID").
		LeftJoin(doc.Table(ffi.LUDataType), "SampleAtt_DataType_GUID", "LU_DataType_GUID")

	f := frame.New(EventDetail, frame.RoleEventDetail, joined).SelectRenaming(renames(
		frame.EventID, "event_id",
		frame.FieldName, frame.PivotField,
		frame.DataValue, frame.PivotValue,
		"LU_DataType_Name", frame.PivotType,
	)...)
	index := []string{"event_id"}
	if err := f.DedupFields(index...); err != nil {
		return nil, err
	}
	if err := f.Pivot(index...); err != nil {
		return nil, err
	}
	return f, nil
}

func methodData(doc *ffi.Document, s *staging.Set) (*frame.Frame, error) {
	rows := frame.Wrap(ffi.SampleData, frame.RoleGeneric,
		doc.Table(ffi.SampleData).Project("SampleData_SampleRow_ID", "SampleData_SampleEvent_GUID"))
	rows.Dedup()

	joined := s.Attr.Table().
		LeftJoin(rows.Table(), "AttributeData_SampleRow_ID", "SampleData_SampleRow_ID").
		LeftJoin(s.Event.Table(), "SampleData_SampleEvent_GUID", "SampleEvent_GUID").
		LeftJoin(doc.Table(ffi.LocalSpecies), "AttributeData_Value", "LocalSpecies_GUID")

	f := frame.New(MethodData, frame.RoleMethodData, joined).SelectRenaming(renames(
		"AttributeData_DataRow_ID", "data_row_id",
		frame.EventID, "event_id",
		"Method_Name", frame.PivotMethod,
		frame.FieldName, frame.PivotField,
		frame.DataValue, frame.PivotValue,
		"LU_DataType_Name", frame.PivotType,
	)...)
	index := []string{"event_id", "data_row_id"}
	if err := f.DedupFields(index...); err != nil {
		return nil, err
	}
	if err := f.Pivot(index...); err != nil {
		return nil, err
	}
	return f, nil
}
