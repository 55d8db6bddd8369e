package frame

import (
	"regexp"
	"strings"
)

// Attribute columns produced for event detail and method data frames.
const (
	FieldName = "FieldName"
	DataValue = "DataValue"
)

// Attribute source columns.
const (
	ColSampleFieldName = "SampleAtt_FieldName"
	ColMethodFieldName = "MethodAtt_FieldName"
	ColMethodName      = "Method_Name"
	ColSampleValue     = "SampleData_Value"
	ColAttributeValue  = "AttributeData_Value"
	ColSpeciesSymbol   = "LocalSpecies_Symbol"
)

var (
	treesMethod = regexp.MustCompile(`^Trees - (\w+)`)
	parenGroup  = regexp.MustCompile(`\([\w ]+\)`)
)

// SampleFieldName resolves the attribute name of an event-level sample
// field. Plot size is shared by every tree method, so it gets the method's
// initial; team fields get the whole method name.
func SampleFieldName(field, method string) string {
	switch field {
	case "MacroPlotSize":
		if m := treesMethod.FindStringSubmatch(method); m != nil {
			sub := m[1]
			if sub == "Individuals" {
				sub = "Trees"
			}
			return field + "_" + sub[:1]
		}
	case "FieldTeam", "EntryTeam":
		clean := strings.NewReplacer(" ", "", "-", "").Replace(method)
		// Keep what precedes the last parenthesized group.
		if loc := parenGroup.FindAllStringIndex(clean, -1); loc != nil {
			clean = clean[:loc[len(loc)-1][0]]
		}
		if clean != "" {
			return field + "_" + clean
		}
	}
	return field
}

// MethodFieldName resolves the attribute name of a method data field.
func MethodFieldName(field string) string {
	if field == "Comment" {
		return "note"
	}
	return field
}

// normalizeAttributes fills FieldName and DataValue for attribute frames.
func normalizeAttributes(t *Table, role Role) {
	if role != RoleEventDetail && role != RoleMethodData {
		return
	}
	n := t.Len()
	names := make([]any, n)
	values := make([]any, n)
	direct := t.Has(ColSampleValue)
	for i := 0; i < n; i++ {
		if role == RoleEventDetail {
			if f, ok := t.Get(i, ColSampleFieldName).(string); ok {
				names[i] = SampleFieldName(f, textOf(t.Get(i, ColMethodName)))
			}
		} else {
			if f, ok := t.Get(i, ColMethodFieldName).(string); ok {
				names[i] = MethodFieldName(f)
			}
		}

		switch {
		case direct:
			values[i] = t.Get(i, ColSampleValue)
		case t.Get(i, ColSpeciesSymbol) != nil:
			values[i] = textOf(t.Get(i, ColSpeciesSymbol))
		default:
			if v := t.Get(i, ColAttributeValue); v != nil {
				values[i] = textOf(v)
			}
		}
	}
	_ = t.SetValues(FieldName, names)
	_ = t.SetValues(DataValue, values)
}
