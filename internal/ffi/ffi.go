// Package ffi reads FFI admin-export XML documents into per-record-type
// tables.
//
// An export is one root element whose children are record occurrences: a
// <MacroPlot> element is one plot row, and its child elements are that row's
// cells. Only the record types the converter needs are materialized; the
// rest are counted and skipped.
package ffi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"ffietl/internal/frame"
)

// Record type names.
const (
	MacroPlot                   = "MacroPlot"
	RegistrationUnit            = "RegistrationUnit"
	MMProjectUnitMacroPlot      = "MM_ProjectUnit_MacroPlot"
	ProjectUnit                 = "ProjectUnit"
	SampleEvent                 = "SampleEvent"
	MMMonitoringStatusSampleEvt = "MM_MonitoringStatus_SampleEvent"
	MonitoringStatus            = "MonitoringStatus"
	MethodAttribute             = "MethodAttribute"
	AttributeData               = "AttributeData"
	Method                      = "Method"
	LUDataType                  = "LU_DataType"
	SchemaVersion               = "Schema_Version"
	MasterSpecies               = "MasterSpecies"
	SampleData                  = "SampleData"
	SampleAttribute             = "SampleAttribute"
	LocalSpecies                = "LocalSpecies"
)

// RequiredTypes lists every record type a Document always carries a table
// for, in a stable order.
var RequiredTypes = []string{
	MacroPlot, RegistrationUnit, MMProjectUnitMacroPlot, ProjectUnit, SampleEvent,
	MMMonitoringStatusSampleEvt, MonitoringStatus, MethodAttribute, AttributeData,
	Method, LUDataType, SchemaVersion, MasterSpecies, SampleData, SampleAttribute,
	LocalSpecies,
}

var (
	// ErrMalformed is returned when the input is not well-formed XML.
	ErrMalformed = errors.New("malformed document")
	// ErrNoNamespace is returned when the root element has no namespace of
	// the form scheme://host.tld[/path].
	ErrNoNamespace = errors.New("root element has no namespace")
	// ErrNoSchemaVersion is returned when no Schema_Version value exists.
	ErrNoSchemaVersion = errors.New("document has no schema version")
	// ErrMissingRecordType is returned in strict mode when a required
	// record type has no occurrences.
	ErrMissingRecordType = errors.New("required record type missing")
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://[\w\-]+(\.[\w\-]+)+(/[\w./\-]*)?$`)

// Options controls parsing.
type Options struct {
	// Strict makes a required record type with no occurrences an error
	// instead of an empty table.
	Strict bool
}

// Document is one parsed export. It is not modified after Parse returns.
type Document struct {
	Namespace   string
	Version     string
	Fingerprint string // hex SHA-256 of the document bytes
	Origin      string
	Size        int64

	// Skipped counts occurrences of record types that were not materialized.
	Skipped map[string]int

	tables map[string]*frame.Table
}

// Table returns the table for a record type. Unknown types yield an empty
// table so joins against them propagate nils.
func (d *Document) Table(name string) *frame.Table {
	if t, ok := d.tables[name]; ok {
		return t
	}
	return frame.NewTable()
}

// Rows is the total number of materialized records.
func (d *Document) Rows() int {
	n := 0
	for _, t := range d.tables {
		n += t.Len()
	}
	return n
}

// AdminUnit is the first registration unit name, or "" when there is none.
func (d *Document) AdminUnit() string {
	t := d.Table(RegistrationUnit)
	for i := 0; i < t.Len(); i++ {
		if s, ok := t.Get(i, "RegistrationUnit_Name").(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ParseFile parses the export at path.
func ParseFile(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path, opts)
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Parse reads one export from r. origin names the source in the Document and
// in errors.
func Parse(r io.Reader, origin string, opts Options) (*Document, error) {
	h := sha256.New()
	src := &countingReader{r: io.TeeReader(r, h)}
	dec := xml.NewDecoder(src)

	doc := &Document{
		Origin:  origin,
		Skipped: map[string]int{},
		tables:  make(map[string]*frame.Table, len(RequiredTypes)),
	}
	required := make(map[string]bool, len(RequiredTypes))
	for _, name := range RequiredTypes {
		required[name] = true
		doc.tables[name] = frame.NewTable()
	}

	root := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !root {
				return nil, fmt.Errorf("%s: %w: no root element", origin, ErrMalformed)
			}
			return nil, fmt.Errorf("%s: %w: unexpected end of document", origin, ErrMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", origin, ErrMalformed, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if !root {
				if !namespacePattern.MatchString(el.Name.Space) {
					return nil, fmt.Errorf("%s: %w (got %q)", origin, ErrNoNamespace, el.Name.Space)
				}
				doc.Namespace = el.Name.Space
				root = true
				continue
			}
			name := el.Name.Local
			if !required[name] {
				doc.Skipped[name]++
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%s: %w: %v", origin, ErrMalformed, err)
				}
				continue
			}
			fields, err := readRecord(dec)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w: %v", origin, name, ErrMalformed, err)
			}
			doc.tables[name].AppendFields(fields)

		case xml.EndElement:
			// Only the root closes at this level; the rest of the input is
			// hashed but not interpreted.
			if _, err := io.Copy(io.Discard, src); err != nil {
				return nil, fmt.Errorf("read %s: %w", origin, err)
			}
			return doc.finish(h.Sum(nil), src.n, opts)
		}
	}
}

func (d *Document) finish(sum []byte, size int64, opts Options) (*Document, error) {
	d.Fingerprint = hex.EncodeToString(sum)
	d.Size = size

	v := d.tables[SchemaVersion]
	for i := 0; i < v.Len(); i++ {
		if s, ok := v.Get(i, SchemaVersion).(string); ok && strings.TrimSpace(s) != "" {
			d.Version = strings.TrimSpace(s)
			break
		}
	}
	if d.Version == "" {
		return nil, fmt.Errorf("%s: %w", d.Origin, ErrNoSchemaVersion)
	}

	if opts.Strict {
		var missing []string
		for _, name := range RequiredTypes {
			if d.tables[name].Len() == 0 {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", d.Origin, ErrMissingRecordType, strings.Join(missing, ", "))
		}
	}
	return d, nil
}

// readRecord consumes one record element after its start tag and returns
// its cells. Each child element is one cell; an empty child is nil.
func readRecord(dec *xml.Decoder) ([]frame.Field, error) {
	var fields []frame.Field
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			text, err := readText(dec)
			if err != nil {
				return nil, err
			}
			f := frame.Field{Name: el.Name.Local}
			if text != "" {
				f.Value = text
			}
			fields = append(fields, f)
		case xml.EndElement:
			return fields, nil
		}
	}
}

// readText returns the character data of the current element, including
// that of any nested elements, and consumes its end tag.
func readText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(el)
		}
	}
	return b.String(), nil
}
