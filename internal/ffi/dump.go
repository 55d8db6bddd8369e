package ffi

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ffietl/internal/frame"
)

// DumpCSV writes every record-type table, and each table in extra, to
// dir/<name>.csv. It is a debugging aid for inspecting what an export
// flattened into.
func (d *Document) DumpCSV(dir string, extra map[string]*frame.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	for _, name := range RequiredTypes {
		if err := WriteCSV(filepath.Join(dir, name+".csv"), d.Table(name)); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := WriteCSV(filepath.Join(dir, name+".csv"), extra[name]); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes t with a header row. Nil cells are empty.
func WriteCSV(path string, t *frame.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	rec := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = cellText(v)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
