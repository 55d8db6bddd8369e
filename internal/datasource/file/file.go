// Package file discovers export documents on the local filesystem.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Local lists the exports named by a directory scan and an explicit file
// list.
type Local struct {
	Dir     string
	Pattern string // filepath.Match on base names; "" means "*.xml"
	Files   []string
}

// List returns the matching paths: the explicit files first in the given
// order, then the directory matches sorted by name. Duplicates are dropped
// and subdirectories are not descended into.
//
// A canceled context stops the scan before the filesystem is touched.
func (l Local) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, f := range l.Files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		add(f)
	}
	if l.Dir == "" {
		return out, nil
	}

	pattern := l.Pattern
	if pattern == "" {
		pattern = "*.xml"
	}
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", l.Dir, err)
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if ok {
			found = append(found, filepath.Join(l.Dir, e.Name()))
		}
	}
	sort.Strings(found)
	for _, p := range found {
		add(p)
	}
	return out, nil
}
