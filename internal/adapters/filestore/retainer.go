package filestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Retainer bounds the number of files in a directory. When a directory holds
// more than MaxFiles regular files, exactly Batch of the oldest are removed.
// File names begin with a sortable UTC timestamp, so directory-listing order
// is oldest first.
type Retainer struct {
	MaxFiles int
	Batch    int
}

// Enforce applies the policy to dir and returns the removed file names.
// A missing directory holds no files.
func (r Retainer) Enforce(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	if len(files) <= r.MaxFiles {
		return nil, nil
	}

	n := min(r.Batch, len(files))
	removed := make([]string, 0, n)
	for _, name := range files[:n] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
