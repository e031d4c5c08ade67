package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir reads .csv files from a local directory. Keys are file names relative
// to the directory.
type Dir struct {
	root string
}

// NewDir returns a source over root. The directory must exist.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dir %s: not a directory", root)
	}
	return &Dir{root: root}, nil
}

// List returns the .csv files directly under the root, sorted by name.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", d.root, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open opens key for reading. Keys that escape the root are rejected.
func (d *Dir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(key) {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	f, err := os.Open(filepath.Join(d.root, key))
	if err != nil {
		return nil, err
	}
	return f, nil
}
