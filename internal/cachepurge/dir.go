package cachepurge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirStorage treats each sub-directory of Root as a named cache.
type DirStorage struct {
	Root string
}

// Names lists cache directories, sorted. A missing root has no caches; an
// empty Root is unsupported.
func (d DirStorage) Names(_ context.Context) ([]string, error) {
	if d.Root == "" {
		return nil, ErrUnsupported
	}
	entries, err := os.ReadDir(d.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named cache directory.
func (d DirStorage) Delete(_ context.Context, name string) error {
	if d.Root == "" {
		return ErrUnsupported
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid cache name %q", name)
	}
	if err := os.RemoveAll(filepath.Join(d.Root, name)); err != nil {
		return fmt.Errorf("remove cache %q: %w", name, err)
	}
	return nil
}
