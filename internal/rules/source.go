package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one raw rule document read from a source.
// Params: origin name for diagnostics and raw body bytes.
// Returns: unparsed catalog input; may encode one rule or a list.
type Document struct {
	Name string
	Body []byte
}

// Source reads raw rule documents for the catalog.
// Params: context for blocking reads.
// Returns: document list or total read failure.
type Source interface {
	Read(ctx context.Context) ([]Document, error)
}

// DirSource reads YAML rule documents from one directory.
// Params: directory path holding *.yaml / *.yml files.
// Returns: filesystem-backed rule source.
type DirSource struct {
	dir string
}

// NewDirSource creates a directory rule source.
// Params: rules directory path.
// Returns: initialized source.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Read lists and reads rule files in deterministic name order.
// Params: context (unused by filesystem reads).
// Returns: documents for every readable rule file; empty when the directory is absent.
func (s *DirSource) Read(_ context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules dir %q: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	documents := make([]Document, 0, len(names))
	for _, name := range names {
		body, readErr := os.ReadFile(filepath.Join(s.dir, name))
		if readErr != nil {
			// Unreadable single file is a partial failure, not a load failure.
			continue
		}
		documents = append(documents, Document{Name: name, Body: body})
	}
	return documents, nil
}
