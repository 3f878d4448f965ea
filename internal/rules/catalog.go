package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// LoadError reports a total rule source read failure.
// Params: wrapped root cause.
// Returns: typed error surfaced by Reload; partial document failures never raise it.
type LoadError struct {
	Err error
}

// Error returns wrapped error message.
// Params: none.
// Returns: string representation.
func (e LoadError) Error() string {
	if e.Err == nil {
		return "rule load failed"
	}
	return "rule load failed: " + e.Err.Error()
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e LoadError) Unwrap() error {
	return e.Err
}

// Catalog owns the active immutable rule snapshot.
// Params: rule source, logger, and atomically swapped snapshot reference.
// Returns: read-mostly catalog safe for concurrent evaluation and reload.
type Catalog struct {
	source   Source
	logger   *slog.Logger
	snapshot atomic.Pointer[[]Definition]
}

// NewCatalog creates an empty catalog bound to one rule source.
// Params: rule source and optional logger.
// Returns: catalog holding an empty snapshot until the first reload.
func NewCatalog(source Source, logger *slog.Logger) *Catalog {
	catalog := &Catalog{source: source, logger: logger}
	empty := make([]Definition, 0)
	catalog.snapshot.Store(&empty)
	return catalog
}

// Reload re-reads the source and atomically replaces the active snapshot.
// Params: context for source reads.
// Returns: LoadError on total source failure; the last-good snapshot is kept then.
func (c *Catalog) Reload(ctx context.Context) error {
	documents, err := c.source.Read(ctx)
	if err != nil {
		return LoadError{Err: err}
	}

	loaded := make([]Definition, 0, len(documents))
	for _, document := range documents {
		candidates, parseErr := parseDocument(document.Body)
		if parseErr != nil {
			if c.logger != nil {
				c.logger.Warn("rule document dropped", "document", document.Name, "error", parseErr.Error())
			}
			continue
		}
		for _, candidate := range candidates {
			if !candidate.Valid() {
				if c.logger != nil {
					c.logger.Warn("rule without id dropped", "document", document.Name)
				}
				continue
			}
			loaded = append(loaded, candidate)
		}
	}

	c.snapshot.Store(&loaded)
	if c.logger != nil {
		c.logger.Info("rule catalog reloaded", "rules", len(loaded), "documents", len(documents))
	}
	return nil
}

// List returns the current snapshot in catalog order.
// Params: none.
// Returns: detached copy; callers never observe a half-updated catalog.
func (c *Catalog) List() []Definition {
	current := c.snapshot.Load()
	out := make([]Definition, len(*current))
	copy(out, *current)
	return out
}

// Size returns the number of rules in the current snapshot.
// Params: none.
// Returns: active rule count.
func (c *Catalog) Size() int {
	return len(*c.snapshot.Load())
}

// parseDocument parses one raw document into zero-or-more rule candidates.
// Params: raw YAML body encoding one rule or a rule list.
// Returns: parsed candidates or parse error for malformed documents.
func parseDocument(body []byte) ([]Definition, error) {
	var list []Definition
	if err := yaml.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var single Definition
	if err := yaml.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("parse rule document: %w", err)
	}
	return []Definition{single}, nil
}
