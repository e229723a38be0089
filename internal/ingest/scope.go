package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// ScopeFilter decides which working directories may be captured.
type ScopeFilter struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewScopeFilter compiles allow and deny globs. '*' matches across path
// separators.
func NewScopeFilter(allow, deny []string) (*ScopeFilter, error) {
	f := &ScopeFilter{}
	for _, pattern := range allow {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allow pattern '%s': %w", pattern, err)
		}
		f.allowed = append(f.allowed, g)
	}
	for _, pattern := range deny {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern '%s': %w", pattern, err)
		}
		f.denied = append(f.denied, g)
	}
	return f, nil
}

// Allowed reports whether cwd passes the filter. An empty allow list allows
// everything not denied; deny always wins.
func (f *ScopeFilter) Allowed(cwd string) bool {
	if f == nil {
		return true
	}
	path := filepath.Clean(cwd)

	if len(f.allowed) > 0 {
		ok := false
		for _, g := range f.allowed {
			if g.Match(path) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, g := range f.denied {
		if g.Match(path) {
			return false
		}
	}
	return true
}
