// Package store provides the turn and memory storage interface and its SQLite
// implementation.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/codex-mem/internal/model"
)

var (
	// ErrDuplicateTurn is returned by InsertTurn when a turn with the same
	// content hash is already recorded.
	ErrDuplicateTurn = errors.New("turn already recorded")

	// ErrTransient marks storage failures worth retrying later: lock
	// contention, timeouts and I/O errors.
	ErrTransient = errors.New("transient storage failure")

	// ErrNotFound is returned when a memory or turn id does not exist.
	ErrNotFound = errors.New("not found")
)

// IsTransient reports whether err is a retryable storage failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// SearchParams holds parameters for searching memories.
type SearchParams struct {
	Query string
	// ProjectRoot restricts results to one project; empty means all scopes.
	ProjectRoot   string
	Limit         int
	IncludeGlobal bool
	Kinds         []model.Kind
	// Tags must all be present on a memory for it to match.
	Tags []string
	// MatchAny ORs the query terms instead of requiring all of them.
	MatchAny bool
}

// UpdateParams holds the fields to change on a memory. Nil fields are left
// untouched.
type UpdateParams struct {
	Text       *string
	Importance *int
	Pinned     *bool
	Tags       *[]string
}

func (p UpdateParams) empty() bool {
	return p.Text == nil && p.Importance == nil && p.Pinned == nil && p.Tags == nil
}

// Store defines the turn and memory storage interface.
type Store interface {
	// InsertTurn records a turn. Returns ErrDuplicateTurn if the hash exists.
	InsertTurn(ctx context.Context, turn model.Turn, projectRoot, hash string) (string, error)

	// AddMemory merges the candidate into a near-duplicate memory of the
	// same kind and scope, or inserts a new one. Returns the memory id.
	AddMemory(ctx context.Context, c model.Candidate, projectRoot, sourceTurnID string) (string, error)

	// Search returns ranked memories matching the parameters.
	Search(ctx context.Context, p SearchParams) ([]SearchResult, error)

	// SoftDelete flags a memory as deleted. Returns false if it does not exist.
	SoftDelete(ctx context.Context, id string) (bool, error)

	// UpdateMemory applies the given fields. Returns false if nothing changed.
	UpdateMemory(ctx context.Context, id string, p UpdateParams) (bool, error)

	// Stats returns counts per kind and scope.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}
