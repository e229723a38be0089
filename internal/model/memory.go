// Package model defines the core memory and turn data types.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownKind is returned when a kind string is not one of the known kinds.
var ErrUnknownKind = errors.New("unknown memory kind")

// Kind classifies a memory.
type Kind string

const (
	KindPreference Kind = "preference"
	KindFact       Kind = "fact"
	KindDecision   Kind = "decision"
	KindTodo       Kind = "todo"
	KindPitfall    Kind = "pitfall"
	KindWorkflow   Kind = "workflow"
	KindReference  Kind = "reference"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{
	KindPreference,
	KindFact,
	KindDecision,
	KindTodo,
	KindPitfall,
	KindWorkflow,
	KindReference,
}

// ParseKind maps a boundary string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ParseKinds parses a list of kind strings, failing on the first unknown one.
func ParseKinds(ss []string) ([]Kind, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	kinds := make([]Kind, 0, len(ss))
	for _, s := range ss {
		k, err := ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

const (
	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3
)

// ClampImportance forces an importance value into the 1–5 range.
func ClampImportance(i int) int {
	if i < MinImportance {
		return MinImportance
	}
	if i > MaxImportance {
		return MaxImportance
	}
	return i
}

// Memory represents a stored memory row.
type Memory struct {
	ID           string    `json:"id" yaml:"id"`
	Timestamp    time.Time `json:"ts_utc" yaml:"ts_utc"`
	ProjectRoot  *string   `json:"project_root" yaml:"project_root"`
	Kind         Kind      `json:"kind" yaml:"kind"`
	Text         string    `json:"text" yaml:"text"`
	Importance   int       `json:"importance" yaml:"importance"`
	Pinned       bool      `json:"is_pinned" yaml:"is_pinned"`
	Deleted      bool      `json:"is_deleted" yaml:"is_deleted"`
	Tags         []string  `json:"tags" yaml:"tags,omitempty"`
	SourceTurnID string    `json:"source_turn_id,omitempty" yaml:"source_turn_id,omitempty"`
}

// Scope returns the project root, or "" for global memories.
func (m Memory) Scope() string {
	if m.ProjectRoot == nil {
		return ""
	}
	return *m.ProjectRoot
}

// HasTags reports whether every tag in want is present on the memory.
func (m Memory) HasTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]bool, len(m.Tags))
	for _, t := range m.Tags {
		have[t] = true
	}
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

// Candidate is a proposed memory that has not been persisted yet.
type Candidate struct {
	Kind       Kind     `json:"kind"`
	Text       string   `json:"text"`
	Importance int      `json:"importance"`
	Tags       []string `json:"tags,omitempty"`
}

// ScopePtr converts a project root string into a nullable scope.
func ScopePtr(root string) *string {
	if root == "" {
		return nil
	}
	return &root
}
