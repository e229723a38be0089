package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/codex-mem/internal/model"
)

// DefaultRecallLimit is the number of memories considered for a context pack.
const DefaultRecallLimit = 12

const contextHeader = "### Relevant memories"

// RecallParams holds parameters for context pack assembly.
type RecallParams struct {
	Prompt        string
	ProjectRoot   string
	IncludeGlobal bool
	Kinds         []model.Kind
	Tags          []string
	Limit         int
	// Budget caps the rendered pack in characters; zero means no cap.
	Budget int
}

// ContextPack is a rendered set of memories ready to paste into a prompt.
type ContextPack struct {
	Text     string         `json:"text"`
	Memories []model.Memory `json:"memories"`
	Budget   int            `json:"budget,omitempty"`
	Used     int            `json:"used"`
}

// Recall finds memories relevant to a prompt and renders them grouped by
// kind. Any prompt term may match, so long prompts still find memories.
func (s *SQLiteStore) Recall(ctx context.Context, p RecallParams) (*ContextPack, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	results, err := s.Search(ctx, SearchParams{
		Query:         p.Prompt,
		ProjectRoot:   p.ProjectRoot,
		IncludeGlobal: p.IncludeGlobal,
		Kinds:         p.Kinds,
		Tags:          p.Tags,
		Limit:         limit,
		MatchAny:      true,
	})
	if err != nil {
		return nil, err
	}

	// Greedy packing in rank order; the first memory that does not fit ends
	// the pack.
	pack := &ContextPack{Budget: p.Budget, Memories: []model.Memory{}}
	used := len(contextHeader)
	seenKinds := map[model.Kind]bool{}
	for _, r := range results {
		cost := len(formatMemoryLine(r.Memory)) + 1
		if !seenKinds[r.Kind] {
			cost += len(kindHeading(r.Kind)) + 1
		}
		if p.Budget > 0 && used+cost > p.Budget {
			break
		}
		seenKinds[r.Kind] = true
		used += cost
		pack.Memories = append(pack.Memories, r.Memory)
	}

	pack.Text = FormatContextPack(pack.Memories)
	pack.Used = len(pack.Text)
	return pack, nil
}

// FormatContextPack renders memories grouped by kind, in order of each
// kind's first appearance.
func FormatContextPack(memories []model.Memory) string {
	var order []model.Kind
	byKind := map[model.Kind][]model.Memory{}
	for _, m := range memories {
		if _, ok := byKind[m.Kind]; !ok {
			order = append(order, m.Kind)
		}
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	lines := []string{contextHeader}
	for _, k := range order {
		lines = append(lines, kindHeading(k))
		for _, m := range byKind[k] {
			lines = append(lines, formatMemoryLine(m))
		}
	}
	return strings.Join(lines, "\n")
}

func kindHeading(k model.Kind) string {
	return "#### " + string(k)
}

func formatMemoryLine(m model.Memory) string {
	prefix := ""
	if m.Pinned {
		prefix = "[pinned]"
	}
	return fmt.Sprintf("- %s[id:%s] %s", prefix, m.ID, m.Text)
}
