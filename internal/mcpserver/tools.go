package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/store"
)

const (
	recallToolName = "mem_recall"
	searchToolName = "mem_search"
	addToolName    = "mem_add"
	forgetToolName = "mem_forget"
	updateToolName = "mem_update"
	statsToolName  = "mem_stats"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        recallToolName,
		Description: "Recall memories relevant to a prompt as a markdown context pack grouped by kind.",
	}, s.handleRecall)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        searchToolName,
		Description: "Keyword search over stored memories for the current project, ranked by pin, importance, match and recency.",
	}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        addToolName,
		Description: "Store a memory. Near-duplicates of the same kind and scope are merged.",
	}, s.handleAdd)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        forgetToolName,
		Description: "Soft-delete a memory by id.",
	}, s.handleForget)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        updateToolName,
		Description: "Change the text, importance, pin or tags of a memory.",
	}, s.handleUpdate)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        statsToolName,
		Description: "Show turn and memory counts per kind and scope.",
	}, s.handleStats)
}

// MemoryRow is the tool-facing shape of a memory.
type MemoryRow struct {
	ID          string   `json:"id"`
	Timestamp   string   `json:"ts_utc"`
	ProjectRoot string   `json:"project_root,omitempty"`
	Kind        string   `json:"kind"`
	Text        string   `json:"text"`
	Importance  int      `json:"importance"`
	Pinned      bool     `json:"is_pinned"`
	Deleted     bool     `json:"is_deleted"`
	Tags        []string `json:"tags"`
	Score       float64  `json:"score"`
}

func toRow(m model.Memory, score float64) MemoryRow {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return MemoryRow{
		ID:          m.ID,
		Timestamp:   m.Timestamp.UTC().Format(time.RFC3339),
		ProjectRoot: m.Scope(),
		Kind:        string(m.Kind),
		Text:        m.Text,
		Importance:  m.Importance,
		Pinned:      m.Pinned,
		Deleted:     m.Deleted,
		Tags:        tags,
		Score:       score,
	}
}

// RecallInput is the input of mem_recall.
type RecallInput struct {
	Prompt        string   `json:"prompt" jsonschema:"the prompt to find relevant memories for"`
	Kinds         []string `json:"kinds,omitempty" jsonschema:"restrict to these kinds"`
	Tags          []string `json:"tags,omitempty" jsonschema:"memories must carry all of these tags"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum memories considered"`
	Budget        int      `json:"budget,omitempty" jsonschema:"maximum characters of rendered output"`
	IncludeGlobal *bool    `json:"include_global,omitempty" jsonschema:"also return memories not tied to a project"`
	Cwd           string   `json:"cwd,omitempty" jsonschema:"working directory used to find the project root"`
}

// RecallOutput is the output of mem_recall.
type RecallOutput struct {
	Text     string      `json:"text"`
	Count    int         `json:"count"`
	Used     int         `json:"used"`
	Memories []MemoryRow `json:"memories"`
}

// emptyRecall is returned alongside error results; output validation
// rejects null where the schema wants an array.
func emptyRecall() RecallOutput {
	return RecallOutput{Memories: []MemoryRow{}}
}

func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, in RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	kinds, err := model.ParseKinds(in.Kinds)
	if err != nil {
		return errorResult("invalid kinds", err), emptyRecall(), nil
	}
	limit := in.Limit
	if limit <= 0 || limit > s.cfg.MaxRecall {
		limit = s.cfg.MaxRecall
	}

	pack, err := s.cfg.Store.Recall(ctx, store.RecallParams{
		Prompt:        in.Prompt,
		ProjectRoot:   s.projectRoot(in.Cwd),
		IncludeGlobal: s.includeGlobal(in.IncludeGlobal),
		Kinds:         kinds,
		Tags:          in.Tags,
		Limit:         limit,
		Budget:        in.Budget,
	})
	if err != nil {
		s.logger.Error("recall failed", "error", err)
		return errorResult("recall failed", err), emptyRecall(), nil
	}

	out := RecallOutput{
		Text:     pack.Text,
		Count:    len(pack.Memories),
		Used:     pack.Used,
		Memories: make([]MemoryRow, 0, len(pack.Memories)),
	}
	for _, m := range pack.Memories {
		out.Memories = append(out.Memories, toRow(m, 0))
	}
	return textResult(pack.Text), out, nil
}

// SearchInput is the input of mem_search.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"keywords to match; empty lists the most relevant memories"`
	Kinds         []string `json:"kinds,omitempty" jsonschema:"restrict to these kinds"`
	Tags          []string `json:"tags,omitempty" jsonschema:"memories must carry all of these tags"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum results (default 20)"`
	IncludeGlobal *bool    `json:"include_global,omitempty" jsonschema:"also return memories not tied to a project"`
	MatchAny      bool     `json:"match_any,omitempty" jsonschema:"match any keyword instead of all"`
	Cwd           string   `json:"cwd,omitempty" jsonschema:"working directory used to find the project root"`
}

// SearchOutput is the output of mem_search.
type SearchOutput struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Results []MemoryRow `json:"results"`
}

func emptySearch(query string) SearchOutput {
	return SearchOutput{Query: query, Results: []MemoryRow{}}
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	kinds, err := model.ParseKinds(in.Kinds)
	if err != nil {
		return errorResult("invalid kinds", err), emptySearch(in.Query), nil
	}

	results, err := s.cfg.Store.Search(ctx, store.SearchParams{
		Query:         in.Query,
		ProjectRoot:   s.projectRoot(in.Cwd),
		Limit:         in.Limit,
		IncludeGlobal: s.includeGlobal(in.IncludeGlobal),
		Kinds:         kinds,
		Tags:          in.Tags,
		MatchAny:      in.MatchAny,
	})
	if err != nil {
		s.logger.Error("search failed", "query", in.Query, "error", err)
		return errorResult("search failed", err), emptySearch(in.Query), nil
	}

	out := SearchOutput{Query: in.Query, Count: len(results), Results: make([]MemoryRow, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, toRow(r.Memory, r.Score))
	}
	return nil, out, nil
}

// AddInput is the input of mem_add.
type AddInput struct {
	Text       string   `json:"text" jsonschema:"the memory, one self-contained statement"`
	Kind       string   `json:"kind" jsonschema:"one of preference, fact, decision, todo, pitfall, workflow, reference"`
	Importance int      `json:"importance,omitempty" jsonschema:"1 (low) to 5 (high), default 3"`
	Tags       []string `json:"tags,omitempty" jsonschema:"labels for filtering"`
	Pinned     bool     `json:"pinned,omitempty" jsonschema:"always rank this memory first"`
	Global     bool     `json:"global,omitempty" jsonschema:"store without a project scope"`
	Cwd        string   `json:"cwd,omitempty" jsonschema:"working directory used to find the project root"`
}

// AddOutput is the output of mem_add.
type AddOutput struct {
	ID          string `json:"id"`
	ProjectRoot string `json:"project_root,omitempty"`
}

func (s *Server) handleAdd(ctx context.Context, _ *mcp.CallToolRequest, in AddInput) (*mcp.CallToolResult, AddOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return errorResult("text is required", nil), AddOutput{}, nil
	}
	kind, err := model.ParseKind(in.Kind)
	if err != nil {
		return errorResult("invalid kind", err), AddOutput{}, nil
	}

	root := ""
	if !in.Global {
		root = s.projectRoot(in.Cwd)
	}
	id, err := s.cfg.Store.AddMemory(ctx, model.Candidate{
		Kind:       kind,
		Text:       s.cfg.Redact(strings.TrimSpace(in.Text)),
		Importance: in.Importance,
		Tags:       in.Tags,
	}, root, "")
	if err != nil {
		s.logger.Error("add memory failed", "kind", kind, "error", err)
		return errorResult("add memory failed", err), AddOutput{}, nil
	}
	if in.Pinned {
		pinned := true
		if _, err := s.cfg.Store.UpdateMemory(ctx, id, store.UpdateParams{Pinned: &pinned}); err != nil {
			return errorResult("pin memory failed", err), AddOutput{}, nil
		}
	}

	s.logger.Info("memory added", "id", id, "kind", kind, "project_root", root)
	return nil, AddOutput{ID: id, ProjectRoot: root}, nil
}

// ForgetInput is the input of mem_forget.
type ForgetInput struct {
	ID string `json:"id" jsonschema:"memory id"`
}

// ChangeOutput reports whether a memory changed.
type ChangeOutput struct {
	ID string `json:"id"`
	OK bool   `json:"ok"`
}

func (s *Server) handleForget(ctx context.Context, _ *mcp.CallToolRequest, in ForgetInput) (*mcp.CallToolResult, ChangeOutput, error) {
	if in.ID == "" {
		return errorResult("id is required", nil), ChangeOutput{}, nil
	}
	ok, err := s.cfg.Store.SoftDelete(ctx, in.ID)
	if err != nil {
		return errorResult("forget failed", err), ChangeOutput{}, nil
	}
	if !ok {
		return errorResult(fmt.Sprintf("memory %s not found", in.ID), nil), ChangeOutput{ID: in.ID}, nil
	}
	return nil, ChangeOutput{ID: in.ID, OK: true}, nil
}

// UpdateInput is the input of mem_update. Omitted fields are left unchanged.
type UpdateInput struct {
	ID         string   `json:"id" jsonschema:"memory id"`
	Text       *string  `json:"text,omitempty" jsonschema:"replacement text"`
	Importance *int     `json:"importance,omitempty" jsonschema:"1 (low) to 5 (high)"`
	Pinned     *bool    `json:"pinned,omitempty" jsonschema:"pin or unpin"`
	Tags       []string `json:"tags,omitempty" jsonschema:"replacement tags"`
	ClearTags  bool     `json:"clear_tags,omitempty" jsonschema:"remove all tags"`
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, in UpdateInput) (*mcp.CallToolResult, ChangeOutput, error) {
	if in.ID == "" {
		return errorResult("id is required", nil), ChangeOutput{}, nil
	}
	p := store.UpdateParams{Importance: in.Importance, Pinned: in.Pinned}
	if in.Text != nil {
		text := s.cfg.Redact(*in.Text)
		p.Text = &text
	}
	switch {
	case in.ClearTags:
		empty := []string{}
		p.Tags = &empty
	case in.Tags != nil:
		p.Tags = &in.Tags
	}

	ok, err := s.cfg.Store.UpdateMemory(ctx, in.ID, p)
	if err != nil {
		return errorResult("update failed", err), ChangeOutput{}, nil
	}
	if !ok {
		return errorResult(fmt.Sprintf("memory %s not found or nothing to change", in.ID), nil), ChangeOutput{ID: in.ID}, nil
	}
	return nil, ChangeOutput{ID: in.ID, OK: true}, nil
}

// StatsInput is the (empty) input of mem_stats.
type StatsInput struct{}

// KindCount is one row of StatsOutput.
type KindCount struct {
	Kind        string `json:"kind"`
	ProjectRoot string `json:"project_root,omitempty"`
	Count       int    `json:"count"`
}

// StatsOutput is the output of mem_stats.
type StatsOutput struct {
	DBPath         string      `json:"db_path"`
	DBSizeBytes    int64       `json:"db_size_bytes"`
	TotalTurns     int         `json:"total_turns"`
	TotalMemories  int         `json:"total_memories"`
	ActiveMemories int         `json:"active_memories"`
	LastTurn       string      `json:"last_turn_ts_utc,omitempty"`
	Counts         []KindCount `json:"counts"`
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.cfg.Store.Stats(ctx)
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		return errorResult("stats failed", err), StatsOutput{Counts: []KindCount{}}, nil
	}
	out := StatsOutput{
		DBPath:         st.DBPath,
		DBSizeBytes:    st.DBSizeBytes,
		TotalTurns:     st.TotalTurns,
		TotalMemories:  st.TotalMemories,
		ActiveMemories: st.ActiveMemories,
		Counts:         make([]KindCount, 0, len(st.Counts)),
	}
	if st.LastTurnAt != nil {
		out.LastTurn = st.LastTurnAt.UTC().Format(time.RFC3339)
	}
	for _, c := range st.Counts {
		kc := KindCount{Kind: string(c.Kind), Count: c.Count}
		if c.ProjectRoot != nil {
			kc.ProjectRoot = *c.ProjectRoot
		}
		out.Counts = append(out.Counts, kc)
	}
	return nil, out, nil
}

func errorResult(msg string, err error) *mcp.CallToolResult {
	text := msg
	if err != nil {
		text = msg + ": " + err.Error()
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
