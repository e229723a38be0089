package store

import (
	"context"
	"testing"

	"github.com/rcliao/codex-mem/internal/model"
)

func ids(results []SearchResult) map[string]bool {
	out := make(map[string]bool, len(results))
	for _, r := range results {
		out[r.ID] = true
	}
	return out
}

func TestSearch_Basic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	golang := addMemory(t, s, model.KindFact, "Go is a compiled language with goroutines", "/p")
	addMemory(t, s, model.KindReference, "Python is an interpreted language", "/p")
	addMemory(t, s, model.KindPitfall, "Rust has a borrow checker", "/p")

	results, err := s.Search(ctx, SearchParams{Query: "language", ProjectRoot: "/p"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	results, err = s.Search(ctx, SearchParams{Query: "goroutines", ProjectRoot: "/p"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != golang {
		t.Fatalf("expected the Go memory, got %+v", results)
	}

	results, err = s.Search(ctx, SearchParams{Query: "javascript", ProjectRoot: "/p"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearch_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := addMemory(t, s, model.KindFact, "Project A uses postgres", "/proj/a")
	b := addMemory(t, s, model.KindFact, "Project B uses postgres too", "/proj/b")
	g := addMemory(t, s, model.KindPreference, "I prefer postgres everywhere", "")

	tests := []struct {
		name          string
		root          string
		includeGlobal bool
		want          []string
	}{
		{"project only", "/proj/b", false, []string{b}},
		{"project and global", "/proj/b", true, []string{b, g}},
		{"all scopes", "", true, []string{a, b, g}},
		{"scoped rows only", "", false, []string{a, b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Search(ctx, SearchParams{Query: "postgres", ProjectRoot: tt.root, IncludeGlobal: tt.includeGlobal})
			if err != nil {
				t.Fatal(err)
			}
			got := ids(results)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("missing %s", id)
				}
			}
		})
	}
}

func TestSearch_PinnedOutranksImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	low, _ := s.AddMemory(ctx, model.Candidate{Kind: model.KindWorkflow, Text: "Deploy with make release", Importance: 2}, "/p", "")
	high, _ := s.AddMemory(ctx, model.Candidate{Kind: model.KindFact, Text: "Deploy targets run on fly.io", Importance: 5}, "/p", "")
	pinned := true
	s.UpdateMemory(ctx, low, UpdateParams{Pinned: &pinned})

	for _, q := range []string{"deploy", "*", ""} {
		results, err := s.Search(ctx, SearchParams{Query: q, ProjectRoot: "/p"})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("query %q: expected 2 results, got %d", q, len(results))
		}
		if results[0].ID != low || results[1].ID != high {
			t.Errorf("query %q: expected pinned memory first", q)
		}
	}
}

func TestSearch_ImportanceBeforeRecency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	important, _ := s.AddMemory(ctx, model.Candidate{Kind: model.KindPitfall, Text: "Never force push main", Importance: 5}, "/p", "")
	addMemory(t, s, model.KindTodo, "Push the release tag", "/p")

	results, _ := s.Search(ctx, SearchParams{Query: "*", ProjectRoot: "/p"})
	if len(results) != 2 || results[0].ID != important {
		t.Fatalf("expected important memory first, got %+v", results)
	}
	if results[0].Score != 0 {
		t.Errorf("expected zero score without full-text match, got %v", results[0].Score)
	}
}

func TestSearch_KindsAndTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	both, _ := s.AddMemory(ctx, model.Candidate{Kind: model.KindWorkflow, Text: "Deploy via the infra pipeline", Tags: []string{"deploy", "infra"}}, "/p", "")
	one, _ := s.AddMemory(ctx, model.Candidate{Kind: model.KindFact, Text: "Deploy window is Tuesday", Tags: []string{"deploy"}}, "/p", "")
	addMemory(t, s, model.KindFact, "Deploy freeze in December", "/p")

	results, _ := s.Search(ctx, SearchParams{Query: "deploy", ProjectRoot: "/p", Tags: []string{"deploy", "infra"}})
	if len(results) != 1 || results[0].ID != both {
		t.Errorf("expected AND tag match, got %+v", results)
	}

	results, _ = s.Search(ctx, SearchParams{Query: "deploy", ProjectRoot: "/p", Tags: []string{"deploy"}})
	if len(results) != 2 || !ids(results)[one] {
		t.Errorf("expected 2 with 'deploy' tag, got %d", len(results))
	}

	results, _ = s.Search(ctx, SearchParams{Query: "*", ProjectRoot: "/p", Tags: []string{"deploy"}, Limit: 1})
	if len(results) != 1 {
		t.Errorf("expected limit to apply after tag filter, got %d", len(results))
	}

	results, _ = s.Search(ctx, SearchParams{Query: "deploy", ProjectRoot: "/p", Kinds: []model.Kind{model.KindFact}})
	if len(results) != 2 {
		t.Errorf("expected 2 facts, got %d", len(results))
	}
	if ids(results)[both] {
		t.Error("workflow memory should be filtered by kind")
	}
}

func TestSearch_PunctuationIsLiteral(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	addMemory(t, s, model.KindFact, "Run go-vet before commit", "/p")

	for _, q := range []string{`go-vet`, `"unbalanced`, `NOT AND OR`, `foo:bar (baz)`, `*`} {
		if _, err := s.Search(ctx, SearchParams{Query: q, ProjectRoot: "/p"}); err != nil {
			t.Errorf("query %q: %v", q, err)
		}
	}

	results, _ := s.Search(ctx, SearchParams{Query: "go-vet", ProjectRoot: "/p"})
	if len(results) != 1 {
		t.Errorf("expected hyphenated query to match, got %d", len(results))
	}
}

func TestSearch_MatchAny(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	addMemory(t, s, model.KindFact, "The cache lives in redis", "/p")
	addMemory(t, s, model.KindReference, "See the runbook for kafka", "/p")

	all, _ := s.Search(ctx, SearchParams{Query: "redis kafka", ProjectRoot: "/p"})
	if len(all) != 0 {
		t.Errorf("expected no row holding both terms, got %d", len(all))
	}
	either, _ := s.Search(ctx, SearchParams{Query: "redis kafka", ProjectRoot: "/p", MatchAny: true})
	if len(either) != 2 {
		t.Errorf("expected both rows with any-term matching, got %d", len(either))
	}
}

func TestSanitizeFTS(t *testing.T) {
	tests := []struct {
		in       string
		matchAny bool
		want     string
	}{
		{"", false, ""},
		{"  *  ", false, ""},
		{`say "hi" now`, false, `"say" "hi" "now"`},
		{"a b", true, `"a" OR "b"`},
		{`"""`, false, ""},
	}
	for _, tt := range tests {
		if got := sanitizeFTS(tt.in, tt.matchAny); got != tt.want {
			t.Errorf("sanitizeFTS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("We will use pytest", "We will use Typer"); got < 0.79 || got > 0.81 {
		t.Errorf("expected 0.8, got %v", got)
	}
	if got := Similarity("We will use pytest", "We will use pytest for tests"); got < DefaultMergeThreshold {
		t.Errorf("expected restated text to reach the threshold, got %v", got)
	}
	if got := Similarity("HELLO world", "hello WORLD"); got != 1 {
		t.Errorf("expected case-insensitive match, got %v", got)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("expected 1 for two empty strings, got %v", got)
	}
	if got := Ratio("We will use pytest", "We will use pytest for tests"); got >= 1 {
		t.Errorf("expected Ratio to ignore containment, got %v", got)
	}
	if got := Ratio(" Same Text ", "same text"); got != 1 {
		t.Errorf("expected 1 for equal folded text, got %v", got)
	}
	// Short words inside long text are not restatements.
	if got := Similarity("use", "We will use Typer for the command line"); got >= DefaultMergeThreshold {
		t.Errorf("expected low score, got %v", got)
	}
}
