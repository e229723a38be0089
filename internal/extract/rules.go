package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/rcliao/codex-mem/internal/model"
)

type rule struct {
	kind     model.Kind
	patterns []*regexp.Regexp
}

// rules are checked in priority order; the first kind with a matching
// pattern wins.
var rules = []rule{
	{model.KindPreference, compile(`(?i)\bprefer\b`, `(?i)\balways\b`, `(?i)\bfrom now on\b`)},
	{model.KindDecision, compile(`(?i)\bwe (will|decided)\b`, `(?i)\bdecision\b`, `(?i)\bchoose\b`)},
	{model.KindTodo, compile(`\bTODO\b`, `(?i)\bnext\b`, `(?i)\bfollow up\b`, `(?i)\bneed to\b`)},
	{model.KindPitfall, compile(`(?i)\bavoid\b`, `(?i)\bdon't\b`, `(?i)\bissue\b`, `(?i)\bfails?\b`)},
	{model.KindWorkflow, compile(`(?i)\bworkflow\b`, `(?i)\bprocess\b`, `(?i)\bsteps\b`)},
	{model.KindReference, compile(`(?i)\bsee\b`, `(?i)\bref(erence)?\b`, `(?i)\bdoc\b`, `(?i)\burl\b`)},
	{model.KindFact, compile(`(?i)\bus(e|ing)\b`, `(?i)\brunning\b`, `(?i)\bversion\b`)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// RuleBased classifies sentences with fixed keyword rules.
type RuleBased struct{}

// Extract implements Extractor.
func (RuleBased) Extract(_ context.Context, turn model.Turn, limit int) []model.Candidate {
	return Classify(strings.Join(turn.Texts(), "\n"), limit)
}

// Classify splits text into sentences and returns up to limit candidates.
func Classify(text string, limit int) []model.Candidate {
	if limit <= 0 {
		return nil
	}
	var candidates []model.Candidate
	for _, sentence := range SplitSentences(text) {
		kind, ok := ClassifySentence(sentence)
		if !ok {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Kind:       kind,
			Text:       sentence,
			Importance: Importance(sentence),
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates
}

// ClassifySentence returns the first matching kind for a sentence.
func ClassifySentence(sentence string) (model.Kind, bool) {
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(sentence) {
				return r.kind, true
			}
		}
	}
	return "", false
}

// Importance scores a sentence by its wording.
func Importance(sentence string) int {
	lowered := strings.ToLower(sentence)
	switch {
	case strings.Contains(lowered, "always"),
		strings.Contains(lowered, "never"),
		strings.Contains(lowered, "must"):
		return 5
	case strings.Contains(lowered, "should"):
		return 4
	case strings.Contains(lowered, "maybe"), strings.Contains(lowered, "optional"):
		return 2
	}
	return model.DefaultImportance
}

// SplitSentences breaks text at whitespace that follows '.', '!', '?' or a
// newline. Empty pieces are dropped and the rest are trimmed.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || !isBoundary(runes[i-1]) {
			continue
		}
		out = appendTrimmed(out, string(runes[start:i]))
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j
	}
	if start < len(runes) {
		out = appendTrimmed(out, string(runes[start:]))
	}
	return out
}

func isBoundary(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}
