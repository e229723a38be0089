// Package redact scrubs secret-shaped substrings from text before it is stored.
package redact

import (
	"fmt"
	"regexp"
)

// Pattern is a labelled secret detector.
type Pattern struct {
	Label string
	Re    *regexp.Regexp
}

// DefaultPatterns are applied in order before any caller-supplied patterns.
var DefaultPatterns = []Pattern{
	{"OPENAI_KEY", regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`)},
	{"GITHUB_TOKEN", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
	{"AWS_KEY", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"BEARER", regexp.MustCompile(`Bearer [A-Za-z0-9\-_=]{20,}\.[A-Za-z0-9\-_=]{10,}\.[A-Za-z0-9\-_=]{10,}`)},
	{"PEM", regexp.MustCompile(`-----BEGIN [^-]+ PRIVATE KEY-----[\s\S]+?-----END [^-]+ PRIVATE KEY-----`)},
	{"SLACK", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,48}`)},
	{"JWT", regexp.MustCompile(`[A-Za-z0-9\-_]{20,}\.[A-Za-z0-9\-_]{10,}\.[A-Za-z0-9\-_]{10,}`)},
}

// Redactor applies an ordered list of patterns.
type Redactor struct {
	patterns []Pattern
}

// New builds a Redactor from the defaults plus extra regular expressions,
// labelled USER0, USER1, ... by their position in extra. Patterns that fail
// to compile are skipped and returned as errors so the caller can log them.
func New(extra []string) (*Redactor, []error) {
	patterns := make([]Pattern, len(DefaultPatterns), len(DefaultPatterns)+len(extra))
	copy(patterns, DefaultPatterns)

	var errs []error
	for i, expr := range extra {
		re, err := regexp.Compile(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("redact pattern %d %q: %w", i, expr, err))
			continue
		}
		patterns = append(patterns, Pattern{Label: fmt.Sprintf("USER%d", i), Re: re})
	}
	return &Redactor{patterns: patterns}, errs
}

// Redact replaces every match with [REDACTED:<label>].
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, p := range r.patterns {
		out = p.Re.ReplaceAllLiteralString(out, "[REDACTED:"+p.Label+"]")
	}
	return out
}

// Text redacts text using only the default patterns.
func Text(text string) string {
	return defaultRedactor.Redact(text)
}

var defaultRedactor = &Redactor{patterns: DefaultPatterns}
