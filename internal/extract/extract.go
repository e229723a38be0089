// Package extract turns conversation turns into memory candidates.
//
// Two strategies share the [Extractor] contract: [RuleBased], a deterministic
// sentence classifier, and [Remote], which asks an OpenAI-compatible model and
// falls back to another Extractor whenever the model call fails.
package extract

import (
	"context"

	"github.com/rcliao/codex-mem/internal/model"
)

// Extractor produces at most limit candidates for a turn. Implementations
// must not fail; a strategy that cannot produce results returns none.
type Extractor interface {
	Extract(ctx context.Context, turn model.Turn, limit int) []model.Candidate
}
