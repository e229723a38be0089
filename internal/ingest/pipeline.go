// Package ingest turns raw notify payloads into stored turns and memories.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rcliao/codex-mem/internal/extract"
	"github.com/rcliao/codex-mem/internal/model"
	"github.com/rcliao/codex-mem/internal/project"
	"github.com/rcliao/codex-mem/internal/redact"
	"github.com/rcliao/codex-mem/internal/spool"
	"github.com/rcliao/codex-mem/internal/store"
)

// Outcome is the terminal state of one ingestion.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeDeduped     Outcome = "deduped"
	OutcomeFilteredOut Outcome = "filtered-out"
	OutcomeSpooled     Outcome = "spooled"
)

// DefaultMaxPerTurn caps the memories extracted from one turn.
const DefaultMaxPerTurn = 5

// Result describes what happened to one payload.
type Result struct {
	Outcome     Outcome  `json:"outcome"`
	TurnID      string   `json:"turn_id,omitempty"`
	ProjectRoot string   `json:"project_root,omitempty"`
	MemoryIDs   []string `json:"memory_ids,omitempty"`
}

// Success reports whether the payload is durably stored.
func (r Result) Success() bool {
	return r.Outcome == OutcomeAccepted || r.Outcome == OutcomeDeduped
}

// Store is the storage the pipeline writes to.
type Store interface {
	InsertTurn(ctx context.Context, turn model.Turn, projectRoot, hash string) (string, error)
	TurnIDByHash(ctx context.Context, hash string) (string, error)
	AddMemory(ctx context.Context, c model.Candidate, projectRoot, sourceTurnID string) (string, error)
}

// Spool holds payloads that could not be stored.
type Spool interface {
	Append(payload map[string]any) error
	ReadAll() ([]spool.Entry, error)
	Clear() error
}

// Pipeline runs redaction, scope filtering, dedup, extraction and storage.
type Pipeline struct {
	store        Store
	spool        Spool
	redactor     *redact.Redactor
	extractor    extract.Extractor
	scope        *ScopeFilter
	rootMarkers  []string
	maxPerTurn   int
	spoolEnabled bool
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRedactor sets the redactor. Defaults to the built-in patterns.
func WithRedactor(r *redact.Redactor) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.redactor = r
		}
	}
}

// WithExtractor sets the memory extractor. Defaults to extract.RuleBased.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithScopeFilter sets the allow/deny filter applied to the turn's cwd.
func WithScopeFilter(f *ScopeFilter) Option {
	return func(p *Pipeline) {
		p.scope = f
	}
}

// WithRootMarkers sets the files that mark a project root.
func WithRootMarkers(markers []string) Option {
	return func(p *Pipeline) {
		if len(markers) > 0 {
			p.rootMarkers = markers
		}
	}
}

// WithMaxPerTurn caps the memories extracted from one turn.
func WithMaxPerTurn(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxPerTurn = n
		}
	}
}

// WithSpoolEnabled turns spooling of failed writes on or off.
func WithSpoolEnabled(enabled bool) Option {
	return func(p *Pipeline) {
		p.spoolEnabled = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline.
func New(st Store, sp Spool, opts ...Option) *Pipeline {
	redactor, _ := redact.New(nil)
	p := &Pipeline{
		store:        st,
		spool:        sp,
		redactor:     redactor,
		extractor:    extract.RuleBased{},
		rootMarkers:  project.DefaultRootMarkers,
		maxPerTurn:   DefaultMaxPerTurn,
		spoolEnabled: true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest stores one raw payload. Malformed payloads return an error wrapping
// model.ErrInvalidPayload and are never spooled. Transient storage failures
// spool the redacted turn and report OutcomeSpooled with a nil error.
func (p *Pipeline) Ingest(ctx context.Context, payload map[string]any) (Result, error) {
	return p.ingest(ctx, payload, false)
}

// replaying turns off spooling and re-extracts memories for turns already
// recorded, so a run interrupted between the turn and its memories completes.
func (p *Pipeline) ingest(ctx context.Context, payload map[string]any, replaying bool) (Result, error) {
	turn, res, log, err := p.admit(payload)
	if err != nil || res.Outcome == OutcomeFilteredOut {
		return res, err
	}
	root := res.ProjectRoot

	hash := turn.ContentHash()
	turnID, err := p.store.InsertTurn(ctx, turn, root, hash)
	switch {
	case errors.Is(err, store.ErrDuplicateTurn):
		if !replaying {
			log.Info("deduped turn")
			res.Outcome = OutcomeDeduped
			return res, nil
		}
		if turnID, err = p.store.TurnIDByHash(ctx, hash); err != nil {
			return p.fail(res, log, turn, "find turn", err, replaying)
		}
	case err != nil:
		return p.fail(res, log, turn, "insert turn", err, replaying)
	}
	res.TurnID = turnID

	for _, c := range p.extractor.Extract(ctx, turn, p.maxPerTurn) {
		id, err := p.store.AddMemory(ctx, c, root, turnID)
		if err != nil {
			return p.fail(res, log, turn, "add memory", err, replaying)
		}
		res.MemoryIDs = append(res.MemoryIDs, id)
	}

	res.Outcome = OutcomeAccepted
	log.Debug("turn ingested", "memories", len(res.MemoryIDs), "project_root", root)
	return res, nil
}

// Defer handles a payload when the store could not be opened. The payload
// is parsed, redacted and scope-checked as in Ingest, then spooled when
// cause is transient. Without a transient cause it returns cause wrapped.
func (p *Pipeline) Defer(payload map[string]any, cause error) (Result, error) {
	turn, res, log, err := p.admit(payload)
	if err != nil || res.Outcome == OutcomeFilteredOut {
		return res, err
	}
	return p.fail(res, log, turn, "open store", cause, false)
}

// admit parses and redacts payload, resolves its project root and applies
// the scope filter. Denied turns come back with OutcomeFilteredOut.
func (p *Pipeline) admit(payload map[string]any) (model.Turn, Result, *slog.Logger, error) {
	turn, err := model.ParseTurnPayload(payload)
	if err != nil {
		return model.Turn{}, Result{}, nil, fmt.Errorf("parse payload: %w", err)
	}
	turn = p.redactTurn(turn)

	res := Result{ProjectRoot: project.DetectRoot(turn.Cwd, p.rootMarkers)}
	log := p.logger.With("thread_id", turn.ThreadID, "turn_id", turn.TurnID)

	if !p.scope.Allowed(turn.Cwd) {
		log.Info("cwd denied by allow/deny globs", "cwd", turn.Cwd)
		res.Outcome = OutcomeFilteredOut
	}
	return turn, res, log, nil
}

// fail spools the turn when err is transient and spooling applies. The
// returned error is nil only when the turn reached the spool.
func (p *Pipeline) fail(res Result, log *slog.Logger, turn model.Turn, op string, err error, replaying bool) (Result, error) {
	err = fmt.Errorf("%s: %w", op, err)
	if replaying || !store.IsTransient(err) {
		return res, err
	}
	if !p.spoolEnabled || p.spool == nil {
		log.Error("storage unavailable and spool disabled, dropping turn", "error", err)
		return res, err
	}
	if serr := p.spool.Append(turn.Payload()); serr != nil {
		log.Error("spool write failed, turn lost", "error", err, "spool_error", serr)
		return res, fmt.Errorf("%w (spool write failed: %v)", err, serr)
	}
	log.Warn("storage unavailable, turn spooled", "error", err)
	res.Outcome = OutcomeSpooled
	return res, nil
}

func (p *Pipeline) redactTurn(turn model.Turn) model.Turn {
	inputs := make([]model.Message, len(turn.InputMessages))
	for i, m := range turn.InputMessages {
		m.Content = p.redactor.Redact(m.Content)
		inputs[i] = m
	}
	turn.InputMessages = inputs
	turn.AssistantMessage.Content = p.redactor.Redact(turn.AssistantMessage.Content)
	return turn
}

// ReplayResult counts the entries a Replay processed.
type ReplayResult struct {
	Success  int `json:"success"`
	Failures int `json:"failures"`
}

// Replay re-ingests every spooled payload, then clears the spool. Failed
// entries are counted and dropped, never spooled again.
func (p *Pipeline) Replay(ctx context.Context) (ReplayResult, error) {
	var out ReplayResult
	if p.spool == nil {
		return out, nil
	}
	entries, err := p.spool.ReadAll()
	if err != nil {
		return out, fmt.Errorf("read spool: %w", err)
	}
	if len(entries) == 0 {
		return out, nil
	}

	for i, e := range entries {
		if e.Payload == nil {
			p.logger.Warn("spool entry has no payload", "entry", i)
			out.Failures++
			continue
		}
		res, err := p.ingest(ctx, e.Payload, true)
		if err != nil {
			p.logger.Warn("replay failed, dropping entry", "entry", i, "error", err)
			out.Failures++
			continue
		}
		if res.Success() {
			out.Success++
		} else {
			out.Failures++
		}
	}

	if err := p.spool.Clear(); err != nil {
		return out, fmt.Errorf("clear spool: %w", err)
	}
	p.logger.Info("spool replayed", "success", out.Success, "failures", out.Failures)
	return out, nil
}
