package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rcliao/codex-mem/internal/model"
)

const (
	DefaultRemoteModel    = "gpt-4o-mini"
	DefaultRemoteMaxChars = 5000
)

const remotePrompt = "Extract durable memories from the assistant's message. " +
	`Return only a JSON object of the form {"memories": [{"kind": ..., "text": ..., "importance": 1-5}]}. ` +
	"kind must be one of: preference, fact, decision, todo, pitfall, workflow, reference."

// Completer sends a system and user prompt to a chat model and returns the
// text of the first reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Remote extracts memories with a chat model and falls back when the model
// cannot be reached or returns something unusable.
type Remote struct {
	completer Completer
	fallback  Extractor
	maxChars  int
	logger    *slog.Logger
}

// RemoteOption configures a Remote extractor.
type RemoteOption func(*Remote)

// WithFallback sets the extractor used when the model call fails.
func WithFallback(e Extractor) RemoteOption {
	return func(r *Remote) {
		r.fallback = e
	}
}

// WithMaxChars truncates the assistant message sent to the model.
func WithMaxChars(n int) RemoteOption {
	return func(r *Remote) {
		if n > 0 {
			r.maxChars = n
		}
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRemote creates a Remote extractor. The fallback defaults to RuleBased.
func NewRemote(c Completer, opts ...RemoteOption) *Remote {
	r := &Remote{
		completer: c,
		fallback:  RuleBased{},
		maxChars:  DefaultRemoteMaxChars,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract implements Extractor.
func (r *Remote) Extract(ctx context.Context, turn model.Turn, limit int) []model.Candidate {
	candidates, err := r.extract(ctx, turn)
	if err != nil {
		r.logger.Warn("remote extraction failed, using fallback", "error", err)
		return r.fallback.Extract(ctx, turn, limit)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (r *Remote) extract(ctx context.Context, turn model.Turn) ([]model.Candidate, error) {
	if r.completer == nil {
		return nil, errors.New("no completer configured")
	}
	text := turn.AssistantMessage.Content
	if runes := []rune(text); len(runes) > r.maxChars {
		text = string(runes[:r.maxChars])
	}

	reply, err := r.completer.Complete(ctx, remotePrompt, text)
	if err != nil {
		return nil, err
	}
	return parseRemoteReply(reply)
}

type remoteReply struct {
	Memories []struct {
		Kind       string `json:"kind"`
		Text       string `json:"text"`
		Importance *int   `json:"importance"`
	} `json:"memories"`
}

func parseRemoteReply(reply string) ([]model.Candidate, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	var parsed remoteReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}

	candidates := make([]model.Candidate, 0, len(parsed.Memories))
	for _, m := range parsed.Memories {
		kindStr := m.Kind
		if kindStr == "" {
			kindStr = string(model.KindFact)
		}
		kind, err := model.ParseKind(kindStr)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		importance := model.DefaultImportance
		if m.Importance != nil {
			importance = model.ClampImportance(*m.Importance)
		}
		candidates = append(candidates, model.Candidate{
			Kind:       kind,
			Text:       strings.TrimSpace(m.Text),
			Importance: importance,
		})
	}
	return candidates, nil
}

// OpenAICompleter is a Completer backed by the OpenAI chat completions API.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. An empty apiKey defers to the
// OPENAI_API_KEY environment variable read by the client; an empty baseURL
// uses the default endpoint.
func NewOpenAICompleter(apiKey, baseURL, modelName string) *OpenAICompleter {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if modelName == "" {
		modelName = DefaultRemoteModel
	}
	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		model:  modelName,
	}
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Select returns the extractor configured by remoteEnabled. The remote path
// always wraps the rule-based extractor as its fallback.
func Select(remoteEnabled bool, c Completer, maxChars int, logger *slog.Logger) Extractor {
	if !remoteEnabled || c == nil {
		return RuleBased{}
	}
	return NewRemote(c, WithMaxChars(maxChars), WithLogger(logger))
}
