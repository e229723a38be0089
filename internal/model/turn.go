package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPayload is returned when a notify payload is missing required fields.
var ErrInvalidPayload = errors.New("invalid turn payload")

// Message is one input or output message of a turn.
type Message struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
	Surface string `json:"surface,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Turn is one captured conversation exchange.
type Turn struct {
	ThreadID         string    `json:"thread_id"`
	TurnID           string    `json:"turn_id"`
	Timestamp        time.Time `json:"ts_utc"`
	Cwd              string    `json:"cwd"`
	InputMessages    []Message `json:"input_messages"`
	AssistantMessage Message   `json:"assistant_message"`
	Surface          string    `json:"surface,omitempty"`
}

// ContentHash returns the deduplication key for the turn.
func (t Turn) ContentHash() string {
	inputs := make([]string, len(t.InputMessages))
	for i, m := range t.InputMessages {
		inputs[i] = strings.TrimSpace(m.Content)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(inputs)

	joined := strings.Join([]string{
		strings.TrimSpace(t.ThreadID),
		strings.TrimSpace(t.TurnID),
		strings.TrimSpace(t.Cwd),
		strings.TrimSpace(t.AssistantMessage.Content),
		strings.TrimRight(buf.String(), "\n"),
	}, "|")

	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Texts returns the input texts followed by the assistant text.
func (t Turn) Texts() []string {
	texts := make([]string, 0, len(t.InputMessages)+1)
	for _, m := range t.InputMessages {
		texts = append(texts, m.Content)
	}
	return append(texts, t.AssistantMessage.Content)
}

// Payload re-encodes the turn in the notify payload shape, so it can be
// spooled and later fed back through ParseTurnPayload.
func (t Turn) Payload() map[string]any {
	inputs := make([]any, len(t.InputMessages))
	for i, m := range t.InputMessages {
		inputs[i] = messageMap(m)
	}
	p := map[string]any{
		"thread_id":              t.ThreadID,
		"turn_id":                t.TurnID,
		"cwd":                    t.Cwd,
		"ts_utc":                 t.Timestamp.UTC().Format(time.RFC3339Nano),
		"input_messages":         inputs,
		"last_assistant_message": messageMap(t.AssistantMessage),
	}
	if t.Surface != "" {
		p["surface"] = t.Surface
	}
	return p
}

func messageMap(m Message) map[string]any {
	out := map[string]any{"content": m.Content}
	if m.Role != "" {
		out["role"] = m.Role
	}
	if m.Surface != "" {
		out["surface"] = m.Surface
	}
	if m.Type != "" {
		out["type"] = m.Type
	}
	return out
}

// ParseTurnPayload normalizes a raw notify payload into a Turn. Each field may
// use either a hyphenated or an underscored key.
func ParseTurnPayload(payload map[string]any) (Turn, error) {
	if payload == nil {
		return Turn{}, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	rawAssistant := pick(payload, "last-assistant-message", "last_assistant_message")
	if rawAssistant == nil {
		return Turn{}, fmt.Errorf("%w: missing last assistant message", ErrInvalidPayload)
	}

	t := Turn{
		ThreadID:         stringify(pick(payload, "thread-id", "thread_id")),
		TurnID:           stringify(pick(payload, "turn-id", "turn_id")),
		Cwd:              stringify(pick(payload, "cwd")),
		Surface:          stringify(pick(payload, "surface")),
		AssistantMessage: coerceMessage(rawAssistant, "assistant"),
		Timestamp:        parseTimestamp(pick(payload, "ts_utc", "timestamp")),
	}

	switch raw := pick(payload, "input-messages", "input_messages").(type) {
	case nil:
	case []any:
		for _, item := range raw {
			t.InputMessages = append(t.InputMessages, coerceMessage(item, "user"))
		}
	case []string:
		for _, item := range raw {
			t.InputMessages = append(t.InputMessages, Message{Content: item, Role: "user"})
		}
	default:
		t.InputMessages = []Message{coerceMessage(raw, "user")}
	}

	return t, nil
}

// pick returns the first non-empty value among keys.
func pick(payload map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%v", x)
	default:
		return fmt.Sprint(x)
	}
}

func coerceMessage(v any, defaultRole string) Message {
	switch x := v.(type) {
	case string:
		return Message{Content: x, Role: defaultRole}
	case map[string]any:
		m := Message{
			Role:    stringify(x["role"]),
			Surface: stringify(x["surface"]),
			Type:    stringify(x["type"]),
		}
		if m.Role == "" {
			m.Role = defaultRole
		}
		if fragments, ok := x["content"].([]any); ok {
			m.Content = strings.Join(flattenFragments(fragments), "\n")
		} else {
			m.Content = stringify(x["content"])
		}
		return m
	default:
		return Message{Content: stringify(x), Role: defaultRole}
	}
}

func flattenFragments(fragments []any) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		switch x := f.(type) {
		case string:
			out = append(out, x)
		case map[string]any:
			if text, ok := x["text"]; ok {
				out = append(out, stringify(text))
				continue
			}
			b, _ := json.Marshal(x)
			out = append(out, string(b))
		default:
			out = append(out, stringify(x))
		}
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Now().UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
