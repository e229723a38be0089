package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Decision ")
	require.NoError(t, err)
	assert.Equal(t, KindDecision, k)

	_, err = ParseKind("opinion")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"todo", "fact"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindTodo, KindFact}, kinds)

	kinds, err = ParseKinds(nil)
	require.NoError(t, err)
	assert.Nil(t, kinds)

	_, err = ParseKinds([]string{"todo", "bogus"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestClampImportance(t *testing.T) {
	assert.Equal(t, 1, ClampImportance(0))
	assert.Equal(t, 5, ClampImportance(9))
	assert.Equal(t, 4, ClampImportance(4))
}

func TestHasTags(t *testing.T) {
	m := Memory{Tags: []string{"go", "cli"}}
	assert.True(t, m.HasTags(nil))
	assert.True(t, m.HasTags([]string{"go"}))
	assert.True(t, m.HasTags([]string{"go", "cli"}))
	assert.False(t, m.HasTags([]string{"go", "web"}))
}

func TestParseTurnPayload_HyphenatedKeys(t *testing.T) {
	turn, err := ParseTurnPayload(map[string]any{
		"thread-id":              "t1",
		"turn-id":                "1",
		"cwd":                    "/tmp/project",
		"input-messages":         []any{"I prefer snake_case."},
		"last-assistant-message": "We will use Typer CLI.",
		"ts_utc":                 "2025-01-15T10:30:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", turn.ThreadID)
	assert.Equal(t, "1", turn.TurnID)
	require.Len(t, turn.InputMessages, 1)
	assert.Equal(t, "user", turn.InputMessages[0].Role)
	assert.Equal(t, "We will use Typer CLI.", turn.AssistantMessage.Content)
	assert.Equal(t, "assistant", turn.AssistantMessage.Role)
	assert.Equal(t, 2025, turn.Timestamp.Year())
}

func TestParseTurnPayload_UnderscoredKeysAndFragments(t *testing.T) {
	turn, err := ParseTurnPayload(map[string]any{
		"thread_id": "t2",
		"turn_id":   "7",
		"cwd":       "/work",
		"input_messages": []any{
			map[string]any{"role": "user", "content": []any{
				map[string]any{"type": "input_text", "text": "first"},
				"second",
			}},
		},
		"last_assistant_message": map[string]any{"content": "done"},
	})
	require.NoError(t, err)

	require.Len(t, turn.InputMessages, 1)
	assert.Equal(t, "first\nsecond", turn.InputMessages[0].Content)
	assert.Equal(t, "assistant", turn.AssistantMessage.Role)
}

func TestParseTurnPayload_MissingAssistant(t *testing.T) {
	_, err := ParseTurnPayload(map[string]any{"thread-id": "t1", "cwd": "/x"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestContentHash(t *testing.T) {
	a := Turn{
		ThreadID:         "t1",
		TurnID:           "1",
		Cwd:              "/p",
		InputMessages:    []Message{{Content: "hello "}},
		AssistantMessage: Message{Content: "world"},
	}
	b := a
	b.InputMessages = []Message{{Content: "hello", Role: "user"}}

	assert.Len(t, a.ContentHash(), 64)
	assert.Equal(t, a.ContentHash(), b.ContentHash(), "whitespace and role must not change the hash")

	c := a
	c.AssistantMessage = Message{Content: "world!"}
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}

func TestPayloadRoundTrip(t *testing.T) {
	turn, err := ParseTurnPayload(map[string]any{
		"thread-id":              "t1",
		"turn-id":                "3",
		"cwd":                    "/p",
		"surface":                "cli",
		"input-messages":         []any{"please always format"},
		"last-assistant-message": "ok",
	})
	require.NoError(t, err)

	again, err := ParseTurnPayload(turn.Payload())
	require.NoError(t, err)
	assert.Equal(t, turn.ContentHash(), again.ContentHash())
	assert.Equal(t, "cli", again.Surface)
	assert.True(t, turn.Timestamp.Equal(again.Timestamp))
}
