package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/codex-mem/internal/model"
)

// TurnRecord is a stored turn with its storage metadata.
type TurnRecord struct {
	ID          string     `json:"id"`
	Hash        string     `json:"hash"`
	ProjectRoot *string    `json:"project_root"`
	Turn        model.Turn `json:"turn"`
}

// InsertTurn records a turn and returns its storage id.
func (s *SQLiteStore) InsertTurn(ctx context.Context, turn model.Turn, projectRoot, hash string) (string, error) {
	id := s.newID()

	inputs, err := json.Marshal(turn.InputMessages)
	if err != nil {
		return "", fmt.Errorf("encode input messages: %w", err)
	}
	assistant, err := json.Marshal(turn.AssistantMessage)
	if err != nil {
		return "", fmt.Errorf("encode assistant message: %w", err)
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (id, thread_id, turn_id, ts_utc, cwd, project_root,
		                    input_messages_json, assistant_message, assistant_message_json, surface, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, turn.ThreadID, turn.TurnID, formatTS(ts), turn.Cwd, nullable(projectRoot),
		string(inputs), turn.AssistantMessage.Content, string(assistant), nullable(turn.Surface), hash)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateTurn
		}
		return "", wrapErr("insert turn", err)
	}
	return id, nil
}

// GetTurn returns a stored turn by id.
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*TurnRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, turn_id, ts_utc, cwd, project_root,
		        input_messages_json, assistant_message, assistant_message_json, surface, hash
		 FROM turns WHERE id = ?`, id)

	var (
		rec                     TurnRecord
		ts, inputs              string
		root, assistantJSON, sf sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Turn.ThreadID, &rec.Turn.TurnID, &ts, &rec.Turn.Cwd, &root,
		&inputs, &rec.Turn.AssistantMessage.Content, &assistantJSON, &sf, &rec.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("turn %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get turn", err)
	}

	rec.Turn.Timestamp = parseTS(ts)
	if root.Valid {
		r := root.String
		rec.ProjectRoot = &r
	}
	rec.Turn.Surface = sf.String
	json.Unmarshal([]byte(inputs), &rec.Turn.InputMessages)
	if assistantJSON.Valid {
		json.Unmarshal([]byte(assistantJSON.String), &rec.Turn.AssistantMessage)
	}
	return &rec, nil
}

// TurnIDByHash returns the id of the turn with the given content hash.
func (s *SQLiteStore) TurnIDByHash(ctx context.Context, hash string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM turns WHERE hash = ?`, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("turn with hash %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return "", wrapErr("find turn", err)
	}
	return id, nil
}

// CountTurns returns the number of recorded turns.
func (s *SQLiteStore) CountTurns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		return 0, wrapErr("count turns", err)
	}
	return n, nil
}

// SourceTurn returns the turn a memory was extracted from. Memories added
// by hand have no source turn and yield ErrNotFound.
func (s *SQLiteStore) SourceTurn(ctx context.Context, memoryID string) (*TurnRecord, error) {
	m, err := s.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if m.SourceTurnID == "" {
		return nil, fmt.Errorf("memory %s has no source turn: %w", memoryID, ErrNotFound)
	}
	return s.GetTurn(ctx, m.SourceTurnID)
}
