package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/codex-mem/internal/model"
)

// AddMemory stores a candidate in the given scope, merging it into the most
// recent similar memory of the same kind and scope when one exists.
func (s *SQLiteStore) AddMemory(ctx context.Context, c model.Candidate, projectRoot, sourceTurnID string) (string, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return "", errors.New("memory text is empty")
	}
	kind, err := model.ParseKind(string(c.Kind))
	if err != nil {
		return "", err
	}
	importance := c.Importance
	if importance == 0 {
		importance = model.DefaultImportance
	}
	importance = model.ClampImportance(importance)
	now := formatTS(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", wrapErr("begin", err)
	}
	defer tx.Rollback()

	// NULL never equals NULL, so global scope needs its own predicate.
	scopeClause, scopeArgs := "project_root IS NULL", []interface{}{}
	if projectRoot != "" {
		scopeClause, scopeArgs = "project_root = ?", []interface{}{projectRoot}
	}
	args := append([]interface{}{string(kind)}, scopeArgs...)
	args = append(args, s.mergeWindow)

	rows, err := tx.QueryContext(ctx,
		`SELECT id, text FROM memories
		 WHERE kind = ? AND `+scopeClause+` AND is_deleted = 0
		 ORDER BY ts_utc DESC, seq DESC LIMIT ?`, args...)
	if err != nil {
		return "", wrapErr("load merge window", err)
	}
	type recent struct{ id, text string }
	var window []recent
	for rows.Next() {
		var r recent
		if err := rows.Scan(&r.id, &r.text); err != nil {
			rows.Close()
			return "", wrapErr("scan merge window", err)
		}
		window = append(window, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", wrapErr("load merge window", err)
	}

	for _, r := range window {
		if !s.similar(r.text, text) {
			continue
		}
		merged := mergeText(r.text, text)
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET text = ?, ts_utc = ? WHERE id = ?`, merged, now, r.id); err != nil {
			return "", wrapErr("merge memory", err)
		}
		if err := tx.Commit(); err != nil {
			return "", wrapErr("commit", err)
		}
		return r.id, nil
	}

	id := s.newID()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, ts_utc, project_root, kind, text, source_turn_id, importance, is_pinned, is_deleted, tags_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		id, now, nullable(projectRoot), string(kind), text, nullable(sourceTurnID), importance, encodeTags(c.Tags))
	if err != nil {
		return "", wrapErr("insert memory", err)
	}
	if err := tx.Commit(); err != nil {
		return "", wrapErr("commit", err)
	}
	return id, nil
}

// similar reports whether incoming should merge into existing. A threshold
// of 1 asks for equal text, so the containment rule does not apply.
func (s *SQLiteStore) similar(existing, incoming string) bool {
	if s.mergeThreshold >= 1 {
		return Ratio(existing, incoming) >= 1
	}
	return Similarity(existing, incoming) >= s.mergeThreshold
}

// mergeText appends incoming as a new bullet unless existing already holds it.
func mergeText(existing, incoming string) string {
	if strings.Contains(existing, incoming) {
		return existing
	}
	return strings.TrimSpace(existing) + "\n- " + strings.TrimSpace(incoming)
}

// Get returns a memory by id, including soft-deleted ones.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get memory", err)
	}
	return &m, nil
}

// SoftDelete flags a memory as deleted. The row stays for provenance.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return false, wrapErr("delete memory", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateMemory applies the non-nil fields of p to the memory.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, id string, p UpdateParams) (bool, error) {
	if p.empty() {
		return false, nil
	}

	var sets []string
	var args []interface{}
	if p.Text != nil {
		text := strings.TrimSpace(*p.Text)
		if text == "" {
			return false, errors.New("memory text is empty")
		}
		sets = append(sets, "text = ?")
		args = append(args, text)
	}
	if p.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, model.ClampImportance(*p.Importance))
	}
	if p.Pinned != nil {
		sets = append(sets, "is_pinned = ?")
		args = append(args, *p.Pinned)
	}
	if p.Tags != nil {
		tags := *p.Tags
		if tags == nil {
			tags = []string{}
		}
		sets = append(sets, "tags_json = ?")
		args = append(args, encodeTags(tags))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, wrapErr("update memory", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
