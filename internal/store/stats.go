package store

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/rcliao/codex-mem/internal/model"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string       `json:"db_path"`
	DBSizeBytes    int64        `json:"db_size_bytes"`
	TotalTurns     int          `json:"total_turns"`
	TotalMemories  int          `json:"total_memories"`
	ActiveMemories int          `json:"active_memories"`
	Counts         []ScopeCount `json:"counts"`
	LastTurnAt     *time.Time   `json:"last_turn_ts_utc"`
}

// ScopeCount is the number of live memories of one kind in one scope.
type ScopeCount struct {
	Kind        model.Kind `json:"kind"`
	ProjectRoot *string    `json:"project_root"`
	Count       int        `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.dbPath, Counts: []ScopeCount{}}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&st.TotalTurns); err != nil {
		return nil, wrapErr("count turns", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_deleted = 0 THEN 1 ELSE 0 END), 0) FROM memories`,
	).Scan(&st.TotalMemories, &st.ActiveMemories); err != nil {
		return nil, wrapErr("count memories", err)
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(ts_utc) FROM turns`).Scan(&last); err != nil {
		return nil, wrapErr("last turn", err)
	}
	if last.Valid {
		t := parseTS(last.String)
		st.LastTurnAt = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, project_root, COUNT(*) AS cnt
		FROM memories WHERE is_deleted = 0
		GROUP BY kind, project_root
		ORDER BY cnt DESC, kind, project_root`)
	if err != nil {
		return nil, wrapErr("count by scope", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ScopeCount
		var kind string
		var root sql.NullString
		if err := rows.Scan(&kind, &root, &c.Count); err != nil {
			return nil, wrapErr("scan counts", err)
		}
		c.Kind = model.Kind(kind)
		if root.Valid {
			r := root.String
			c.ProjectRoot = &r
		}
		st.Counts = append(st.Counts, c)
	}
	return st, rows.Err()
}
