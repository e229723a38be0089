package store

import (
	"context"
	"strings"

	"github.com/rcliao/codex-mem/internal/model"
)

// ExportParams selects memories for export.
type ExportParams struct {
	// ProjectRoot limits the export to one project; empty exports every scope.
	ProjectRoot    string
	IncludeGlobal  bool
	IncludeDeleted bool
}

// ExportAll returns memories oldest first, filtered by scope.
func (s *SQLiteStore) ExportAll(ctx context.Context, p ExportParams) ([]model.Memory, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if !p.IncludeDeleted {
		where = append(where, "is_deleted = 0")
	}
	switch {
	case p.ProjectRoot != "" && p.IncludeGlobal:
		where = append(where, "(project_root = ? OR project_root IS NULL)")
		args = append(args, p.ProjectRoot)
	case p.ProjectRoot != "":
		where = append(where, "project_root = ?")
		args = append(args, p.ProjectRoot)
	case !p.IncludeGlobal:
		where = append(where, "project_root IS NOT NULL")
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ts_utc, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("export", err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, wrapErr("scan memory", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Import stores memories from an export. Each one goes through AddMemory,
// so entries similar to existing memories merge instead of duplicating.
// Deleted entries are skipped; pins are carried over.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for _, m := range memories {
		if m.Deleted {
			continue
		}
		id, err := s.AddMemory(ctx, model.Candidate{
			Kind:       m.Kind,
			Text:       m.Text,
			Importance: m.Importance,
			Tags:       m.Tags,
		}, m.Scope(), "")
		if err != nil {
			return imported, err
		}
		if m.Pinned {
			pinned := true
			if _, err := s.UpdateMemory(ctx, id, UpdateParams{Pinned: &pinned}); err != nil {
				return imported, err
			}
		}
		imported++
	}
	return imported, nil
}
