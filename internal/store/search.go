package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/codex-mem/internal/model"
)

// DefaultSearchLimit caps search results when no limit is given.
const DefaultSearchLimit = 20

// SearchResult wraps a memory with its full-text rank. Score is zero when
// the query bypassed full-text matching; lower is more relevant.
type SearchResult struct {
	model.Memory
	Score float64 `json:"score"`
}

// Search finds live memories in scope, ranked with pinned and important
// memories first and full-text relevance breaking ties.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	where := []string{"m.is_deleted = 0"}
	var args []interface{}

	switch {
	case p.ProjectRoot != "" && p.IncludeGlobal:
		where = append(where, "(m.project_root = ? OR m.project_root IS NULL)")
		args = append(args, p.ProjectRoot)
	case p.ProjectRoot != "":
		where = append(where, "m.project_root = ?")
		args = append(args, p.ProjectRoot)
	case !p.IncludeGlobal:
		where = append(where, "m.project_root IS NOT NULL")
	}

	if len(p.Kinds) > 0 {
		marks := make([]string, len(p.Kinds))
		for i, k := range p.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "m.kind IN ("+strings.Join(marks, ", ")+")")
	}

	var query string
	ftsQuery := sanitizeFTS(p.Query, p.MatchAny)
	if ftsQuery == "" {
		query = fmt.Sprintf(`
			SELECT %s, 0.0 FROM memories m
			WHERE %s
			ORDER BY m.is_pinned DESC, m.importance DESC, m.ts_utc DESC, m.seq DESC`,
			prefixed("m", memoryColumns), strings.Join(where, " AND "))
	} else {
		query = fmt.Sprintf(`
			SELECT %s, bm25(memory_fts) AS score
			FROM memory_fts
			JOIN memories m ON m.seq = memory_fts.rowid
			WHERE memory_fts MATCH ? AND %s
			ORDER BY m.is_pinned DESC, m.importance DESC, score ASC, m.ts_utc DESC`,
			prefixed("m", memoryColumns), strings.Join(where, " AND "))
		args = append([]interface{}{ftsQuery}, args...)
	}

	// Tags filter after the query, so the limit applies to tagged rows only.
	if len(p.Tags) == 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("search", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		m, err := scanMemory(rows, &r.Score)
		if err != nil {
			return nil, wrapErr("scan memory", err)
		}
		if !m.HasTags(p.Tags) {
			continue
		}
		r.Memory = m
		results = append(results, r)
		if len(results) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("search", err)
	}
	return results, nil
}

// sanitizeFTS turns free text into an FTS5 query by quoting every token, so
// punctuation and operators in user input are matched literally. Returns ""
// for an empty or wildcard query.
func sanitizeFTS(query string, matchAny bool) string {
	query = strings.TrimSpace(query)
	if query == "" || query == "*" {
		return ""
	}
	words := strings.Fields(strings.ReplaceAll(query, `"`, " "))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"`)
	}
	sep := " "
	if matchAny {
		sep = " OR "
	}
	return strings.Join(terms, sep)
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
