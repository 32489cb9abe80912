package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"snipbin/pkg/domain"

	"github.com/pkg/errors"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// upsertAndLink stores tags (already normalized and deduplicated) and links
// them to pasteID. A tag that exists takes the newly submitted display name.
func upsertAndLink(ctx context.Context, tx *sql.Tx, pasteID string, tags []domain.Tag, now time.Time) error {
	if len(tags) == 0 {
		return nil
	}
	ms := toMillis(now)

	values := make([]string, len(tags))
	args := make([]any, 0, len(tags)*3)
	keys := make([]any, len(tags))
	for i, t := range tags {
		values[i] = "(?, ?, ?)"
		args = append(args, t.Name, t.Normalized, ms)
		keys[i] = t.Normalized
	}
	_, err := tx.ExecContext(ctx, `
	INSERT INTO tags (name, normalized, created_at) VALUES `+strings.Join(values, ", ")+`
	ON CONFLICT(normalized) DO UPDATE SET name = excluded.name
	`, args...)
	if err != nil {
		return errors.Wrap(err, "upsert tags")
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, normalized FROM tags WHERE normalized IN (`+placeholders(len(keys))+`)`, keys...)
	if err != nil {
		return errors.Wrap(err, "resolve tag ids")
	}
	ids := make(map[string]int64, len(tags))
	for rows.Next() {
		var (
			id   int64
			norm string
		)
		if err := rows.Scan(&id, &norm); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan tag id")
		}
		ids[norm] = id
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return errors.Wrap(err, "resolve tag ids")
	}

	args = args[:0]
	for i := range tags {
		id, ok := ids[tags[i].Normalized]
		if !ok {
			return errors.Errorf("tag %q missing after upsert", tags[i].Normalized)
		}
		tags[i].ID = id
		args = append(args, pasteID, id, ms)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO paste_tags (paste_id, tag_id, created_at) VALUES `+strings.Join(values, ", ")+`
	ON CONFLICT DO NOTHING
	`, args...)
	return errors.Wrap(err, "link tags")
}

// tagsFor loads the tags of every paste in ids with a single query, each
// list in link order.
func tagsFor(ctx context.Context, q querier, ids []string) (map[string][]domain.Tag, error) {
	out := make(map[string][]domain.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `
	SELECT pt.paste_id, t.id, t.name, t.normalized
	FROM paste_tags pt
	JOIN tags t ON t.id = pt.tag_id
	WHERE pt.paste_id IN (`+placeholders(len(ids))+`)
	ORDER BY pt.rowid
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pasteID string
			t       domain.Tag
		)
		if err := rows.Scan(&pasteID, &t.ID, &t.Name, &t.Normalized); err != nil {
			return nil, err
		}
		out[pasteID] = append(out[pasteID], t)
	}
	return out, rows.Err()
}

// PasteTags returns the current tags of a paste in link order. Display names
// reflect the latest upsert.
func (s *SQLite) PasteTags(ctx context.Context, id string) ([]domain.Tag, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	tags, err := tagsFor(queryCtx, s.db, []string{id})
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db paste tags")
	}
	return tagsOrEmpty(tags[id]), nil
}

// SuggestTags matches query as a case-insensitive substring of tag names.
// Only links to pastes visible at now are counted, so a tag whose pastes
// have all expired is not suggested. Tags used by more pastes come first;
// ties go by normalized key.
func (s *SQLite) SuggestTags(ctx context.Context, query string, limit int, now time.Time) ([]domain.TagSuggestion, error) {
	out := make([]domain.TagSuggestion, 0, limit)
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(queryCtx, `
	SELECT t.id, t.name, t.normalized, COUNT(p.id) AS cnt
	FROM tags t
	JOIN paste_tags pt ON pt.tag_id = t.id
	JOIN pastes p ON p.id = pt.paste_id AND `+notExpired+`
	WHERE instr(fold(t.name), ?) > 0
	GROUP BY t.id
	ORDER BY cnt DESC, t.normalized ASC
	LIMIT ?
	`, toMillis(now), domain.Fold(query), limit)
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "suggest tags")
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.TagSuggestion
		if err := rows.Scan(&t.ID, &t.Name, &t.Normalized, &t.Count); err != nil {
			s.recordError(err)
			return nil, errors.Wrap(err, "scan tag suggestion")
		}
		out = append(out, t)
	}
	err = rows.Err()
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "suggest tags rows")
	}
	return out, nil
}
