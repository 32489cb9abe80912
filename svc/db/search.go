package db

import (
	"context"
	"time"

	"snipbin/pkg/domain"

	"github.com/pkg/errors"
)

func (s *SQLite) SearchPastes(ctx context.Context, f domain.SearchFilters, limit, offset int, now time.Time) ([]*domain.Paste, error) {
	return s.listPastes(ctx, searchPredicate(f, now), limit, offset)
}

// CountPastes counts every paste SearchPastes would page through.
func (s *SQLite) CountPastes(ctx context.Context, f domain.SearchFilters, now time.Time) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	where := searchPredicate(f, now)
	var total int
	err := s.db.QueryRowContext(queryCtx, `SELECT COUNT(*) FROM pastes p`+where.sql(), where.params()...).Scan(&total)
	s.recordError(err)
	if err != nil {
		return 0, errors.Wrap(err, "db count")
	}
	return total, nil
}

// MatchPastes returns visible pastes whose title or text contains query,
// newest first, without their tags.
func (s *SQLite) MatchPastes(ctx context.Context, query string, limit int, now time.Time) ([]*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	where := &predicate{}
	where.add(notExpired, toMillis(now))
	textMatch(where, query)
	q := `SELECT ` + pasteColumns + ` FROM pastes p` + where.sql() +
		` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(queryCtx, q, append(where.params(), limit)...)
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "db match")
	}
	defer rows.Close()
	out := make([]*domain.Paste, 0, limit)
	for rows.Next() {
		p, err := scanPaste(rows)
		if err != nil {
			s.recordError(err)
			return nil, errors.Wrap(err, "db match scan")
		}
		out = append(out, p)
	}
	err = rows.Err()
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db match rows")
	}
	return out, nil
}
