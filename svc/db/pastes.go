package db

import (
	"context"
	"database/sql"
	"time"

	"snipbin/pkg/domain"

	"github.com/pkg/errors"
)

const pasteColumns = `p.id, p.text, p.title, p.syntax, p.expires_at, p.created_at`

// CreatePaste inserts p and links its tags in one transaction. p.Tags must
// already be normalized; their ids are filled in on success.
func (s *SQLite) CreatePaste(ctx context.Context, p *domain.Paste) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	err := s.withTx(queryCtx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(queryCtx, `
		INSERT INTO pastes (id, text, title, syntax, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.Text, p.Title, p.Syntax, nullMillis(p.ExpiresAt), toMillis(p.CreatedAt))
		if err != nil {
			if isPrimaryKeyViolation(err) {
				return ErrIDCollision
			}
			return errors.Wrap(err, "insert paste")
		}
		return upsertAndLink(queryCtx, tx, p.ID, p.Tags, p.CreatedAt)
	})
	s.recordError(err)
	if err != nil {
		if errors.Is(err, ErrIDCollision) {
			return ErrIDCollision
		}
		return errors.Wrap(err, "db create")
	}
	return nil
}

// GetPaste returns nil, nil when id is unknown or expired at now.
func (s *SQLite) GetPaste(ctx context.Context, id string, now time.Time) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `SELECT ` + pasteColumns + ` FROM pastes p WHERE p.id = ? AND ` + notExpired
	p, err := scanPaste(s.db.QueryRowContext(queryCtx, q, id, toMillis(now)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get")
	}
	tags, err := tagsFor(queryCtx, s.db, []string{p.ID})
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db get tags")
	}
	p.Tags = tagsOrEmpty(tags[p.ID])
	return p, nil
}

// LatestPastes lists visible pastes newest first. Pastes sharing a
// created_at are ordered by insertion, newest insert first.
func (s *SQLite) LatestPastes(ctx context.Context, limit, offset int, now time.Time) ([]*domain.Paste, error) {
	var where predicate
	where.add(notExpired, toMillis(now))
	return s.listPastes(ctx, &where, limit, offset)
}

func (s *SQLite) listPastes(ctx context.Context, where *predicate, limit, offset int) ([]*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `SELECT ` + pasteColumns + ` FROM pastes p` + where.sql() +
		` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ? OFFSET ?`
	args := append(where.params(), limit, offset)
	rows, err := s.db.QueryContext(queryCtx, q, args...)
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "db list")
	}
	defer rows.Close()
	pastes := make([]*domain.Paste, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		p, err := scanPaste(rows)
		if err != nil {
			s.recordError(err)
			return nil, errors.Wrap(err, "db list scan")
		}
		pastes = append(pastes, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "db list rows")
	}
	rows.Close()
	tags, err := tagsFor(queryCtx, s.db, ids)
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "db list tags")
	}
	for _, p := range pastes {
		p.Tags = tagsOrEmpty(tags[p.ID])
	}
	return pastes, nil
}

// CleanupExpired physically deletes pastes that expired at or before now.
// Links go with them through the cascade.
func (s *SQLite) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	totalDeleted := 0
	maxIterations := 10000
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		result, err := s.db.ExecContext(queryCtx, `
			DELETE FROM pastes
			WHERE id IN (
				SELECT id FROM pastes
				WHERE expires_at IS NOT NULL AND expires_at <= ?
				LIMIT 100
			)
		`, toMillis(now))
		cancel()
		s.recordError(err)
		if err != nil {
			return totalDeleted, errors.Wrap(err, "cleanup batch failed")
		}
		deleted, _ := result.RowsAffected()
		totalDeleted += int(deleted)
		if deleted < 100 {
			break
		}
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	if totalDeleted == maxIterations*100 {
		return totalDeleted, errors.New("cleanup hit iteration limit, more records may exist")
	}
	return totalDeleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaste(row rowScanner) (*domain.Paste, error) {
	var (
		p         domain.Paste
		expiresAt sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Text, &p.Title, &p.Syntax, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	p.ExpiresAt = fromNullMillis(expiresAt)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func tagsOrEmpty(tags []domain.Tag) []domain.Tag {
	if tags == nil {
		return []domain.Tag{}
	}
	return tags
}
