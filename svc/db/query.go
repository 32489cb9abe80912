package db

import (
	"strings"
	"time"

	"snipbin/pkg/domain"
)

// notExpired takes now in unix ms as its only argument.
const notExpired = `(p.expires_at IS NULL OR p.expires_at > ?)`

// predicate accumulates AND-combined WHERE clauses with their arguments in
// placeholder order.
type predicate struct {
	clauses []string
	args    []any
}

func (p *predicate) add(clause string, args ...any) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

func (p *predicate) sql() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// params returns a fresh copy so callers may append LIMIT/OFFSET.
func (p *predicate) params() []any {
	out := make([]any, len(p.args), len(p.args)+2)
	copy(out, p.args)
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// textMatch matches needle as a literal, case-insensitive substring of the
// title or the text. The needle is folded here; fold() is the same mapping
// registered on every connection.
func textMatch(where *predicate, needle string) {
	folded := domain.Fold(needle)
	where.add(`(instr(fold(p.title), ?) > 0 OR instr(fold(p.text), ?) > 0)`, folded, folded)
}

func searchPredicate(f domain.SearchFilters, now time.Time) *predicate {
	where := &predicate{}
	where.add(notExpired, toMillis(now))
	if q := strings.TrimSpace(f.Query); q != "" {
		textMatch(where, q)
	}
	if domain.SyntaxFilterActive(f.Syntax) {
		where.add(`p.syntax = ?`, f.Syntax)
	}
	if keys := domain.NormalizedKeys(f.Tags); len(keys) > 0 {
		args := make([]any, 0, len(keys)+1)
		for _, k := range keys {
			args = append(args, k)
		}
		args = append(args, len(keys))
		where.add(`p.id IN (
			SELECT pt.paste_id FROM paste_tags pt
			JOIN tags t ON t.id = pt.tag_id
			WHERE t.normalized IN (`+placeholders(len(keys))+`)
			GROUP BY pt.paste_id
			HAVING COUNT(DISTINCT t.id) = ?
		)`, args...)
	}
	if f.From != nil {
		where.add(`p.created_at >= ?`, toMillis(*f.From))
	}
	if f.To != nil {
		where.add(`p.created_at <= ?`, toMillis(*f.To))
	}
	return where
}
