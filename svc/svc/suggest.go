package svc

import (
	"context"
	"strings"

	"snipbin/metrics"
	"snipbin/pkg/domain"
	"snipbin/svc/util"

	"github.com/pkg/errors"
)

// QuickMatches returns at most limit visible pastes whose title or text
// contains query, newest first. A blank query yields an empty list.
func (p *Paste) QuickMatches(ctx context.Context, query string, limit int) ([]domain.QuickMatch, error) {
	out := []domain.QuickMatch{}
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = p.cfg.QuickMatchLimit
	}
	metrics.Suggestions.WithLabelValues("paste").Inc()
	pastes, err := p.db.MatchPastes(ctx, query, limit, p.now())
	if err != nil {
		return nil, errors.Wrap(err, "quick matches")
	}
	folded := domain.Fold(query)
	for _, paste := range pastes {
		m := domain.QuickMatch{
			ID:        paste.ID,
			Title:     paste.Title,
			Syntax:    paste.Syntax,
			MatchType: domain.MatchContent,
		}
		if strings.Contains(domain.Fold(paste.Title), folded) {
			m.MatchType = domain.MatchTitle
		} else {
			m.Snippet = Snippet(paste.Text, query)
		}
		out = append(out, m)
	}
	return out, nil
}

// TagSuggestions lists tags whose name contains query, most used by visible
// pastes first.
// Results are cached in Redis when it is configured, so counts may lag by
// up to TagSuggestCacheTTL.
func (p *Paste) TagSuggestions(ctx context.Context, query string, limit int) ([]domain.TagSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.TagSuggestion{}, nil
	}
	if limit <= 0 {
		limit = p.cfg.TagSuggestLimit
	}
	metrics.Suggestions.WithLabelValues("tag").Inc()
	if p.rdb != nil {
		tags, ok, err := p.rdb.GetTagSuggestions(ctx, query, limit)
		if err != nil {
			util.Warn().Err(err).Msg("redis tag suggestion lookup failed")
		} else if ok {
			metrics.CacheHits.WithLabelValues("tags").Inc()
			return tags, nil
		}
		metrics.CacheMisses.WithLabelValues("tags").Inc()
	}
	tags, err := p.db.SuggestTags(ctx, query, limit, p.now())
	if err != nil {
		return nil, errors.Wrap(err, "tag suggestions")
	}
	if p.rdb != nil {
		if err := p.rdb.CacheTagSuggestions(ctx, query, limit, tags, p.cfg.TagSuggestCacheTTL); err != nil {
			util.Warn().Err(err).Msg("failed to cache tag suggestions")
		}
	}
	return tags, nil
}
