package svc

import (
	"context"
	"strings"

	"snipbin/metrics"
	"snipbin/pkg/domain"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Search pages through visible pastes matching every filter in f. The page
// and the total are read concurrently, so under concurrent writes the total
// may be slightly stale relative to the page.
func (p *Paste) Search(ctx context.Context, f domain.SearchFilters, page, limit int) (*domain.SearchPage, error) {
	if page <= 0 || limit <= 0 {
		return nil, domain.ErrInvalidPagination
	}
	f.Query = strings.TrimSpace(f.Query)
	now := p.now()

	var (
		results []*domain.Paste
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = p.db.SearchPastes(gctx, f, limit, (page-1)*limit, now)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = p.db.CountPastes(gctx, f, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "search")
	}
	metrics.Searches.Inc()
	return &domain.SearchPage{
		Results:    results,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}
