package svc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"snipbin/cfg"
	"snipbin/metrics"
	"snipbin/pkg/domain"
	"snipbin/svc/cache"
	"snipbin/svc/db"
	"snipbin/svc/util"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

type Paste struct {
	db    *db.SQLite
	lru   *cache.LRU
	rdb   *db.Redis
	cfg   *cfg.Cfg
	now   func() time.Time
	genID func() (string, error)
	loads singleflight.Group

	cleanerOnce    sync.Once
	cleanerRunning atomic.Bool
}

// NewPaste wires the paste service. rdb may be nil when Redis is not
// configured.
func NewPaste(sqlDB *db.SQLite, lru *cache.LRU, rdb *db.Redis, c *cfg.Cfg) *Paste {
	if sqlDB == nil || lru == nil || c == nil {
		panic("paste service: nil dependency (sqlDB, lru, or cfg)")
	}
	return &Paste{
		db:    sqlDB,
		lru:   lru,
		rdb:   rdb,
		cfg:   c,
		now:   func() time.Time { return time.Now().UTC() },
		genID: util.NewID,
	}
}

// Create stores a new paste. Input is assumed to be validated already. An id
// collision reruns the whole insert with a fresh id, up to MaxIDAttempts.
func (p *Paste) Create(ctx context.Context, params domain.CreateParams) (*domain.Paste, error) {
	// the store keeps millisecond timestamps
	now := p.now().Truncate(time.Millisecond)
	syntax := params.Syntax
	if syntax == "" {
		syntax = domain.DefaultSyntax
	}
	paste := &domain.Paste{
		Text:      params.Text,
		Title:     params.Title,
		Syntax:    syntax,
		ExpiresAt: domain.ResolveExpiry(params.Expiry, now),
		CreatedAt: now,
		Tags:      domain.NormalizeTags(params.Tags),
	}
	if paste.Tags == nil {
		paste.Tags = []domain.Tag{}
	}
	for attempt := 1; attempt <= p.cfg.MaxIDAttempts; attempt++ {
		id, err := p.genID()
		if err != nil {
			return nil, errors.Wrap(err, "gen id")
		}
		paste.ID = id
		err = p.db.CreatePaste(ctx, paste)
		if err == nil {
			p.cache(ctx, paste, now)
			metrics.PasteCreated.Inc()
			util.Debug().
				Str("id", id).
				Int("tags", len(paste.Tags)).
				Str("text", util.RedactPasteContent(paste.Text)).
				Msg("paste created")
			return paste, nil
		}
		if !errors.Is(err, db.ErrIDCollision) {
			return nil, errors.Wrap(err, "create paste")
		}
		metrics.IDCollisions.Inc()
		util.Warn().Str("id", id).Int("attempt", attempt).Msg("paste id collision, retrying")
	}
	util.Error().Int("attempts", p.cfg.MaxIDAttempts).Msg("gave up generating a free paste id")
	return nil, domain.ErrIDGenerationFailed
}

// Get returns the paste with its tags, or nil, nil when it is absent or
// expired. Lookups go LRU, then Redis, then the store.
func (p *Paste) Get(ctx context.Context, id string) (*domain.Paste, error) {
	now := p.now()
	if paste := p.lru.Get(ctx, id, now); paste != nil {
		metrics.CacheHits.WithLabelValues("lru").Inc()
		metrics.PasteRetrieved.Inc()
		return p.withFreshTags(ctx, paste), nil
	}
	metrics.CacheMisses.WithLabelValues("lru").Inc()
	if p.rdb != nil {
		paste, err := p.rdb.GetPaste(ctx, id)
		switch {
		case err != nil:
			util.Warn().Err(err).Str("id", id).Msg("redis get failed, falling back to db")
		case paste != nil && paste.Expired(now):
			if err := p.rdb.DeletePaste(ctx, id); err != nil {
				util.Warn().Err(err).Str("id", id).Msg("failed to delete expired paste from redis")
			}
			return nil, nil
		case paste != nil:
			metrics.CacheHits.WithLabelValues("redis").Inc()
			metrics.PasteRetrieved.Inc()
			p.lru.Set(paste, p.cfg.PasteCacheTTL, now)
			return p.withFreshTags(ctx, paste), nil
		default:
			metrics.CacheMisses.WithLabelValues("redis").Inc()
		}
	}
	// the shared load outlives the caller that started it
	v, err, _ := p.loads.Do(id, func() (any, error) {
		return p.db.GetPaste(context.WithoutCancel(ctx), id, now)
	})
	if err != nil {
		return nil, errors.Wrap(err, "get paste")
	}
	paste := v.(*domain.Paste)
	if paste == nil {
		return nil, nil
	}
	p.cache(ctx, paste, now)
	metrics.PasteRetrieved.Inc()
	return paste, nil
}

// withFreshTags returns a copy of a cached paste carrying its current tags.
// Tag display names change on upsert, so cached ones may be stale. The cached
// copy is served as is when the store cannot be reached.
func (p *Paste) withFreshTags(ctx context.Context, cached *domain.Paste) *domain.Paste {
	if len(cached.Tags) == 0 {
		return cached
	}
	tags, err := p.db.PasteTags(ctx, cached.ID)
	if err != nil {
		util.Warn().Err(err).Str("id", cached.ID).Msg("failed to refresh cached paste tags")
		return cached
	}
	out := *cached
	out.Tags = tags
	return &out
}

// Latest returns up to limit visible pastes, newest first.
func (p *Paste) Latest(ctx context.Context, limit int) ([]*domain.Paste, error) {
	return p.LatestPaged(ctx, 1, limit)
}

func (p *Paste) LatestPaged(ctx context.Context, page, limit int) ([]*domain.Paste, error) {
	if page <= 0 || limit <= 0 {
		return nil, domain.ErrInvalidPagination
	}
	pastes, err := p.db.LatestPastes(ctx, limit, (page-1)*limit, p.now())
	if err != nil {
		return nil, errors.Wrap(err, "latest pastes")
	}
	return pastes, nil
}

func (p *Paste) cache(ctx context.Context, paste *domain.Paste, now time.Time) {
	ttl := p.cfg.PasteCacheTTL
	if paste.ExpiresAt != nil {
		if left := paste.ExpiresAt.Sub(now); left < ttl {
			ttl = left
		}
	}
	if ttl <= 0 {
		return
	}
	p.lru.Set(paste, ttl, now)
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste, ttl); err != nil {
			util.Warn().Err(err).Str("id", paste.ID).Msg("failed to cache in Redis")
		}
	}
}
