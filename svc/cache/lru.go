package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"snipbin/pkg/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

type LRU struct {
	c  *lru.Cache[string, item]
	mu sync.Mutex
}
type item struct {
	paste *domain.Paste
	exp   time.Time
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

// Get returns the cached paste for id, or nil when it is missing, stale, or
// expired at now.
func (l *LRU) Get(ctx context.Context, id string, now time.Time) *domain.Paste {
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.c.Get(id)
	if !ok {
		return nil
	}
	if !now.Before(it.exp) || it.paste.Expired(now) {
		l.c.Remove(id)
		return nil
	}
	return it.paste
}

// Set caches p for ttl, never past its own expiry.
func (l *LRU) Set(p *domain.Paste, ttl time.Duration, now time.Time) {
	exp := now.Add(ttl)
	if p.ExpiresAt != nil && p.ExpiresAt.Before(exp) {
		exp = *p.ExpiresAt
	}
	if !now.Before(exp) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Add(p.ID, item{
		paste: p,
		exp:   exp,
	})
}
func (l *LRU) Delete(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Remove(id)
}

func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Len()
}
