package lim

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"snipbin/cfg"
	"snipbin/metrics"
	"snipbin/svc/db"
	"snipbin/svc/util"

	"golang.org/x/time/rate"
)

const (
	maxLimiters     = 10000
	cleanupInterval = 5 * time.Minute
	limiterTTL      = 30 * time.Minute
	redisBudget     = 100 * time.Millisecond
)

// Limiter enforces a global per-endpoint budget through Redis when it is
// available and falls back to per-client token buckets otherwise.
type Limiter struct {
	rdb               *db.Redis
	trustedProxies    []string
	localLimiters     map[string]*limiterEntry
	mu                sync.Mutex
	conservativeLimit int
	burstLimit        int
	globalRPM         int
	quit              chan struct{}
	stopOnce          sync.Once
}
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// New expects trustedProxies to have passed cfg.Validate.
func New(c cfg.RateLimitCfg, rdb *db.Redis, trustedProxies []string) *Limiter {
	l := &Limiter{
		rdb:               rdb,
		trustedProxies:    trustedProxies,
		localLimiters:     make(map[string]*limiterEntry),
		conservativeLimit: max(c.ConservativeLimit, 1),
		burstLimit:        max(c.Burst, 1),
		globalRPM:         max(c.RPM, 1),
		quit:              make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictExpiredLimiters(time.Now())
		case <-l.quit:
			return
		}
	}
}
func (l *Limiter) evictExpiredLimiters(now time.Time) int {
	l.mu.Lock()
	evicted := 0
	for key, entry := range l.localLimiters {
		if now.Sub(entry.lastAccess) > limiterTTL {
			delete(l.localLimiters, key)
			evicted++
		}
	}
	remaining := len(l.localLimiters)
	l.mu.Unlock()
	if evicted > 0 {
		util.Debug().Int("evicted", evicted).Int("remaining", remaining).Msg("rate limiter cleanup")
	}
	return evicted
}
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

func (l *Limiter) CheckLimit(r *http.Request, endpoint string) *RateLimitResult {
	ip := GetRealIP(r, l.trustedProxies)
	res := l.check(r.Context(), ip, endpoint)
	if !res.Allowed {
		metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
	}
	return res
}

func (l *Limiter) check(ctx context.Context, ip, endpoint string) *RateLimitResult {
	now := time.Now()
	if l.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, redisBudget)
		defer cancel()
		usage, err := l.rdb.RateLimit(ctx, "global:"+endpoint, l.globalRPM, time.Minute)
		if err == nil {
			return &RateLimitResult{
				Allowed:   usage <= l.globalRPM,
				Limit:     l.globalRPM,
				Remaining: max(l.globalRPM-usage, 0),
				Reset:     now.Add(time.Minute),
			}
		}
		util.Warn().Err(err).Msg("redis rate limit unavailable, using local fallback")
	}
	return l.checkLocal(ip, endpoint, now)
}

func (l *Limiter) checkLocal(ip, endpoint string, now time.Time) *RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := l.conservativeLimit
	key := ip + ":" + endpoint
	entry, exists := l.localLimiters[key]
	if !exists {
		if len(l.localLimiters) >= maxLimiters {
			util.Warn().
				Int("limiters", len(l.localLimiters)).
				Str("ip", util.RedactIP(ip)).
				Msg("rate limiter at capacity, rejecting request")
			return &RateLimitResult{Allowed: false, Limit: limit, Reset: now.Add(time.Minute)}
		}
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(limit)/60.0), min(l.burstLimit, limit)),
		}
		l.localLimiters[key] = entry
	}
	entry.lastAccess = now
	allowed := entry.limiter.AllowN(now, 1)
	return &RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(int(entry.limiter.TokensAt(now)), 0),
		Reset:     now.Add(time.Minute),
	}
}

// GetRealIP walks X-Forwarded-For from the right, skipping trusted proxies,
// and only when the direct peer is itself trusted.
func GetRealIP(r *http.Request, trustedProxies []string) string {
	remoteIP := stripPort(r.RemoteAddr)
	if len(trustedProxies) == 0 || !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}
	const maxIPsToParse = 100
	parts := strings.Split(xff, ",")
	parsed := 0
	for i := len(parts) - 1; i >= 0 && parsed < maxIPsToParse; i-- {
		ipStr := strings.TrimSpace(parts[i])
		if ipStr == "" {
			continue
		}
		parsed++
		if net.ParseIP(ipStr) == nil {
			util.Warn().Str("ip", ipStr).Msg("invalid IP in X-Forwarded-For, skipping")
			continue
		}
		if !isTrustedProxy(ipStr, trustedProxies) {
			return ipStr
		}
	}
	return remoteIP
}
func isTrustedProxy(ip string, trustedProxies []string) bool {
	parsedIP := net.ParseIP(ip)
	for _, proxy := range trustedProxies {
		if ip == proxy {
			return true
		}
		if strings.Contains(proxy, "/") && parsedIP != nil {
			if _, subnet, err := net.ParseCIDR(proxy); err == nil && subnet.Contains(parsedIP) {
				return true
			}
		}
	}
	return false
}
func stripPort(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
