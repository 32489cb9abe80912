package svc

import (
	"context"
	"time"

	"snipbin/metrics"
	"snipbin/svc/util"

	"github.com/pkg/errors"
)

// StartCleaner periodically deletes expired pastes from the store. Reads
// already hide them; this only reclaims space. It may be started once.
func (p *Paste) StartCleaner(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	if p.cleanerRunning.Load() {
		return errors.New("cleaner already running")
	}
	started := false
	p.cleanerOnce.Do(func() {
		started = true
		p.cleanerRunning.Store(true)
		go p.runCleaner(ctx, interval)
	})
	if !started {
		return errors.New("cleaner already started")
	}
	return nil
}

func (p *Paste) runCleaner(ctx context.Context, interval time.Duration) {
	defer p.cleanerRunning.Store(false)
	cleanupRequestID := util.RequestIDFrom("")
	ctx = util.SetRequestID(ctx, cleanupRequestID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().
		Str("request_id", cleanupRequestID).
		Dur("interval", interval).
		Msg("cleanup worker started")
	for {
		select {
		case <-ctx.Done():
			util.Info().
				Str("request_id", cleanupRequestID).
				Msg("cleanup worker shutting down")
			return
		case <-ticker.C:
			if _, err := p.Prune(ctx); err != nil && ctx.Err() == nil {
				util.Error().
					Err(err).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("cleanup failed")
			}
		}
	}
}

// Prune runs one cleanup cycle and returns how many pastes were deleted.
func (p *Paste) Prune(ctx context.Context) (int, error) {
	metrics.PruneCycles.Inc()
	deleted, err := p.db.CleanupExpired(ctx, p.now())
	if deleted > 0 {
		metrics.PastesPruned.Add(float64(deleted))
		util.Info().
			Int("deleted", deleted).
			Str("request_id", util.GetRequestID(ctx)).
			Msg("cleanup completed")
	}
	return deleted, err
}
