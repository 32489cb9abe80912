package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_paste_retrieved_total",
		Help: "no. of pastes retrieved",
	})
	IDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_id_collisions_total",
		Help: "no. of paste id collisions retried on insert",
	})
	Searches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_searches_total",
		Help: "no. of paginated searches executed",
	})
	Suggestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipbin_suggestions_total",
			Help: "no. of suggestion lookups",
		},
		[]string{"kind"},
	)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipbin_cache_hits_total",
			Help: "no. of cache hits",
		},
		[]string{"layer"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipbin_cache_misses_total",
			Help: "no. of cache misses",
		},
		[]string{"layer"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snipbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipbin_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
	PruneCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_prune_cycles_total",
		Help: "no. of cleanup worker cycles",
	})
	PastesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_pastes_pruned_total",
		Help: "no. of expired pastes physically deleted",
	})
)
