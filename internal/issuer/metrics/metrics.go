package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts allow-list lookups and changes.
type Metrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheErrors      prometheus.Counter
	AllowlistChanges *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "certreg_issuer_cache_hits_total",
			Help: "Authorization lookups answered from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "certreg_issuer_cache_misses_total",
			Help: "Authorization lookups that fell through to the allow-list store",
		}),
		CacheErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "certreg_issuer_cache_errors_total",
			Help: "Cache operations that failed",
		}),
		AllowlistChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_issuer_allowlist_changes_total",
			Help: "Allow-list additions and removals",
		}, []string{"op"}),
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) IncCacheError() {
	if m != nil {
		m.CacheErrors.Inc()
	}
}

func (m *Metrics) IncChange(op string) {
	if m != nil {
		m.AllowlistChanges.WithLabelValues(op).Inc()
	}
}
