package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/valuecache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evicts     *prometheus.CounterVec
	flushed    prometheus.Counter
	flushFails prometheus.Counter
	resident   prometheus.Gauge
	dirty      prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:   counter("hits_total", "Memory-tier hits"),
		misses: counter("misses_total", "Memory-tier misses"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Evictions by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		flushed:    counter("flushed_total", "Dirty entries persisted by bulk flushes"),
		flushFails: counter("flush_failures_total", "Dirty entries a bulk flush failed to persist"),
		resident:   gauge("resident_entries", "Number of resident entries"),
		dirty:      gauge("dirty_entries", "Number of resident entries not yet persisted"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.flushed, a.flushFails, a.resident, a.dirty)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with an outcome label.
func (a *Adapter) Evict(o cache.EvictOutcome) {
	a.evicts.WithLabelValues(o.String()).Inc()
}

// Flush adds one bulk flush's item outcomes.
func (a *Adapter) Flush(persisted, failed int) {
	a.flushed.Add(float64(persisted))
	a.flushFails.Add(float64(failed))
}

// Size updates gauges for resident and dirty entries.
func (a *Adapter) Size(resident, dirty int) {
	a.resident.Set(float64(resident))
	a.dirty.Set(float64(dirty))
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
