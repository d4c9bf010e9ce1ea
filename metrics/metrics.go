package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts how programs were obtained. Every instance owns its registry
// so that a run can write its own textfile.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheWrites   *prometheus.CounterVec
	BuildFailures prometheus.Counter
	BuildDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clbin_cache_hits_total",
			Help: "Programs created from a cached binary",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clbin_cache_misses_total",
			Help: "Programs compiled from source because no cache existed",
		}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clbin_cache_writes_total",
			Help: "Attempts to persist compiled binaries, by result",
		}, []string{"result"}),
		BuildFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clbin_build_failures_total",
			Help: "Source compilations rejected by the compiler",
		}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clbin_build_duration_seconds",
			Help:    "Duration of program creation, by origin (source or cache) and result",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		}, []string{"origin", "result"}),
	}
	m.registry.MustRegister(m.CacheHits, m.CacheMisses, m.CacheWrites, m.BuildFailures, m.BuildDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
