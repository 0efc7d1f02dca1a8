package server

import "github.com/prometheus/client_golang/prometheus"

// metricsCollector wraps the small set of Prometheus gauges/counters the
// daemon exposes. When disabled every method is a no-op so call sites
// never need to check a nil pointer or an enabled flag themselves.
type metricsCollector struct {
	enabled bool

	jobsSubmitted    *prometheus.CounterVec
	jobsCompleted    *prometheus.CounterVec
	jobsFailed       *prometheus.CounterVec
	queuedJobs       *prometheus.GaugeVec
	connectedConns   prometheus.Gauge
	connectedWorkers prometheus.Gauge
}

func newMetricsCollector(enabled bool) *metricsCollector {
	m := &metricsCollector{enabled: enabled}
	if !enabled {
		return m
	}
	m.jobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "jobs_submitted_total",
		Help:      "Jobs submitted, by function.",
	}, []string{"function"})
	m.jobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "jobs_completed_total",
		Help:      "Jobs completed, by function.",
	}, []string{"function"})
	m.jobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gearhulk",
		Name:      "jobs_failed_total",
		Help:      "Jobs failed, by function.",
	}, []string{"function"})
	m.queuedJobs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "jobs_queued",
		Help:      "Jobs currently queued, by function.",
	}, []string{"function"})
	m.connectedConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "connections",
		Help:      "Currently open connections.",
	})
	m.connectedWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gearhulk",
		Name:      "workers",
		Help:      "Currently registered worker capabilities.",
	})
	prometheus.MustRegister(m.jobsSubmitted, m.jobsCompleted, m.jobsFailed,
		m.queuedJobs, m.connectedConns, m.connectedWorkers)
	return m
}

func (m *metricsCollector) submitted(fn string) {
	if m.enabled {
		m.jobsSubmitted.WithLabelValues(fn).Inc()
	}
}

func (m *metricsCollector) completed(fn string) {
	if m.enabled {
		m.jobsCompleted.WithLabelValues(fn).Inc()
	}
}

func (m *metricsCollector) failed(fn string) {
	if m.enabled {
		m.jobsFailed.WithLabelValues(fn).Inc()
	}
}

func (m *metricsCollector) setQueued(fn string, n int) {
	if m.enabled {
		m.queuedJobs.WithLabelValues(fn).Set(float64(n))
	}
}

func (m *metricsCollector) setConnections(n int) {
	if m.enabled {
		m.connectedConns.Set(float64(n))
	}
}

func (m *metricsCollector) setWorkers(n int) {
	if m.enabled {
		m.connectedWorkers.Set(float64(n))
	}
}
