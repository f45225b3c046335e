// Package metrics собирает счётчики Prometheus для загрузки моделей, мастеров и сессий.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "property_viewer"

// Metrics держит собственный реестр, чтобы тесты могли создавать независимые экземпляры.
type Metrics struct {
	registry *prometheus.Registry

	AssetLoads         *prometheus.CounterVec
	AssetLoadDuration  prometheus.Histogram
	MasterLoads        *prometheus.CounterVec
	MasterLoadDuration prometheus.Histogram
	SessionClones      prometheus.Counter
	SessionCloneTime   prometheus.Histogram
	LiveSessions       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AssetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_loads_total",
			Help:      "Furniture asset load attempts by result.",
		}, []string{"result"}),
		AssetLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_load_duration_seconds",
			Help:      "Time spent fetching and normalizing one asset.",
			Buckets:   prometheus.DefBuckets,
		}),
		MasterLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "master_loads_total",
			Help:      "Master layout hydrations by result.",
		}, []string{"result"}),
		MasterLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "master_load_duration_seconds",
			Help:      "Time from storage read to master registration.",
			Buckets:   prometheus.DefBuckets,
		}),
		SessionClones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_clones_total",
			Help:      "Session clones produced from registered masters.",
		}),
		SessionCloneTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_clone_duration_seconds",
			Help:      "Time spent cloning a master into a session.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently open.",
		}),
	}
	m.registry.MustRegister(
		m.AssetLoads,
		m.AssetLoadDuration,
		m.MasterLoads,
		m.MasterLoadDuration,
		m.SessionClones,
		m.SessionCloneTime,
		m.LiveSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler отдаёт метрики в текстовом формате.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAsset(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.AssetLoads.WithLabelValues(result(ok)).Inc()
	m.AssetLoadDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveMaster(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.MasterLoads.WithLabelValues(result(ok)).Inc()
	if ok {
		m.MasterLoadDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveClone(d time.Duration) {
	if m == nil {
		return
	}
	m.SessionClones.Inc()
	m.SessionCloneTime.Observe(d.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.LiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.LiveSessions.Dec()
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
