package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the chat and lead flows.
type PipelineMetrics struct {
	chatTotal     *prometheus.CounterVec
	chatLatency   *prometheus.HistogramVec
	fallbackTotal *prometheus.CounterVec
	upsertTotal   *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		chatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drivebot",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total chat requests by serving provider and outcome",
		}, []string{"provider", "status"}),
		chatLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drivebot",
			Subsystem: "chat",
			Name:      "request_latency_seconds",
			Help:      "Latency of chat request handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drivebot",
			Subsystem: "chat",
			Name:      "provider_fallback_total",
			Help:      "Chat completions that fell through to a lower-priority provider",
		}, []string{"provider"}),
		upsertTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drivebot",
			Subsystem: "leads",
			Name:      "upsert_total",
			Help:      "Lead upserts to the external store",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTotal, m.chatLatency, m.fallbackTotal, m.upsertTotal)
	return m
}

func (m *PipelineMetrics) ObserveChat(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	m.chatTotal.WithLabelValues(provider, status).Inc()
	m.chatLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *PipelineMetrics) ObserveFallback(provider string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(provider).Inc()
}

func (m *PipelineMetrics) ObserveUpsert(status string) {
	if m == nil {
		return
	}
	m.upsertTotal.WithLabelValues(status).Inc()
}
