package attendance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Comparison outcomes recorded in faceattend_comparisons_total.
const (
	resultMatched   = "matched"
	resultUnmatched = "unmatched"
	resultNotFound  = "not_found"
	resultError     = "error"
)

// Metrics holds the workflow's Prometheus collectors.
type Metrics struct {
	registrations   prometheus.Counter
	comparisons     *prometheus.CounterVec
	uploadURLs      *prometheus.CounterVec
	compareDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faceattend_registrations_total",
			Help: "Users registered.",
		}),
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faceattend_comparisons_total",
			Help: "Face comparison requests by outcome.",
		}, []string{"result"}),
		uploadURLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faceattend_upload_urls_total",
			Help: "Pre-signed upload URLs requested by outcome.",
		}, []string{"result"}),
		compareDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceattend_comparison_duration_seconds",
			Help:    "Latency of calls to the face comparison service.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.registrations, m.comparisons, m.uploadURLs, m.compareDuration)
	return m
}

func (m *Metrics) comparison(result string) {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(result).Inc()
}

func (m *Metrics) compareLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.compareDuration.Observe(d.Seconds())
}

func (m *Metrics) registered() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) uploadURL(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.uploadURLs.WithLabelValues(resultError).Inc()
		return
	}
	m.uploadURLs.WithLabelValues("ok").Inc()
}
