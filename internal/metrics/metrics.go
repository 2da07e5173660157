// Package metrics exposes Prometheus instrumentation for redirects, hit
// counting and shortcode writes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcomes.
const (
	OutcomeRedirect = "redirect"
	OutcomeFallback = "fallback"
	OutcomeNotFound = "not_found"
	OutcomePreview  = "preview"
)

// Hit results.
const (
	HitOK       = "ok"
	HitFailed   = "failed"
	HitRejected = "rejected"
)

var (
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petit_redirects_total",
			Help: "Total number of resolved redirect requests by outcome",
		},
		[]string{"outcome"},
	)

	HitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petit_hits_total",
			Help: "Total number of access count increments by result",
		},
		[]string{"result"},
	)

	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petit_shortcode_writes_total",
			Help: "Total number of shortcode writes by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// RecordRedirect counts one resolved redirect request.
func RecordRedirect(outcome string) {
	RedirectsTotal.WithLabelValues(outcome).Inc()
}

// RecordHit counts one attempted access count increment.
func RecordHit(result string) {
	HitsTotal.WithLabelValues(result).Inc()
}

// RecordWrite counts one save, update or destroy. A nil err is counted as ok.
func RecordWrite(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	WritesTotal.WithLabelValues(operation, result).Inc()
}
