// Package metrics holds the Prometheus collectors for the assistant
// pipeline. Collectors register with the default registry once per process
// and are served on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the chat pipeline.
type Metrics struct {
	// Document content
	ContentFetchTotal *prometheus.CounterVec

	// Conversation history
	HistorySavesTotal  *prometheus.CounterVec
	HistoryLoadsTotal  *prometheus.CounterVec
	HistorySwitchTotal prometheus.Counter

	// Chat turns
	ChatRequestsTotal *prometheus.CounterVec
	ChatDuration      *prometheus.HistogramVec
	ChatInFlight      prometheus.Gauge
}

// Default returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - ragassistant_content_fetch_total{op,result} - document content fetches
//   - ragassistant_history_saves_total{result} - history blob writes
//   - ragassistant_history_loads_total{result} - history blob reads
//   - ragassistant_history_switches_total - document switches applied
//   - ragassistant_chat_requests_total{mode,result} - chat turns
//   - ragassistant_chat_duration_seconds{mode} - model round-trip time
//   - ragassistant_chat_in_flight - chat turns awaiting the model
func Default() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ContentFetchTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ragassistant_content_fetch_total",
					Help: "Total number of document content fetches",
				},
				[]string{"op", "result"}, // op: "document", "list", "subdocument"; result: "ok", "empty", "error"
			),
			HistorySavesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ragassistant_history_saves_total",
					Help: "Total number of conversation history saves",
				},
				[]string{"result"},
			),
			HistoryLoadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ragassistant_history_loads_total",
					Help: "Total number of conversation history loads",
				},
				[]string{"result"}, // "ok", "missing", "error"
			),
			HistorySwitchTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ragassistant_history_switches_total",
					Help: "Total number of document switches applied to the history",
				},
			),
			ChatRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ragassistant_chat_requests_total",
					Help: "Total number of chat turns",
				},
				[]string{"mode", "result"},
			),
			ChatDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ragassistant_chat_duration_seconds",
					Help:    "Model round-trip time for chat turns",
					Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
				},
				[]string{"mode"},
			),
			ChatInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ragassistant_chat_in_flight",
					Help: "Chat turns currently awaiting the model",
				},
			),
		}
	})
	return globalMetrics
}
