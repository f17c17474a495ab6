// Package metrics exposes turn, backend and judge counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements arena.Recorder.
type Metrics struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	judgeVotes      *prometheus.CounterVec
	turns           *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		backendRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosseval_backend_requests_total",
				Help: "Upstream calls per backend, phase (answer or judge) and outcome.",
			},
			[]string{"backend", "phase", "outcome"},
		),
		backendLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crosseval_backend_request_duration_seconds",
				Help:    "Upstream call latency per backend and phase.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"backend", "phase"},
		),
		judgeVotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosseval_judge_votes_total",
				Help: "Judge votes per judge backend and outcome.",
			},
			[]string{"judge", "outcome"},
		),
		turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosseval_turns_total",
				Help: "Chat turns by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveBackendCall(backend, phase, outcome string, d time.Duration) {
	m.backendRequests.WithLabelValues(backend, phase, outcome).Inc()
	m.backendLatency.WithLabelValues(backend, phase).Observe(d.Seconds())
}

func (m *Metrics) ObserveJudgeVote(judge, outcome string) {
	m.judgeVotes.WithLabelValues(judge, outcome).Inc()
}

func (m *Metrics) ObserveTurn(result string) {
	m.turns.WithLabelValues(result).Inc()
}
