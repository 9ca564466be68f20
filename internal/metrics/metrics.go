// Package metrics exposes Prometheus collectors for gate runs and model calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/providers"
)

// Recorder implements gate.Recorder on Prometheus collectors.
type Recorder struct {
	runs       *prometheus.CounterVec
	scores     prometheus.Histogram
	runSeconds prometheus.Histogram
	modelCalls *prometheus.HistogramVec
	retries    prometheus.Counter
	posted     *prometheus.CounterVec
}

var _ gate.Recorder = (*Recorder)(nil)

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketgate_runs_total",
				Help: "Gate runs by verdict and reason",
			},
			[]string{"verdict", "reason"},
		),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketgate_similarity_score",
			Help:    "Similarity scores returned by the model",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		runSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketgate_run_duration_seconds",
			Help:    "Wall time of a gate run",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		modelCalls: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketgate_model_call_duration_seconds",
				Help:    "Completion call latency by purpose, provider and outcome",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"purpose", "provider", "outcome"},
		),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "ticketgate_model_retries_total",
			Help: "Completion attempts retried after rate limiting",
		}),
		posted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketgate_comments_total",
				Help: "Pull request comments by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRun records the verdict, score and duration of a finished run.
func (r *Recorder) ObserveRun(o *gate.Outcome) {
	if o == nil {
		return
	}
	reason := string(o.Reason)
	if reason == "" {
		reason = "none"
	}
	r.runs.WithLabelValues(string(o.Verdict), reason).Inc()
	r.runSeconds.Observe(float64(o.Timing.TotalMs) / 1000)

	switch o.Stage {
	case gate.StageScored, gate.StageReviewed, gate.StageReported:
		if !o.ParseFailed {
			r.scores.Observe(float64(o.Match.Score))
		}
	}

	switch {
	case o.DryRun:
		r.posted.WithLabelValues("dry_run").Inc()
	case o.Posted:
		r.posted.WithLabelValues("posted").Inc()
	}
}

// ObserveModelCall records one completion call, retries included.
func (r *Recorder) ObserveModelCall(purpose, provider string, seconds float64, err error) {
	r.modelCalls.WithLabelValues(purpose, provider, outcomeOf(err)).Observe(seconds)
}

// ObserveRetry counts one retried attempt. Its signature matches
// providers.RetryPolicy.OnRetry.
func (r *Recorder) ObserveRetry(_ int, _ time.Duration, _ error) {
	r.retries.Inc()
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	kind, ok := providers.KindOf(err)
	if !ok {
		return "error"
	}
	switch kind {
	case providers.KindRateLimited:
		return "rate_limited"
	case providers.KindUnauthorized:
		return "unauthorized"
	case providers.KindUnavailable:
		return "unavailable"
	default:
		return "error"
	}
}
