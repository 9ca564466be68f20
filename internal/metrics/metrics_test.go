package metrics

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/providers"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveRun(&gate.Outcome{
		Stage:   gate.StageReported,
		Verdict: gate.VerdictPassed,
		Match:   gate.MatchResult{Score: 92},
		Posted:  true,
		Timing:  gate.Timing{TotalMs: 1500},
	})
	r.ObserveRun(&gate.Outcome{
		Stage:   gate.StageStart,
		Verdict: gate.VerdictFailed,
		Reason:  gate.ReasonMissingTicket,
		DryRun:  true,
	})
	r.ObserveRun(nil)

	require.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("passed", "none")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("failed", "missing_ticket_reference")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.posted.WithLabelValues("posted")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.posted.WithLabelValues("dry_run")), 0)

	// Only the scored run lands in the score histogram.
	var m dto.Metric
	require.NoError(t, r.scores.Write(&m))
	require.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())

	expected := `
# HELP ticketgate_runs_total Gate runs by verdict and reason
# TYPE ticketgate_runs_total counter
ticketgate_runs_total{reason="missing_ticket_reference",verdict="failed"} 1
ticketgate_runs_total{reason="none",verdict="passed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ticketgate_runs_total"))
}

func TestParseFailureNotScored(t *testing.T) {
	r := New(nil)
	r.ObserveRun(&gate.Outcome{
		Stage:       gate.StageReported,
		Verdict:     gate.VerdictFailed,
		Reason:      gate.ReasonBelowThreshold,
		ParseFailed: true,
	})
	r.ObserveRun(&gate.Outcome{
		Stage:   gate.StageReported,
		Verdict: gate.VerdictFailed,
		Reason:  gate.ReasonBelowThreshold,
		Match:   gate.MatchResult{Score: 40},
	})

	var m dto.Metric
	require.NoError(t, r.scores.Write(&m))
	require.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	require.InDelta(t, 40, m.GetHistogram().GetSampleSum(), 0)
}

func TestObserveModelCall(t *testing.T) {
	r := New(nil)

	r.ObserveModelCall("similarity", "anthropic", 0.4, nil)
	r.ObserveModelCall("similarity", "anthropic", 1.2, &providers.Error{Kind: providers.KindRateLimited, Provider: "anthropic", StatusCode: http.StatusTooManyRequests})
	r.ObserveModelCall("review", "openai", 0.1, &providers.Error{Kind: providers.KindUnauthorized, Provider: "openai", StatusCode: http.StatusUnauthorized})
	r.ObserveModelCall("review", "openai", 0.1, errors.New("boom"))

	require.Equal(t, 4, testutil.CollectAndCount(r.modelCalls))
}

func TestObserveRetry(t *testing.T) {
	r := New(nil)
	policy := providers.RetryPolicy{OnRetry: r.ObserveRetry}

	policy.OnRetry(1, 2*time.Second, errors.New("rate limited"))
	policy.OnRetry(2, 4*time.Second, errors.New("rate limited"))

	require.InDelta(t, 2, testutil.ToFloat64(r.retries), 0)
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
