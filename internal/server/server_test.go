package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/metrics"
)

const secret = "s3cret"

type fakeRunner struct {
	mu       sync.Mutex
	triggers []gate.Trigger
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, t gate.Trigger) (*gate.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
	_, f.deadline = ctx.Deadline()
	return &gate.Outcome{Verdict: gate.VerdictPassed}, nil
}

func (f *fakeRunner) calls() []gate.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gate.Trigger(nil), f.triggers...)
}

func prEvent(action string) []byte {
	return []byte(`{
  "action": "` + action + `",
  "number": 42,
  "pull_request": {"number": 42, "title": "Fix"},
  "repository": {"name": "api", "full_name": "acme/api", "owner": {"login": "acme"}}
}`)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func post(t *testing.T, h http.Handler, event string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "d-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDispatchesGatedAction(t *testing.T) {
	runner := &fakeRunner{}
	s := New(config.Server{WebhookSecret: secret, RunTimeout: time.Minute}, runner, nil)

	body := prEvent("opened")
	rec := post(t, s.Handler(), "pull_request", body, sign(body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	s.Wait()
	calls := runner.calls()
	require.Len(t, calls, 1)
	require.Equal(t, 42, calls[0].PRNumber())
	require.Equal(t, gate.Repo{Owner: "acme", Name: "api"}, calls[0].RepoCoordinates())
	require.True(t, runner.deadline, "run timeout should bound the run")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	runner := &fakeRunner{}
	s := New(config.Server{WebhookSecret: secret}, runner, nil)

	rec := post(t, s.Handler(), "pull_request", prEvent("opened"), "sha256=deadbeef")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, s.Handler(), "pull_request", prEvent("opened"), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	s.Wait()
	require.Empty(t, runner.calls())
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	runner := &fakeRunner{}
	s := New(config.Server{}, runner, nil)

	closed := prEvent("closed")
	require.Equal(t, http.StatusNoContent, post(t, s.Handler(), "pull_request", closed, "").Code)

	ping := []byte(`{"zen": "Keep it logically awesome."}`)
	require.Equal(t, http.StatusNoContent, post(t, s.Handler(), "ping", ping, "").Code)

	s.Wait()
	require.Empty(t, runner.calls())
}

func TestWebhookBadPayload(t *testing.T) {
	s := New(config.Server{}, &fakeRunner{}, nil)
	rec := post(t, s.Handler(), "pull_request", []byte(`{not json`), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	rec.ObserveRun(&gate.Outcome{Verdict: gate.VerdictPassed, Stage: gate.StageReported})
	s := New(config.Server{}, &fakeRunner{}, reg)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ticketgate_runs_total{reason="none",verdict="passed"} 1`)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(config.Server{}, &fakeRunner{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
