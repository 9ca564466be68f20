package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/github"
	"github.com/dshills/ticketgate/internal/jira"
	"github.com/dshills/ticketgate/internal/metrics"
	"github.com/dshills/ticketgate/internal/providers"
	"github.com/dshills/ticketgate/internal/ticket"
)

const sampleDiff = `diff --git a/api/handler.go b/api/handler.go
--- a/api/handler.go
+++ b/api/handler.go
@@ -1,3 +1,4 @@
 package api
+// guard against nil user
`

func validEnv() map[string]string {
	return map[string]string{
		"GITHUB_TOKEN":           "gh-token",
		"JIRA_API_URL":           "https://acme.atlassian.net",
		"JIRA_USER_EMAIL":        "dev@example.com",
		"JIRA_API_TOKEN":         "jira-token",
		"AZURE_API_KEY":          "az-key",
		"AZURE_API_BASE":         "https://example.openai.azure.com",
		"AZURE_DEPLOYMENT_MODEL": "gpt-4o",
	}
}

type fakeHost struct {
	mu       sync.Mutex
	body     string
	err      error
	comments []string
}

func (h *fakeHost) GetPullRequest(_ context.Context, _ gate.Repo, n int) (gate.PullRequest, error) {
	if h.err != nil {
		return gate.PullRequest{}, h.err
	}
	return gate.PullRequest{Title: "Fix nil user", Body: h.body, URL: fmt.Sprintf("https://github.com/acme/api/pull/%d", n)}, nil
}

func (h *fakeHost) GetDiff(context.Context, gate.Repo, int) (string, error) {
	return sampleDiff, h.err
}

func (h *fakeHost) CreateComment(_ context.Context, _ gate.Repo, _ int, body string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.comments = append(h.comments, body)
	return nil
}

type fakeTickets struct{ err error }

func (f fakeTickets) GetTicket(_ context.Context, key string) (ticket.Content, error) {
	if f.err != nil {
		return ticket.Content{}, f.err
	}
	return ticket.Content{Key: key, Summary: "Nil user crash", Description: "Handler panics on nil user"}, nil
}

type fakeModel struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Complete(context.Context, providers.CompletionRequest) (providers.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return providers.CompletionResponse{}, m.err
	}
	if len(m.replies) == 0 {
		return providers.CompletionResponse{Content: `{"comments": []}`}, nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return providers.CompletionResponse{Content: r}, nil
}

type harness struct {
	app     *app
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	host    *fakeHost
	tickets fakeTickets
	model   *fakeModel
	out     string
}

func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	h := &harness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		host:   &fakeHost{body: "Fixes https://acme.atlassian.net/browse/ABC-12"},
		model:  &fakeModel{},
		out:    filepath.Join(t.TempDir(), "outcome.json"),
	}
	h.app = &app{
		stdout: h.stdout,
		stderr: h.stderr,
		env:    envconfig.MapLookuper(env),
		deps: func(context.Context, config.Config, *metrics.Recorder) (deps, error) {
			return deps{host: h.host, tickets: h.tickets, model: h.model, trackerURL: "https://acme.atlassian.net"}, nil
		},
		newModel: func(context.Context, config.Model) (providers.Completer, error) {
			return h.model, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.app.execute(context.Background(), args)
}

func (h *harness) outcome(t *testing.T) gate.Outcome {
	t.Helper()
	data, err := os.ReadFile(h.out)
	require.NoError(t, err)
	var o gate.Outcome
	require.NoError(t, json.Unmarshal(data, &o))
	return o
}

func TestVersion(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, ExitSuccess, h.run("version"))
	require.Contains(t, h.stdout.String(), "ticketgate version")
}

func TestRunPassed(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.replies = []string{"```json\n{\"score\": 91, \"comment\": \"Matches the ticket.\"}\n```"}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--format", "json", "--out", h.out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())

	o := h.outcome(t)
	require.Equal(t, gate.VerdictPassed, o.Verdict)
	require.Equal(t, 91, o.Match.Score)
	require.Equal(t, "ABC-12", o.Ticket.Key)
	require.Len(t, h.host.comments, 1)
	require.Contains(t, h.host.comments[0], "91%")
}

func TestRunBelowThreshold(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.replies = []string{`{"score": 79, "comment": "Partial."}`}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--format", "json", "--out", h.out)
	require.Equal(t, ExitGateFailed, code)
	require.Equal(t, gate.ReasonBelowThreshold, h.outcome(t).Reason)
}

func TestRunThresholdFlag(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.replies = []string{`{"score": 79, "comment": "Partial."}`}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--threshold", "75", "--format", "json", "--out", h.out)
	require.Equal(t, ExitSuccess, code)
	require.Equal(t, 75, h.outcome(t).Threshold)
}

func TestRunMissingTicket(t *testing.T) {
	h := newHarness(t, validEnv())
	h.host.body = "No link here"

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--format", "json", "--out", h.out)
	require.Equal(t, ExitGateFailed, code)
	require.Equal(t, gate.ReasonMissingTicket, h.outcome(t).Reason)
	require.Len(t, h.host.comments, 1)
}

func TestRunDryRunPostsNothing(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.replies = []string{`{"score": 95, "comment": "Good."}`}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--dry-run", "--no-review", "--format", "markdown", "--out", h.out)
	require.Equal(t, ExitSuccess, code)
	require.Empty(t, h.host.comments)

	report, err := os.ReadFile(h.out)
	require.NoError(t, err)
	require.Contains(t, string(report), "PASSED")
}

func TestRunModelAuthError(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.err = &providers.Error{Kind: providers.KindUnauthorized, Provider: "fake", StatusCode: http.StatusUnauthorized}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--format", "json", "--out", h.out)
	require.Equal(t, ExitAuthError, code)
}

func TestRunTrackerFailure(t *testing.T) {
	h := newHarness(t, validEnv())
	h.tickets = fakeTickets{err: &jira.FetchError{Key: "ABC-12", StatusCode: http.StatusNotFound, Body: "gone"}}

	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--format", "json", "--out", h.out)
	require.Equal(t, ExitRuntimeError, code)
	require.Empty(t, h.host.comments)
}

func TestRunInvalidConfig(t *testing.T) {
	h := newHarness(t, map[string]string{})
	code := h.run("run", "--repo", "acme/api", "--pr", "7", "--out", h.out)
	require.Equal(t, ExitUsageError, code)
	require.Contains(t, h.stderr.String(), "GITHUB_TOKEN")
}

func TestRunMissingFlags(t *testing.T) {
	h := newHarness(t, validEnv())
	require.Equal(t, ExitUsageError, h.run("run", "--repo", "acme/api"))
}

func TestRunBadRepo(t *testing.T) {
	h := newHarness(t, validEnv())
	require.Equal(t, ExitUsageError, h.run("run", "--repo", "acme", "--pr", "7"))
}

func TestJenkinsBranchBuildSkipped(t *testing.T) {
	env := validEnv()
	env["GIT_URL"] = "https://github.com/acme/api.git"
	h := newHarness(t, env)

	require.Equal(t, ExitSuccess, h.run("jenkins"))
	require.Contains(t, h.stderr.String(), "not a pull request build")
	require.Empty(t, h.host.comments)
}

func TestJenkinsPullRequest(t *testing.T) {
	env := validEnv()
	env["GIT_URL"] = "git@github.com:acme/api.git"
	env["CHANGE_ID"] = "7"
	h := newHarness(t, env)
	h.model.replies = []string{`{"score": 88, "comment": "Good."}`}

	code := h.run("jenkins", "--format", "json", "--out", h.out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	o := h.outcome(t)
	require.Equal(t, "acme/api", o.Repo)
	require.Equal(t, 7, o.PR)
}

func TestActionsEvent(t *testing.T) {
	eventPath := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(`{
  "action": "opened",
  "number": 3,
  "pull_request": {"number": 3},
  "repository": {"name": "api", "owner": {"login": "acme"}}
}`), 0o600))

	env := validEnv()
	env["GITHUB_REPOSITORY"] = "acme/api"
	env["GITHUB_EVENT_PATH"] = eventPath
	env["GITHUB_EVENT_NAME"] = "pull_request"
	h := newHarness(t, env)
	h.model.replies = []string{`{"score": 80, "comment": "Just enough."}`}

	code := h.run("actions", "--format", "json", "--out", h.out)
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	require.Equal(t, 3, h.outcome(t).PR)
}

func TestActionsNonPullRequestEventSkipped(t *testing.T) {
	env := validEnv()
	env["GITHUB_REPOSITORY"] = "acme/api"
	env["GITHUB_EVENT_PATH"] = "/nonexistent"
	env["GITHUB_EVENT_NAME"] = "push"
	h := newHarness(t, env)

	require.Equal(t, ExitSuccess, h.run("actions"))
	require.Contains(t, h.stderr.String(), "Skipping")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	h := newHarness(t, validEnv())
	require.Equal(t, ExitSuccess, h.run("config", "show", "--json"))

	out := h.stdout.String()
	require.NotContains(t, out, "gh-token")
	require.NotContains(t, out, "az-key")
	require.Contains(t, out, "********")
}

func TestConfigInitSetValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketgate.yaml")
	h := newHarness(t, validEnv())

	require.Equal(t, ExitSuccess, h.run("config", "init", path))
	require.Equal(t, ExitSuccess, h.run("--config", path, "config", "set", "threshold", "65"))

	cfg := config.Default()
	require.NoError(t, config.LoadFile(path, &cfg))
	require.Equal(t, 65, cfg.Gate.Threshold)

	require.Equal(t, ExitSuccess, h.run("--config", path, "config", "validate"))
	require.Contains(t, h.stdout.String(), "Configuration OK")

	require.Equal(t, ExitUsageError, h.run("--config", path, "config", "set", "nope", "1"))
}

func TestModelsList(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, ExitSuccess, h.run("models", "list"))
	for _, p := range providers.Names {
		require.Contains(t, h.stdout.String(), p)
	}
}

func TestModelsDoctor(t *testing.T) {
	h := newHarness(t, validEnv())
	h.model.replies = []string{"ok"}
	require.Equal(t, ExitSuccess, h.run("models", "doctor"))
	require.Contains(t, h.stdout.String(), "OK: fake")

	h = newHarness(t, validEnv())
	h.model.err = &providers.Error{Kind: providers.KindUnauthorized, Provider: "fake", StatusCode: http.StatusForbidden}
	require.Equal(t, ExitAuthError, h.run("models", "doctor"))
}

func TestExitCodeFor(t *testing.T) {
	passed := &gate.Outcome{Verdict: gate.VerdictPassed}
	failed := &gate.Outcome{Verdict: gate.VerdictFailed}

	tests := []struct {
		name string
		out  *gate.Outcome
		err  error
		want int
	}{
		{"passed", passed, nil, ExitSuccess},
		{"below threshold", failed, nil, ExitGateFailed},
		{"missing ticket", failed, ticket.ErrMissingReference, ExitGateFailed},
		{"github auth", failed, fmt.Errorf("fetching: %w", github.ErrUnauthorized), ExitAuthError},
		{"model auth", failed, fmt.Errorf("similarity: %w", &providers.Error{Kind: providers.KindUnauthorized}), ExitAuthError},
		{"jira auth", failed, &jira.FetchError{StatusCode: http.StatusUnauthorized}, ExitAuthError},
		{"jira missing", failed, &jira.FetchError{StatusCode: http.StatusNotFound}, ExitRuntimeError},
		{"rate limited", failed, &providers.Error{Kind: providers.KindRateLimited}, ExitRuntimeError},
		{"other", failed, errors.New("boom"), ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, exitCodeFor(tt.out, tt.err))
		})
	}
}

func TestSplitComma(t *testing.T) {
	require.Equal(t, []string{"a", "b/**"}, splitComma(" a, ,b/** ,"))
	require.Nil(t, splitComma(""))
}
