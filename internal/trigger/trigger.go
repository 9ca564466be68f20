package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v84/github"
	"github.com/sethvargo/go-envconfig"

	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/github"
)

// ErrNotPullRequest means the build or event is not about a pull request.
var ErrNotPullRequest = errors.New("not a pull request")

// Source names where a trigger came from.
type Source string

const (
	SourceManual  Source = "manual"
	SourceActions Source = "actions"
	SourceJenkins Source = "jenkins"
	SourceWebhook Source = "webhook"
)

// PR is a resolved trigger.
type PR struct {
	Repo   gate.Repo
	Number int
	Source Source
	// Action is the webhook or Actions event action, when known.
	Action string
}

var _ gate.Trigger = PR{}

func (p PR) PRNumber() int              { return p.Number }
func (p PR) RepoCoordinates() gate.Repo { return p.Repo }

func (p PR) String() string {
	return fmt.Sprintf("%s#%d (%s)", p.Repo, p.Number, p.Source)
}

// NewManual builds a trigger from an "owner/name" repository and PR number.
func NewManual(repo string, number int) (PR, error) {
	r, err := gate.ParseRepo(repo)
	if err != nil {
		return PR{}, err
	}
	if number <= 0 {
		return PR{}, fmt.Errorf("invalid PR number %d", number)
	}
	return PR{Repo: r, Number: number, Source: SourceManual}, nil
}

type actionsEnv struct {
	Repository string `env:"GITHUB_REPOSITORY, required"`
	EventName  string `env:"GITHUB_EVENT_NAME"`
	EventPath  string `env:"GITHUB_EVENT_PATH, required"`
}

// FromActions reads the GitHub Actions environment through l.
func FromActions(ctx context.Context, l envconfig.Lookuper) (PR, error) {
	var env actionsEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: l}); err != nil {
		return PR{}, fmt.Errorf("reading Actions environment: %w", err)
	}
	if env.EventName != "" && env.EventName != "pull_request" && env.EventName != "pull_request_target" {
		return PR{}, fmt.Errorf("%w: event %q", ErrNotPullRequest, env.EventName)
	}

	data, err := os.ReadFile(env.EventPath)
	if err != nil {
		return PR{}, fmt.Errorf("reading event file: %w", err)
	}
	var ev gh.PullRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return PR{}, fmt.Errorf("parsing event file: %w", err)
	}

	pr, err := FromPullRequestEvent(&ev)
	if err != nil {
		return PR{}, err
	}
	if pr.Repo == (gate.Repo{}) {
		if pr.Repo, err = gate.ParseRepo(env.Repository); err != nil {
			return PR{}, err
		}
	}
	pr.Source = SourceActions
	return pr, nil
}

type jenkinsEnv struct {
	GitURL   string `env:"GIT_URL, required"`
	ChangeID string `env:"CHANGE_ID"`
}

// FromJenkins reads a Jenkins multibranch build environment through l. A
// branch build without CHANGE_ID returns ErrNotPullRequest.
func FromJenkins(ctx context.Context, l envconfig.Lookuper) (PR, error) {
	var env jenkinsEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: l}); err != nil {
		return PR{}, fmt.Errorf("reading Jenkins environment: %w", err)
	}
	if strings.TrimSpace(env.ChangeID) == "" {
		return PR{}, fmt.Errorf("%w: CHANGE_ID is not set", ErrNotPullRequest)
	}
	number, err := strconv.Atoi(strings.TrimSpace(env.ChangeID))
	if err != nil || number <= 0 {
		return PR{}, fmt.Errorf("invalid CHANGE_ID %q", env.ChangeID)
	}
	repo, err := github.ParseRemoteURL(env.GitURL)
	if err != nil {
		return PR{}, err
	}
	return PR{Repo: repo, Number: number, Source: SourceJenkins}, nil
}

// FromPullRequestEvent converts a pull_request webhook payload.
func FromPullRequestEvent(ev *gh.PullRequestEvent) (PR, error) {
	if ev == nil || ev.PullRequest == nil {
		return PR{}, ErrNotPullRequest
	}
	number := ev.GetNumber()
	if number == 0 {
		number = ev.GetPullRequest().GetNumber()
	}
	if number <= 0 {
		return PR{}, fmt.Errorf("%w: event has no PR number", ErrNotPullRequest)
	}

	pr := PR{Number: number, Source: SourceWebhook, Action: ev.GetAction()}
	if r := ev.GetRepo(); r != nil && r.GetOwner().GetLogin() != "" && r.GetName() != "" {
		pr.Repo = gate.Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()}
	} else if full := ev.GetRepo().GetFullName(); full != "" {
		if repo, err := gate.ParseRepo(full); err == nil {
			pr.Repo = repo
		}
	}
	return pr, nil
}

// Gated reports whether a webhook action should start a run.
func Gated(action string) bool {
	switch action {
	case "opened", "reopened", "synchronize", "edited", "ready_for_review":
		return true
	default:
		return false
	}
}
