package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/github"
	"github.com/dshills/ticketgate/internal/jira"
	"github.com/dshills/ticketgate/internal/metrics"
	"github.com/dshills/ticketgate/internal/output"
	"github.com/dshills/ticketgate/internal/providers"
	"github.com/dshills/ticketgate/internal/ticket"
	"github.com/dshills/ticketgate/internal/trigger"
)

// deps are the collaborators a gate run needs.
type deps struct {
	host       gate.Host
	tickets    ticket.Repository
	model      providers.Completer
	trackerURL string
}

// depsFunc builds collaborators from config. Tests substitute fakes.
type depsFunc func(ctx context.Context, cfg config.Config, rec *metrics.Recorder) (deps, error)

func buildDeps(ctx context.Context, cfg config.Config, rec *metrics.Recorder) (deps, error) {
	host, err := github.NewClient(ctx, cfg.GitHub)
	if err != nil {
		return deps{}, fmt.Errorf("github client: %w", err)
	}
	tickets, err := jira.NewClient(cfg.Tracker)
	if err != nil {
		return deps{}, fmt.Errorf("jira client: %w", err)
	}
	model, err := providers.New(ctx, cfg.Model)
	if err != nil {
		return deps{}, fmt.Errorf("model provider: %w", err)
	}
	policy := providers.PolicyFromConfig(cfg.Retry)
	if rec != nil {
		policy.OnRetry = rec.ObserveRetry
	}
	return deps{
		host:       host,
		tickets:    tickets,
		model:      providers.WithRetry(model, policy),
		trackerURL: tickets.BaseURL(),
	}, nil
}

// newGate loads collaborators and assembles a Gate.
func (a *app) newGate(ctx context.Context, cfg config.Config, rec *metrics.Recorder) (*gate.Gate, error) {
	d, err := a.deps(ctx, cfg, rec)
	if err != nil {
		return nil, err
	}
	opts := []gate.Option{
		gate.WithTrackerURL(d.trackerURL),
		gate.WithMaxTokens(cfg.Model.MaxTokens),
	}
	if rec != nil {
		opts = append(opts, gate.WithRecorder(rec))
	}
	return gate.New(d.host, d.tickets, d.model, cfg.Gate, opts...), nil
}

// prepare loads and validates config and installs the logger.
func (a *app) prepare(ctx context.Context) (context.Context, config.Config, bool) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		a.exitCode = ExitUsageError
		return ctx, cfg, false
	}
	ctx = a.withLogger(ctx, cfg.Log)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "Error: invalid configuration:\n%v\n", err)
		a.exitCode = ExitUsageError
		return ctx, cfg, false
	}
	return ctx, cfg, true
}

// runGate executes one run for t and sets the exit code.
func (a *app) runGate(ctx context.Context, cfg config.Config, t trigger.PR) {
	g, err := a.newGate(ctx, cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		a.exitCode = ExitUsageError
		return
	}

	fmt.Fprintf(a.stderr, "Fetching PR #%d from %s...\n", t.Number, t.Repo)
	clog.FromContext(ctx).With("trigger", t.String()).Debug("Starting run")

	out, runErr := g.Run(ctx, t)
	if runErr != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", runErr)
	}
	if err := output.WriteOutcome(out, a.format, a.out); err != nil {
		fmt.Fprintf(a.stderr, "Error writing output: %v\n", err)
		a.exitCode = ExitRuntimeError
		return
	}
	a.exitCode = exitCodeFor(out, runErr)
}

// exitCodeFor maps a run result to the process exit code.
func exitCodeFor(out *gate.Outcome, err error) int {
	var fetchErr *jira.FetchError
	switch {
	case err == nil && out.Passed():
		return ExitSuccess
	case err == nil:
		return ExitGateFailed
	case errors.Is(err, ticket.ErrMissingReference):
		return ExitGateFailed
	case providers.IsAuthError(err), errors.Is(err, github.ErrUnauthorized):
		return ExitAuthError
	case errors.As(err, &fetchErr) && (fetchErr.StatusCode == 401 || fetchErr.StatusCode == 403):
		return ExitAuthError
	default:
		return ExitRuntimeError
	}
}

func (a *app) runCmd() *cobra.Command {
	var (
		repo   string
		number int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate one pull request by repository and number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := trigger.NewManual(repo, number)
			if err != nil {
				return err
			}
			ctx, cfg, ok := a.prepare(cmd.Context())
			if !ok {
				return nil
			}
			a.runGate(ctx, cfg, t)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Repository as owner/name")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func (a *app) actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Validate the pull request of the current GitHub Actions event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, ok := a.prepare(cmd.Context())
			if !ok {
				return nil
			}
			t, err := trigger.FromActions(ctx, a.lookuper())
			if errors.Is(err, trigger.ErrNotPullRequest) {
				fmt.Fprintf(a.stderr, "Skipping: %v\n", err)
				return nil
			}
			if err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				a.exitCode = ExitUsageError
				return nil
			}
			a.runGate(ctx, cfg, t)
			return nil
		},
	}
}

func (a *app) jenkinsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jenkins",
		Short: "Validate the pull request of the current Jenkins build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, ok := a.prepare(cmd.Context())
			if !ok {
				return nil
			}
			t, err := trigger.FromJenkins(ctx, a.lookuper())
			if errors.Is(err, trigger.ErrNotPullRequest) {
				fmt.Fprintln(a.stderr, "Skipping: this build is not a pull request build")
				return nil
			}
			if err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				a.exitCode = ExitUsageError
				return nil
			}
			a.runGate(ctx, cfg, t)
			return nil
		},
	}
}

func (a *app) lookuper() envconfig.Lookuper {
	if a.env != nil {
		return a.env
	}
	return envconfig.OsLookuper()
}
