package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/providers"
	"github.com/dshills/ticketgate/internal/version"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGateFailed   = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

// app carries the state shared by one command tree.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// env is the environment lookuper; nil reads the process environment.
	env      envconfig.Lookuper
	deps     depsFunc
	newModel func(ctx context.Context, cfg config.Model) (providers.Completer, error)
	exitCode int

	configPath string
	logLevel   string
	logFormat  string
	format     string
	out        string
	provider   string
	model      string
	threshold  int
	matchMode  string
	dryRun     bool
	noReview   bool
	exclude    string
}

// Run executes the root command against the process arguments and returns
// an exit code.
func Run() int {
	a := &app{stdout: os.Stdout, stderr: os.Stderr, deps: buildDeps, newModel: providers.New}
	return a.execute(context.Background(), os.Args[1:])
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ticketgate",
		Short:        "Gate pull requests on their linked Jira ticket",
		Long:         "ticketgate checks that a pull request links a Jira ticket, asks a language model how well the change matches the ticket, and posts a verdict comment with deterministic exit codes.",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&a.format, "format", "text", "Output format (text, json, markdown, sarif)")
	pf.StringVar(&a.out, "out", "", "Output file path (default: stdout)")
	pf.StringVar(&a.provider, "provider", "", "Model provider (anthropic, openai, azure, gemini, mistral, ollama)")
	pf.StringVar(&a.model, "model", "", "Model name")
	pf.IntVar(&a.threshold, "threshold", -1, "Minimum similarity score to pass (0-100)")
	pf.StringVar(&a.matchMode, "match-mode", "", "Ticket reference matching (url, loose)")
	pf.BoolVar(&a.dryRun, "dry-run", false, "Render the report without posting it")
	pf.BoolVar(&a.noReview, "no-review", false, "Skip the advisory code review")
	pf.StringVar(&a.exclude, "exclude", "", "Exclude diff file globs (comma-separated)")

	root.AddCommand(
		a.runCmd(),
		a.actionsCmd(),
		a.jenkinsCmd(),
		a.serveCmd(),
		a.configCmd(),
		a.modelsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ticketgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "ticketgate version %s\n", version.Version)
		},
	}
}

// buildOverrides maps set flags onto config keys.
func (a *app) buildOverrides() map[string]string {
	m := make(map[string]string)
	if a.provider != "" {
		m["provider"] = a.provider
	}
	if a.model != "" {
		m["model"] = a.model
	}
	if a.threshold >= 0 {
		m["threshold"] = fmt.Sprintf("%d", a.threshold)
	}
	if a.matchMode != "" {
		m["matchMode"] = a.matchMode
	}
	if a.dryRun {
		m["dryRun"] = "true"
	}
	if a.noReview {
		m["review"] = "false"
	}
	if a.logLevel != "" {
		m["logLevel"] = a.logLevel
	}
	if a.logFormat != "" {
		m["logFormat"] = a.logFormat
	}
	return m
}

// loadConfig builds the effective config: defaults, file, environment,
// then flags.
func (a *app) loadConfig(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx, a.configPath, a.env)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyOverrides(&cfg, a.buildOverrides()); err != nil {
		return config.Config{}, err
	}
	if a.exclude != "" {
		cfg.Gate.Exclude = append(cfg.Gate.Exclude, splitComma(a.exclude)...)
	}
	return cfg, nil
}

// withLogger installs a clog logger built from cfg on ctx.
func (a *app) withLogger(ctx context.Context, cfg config.Log) context.Context {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(a.stderr, opts)
	} else {
		h = slog.NewTextHandler(a.stderr, opts)
	}
	return clog.WithLogger(ctx, clog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// splitComma splits a comma-separated flag value, dropping blanks.
func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
