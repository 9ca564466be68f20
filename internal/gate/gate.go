package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/diffctx"
	"github.com/dshills/ticketgate/internal/providers"
	"github.com/dshills/ticketgate/internal/redact"
	"github.com/dshills/ticketgate/internal/ticket"
)

const tracerName = "github.com/dshills/ticketgate/internal/gate"

// Gate runs the validation pipeline. It holds no per-run state and is safe
// for concurrent runs.
type Gate struct {
	host       Host
	tickets    ticket.Repository
	model      providers.Completer
	cfg        config.Gate
	mode       ticket.MatchMode
	trackerURL string
	maxTokens  int
	recorder   Recorder
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithRecorder reports runs and model calls to r.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithTrackerURL sets the tracker root used in the ticket-link request.
func WithTrackerURL(u string) Option {
	return func(g *Gate) { g.trackerURL = u }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) Option {
	return func(g *Gate) { g.maxTokens = n }
}

// WithClock replaces time.Now for timing.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a Gate. model should already carry its retry policy, see
// providers.WithRetry.
func New(host Host, tickets ticket.Repository, model providers.Completer, cfg config.Gate, opts ...Option) *Gate {
	mode, err := ticket.ParseMatchMode(cfg.MatchMode)
	if err != nil {
		mode = ticket.MatchURL
	}
	g := &Gate{
		host:    host,
		tickets: tickets,
		model:   model,
		cfg:     cfg,
		mode:    mode,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run validates one pull request. The returned Outcome is always non-nil.
// err is set for hard failures: the host or tracker could not be read, the
// ticket reference is missing (ticket.ErrMissingReference), the model
// failed after retries, or the report could not be posted. A score below
// the threshold is not an error; check Outcome.Verdict.
func (g *Gate) Run(ctx context.Context, t Trigger) (*Outcome, error) {
	start := g.now()
	repo, number := t.RepoCoordinates(), t.PRNumber()

	out := &Outcome{
		RunID:     uuid.NewString(),
		Repo:      repo.String(),
		PR:        number,
		Stage:     StageStart,
		Verdict:   VerdictFailed,
		Threshold: g.cfg.Threshold,
		DryRun:    g.cfg.DryRun,
	}

	ctx, span := g.tracer.Start(ctx, "ticketgate.run", trace.WithAttributes(
		attribute.String("run.id", out.RunID),
		attribute.String("repo", out.Repo),
		attribute.Int("pr", number),
	))
	log := clog.FromContext(ctx).With("run_id", out.RunID).With("repo", out.Repo).With("pr", number)
	ctx = clog.WithLogger(ctx, log)

	err := g.run(ctx, repo, number, out)

	out.Timing.TotalMs = g.now().Sub(start).Milliseconds()
	if err != nil {
		out.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String("verdict", string(out.Verdict)),
		attribute.Int("score", out.Match.Score),
		attribute.String("stage", string(out.Stage)),
	)
	span.End()

	if g.recorder != nil {
		g.recorder.ObserveRun(out)
	}
	log.With("verdict", out.Verdict).
		With("score", out.Match.Score).
		With("stage", out.Stage).
		With("total_ms", out.Timing.TotalMs).
		Info("Run finished")
	return out, err
}

func (g *Gate) run(ctx context.Context, repo Repo, number int, out *Outcome) error {
	log := clog.FromContext(ctx)

	hostStart := g.now()
	pr, err := g.host.GetPullRequest(ctx, repo, number)
	if err != nil {
		out.Reason = ReasonHostFailure
		return fmt.Errorf("fetching pull request: %w", err)
	}
	diff, err := g.host.GetDiff(ctx, repo, number)
	if err != nil {
		out.Reason = ReasonHostFailure
		return fmt.Errorf("fetching diff: %w", err)
	}
	out.PRURL = pr.URL
	out.Timing.HostMs = g.now().Sub(hostStart).Milliseconds()

	ref, err := ticket.ExtractReference(pr.Body, g.mode)
	if err != nil {
		out.Reason = ReasonMissingTicket
		log.Warn("No ticket reference in PR body")
		body := MissingTicketComment(g.trackerURL, g.mode)
		out.Report = body
		if perr := g.post(ctx, repo, number, body, out); perr != nil {
			return errors.Join(err, perr)
		}
		return err
	}
	out.Ticket = ref
	out.Stage = StageTicketResolved

	trackerStart := g.now()
	content, err := g.tickets.GetTicket(ctx, ref.Key)
	out.Timing.TrackerMs = g.now().Sub(trackerStart).Milliseconds()
	if err != nil {
		// No verdict can be formed, so nothing is posted.
		out.Reason = ReasonTicketFetch
		return fmt.Errorf("fetching ticket %s: %w", ref.Key, err)
	}
	out.TicketSummary = content.Summary
	out.Stage = StageContentFetched

	shaped := diffctx.Prepare(diff, diffctx.Options{
		Exclude:       g.cfg.Exclude,
		RedactPaths:   g.cfg.RedactPaths,
		RedactSecrets: g.cfg.RedactSecrets,
		MaxBytes:      g.cfg.MaxDiffBytes,
	})
	out.Diagnostics.DiffFiles = len(shaped.Files)
	out.Diagnostics.ExcludedFiles = len(shaped.Excluded)
	out.Diagnostics.Redactions = shaped.Redacted
	out.Diagnostics.DiffTruncated = shaped.Truncated

	body := pr.Body
	if g.cfg.RedactSecrets {
		body = redact.Secrets(body)
	}

	prompt := BuildSimilarityPrompt(PRContext{Title: pr.Title, Body: body, Diff: shaped.Diff}, content)
	raw, err := g.complete(ctx, "similarity", prompt, out)
	if err != nil {
		out.Reason = ReasonModelFailure
		msg := ModelFailureComment(*out, err)
		out.Report = msg
		if perr := g.post(ctx, repo, number, msg, out); perr != nil {
			return errors.Join(fmt.Errorf("similarity: %w", err), perr)
		}
		return fmt.Errorf("similarity: %w", err)
	}
	out.Diagnostics.RawSimilarity = raw

	match, err := ParseMatchResult(raw)
	if err != nil {
		log.With("error", err).Warn("Similarity reply did not parse, using fallback score")
		out.Diagnostics.SimilarityError = err.Error()
		out.ParseFailed = true
		match = FallbackMatch
	}
	out.Match = match
	out.Stage = StageScored

	if g.cfg.Review {
		out.ReviewRequested = true
		out.Review = g.review(ctx, shaped, out)
		out.Stage = StageReviewed
	}

	out.Verdict = Decide(match.Score, g.cfg.Threshold)
	if out.Verdict == VerdictFailed {
		out.Reason = ReasonBelowThreshold
	}

	out.Report = FormatReport(*out)
	if err := g.post(ctx, repo, number, out.Report, out); err != nil {
		return err
	}
	out.Stage = StageReported
	return nil
}

// review asks for line comments. Every failure yields no comments.
func (g *Gate) review(ctx context.Context, shaped diffctx.Result, out *Outcome) []ReviewComment {
	log := clog.FromContext(ctx)
	if shaped.Diff == "" {
		return nil
	}
	raw, err := g.complete(ctx, "review", BuildReviewPrompt(shaped.Diff, shaped.Files), out)
	if err != nil {
		log.With("error", err).Warn("Review call failed, continuing without comments")
		out.Diagnostics.ReviewError = err.Error()
		return nil
	}
	out.Diagnostics.RawReview = raw
	comments, err := ParseReviewComments(raw)
	if err != nil {
		log.With("error", err).Warn("Review reply did not parse, continuing without comments")
		out.Diagnostics.ReviewError = err.Error()
		return nil
	}
	return comments
}

func (g *Gate) complete(ctx context.Context, purpose, prompt string, out *Outcome) (string, error) {
	ctx, span := g.tracer.Start(ctx, "ticketgate.model."+purpose, trace.WithAttributes(
		attribute.String("provider", g.model.Name()),
		attribute.Int("prompt.bytes", len(prompt)),
	))
	defer span.End()

	start := g.now()
	resp, err := g.model.Complete(ctx, providers.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: g.maxTokens,
	})
	elapsed := g.now().Sub(start)
	out.Timing.ModelMs += elapsed.Milliseconds()
	if g.recorder != nil {
		g.recorder.ObserveModelCall(purpose, g.model.Name(), elapsed.Seconds(), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("tokens", resp.TokensUsed))
	clog.FromContext(ctx).With("purpose", purpose).
		With("tokens", resp.TokensUsed).
		With("elapsed", elapsed).
		Debug("Model call finished")
	return resp.Content, nil
}

func (g *Gate) post(ctx context.Context, repo Repo, number int, body string, out *Outcome) error {
	if g.cfg.DryRun {
		clog.FromContext(ctx).Info("Dry run, not posting comment")
		return nil
	}
	if err := g.host.CreateComment(ctx, repo, number, body); err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	out.Posted = true
	return nil
}

func modelFailureKind(err error) string {
	kind, ok := providers.KindOf(err)
	if !ok {
		return "the model service returned an error"
	}
	switch kind {
	case providers.KindRateLimited:
		return "the model service kept rate limiting requests"
	case providers.KindUnauthorized:
		return "the model service rejected our credentials"
	case providers.KindUnavailable:
		return "the model service is unavailable"
	default:
		return "the model service could not be reached"
	}
}
