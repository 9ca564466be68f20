// Package server runs the gate behind a GitHub webhook endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	gh "github.com/google/go-github/v84/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ticketgate/internal/config"
	"github.com/dshills/ticketgate/internal/gate"
	"github.com/dshills/ticketgate/internal/trigger"
)

const shutdownGrace = 30 * time.Second

// Runner executes one gate run. *gate.Gate satisfies it.
type Runner interface {
	Run(ctx context.Context, t gate.Trigger) (*gate.Outcome, error)
}

// Server accepts pull_request webhooks and runs the gate for each gated
// action in the background.
type Server struct {
	cfg    config.Server
	runner Runner
	reg    *prometheus.Registry

	// base is the parent context for background runs. It outlives the
	// request that started the run.
	base context.Context
	runs sync.WaitGroup
}

// New creates a Server. reg backs the /metrics endpoint; nil disables it.
func New(cfg config.Server, runner Runner, reg *prometheus.Registry) *Server {
	return &Server{cfg: cfg, runner: runner, reg: reg, base: context.Background()}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{Registry: s.reg}))
	}
	return mux
}

// Serve listens on the configured port until ctx is cancelled, then drains
// in-flight runs.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	log := clog.FromContext(ctx)
	s.base = context.WithoutCancel(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.With("addr", ln.Addr().String()).Info("Serving webhooks")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.runs.Wait()
		log.Info("Server stopped")
		return nil
	})
	return g.Wait()
}

// Wait blocks until all background runs have finished.
func (s *Server) Wait() { s.runs.Wait() }

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := clog.FromContext(r.Context())

	var secret []byte
	if s.cfg.WebhookSecret != "" {
		secret = []byte(s.cfg.WebhookSecret)
	}
	payload, err := gh.ValidatePayload(r, secret)
	if err != nil {
		log.With("error", err).Warn("Rejected webhook payload")
		http.Error(w, "invalid payload", http.StatusUnauthorized)
		return
	}

	eventType := gh.WebHookType(r)
	event, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		log.With("event", eventType, "error", err).Warn("Could not parse webhook")
		http.Error(w, "unparseable event", http.StatusBadRequest)
		return
	}

	ev, ok := event.(*gh.PullRequestEvent)
	if !ok {
		log.With("event", eventType).Debug("Ignoring non pull_request event")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !trigger.Gated(ev.GetAction()) {
		log.With("action", ev.GetAction()).Debug("Ignoring pull_request action")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	pr, err := trigger.FromPullRequestEvent(ev)
	if err != nil || pr.Repo.Owner == "" {
		http.Error(w, "event lacks pull request coordinates", http.StatusBadRequest)
		return
	}

	s.dispatch(clog.WithLogger(s.base, log.With("delivery", gh.DeliveryID(r))), pr)
	w.WriteHeader(http.StatusAccepted)
}

// dispatch runs the gate off the request goroutine so GitHub's delivery
// timeout does not cut the run short.
func (s *Server) dispatch(ctx context.Context, pr trigger.PR) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if s.cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
			defer cancel()
		}
		log := clog.FromContext(ctx).With("pr", pr.String())
		out, err := s.runner.Run(ctx, pr)
		switch {
		case err != nil:
			log.With("error", err).Warn("Gate run failed")
		case out != nil:
			log.With("verdict", out.Verdict, "score", out.Match.Score).Info("Gate run finished")
		}
	}()
}
