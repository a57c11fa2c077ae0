// Package api serves plans over HTTP.
//
// Routes:
//
//	GET    /healthz
//	POST   /v1/plans                       build, store and return a plan
//	GET    /v1/plans                       list stored plans, newest first (?limit=N)
//	GET    /v1/plans/{id}                  fetch a stored plan
//	DELETE /v1/plans/{id}                  delete a stored plan
//	GET    /v1/plans/{id}/artifacts/{fmt}  render a stored plan (json, dot, svg, png, pdf)
//
// Errors are returned as {"error": {"code": ..., "message": ...}} with the
// status derived from the error code: INVALID_* maps to 400, *_NOT_FOUND to
// 404, everything else to 500.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/nacplan/pkg/buildinfo"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/policy"
	"github.com/matzehuels/nacplan/pkg/store"
)

const (
	// MaxBodyBytes caps the size of a plan request body.
	MaxBodyBytes = 16 << 20

	shutdownTimeout = 10 * time.Second
	requestTimeout  = 2 * time.Minute
)

// Server handles plan requests.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	policy policy.Policy
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithPolicy sets the policy used when a request carries none.
func WithPolicy(p policy.Policy) Option {
	return func(s *Server) { s.policy = p.Clone() }
}

// WithClock overrides the clock used to stamp new plans.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server backed by runner and st.
// A nil logger discards output.
func New(runner *pipeline.Runner, st store.Store, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{
		runner: runner,
		store:  st,
		policy: policy.Defaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "no such route"}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Code: "METHOD_NOT_ALLOWED", Message: r.Method + " not allowed"}})
	})

	r.Get("/healthz", s.health)

	r.Route("/v1/plans", func(r chi.Router) {
		r.Post("/", s.createPlan)
		r.Get("/", s.listPlans)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPlan)
			r.Delete("/", s.deletePlan)
			r.Get("/artifacts/{format}", s.renderPlan)
		})
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}
