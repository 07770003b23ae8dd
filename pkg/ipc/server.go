// Package ipc serves the device management API: health, metrics, the list
// of running application contexts, and broadcasts onto the message bus.
package ipc

import (
	"context"
	stdliberrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/odvcencio/glint/pkg/apphost"
	"github.com/odvcencio/glint/pkg/config"
	apperrors "github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
)

// DefaultSender is the bus sender name used when a broadcast request has none.
const DefaultSender = "ipc"

// Contexts is the part of apphost.Host the API drives.
type Contexts interface {
	Load(ctx context.Context, ref, arg string, args []string) (string, error)
	Terminate(id string) error
	Contexts() []apphost.Info
}

// Broadcaster sends bus messages.
type Broadcaster interface {
	Broadcast(sender, topic string, args ...any) (int, error)
}

// Executor runs fn on the UI goroutine. runtime.App.Do satisfies it.
type Executor func(fn func())

// Option configures a Server.
type Option func(*Server)

// WithExecutor routes context changes through exec.
func WithExecutor(exec Executor) Option {
	return func(s *Server) { s.exec = exec }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = logging.OrDiscard(l).WithCategory(logging.CategoryAPI) }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the management HTTP server.
type Server struct {
	cfg      config.IPCConfig
	contexts Contexts
	bus      Broadcaster
	exec     Executor
	limiter  *rate.Limiter
	metrics  *telemetry.Metrics
	log      *logging.Logger
	started  time.Time

	httpServer *http.Server
}

// NewServer creates a server. bus may be nil, which disables /broadcast.
func NewServer(cfg config.IPCConfig, contexts Contexts, bus Broadcaster, opts ...Option) *Server {
	rps := cfg.BroadcastRPS
	if rps <= 0 {
		rps = config.DefaultBroadcastRPS
	}
	s := &Server{
		cfg:      cfg,
		contexts: contexts,
		bus:      bus,
		exec:     func(fn func()) { fn() },
		limiter:  rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		log:      logging.Discard(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.recoverMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.logMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", s.metrics.Handler().ServeHTTP)
	router.Route("/contexts", func(r chi.Router) {
		r.Get("/", s.handleListContexts)
		r.Post("/", s.handleLoadContext)
		r.Delete("/{id}", s.handleTerminateContext)
	})
	router.Post("/broadcast", s.handleBroadcast)
	return router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("serving management API", "bind", s.cfg.Bind)
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// call runs fn through the executor and waits for it or ctx.
func (s *Server) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	s.exec(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"contexts": len(s.contexts.Contexts()),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"contexts": s.contexts.Contexts()})
}

type loadRequest struct {
	Ref  string   `json:"ref"`
	Arg  string   `json:"arg,omitempty"`
	Args []string `json:"args,omitempty"`
}

func (s *Server) handleLoadContext(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall, false); err != nil {
		respondError(w, status, err)
		return
	}
	req.Ref = strings.TrimSpace(req.Ref)
	if req.Ref == "" {
		respondError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "ref is required"))
		return
	}

	var id string
	err := s.call(r.Context(), func() error {
		var err error
		id, err = s.contexts.Load(r.Context(), req.Ref, req.Arg, req.Args)
		return err
	})
	if err != nil {
		s.respondCallError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleTerminateContext(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	err := s.call(r.Context(), func() error { return s.contexts.Terminate(id) })
	if err != nil {
		s.respondCallError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type broadcastRequest struct {
	Sender string `json:"sender,omitempty"`
	Topic  string `json:"topic"`
	Args   []any  `json:"args,omitempty"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		respondError(w, http.StatusNotImplemented, apperrors.New(apperrors.ErrCodeNotImplemented, "no message bus"))
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusTooManyRequests, stdliberrors.New("broadcast rate exceeded"))
		return
	}

	var req broadcastRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall, false); err != nil {
		respondError(w, status, err)
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		respondError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "topic is required"))
		return
	}
	if req.Sender == "" {
		req.Sender = DefaultSender
	}

	n, err := s.bus.Broadcast(req.Sender, req.Topic, req.Args...)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

func (s *Server) respondCallError(w http.ResponseWriter, err error) {
	switch {
	case stdliberrors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, err)
	case stdliberrors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, err)
	default:
		respondError(w, statusFor(err), err)
	}
}
