// Package server accepts WebSocket connections and runs one transcription
// session per connection.
//
// The HTTP surface exposes:
//
//   - /ws for the transcription protocol (WebSocket)
//   - /healthz for liveness
//   - /readyz for readiness
//   - /metrics for Prometheus scrapes
//
// Each accepted connection gets its own recognizer session and, when the
// active model is not custom-trained, its own corrector context over the
// shared vocabulary store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhalloran/voxlex/internal/config"
	"github.com/jhalloran/voxlex/internal/corrector"
	"github.com/jhalloran/voxlex/internal/health"
	"github.com/jhalloran/voxlex/internal/observe"
	"github.com/jhalloran/voxlex/internal/recognizer"
	"github.com/jhalloran/voxlex/internal/vocab"
)

// shutdownGrace is how long Run waits for open connections and handlers to
// finish after ctx is cancelled.
const shutdownGrace = 10 * time.Second

// Server owns the listener and the set of live sessions.
type Server struct {
	cfg     config.ServerConfig
	corrCfg config.CorrectionConfig

	engine    recognizer.Engine
	store     *vocab.Store
	scheduler *vocab.Scheduler
	metrics   *observe.Metrics
	health    *health.Handler

	mu     sync.Mutex
	active map[*session]struct{}
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Server)

// WithMetrics injects a Metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthHandler injects a health handler instead of the default checkers.
func WithHealthHandler(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// New wires a Server over an engine, a shared vocabulary store, and the
// refresh scheduler.
func New(cfg config.ServerConfig, corrCfg config.CorrectionConfig,
	engine recognizer.Engine, store *vocab.Store, scheduler *vocab.Scheduler,
	opts ...Option) *Server {

	s := &Server{
		cfg:       cfg,
		corrCfg:   corrCfg,
		engine:    engine,
		store:     store,
		scheduler: scheduler,
		active:    make(map[*session]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New(
			health.ModelLoaded(func() bool { return engine != nil }),
			health.VocabularySeeded(store.Len),
		)
	}
	return s
}

// Handler returns the full HTTP surface with observability middleware
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts the listener down gracefully
// and closes any sessions still open.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Handler(),
		// Session read loops inherit ctx through the request context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.ListenAddr)
		var err error
		if s.cfg.TLS != nil {
			err = httpSrv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr, err)
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		slog.Warn("server shutdown incomplete", "err", err)
	}
	s.closeAll()
	return ctx.Err()
}

// ActiveSessions reports how many connections are currently live.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// handleWS upgrades the request and runs a session on the connection until
// it closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	if s.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	rec, err := s.engine.NewSession()
	if err != nil {
		slog.Error("failed to create recognizer session", "remote", r.RemoteAddr, "err", err)
		conn.Close(websocket.StatusInternalError, "recognizer unavailable")
		return
	}

	sess := &session{
		id:             r.RemoteAddr,
		conn:           conn,
		rec:            rec,
		modelType:      s.engine.ModelType(),
		sampleRate:     s.engine.SampleRate(),
		store:          s.store,
		scheduler:      s.scheduler,
		metrics:        s.metrics,
		readTimeout:    s.cfg.ReadTimeout(),
		pingInterval:   s.cfg.PingInterval(),
		pingTimeout:    s.cfg.PingTimeout(),
		maxSuggestions: s.corrCfg.MaxSuggestions,
	}
	if sess.modelType.CorrectionEnabled() {
		sess.corr = corrector.New(s.store,
			corrector.WithContextWindow(s.corrCfg.ContextWindow))
	}

	s.track(sess)
	s.metrics.ActiveSessions.Add(r.Context(), 1)
	slog.Info("client connected", "client", sess.id, "model_type", sess.modelType)

	ctx := r.Context()
	sess.run(ctx)

	// Drain before teardown, matching the disconnect contract: flush any
	// buffered final, drop from the active set, release the recognizer.
	sess.flushFinal(ctx)
	s.untrack(sess)
	s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	if err := rec.Close(); err != nil {
		slog.Warn("recognizer close failed", "client", sess.id, "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "session ended")
	slog.Info("cleaned up connection", "client", sess.id)
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[sess] = struct{}{}
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sess)
}

// closeAll force-closes any sessions that survived the graceful shutdown
// window.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.active {
		sess.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.active, sess)
	}
}
