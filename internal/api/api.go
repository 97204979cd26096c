// Package api provides the HTTP surface for orderbot.
//
// It exposes a health endpoint, feedback analytics, order and complaint
// lookups for support staff, and a message-injection endpoint that drives
// an inbound message through the same router the messaging layer uses,
// which makes the whole conversation engine exercisable with curl during
// development.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chowline/orderbot/internal/flow"
	"github.com/chowline/orderbot/internal/messaging"
	"github.com/chowline/orderbot/internal/session"
	"github.com/chowline/orderbot/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Server hosts the HTTP endpoints over the conversation engine.
type Server struct {
	addr     string
	engine   *flow.Engine
	router   messaging.MessageRouter
	sessions *session.Store
	records  store.Store
	webhooks map[string]http.HandlerFunc
	httpSrv  *http.Server
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string
	Webhooks map[string]http.HandlerFunc
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWebhook mounts an extra handler on the server's mux. The messaging
// channel uses this to receive inbound deliveries on the same listener.
func WithWebhook(pattern string, handler http.HandlerFunc) Option {
	return func(o *Opts) {
		if o.Webhooks == nil {
			o.Webhooks = make(map[string]http.HandlerFunc)
		}
		o.Webhooks[pattern] = handler
	}
}

// NewServer creates the API server over the given collaborators.
func NewServer(engine *flow.Engine, router messaging.MessageRouter, sessions *session.Store, records store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:     cfg.Addr,
		engine:   engine,
		router:   router,
		sessions: sessions,
		records:  records,
		webhooks: cfg.Webhooks,
	}
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/analytics/feedback", s.feedbackAnalyticsHandler)
	mux.HandleFunc("/messages", s.injectMessageHandler)
	mux.HandleFunc("/orders", s.ordersHandler)
	mux.HandleFunc("/complaints", s.complaintsHandler)
	for pattern, handler := range s.webhooks {
		mux.HandleFunc(pattern, handler)
	}
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	slog.Info("Server stopped", "addr", s.addr)
	return nil
}
