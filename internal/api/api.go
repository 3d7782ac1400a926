// Package api provides the HTTP surface of the Qurain bot: the gateway
// webhook endpoint plus status and stats endpoints.
//
// The webhook handler is the inbound adapter: it validates and normalizes
// gateway callback payloads before handing them to the conversation engine.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qurain/qurainbot/internal/catalog"
	"github.com/qurain/qurainbot/internal/flow"
	"github.com/qurain/qurainbot/internal/messaging"
	"github.com/qurain/qurainbot/internal/store"
)

// Default configuration constants
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":10000"
	// DefaultSweepInterval is how often the store purges expired records.
	DefaultSweepInterval = 5 * time.Minute
	// shutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	shutdownTimeout = 5 * time.Second
)

// Option configures the API server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// Server handles HTTP requests and dispatches inbound messages to the
// conversation engine.
type Server struct {
	addr   string
	store  store.ConversationStore
	engine *flow.Engine
}

// NewServer creates a Server over the given store and engine.
func NewServer(st store.ConversationStore, engine *flow.Engine, opts ...Option) *Server {
	s := &Server{
		addr:   DefaultAddr,
		store:  st,
		engine: engine,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run wires the store, engine, and server together and serves HTTP until
// the process receives SIGINT or SIGTERM.
func Run(cat *catalog.Catalog, notifier messaging.Service, adminPhone string, storeOpts []store.Option, engineOpts []flow.Option, apiOpts []Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewInMemoryStore(cat, storeOpts...)
	st.StartSweeper(ctx, DefaultSweepInterval)
	engine := flow.NewEngine(st, cat, notifier, adminPhone, engineOpts...)
	srv := NewServer(st, engine, apiOpts...)

	return srv.Serve(ctx)
}

// Serve blocks serving HTTP until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Handler builds the route table wrapped in panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/admin/clear-states", s.clearStatesHandler)
	return s.recoverPanics(mux)
}
