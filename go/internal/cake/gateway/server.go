package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Config holds configuration for the cake gateway server
type Config struct {
	Host             string
	Port             int
	ConnectionConfig ConnectionConfig
	ShutdownTimeout  time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             9117,
		ConnectionConfig: DefaultConnectionConfig(),
		ShutdownTimeout:  5 * time.Second,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server serves the websocket endpoint plus health, stats and any extra
// handlers registered before Start.
type Server struct {
	config  Config
	manager *ConnectionManager
	router  chi.Router
}

// NewServer creates a gateway server that reports transport events to handler
func NewServer(config Config, handler Handler) *Server {
	s := &Server{
		config:  config,
		manager: NewConnectionManager(config.ConnectionConfig, handler),
		router:  chi.NewRouter(),
	}

	s.router.Get("/ws", s.HandleConnection)
	s.router.Get("/ws/stats", s.HandleConnectionStats)
	s.router.Get("/health", s.HandleHealth)

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr()
}

// Manager returns the connection manager.
func (s *Server) Manager() *ConnectionManager {
	return s.manager
}

// Handle registers an extra handler on the router.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.router.Handle(pattern, handler)
}

// Handler returns the full HTTP handler: CORS and h2c around the router.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(s.router), &http2.Server{})
}

// Start listens on the configured address and serves until ctx ends, then
// shuts down and disconnects every client.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("cake gateway listening")

	select {
	case err := <-errCh:
		s.manager.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("cake gateway shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	s.manager.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}

// HandleConnection upgrades a request to a cake websocket connection
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := s.manager.UpgradeConnection(w, r); err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
		if errors.Is(err, ErrClosed) {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		}
		// Upgrade already replied to the client on handshake failures.
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (s *Server) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.manager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
