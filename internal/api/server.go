package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"tilegrid/internal/grid"
)

// DefaultStatsInterval is how often grid:stats is broadcast.
const DefaultStatsInterval = time.Second

// Server is the HTTP API server with WebSocket support.
//
// Background workers do NOT start until Start is called, so a Server can
// be constructed in tests and exercised through Router().
type Server struct {
	grid          GridService
	router        *chi.Mux
	wsHub         *WebSocketHub
	rateLimiter   *IPRateLimiter
	httpSrv       *http.Server
	statsInterval time.Duration
	generation    atomic.Uint64
}

// NewServer builds the router from cfg and adds the /ws route.
func NewServer(cfg RouterConfig, statsInterval time.Duration) *Server {
	if statsInterval <= 0 {
		statsInterval = DefaultStatsInterval
	}
	if cfg.RateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rlCfg)
	}

	s := &Server{
		grid:          cfg.Grid,
		wsHub:         NewWebSocketHub(cfg.CORSOrigins),
		rateLimiter:   cfg.RateLimiter,
		statsInterval: statsInterval,
	}
	s.router = NewRouter(cfg)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// PublishChange forwards a grid mutation to WebSocket clients and metrics.
// It has the signature of a grid change handler.
func (s *Server) PublishChange(c grid.TileChange) {
	RecordTileChange(c)
	s.generation.Store(c.Generation)
	s.wsHub.Broadcast(EventTileChanged, NewChangeMessage(c))
}

// Start launches the hub and serves on addr until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	go s.wsHub.Run()
	s.wsHub.StartStatsLoop(s.grid, s.statsInterval, s.generation.Load)

	log.Printf("🌐 API server starting on %s", ln.Addr())
	log.Printf("🗺️  Overlay: http://%s/api/overlay.png", ln.Addr())

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(api.RouterConfig{Grid: g}, 0)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown drains HTTP requests, then stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.Stop()
	return err
}

// Stop ends the hub and the rate limiter cleanup. Safe to call more than once.
func (s *Server) Stop() {
	s.rateLimiter.Stop()
	s.wsHub.Stop()
}
