package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tilegrid/internal/config"
	"tilegrid/internal/grid"
	"tilegrid/internal/overlay"
)

// GridService is the grid surface the API uses. *grid.Grid satisfies it.
type GridService interface {
	Config() grid.Config
	State() grid.StoreState
	Stats() grid.Stats
	Snapshot() *grid.Snapshot
	Revision() uint64

	TileWithLocation(row, col int) (grid.TileState, grid.Vec3, error)
	Set(row, col int, state grid.TileState) error
	Neighbors(row, col, rowRadius, colRadius int) []grid.TileState
	TileRelativeTo(row, col, rowOffset, colOffset int, considerRotation bool, rotation grid.Rotator) (grid.Vec3, grid.TileState, error)
	LocationToTile(loc grid.Vec3) (row, col int, valid bool)
	NearestTile(loc grid.Vec3, filter grid.TileFilter) (grid.TileState, grid.Vec3, bool)

	ClaimTile(entity grid.EntityRef, location grid.Vec3, affectWalkable bool) bool
	ReleaseTile(row, col int, restoreWalkable bool) (grid.EntityRef, error)
	SelectTile(row, col int) bool
	Selected() (grid.Position, bool)
	DescribeTile(loc grid.Vec3) (string, grid.Vec3, bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Grid:            g,
//	    DisableLogging:  true,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Grid is the spatial index (required)
	Grid GridService

	// Overlay renders /api/overlay.png. If nil, default styling is used.
	Overlay *overlay.Renderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// AdminUser and AdminPass enable basic auth on mutating routes.
	AdminUser string
	AdminPass string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// DefaultCORSOrigins allows local tooling only.
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

type routerHandlers struct {
	grid    GridService
	overlay *overlay.Cache
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It is pure apart from the rate limiter's cleanup goroutine when no
// limiter is injected: no listeners are opened and no hub is started.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early.
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	renderer := cfg.Overlay
	if renderer == nil {
		renderer = overlay.NewRenderer(config.DefaultOverlay())
	}
	h := &routerHandlers{grid: cfg.Grid, overlay: overlay.NewCache(renderer, overlay.DefaultCacheSize)}

	mutating := func(r chi.Router) {}
	if cfg.AdminUser != "" {
		mutating = func(r chi.Router) {
			r.Use(adminAuthMiddleware(cfg.AdminUser, cfg.AdminPass))
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/grid", h.handleGetGrid)
		r.Get("/tiles", h.handleGetTiles)
		r.Get("/tiles/{row}/{col}", h.handleGetTile)
		r.Get("/tiles/{row}/{col}/neighbors", h.handleNeighbors)
		r.Get("/tiles/{row}/{col}/relative", h.handleRelative)
		r.Get("/locate", h.handleLocate)
		r.Get("/nearest", h.handleNearest)
		r.Get("/debug", h.handleDebug)
		r.Get("/overlay.png", h.handleOverlay)

		r.Group(func(r chi.Router) {
			mutating(r)
			r.Put("/tiles/{row}/{col}", h.handleSetTile)
			r.Post("/tiles/{row}/{col}/release", h.handleRelease)
			r.Post("/claim", h.handleClaim)
			r.Post("/select", h.handleSelect)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/grid", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency per route pattern, never per raw path.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
