// Package config provides centralized configuration management.
// Every tunable of the grid server is defaulted here and may be
// overridden through the environment or a YAML layout file.
package config

import (
	"os"
	"strconv"
	"strings"

	"tilegrid/internal/grid"
)

// =============================================================================
// GRID LAYOUT
// =============================================================================

// GridConfig holds the tile layout and where its startup seeds come from.
type GridConfig struct {
	Rows       int
	Columns    int
	TileSize   float64 // world units per tile edge
	OriginX    float64
	OriginY    float64
	OriginZ    float64
	LayoutFile string // optional YAML layout/seed file

	NoSpawn []grid.TileModifier
	NoWalk  []grid.TileModifier
}

// DefaultGrid returns a 10x10 grid of 100-unit tiles at the world origin.
func DefaultGrid() GridConfig {
	d := grid.DefaultConfig()
	return GridConfig{
		Rows:     d.Rows,
		Columns:  d.Columns,
		TileSize: d.TileSize,
	}
}

// GridFromEnv returns grid configuration with environment variable overrides.
func GridFromEnv() GridConfig {
	cfg := DefaultGrid()

	if r := getEnvInt("GRID_ROWS", 0); r > 0 {
		cfg.Rows = r
	}
	if c := getEnvInt("GRID_COLUMNS", 0); c > 0 {
		cfg.Columns = c
	}
	if s := getEnvFloat("GRID_TILE_SIZE", 0); s > 0 {
		cfg.TileSize = s
	}
	cfg.OriginX = getEnvFloat("GRID_ORIGIN_X", cfg.OriginX)
	cfg.OriginY = getEnvFloat("GRID_ORIGIN_Y", cfg.OriginY)
	cfg.OriginZ = getEnvFloat("GRID_ORIGIN_Z", cfg.OriginZ)
	cfg.LayoutFile = os.Getenv("GRID_LAYOUT_FILE")

	return cfg
}

// Layout converts to the grid package's layout type.
func (c GridConfig) Layout() grid.Config {
	return grid.Config{
		Rows:     c.Rows,
		Columns:  c.Columns,
		TileSize: c.TileSize,
		Origin:   grid.Vec3{X: c.OriginX, Y: c.OriginY, Z: c.OriginZ},
	}
}

// =============================================================================
// OVERLAY RENDERING
// =============================================================================

// OverlayConfig controls how the grid is drawn.
type OverlayConfig struct {
	PixelsPerTile    int
	LineThickness    float64
	LineOpacity      float64
	LineColor        string // hex, e.g. "#00ff00"
	SelectionOpacity float64
	SelectionColor   string
	NoWalkColor      string
	NoWalkOpacity    float64
	NoSpawnColor     string
	NoSpawnOpacity   float64
	Labels           bool // draw row/column numbers
	LiveFlags        bool // highlight from tile flags instead of seed lists
}

// DefaultOverlay returns a green grid with a faint white selection.
func DefaultOverlay() OverlayConfig {
	return OverlayConfig{
		PixelsPerTile:    48,
		LineThickness:    2,
		LineOpacity:      1,
		LineColor:        "#00ff00",
		SelectionOpacity: 0.35,
		SelectionColor:   "#ffffff",
		NoWalkColor:      "#ff0000",
		NoWalkOpacity:    0.5,
		NoSpawnColor:     "#0000ff",
		NoSpawnOpacity:   0.5,
		Labels:           true,
	}
}

// OverlayFromEnv returns overlay configuration with environment variable overrides.
func OverlayFromEnv() OverlayConfig {
	cfg := DefaultOverlay()

	if px := getEnvInt("OVERLAY_PIXELS_PER_TILE", 0); px > 0 {
		cfg.PixelsPerTile = px
	}
	if t := getEnvFloat("OVERLAY_LINE_THICKNESS", 0); t > 0 {
		cfg.LineThickness = t
	}
	if o := getEnvFloat("OVERLAY_LINE_OPACITY", -1); o >= 0 {
		cfg.LineOpacity = o
	}
	if o := getEnvFloat("OVERLAY_SELECTION_OPACITY", -1); o >= 0 {
		cfg.SelectionOpacity = o
	}
	if c := os.Getenv("OVERLAY_LINE_COLOR"); c != "" {
		cfg.LineColor = c
	}
	if c := os.Getenv("OVERLAY_SELECTION_COLOR"); c != "" {
		cfg.SelectionColor = c
	}
	if os.Getenv("OVERLAY_LABELS") == "false" {
		cfg.Labels = false
	}
	if os.Getenv("OVERLAY_LIVE_FLAGS") == "true" {
		cfg.LiveFlags = true
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	CORSOrigins    []string
	RateLimit      float64 // read requests per second per IP
	RateBurst      int
	WriteRateLimit float64 // mutating requests per second per IP
	WriteRateBurst int
	RequestLogging bool
	AdminUser      string // basic auth on mutating routes when set
	AdminPass      string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		RateLimit:      10,
		RateBurst:      20,
		WriteRateLimit: 5,
		WriteRateBurst: 10,
		RequestLogging: true,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if r := getEnvFloat("RATE_LIMIT_RPS", 0); r > 0 {
		cfg.RateLimit = r
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.RateBurst = b
	}
	if r := getEnvFloat("WRITE_RATE_LIMIT_RPS", 0); r > 0 {
		cfg.WriteRateLimit = r
	}
	if b := getEnvInt("WRITE_RATE_LIMIT_BURST", 0); b > 0 {
		cfg.WriteRateBurst = b
	}
	if os.Getenv("REQUEST_LOGGING") == "false" {
		cfg.RequestLogging = false
	}
	cfg.AdminUser = os.Getenv("ADMIN_USER")
	cfg.AdminPass = os.Getenv("ADMIN_PASS")

	return cfg
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

// DebugConfig holds the localhost debug server settings.
type DebugConfig struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// DefaultDebug returns the default debug server configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled: true,
		Addr:    "127.0.0.1:6060",
	}
}

// DebugFromEnv returns debug server configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.Enabled = false
	}
	if a := os.Getenv("DEBUG_ADDR"); a != "" {
		cfg.Addr = a
	}
	cfg.User = os.Getenv("DEBUG_USER")
	cfg.Pass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// TILE JOURNAL
// =============================================================================

// JournalConfig controls the append-only tile mutation log.
type JournalConfig struct {
	Path            string // empty disables file output
	MaxEventsPerSec int
	MaxPerEntity    int
}

// DefaultJournal returns the default journal configuration.
func DefaultJournal() JournalConfig {
	return JournalConfig{
		MaxEventsPerSec: 10000,
		MaxPerEntity:    100,
	}
}

// JournalFromEnv returns journal configuration with environment variable overrides.
func JournalFromEnv() JournalConfig {
	cfg := DefaultJournal()

	cfg.Path = os.Getenv("JOURNAL_PATH")
	if n := getEnvInt("JOURNAL_MAX_EVENTS_PER_SEC", 0); n > 0 {
		cfg.MaxEventsPerSec = n
	}
	if n := getEnvInt("JOURNAL_MAX_PER_ENTITY", 0); n > 0 {
		cfg.MaxPerEntity = n
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Grid    GridConfig
	Overlay OverlayConfig
	Server  ServerConfig
	Debug   DebugConfig
	Journal JournalConfig
}

// Load returns the complete configuration with environment overrides.
// A GRID_LAYOUT_FILE, when set, is applied on top of the environment.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Grid:    GridFromEnv(),
		Overlay: OverlayFromEnv(),
		Server:  ServerFromEnv(),
		Debug:   DebugFromEnv(),
		Journal: JournalFromEnv(),
	}

	if cfg.Grid.LayoutFile != "" {
		layout, err := LoadLayout(cfg.Grid.LayoutFile)
		if err != nil {
			return cfg, err
		}
		layout.Apply(&cfg.Grid)
	}

	if err := cfg.Grid.Layout().Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
