package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"tilegrid/internal/grid"
)

// LayoutFile is the YAML form of a grid layout. Omitted fields keep the
// values already configured.
//
//	rows: 12
//	columns: 8
//	tile_size: 50
//	origin: {x: 0, y: 0, z: 0}
//	no_spawn:
//	  - {row: 3, column: 3}
//	no_walk:
//	  - {row: 3, column: 3}
type LayoutFile struct {
	Rows     int                 `yaml:"rows"`
	Columns  int                 `yaml:"columns"`
	TileSize float64             `yaml:"tile_size"`
	Origin   *LayoutOrigin       `yaml:"origin"`
	NoSpawn  []grid.TileModifier `yaml:"no_spawn"`
	NoWalk   []grid.TileModifier `yaml:"no_walk"`
}

// LayoutOrigin is the world anchor of tile (0,0).
type LayoutOrigin struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// LoadLayout reads and validates a YAML layout file.
func LoadLayout(filename string) (*LayoutFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", filename, err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates YAML layout bytes.
func ParseLayout(data []byte) (*LayoutFile, error) {
	var layout LayoutFile
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if layout.Rows < 0 || layout.Columns < 0 || layout.TileSize < 0 {
		return nil, fmt.Errorf("%w: layout has negative dimensions", grid.ErrInvalidConfig)
	}
	return &layout, nil
}

// MustLoadLayout loads the layout and exits on error.
func MustLoadLayout(filename string) *LayoutFile {
	layout, err := LoadLayout(filename)
	if err != nil {
		log.Fatalf("❌ Failed to load layout: %v", err)
	}
	return layout
}

// Apply overlays the file's values onto cfg.
func (l *LayoutFile) Apply(cfg *GridConfig) {
	if l.Rows > 0 {
		cfg.Rows = l.Rows
	}
	if l.Columns > 0 {
		cfg.Columns = l.Columns
	}
	if l.TileSize > 0 {
		cfg.TileSize = l.TileSize
	}
	if l.Origin != nil {
		cfg.OriginX, cfg.OriginY, cfg.OriginZ = l.Origin.X, l.Origin.Y, l.Origin.Z
	}
	cfg.NoSpawn = append(cfg.NoSpawn, l.NoSpawn...)
	cfg.NoWalk = append(cfg.NoWalk, l.NoWalk...)
}
