package grid

import "fmt"

// Config describes the grid layout. It is fixed once a Grid is built.
type Config struct {
	Rows     int
	Columns  int
	TileSize float64
	Origin   Vec3 // world position of tile (0,0)'s corner
}

// DefaultConfig returns a 10x10 grid of 100-unit tiles at the world origin.
func DefaultConfig() Config {
	return Config{
		Rows:     10,
		Columns:  10,
		TileSize: 100,
	}
}

// Validate checks the layout invariants.
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Columns <= 0 {
		return fmt.Errorf("%w: rows=%d columns=%d must be positive", ErrInvalidConfig, c.Rows, c.Columns)
	}
	if !(c.TileSize > 0) {
		return fmt.Errorf("%w: tile size %v must be positive", ErrInvalidConfig, c.TileSize)
	}
	return nil
}

// TileCount is Rows*Columns.
func (c Config) TileCount() int {
	return c.Rows * c.Columns
}

// Width is Columns*TileSize.
func (c Config) Width() float64 {
	return float64(c.Columns) * c.TileSize
}

// Height is Rows*TileSize.
func (c Config) Height() float64 {
	return float64(c.Rows) * c.TileSize
}
