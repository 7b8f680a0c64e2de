package grid

import "math"

// InBounds reports whether (row, col) lies inside the layout.
func (c Config) InBounds(row, col int) bool {
	return row >= 0 && row < c.Rows && col >= 0 && col < c.Columns
}

// TileLocation maps (row, col) to world space. Rows advance along X and
// columns along Y. centered selects the tile center instead of its corner.
// The location is computed even for out-of-range tiles.
func (c Config) TileLocation(row, col int, centered bool, offset Vec3) Vec3 {
	loc := Vec3{
		X: c.Origin.X + float64(row)*c.TileSize,
		Y: c.Origin.Y + float64(col)*c.TileSize,
		Z: c.Origin.Z,
	}
	if centered {
		half := c.TileSize / 2
		loc.X += half
		loc.Y += half
	}
	return loc.Add(offset)
}

// LocationToTile maps a world location to the tile containing it.
//
// The delta is divided by the total extent and multiplied back by the
// count (Width with Columns for rows, Height with Rows for columns), which
// equals delta/TileSize up to floating point rounding at tile edges.
// Non-finite locations map to InvalidPosition.
func (c Config) LocationToTile(loc Vec3) (row, col int, valid bool) {
	if !loc.IsFinite() {
		return InvalidPosition.Row, InvalidPosition.Column, false
	}
	row = floorIndex((loc.X - c.Origin.X) / c.Width() * float64(c.Columns))
	col = floorIndex((loc.Y - c.Origin.Y) / c.Height() * float64(c.Rows))
	return row, col, c.InBounds(row, col)
}

// floorIndex floors f into an int, saturating far outside any grid so the
// conversion is always defined.
func floorIndex(f float64) int {
	const limit = 1 << 30
	return int(math.Max(-limit, math.Min(limit, math.Floor(f))))
}
