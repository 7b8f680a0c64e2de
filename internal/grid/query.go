package grid

import (
	"fmt"
	"math"
)

// InBounds reports whether (row, col) lies inside the layout.
func (g *Grid) InBounds(row, col int) bool {
	return g.cfg.InBounds(row, col)
}

// IsWalkable reports whether the tile exists and accepts movement.
func (g *Grid) IsWalkable(row, col int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, err := g.store.Get(row, col)
	return err == nil && t.CanWalkOn
}

// IsSpawnable reports whether the tile exists and accepts spawns.
func (g *Grid) IsSpawnable(row, col int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, err := g.store.Get(row, col)
	return err == nil && t.CanSpawnOn
}

// TileToGridLocation returns the world location of (row, col). valid is false
// for out-of-range tiles but the location is still computed.
func (g *Grid) TileToGridLocation(row, col int, centered bool, offset Vec3) (Vec3, bool) {
	return g.cfg.TileLocation(row, col, centered, offset), g.cfg.InBounds(row, col)
}

// TileToWalkGridLocation is TileToGridLocation gated on the tile being walkable.
func (g *Grid) TileToWalkGridLocation(row, col int, centered bool, offset Vec3) (Vec3, bool) {
	return g.cfg.TileLocation(row, col, centered, offset), g.IsWalkable(row, col)
}

// TileToSpawnGridLocation is TileToGridLocation gated on the tile being spawnable.
func (g *Grid) TileToSpawnGridLocation(row, col int, centered bool, offset Vec3) (Vec3, bool) {
	return g.cfg.TileLocation(row, col, centered, offset), g.IsSpawnable(row, col)
}

// LocationToTile returns the tile containing loc.
func (g *Grid) LocationToTile(loc Vec3) (row, col int, valid bool) {
	return g.cfg.LocationToTile(loc)
}

// LocationToGridLocation snaps loc to the center of its containing tile.
// Off-grid locations still snap to where that tile would be, with valid false.
func (g *Grid) LocationToGridLocation(loc Vec3) (Vec3, bool) {
	row, col, valid := g.cfg.LocationToTile(loc)
	snapped, _ := g.TileToGridLocation(row, col, true, Vec3{})
	return snapped, valid
}

// TileWithLocation returns the tile at (row, col) together with its center.
func (g *Grid) TileWithLocation(row, col int) (TileState, Vec3, error) {
	t, err := g.Get(row, col)
	if err != nil {
		return t, Vec3{}, err
	}
	return t, g.cfg.TileLocation(row, col, true, Vec3{}), nil
}

// TileRelativeTo steps rowOffset tiles along X and colOffset tiles along Y
// from the center of (row, col), optionally rotating the step first, and
// returns the center and state of the tile it lands on.
func (g *Grid) TileRelativeTo(row, col, rowOffset, colOffset int, considerRotation bool, rotation Rotator) (Vec3, TileState, error) {
	base, valid := g.TileToGridLocation(row, col, true, Vec3{})
	if !valid {
		return Vec3{}, InvalidTile(), outOfRange(row, col)
	}

	step := Vec3{
		X: g.cfg.TileSize * float64(rowOffset),
		Y: g.cfg.TileSize * float64(colOffset),
	}
	if considerRotation {
		step = rotation.RotateVector(step)
	}

	tr, tc, valid := g.cfg.LocationToTile(base.Add(step))
	if !valid {
		return Vec3{}, InvalidTile(), fmt.Errorf("%w: target (%d, %d) from (%d, %d)", ErrOutOfRange, tr, tc, row, col)
	}

	t, loc, err := g.TileWithLocation(tr, tc)
	if err != nil {
		return Vec3{}, InvalidTile(), err
	}
	return loc, t, nil
}

// TileRelativeToLocation resolves the tile under loc and delegates to TileRelativeTo.
func (g *Grid) TileRelativeToLocation(loc Vec3, rowOffset, colOffset int, considerRotation bool, rotation Rotator) (Vec3, TileState, error) {
	row, col, valid := g.cfg.LocationToTile(loc)
	if !valid {
		return Vec3{}, InvalidTile(), fmt.Errorf("%w: no tile under (%.1f, %.1f)", ErrOutOfRange, loc.X, loc.Y)
	}
	return g.TileRelativeTo(row, col, rowOffset, colOffset, considerRotation, rotation)
}

// Neighbors returns the walkable tiles in the inclusive window
// [row-rowRadius, row+rowRadius] x [col-colRadius, col+colRadius], row-major.
// The center tile is included when walkable.
func (g *Grid) Neighbors(row, col, rowRadius, colRadius int) []TileState {
	if rowRadius < 0 || colRadius < 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.store.IsInitialized() {
		return nil
	}

	rlo, rhi := window(row, rowRadius, g.cfg.Rows)
	clo, chi := window(col, colRadius, g.cfg.Columns)

	var out []TileState
	for r := rlo; r <= rhi; r++ {
		for c := clo; c <= chi; c++ {
			t := g.store.tiles[g.store.index(r, c)]
			if t.CanWalkOn {
				out = append(out, t)
			}
		}
	}
	return out
}

// TileFilter selects tiles for NearestTile.
type TileFilter func(TileState) bool

var (
	AnyTile    TileFilter = func(TileState) bool { return true }
	Walkable   TileFilter = func(t TileState) bool { return t.CanWalkOn }
	Spawnable  TileFilter = func(t TileState) bool { return t.CanSpawnOn }
	Unoccupied TileFilter = func(t TileState) bool { return !t.HasOccupant() }
)

// NearestTile returns the tile passing filter whose center is closest to loc
// in the XY plane. Locations off the grid start from the nearest edge tile.
// Ties go to the lower flat index. A nil filter accepts every tile.
func (g *Grid) NearestTile(loc Vec3, filter TileFilter) (TileState, Vec3, bool) {
	if filter == nil {
		filter = AnyTile
	}

	if !loc.IsFinite() {
		return InvalidTile(), Vec3{}, false
	}
	row, col, _ := g.cfg.LocationToTile(loc)
	row = clamp(row, 0, g.cfg.Rows-1)
	col = clamp(col, 0, g.cfg.Columns-1)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.store.IsInitialized() {
		return InvalidTile(), Vec3{}, false
	}

	best, bestDist := -1, math.Inf(1)
	maxRing := max(g.cfg.Rows, g.cfg.Columns)
	for ring := 0; ring <= maxRing; ring++ {
		// Every tile on this ring is at least (ring-0.5) tiles from loc along one axis.
		if best >= 0 && ring > 0 {
			bound := (float64(ring) - 0.5) * g.cfg.TileSize
			if bound*bound > bestDist {
				break
			}
		}

		for r := max(row-ring, 0); r <= min(row+ring, g.cfg.Rows-1); r++ {
			// Edge rows of the ring are full; inner rows only touch its two sides.
			step := 2 * ring
			if r == row-ring || r == row+ring {
				step = 1
			}
			for c := col - ring; c <= col+ring; c += step {
				if !g.cfg.InBounds(r, c) {
					continue
				}
				i := g.store.index(r, c)
				if !filter(g.store.tiles[i]) {
					continue
				}
				d := g.cfg.TileLocation(r, c, true, Vec3{}).DistSq2D(loc)
				if d < bestDist || (d == bestDist && i < best) {
					best, bestDist = i, d
				}
			}
		}
	}

	if best < 0 {
		return InvalidTile(), Vec3{}, false
	}
	t := g.store.tiles[best]
	return t, g.cfg.TileLocation(t.Position.Row, t.Position.Column, true, Vec3{}), true
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// window clamps [center-radius, center+radius] to [0, n-1] without
// overflowing. lo > hi means the window misses the grid.
func window(center, radius, n int) (lo, hi int) {
	lo, hi = 0, n-1
	if center > radius {
		lo = center - radius
	}
	if center < hi-radius {
		hi = center + radius
	}
	return lo, hi
}
