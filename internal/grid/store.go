package grid

import (
	"fmt"
	"log"
)

// StoreState is the initialization state of a Store.
type StoreState uint8

const (
	StoreEmpty            StoreState = iota // no tiles, or sized for another layout
	StoreGenerated                          // Rows*Columns default tiles
	StoreModifiersApplied                   // startup seeds overlaid
)

// String returns a human-readable state name.
func (s StoreState) String() string {
	switch s {
	case StoreEmpty:
		return "empty"
	case StoreGenerated:
		return "generated"
	case StoreModifiersApplied:
		return "modifiers_applied"
	default:
		return "unknown"
	}
}

// Store owns the flat, row-major tile array.
// It is not safe for concurrent use; Grid serializes access.
type Store struct {
	rows, cols int
	tiles      []TileState
	baseline   []TileState // flags as of the last ApplyStartupModifiers
	applied    bool
	generation uint64
}

// NewStore returns an empty store for a rows x cols layout.
func NewStore(rows, cols int) *Store {
	return &Store{rows: rows, cols: cols}
}

// Dimensions returns the configured rows and columns.
func (s *Store) Dimensions() (rows, cols int) {
	return s.rows, s.cols
}

// Len returns the number of stored tiles.
func (s *Store) Len() int {
	return len(s.tiles)
}

// Generation increments on every actual rebuild.
func (s *Store) Generation() uint64 {
	return s.generation
}

// IsInitialized reports whether the store holds exactly rows*cols tiles.
func (s *Store) IsInitialized() bool {
	return len(s.tiles) == s.rows*s.cols && len(s.tiles) > 0
}

// State reports the store's position in the init state machine.
func (s *Store) State() StoreState {
	switch {
	case !s.IsInitialized():
		return StoreEmpty
	case s.applied:
		return StoreModifiersApplied
	default:
		return StoreGenerated
	}
}

// Generate rebuilds every tile with defaults when the size does not match the layout.
// Returns true when it rebuilt. A rebuild re-arms ApplyStartupModifiers.
func (s *Store) Generate() bool {
	if s.IsInitialized() {
		return false
	}

	s.applied = false
	s.baseline = nil
	s.tiles = make([]TileState, 0, s.rows*s.cols)
	for r := 0; r < s.rows; r++ {
		for c := 0; c < s.cols; c++ {
			s.tiles = append(s.tiles, NewTileState(r, c))
		}
	}
	s.generation++
	return true
}

// ApplyStartupModifiers overlays the seed lists once per generation.
// No-spawn seeds clear only CanSpawnOn, no-walk seeds clear only CanWalkOn.
// Returns true when the seeds were applied by this call.
func (s *Store) ApplyStartupModifiers(noSpawn, noWalk []TileModifier) bool {
	if s.applied || !s.IsInitialized() {
		return false
	}

	skipped := 0
	for _, m := range noSpawn {
		if !s.inBounds(m.Row, m.Column) {
			skipped++
			continue
		}
		s.tiles[s.index(m.Row, m.Column)].CanSpawnOn = false
	}
	for _, m := range noWalk {
		if !s.inBounds(m.Row, m.Column) {
			skipped++
			continue
		}
		s.tiles[s.index(m.Row, m.Column)].CanWalkOn = false
	}
	if skipped > 0 {
		log.Printf("⚠️ Skipped %d startup tile modifiers outside %dx%d grid", skipped, s.rows, s.cols)
	}

	s.applied = true
	s.baseline = s.Tiles()
	return true
}

// Baseline returns the tile at (row, col) as it stood right after startup
// seeding, or a default tile when no seeds have been applied.
func (s *Store) Baseline(row, col int) (TileState, error) {
	if !s.IsInitialized() {
		return InvalidTile(), ErrNotGenerated
	}
	if !s.inBounds(row, col) {
		return InvalidTile(), outOfRange(row, col)
	}
	if s.baseline == nil {
		return NewTileState(row, col), nil
	}
	return s.baseline[s.index(row, col)], nil
}

// Get returns a copy of the tile at (row, col).
func (s *Store) Get(row, col int) (TileState, error) {
	if !s.IsInitialized() {
		return InvalidTile(), ErrNotGenerated
	}
	if !s.inBounds(row, col) {
		return InvalidTile(), outOfRange(row, col)
	}
	return s.tiles[s.index(row, col)], nil
}

// GetIndex returns a copy of the tile at flat index i.
func (s *Store) GetIndex(i int) (TileState, error) {
	if !s.IsInitialized() {
		return InvalidTile(), ErrNotGenerated
	}
	if i < 0 || i >= len(s.tiles) {
		return InvalidTile(), fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	return s.tiles[i], nil
}

// Set replaces walk, spawn and occupant at (row, col). Position is never overwritten.
func (s *Store) Set(row, col int, state TileState) error {
	if !s.IsInitialized() {
		return ErrNotGenerated
	}
	if !s.inBounds(row, col) {
		return outOfRange(row, col)
	}
	s.write(s.index(row, col), state)
	return nil
}

// SetIndex is Set addressed by flat index.
func (s *Store) SetIndex(i int, state TileState) error {
	if !s.IsInitialized() {
		return ErrNotGenerated
	}
	if i < 0 || i >= len(s.tiles) {
		return fmt.Errorf("%w: index %d", ErrOutOfRange, i)
	}
	s.write(i, state)
	return nil
}

// Tiles returns a copy of every tile in row-major order.
func (s *Store) Tiles() []TileState {
	out := make([]TileState, len(s.tiles))
	copy(out, s.tiles)
	return out
}

func (s *Store) write(i int, state TileState) {
	t := &s.tiles[i]
	t.CanWalkOn = state.CanWalkOn
	t.CanSpawnOn = state.CanSpawnOn
	t.Occupant = state.Occupant
}

func (s *Store) inBounds(row, col int) bool {
	return row >= 0 && row < s.rows && col >= 0 && col < s.cols
}

// index is the row-major flat index used by every accessor.
func (s *Store) index(row, col int) int {
	return row*s.cols + col
}
