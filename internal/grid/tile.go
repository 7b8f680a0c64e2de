package grid

import "fmt"

// EntityRef is an opaque handle to an entity owned by the world/entity system.
// The grid records which entity occupies a tile but never owns it.
type EntityRef uint64

// NoEntity means the tile has no occupant.
const NoEntity EntityRef = 0

// String renders the handle for debug output.
func (e EntityRef) String() string {
	if e == NoEntity {
		return "None"
	}
	return fmt.Sprintf("entity#%d", uint64(e))
}

// Position is a (row, column) tile index.
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// InvalidPosition is the sentinel for unset tiles.
var InvalidPosition = Position{Row: -1, Column: -1}

// IsNegative reports whether either component is below zero.
func (p Position) IsNegative() bool {
	return p.Row < 0 || p.Column < 0
}

// TileState is the per-cell record kept by the Store.
type TileState struct {
	Position   Position  `json:"position"`
	CanWalkOn  bool      `json:"canWalkOn"`
	CanSpawnOn bool      `json:"canSpawnOn"`
	Occupant   EntityRef `json:"occupant"`
}

// NewTileState returns a default tile cached at (row, col).
func NewTileState(row, col int) TileState {
	return TileState{
		Position:   Position{Row: row, Column: col},
		CanWalkOn:  true,
		CanSpawnOn: true,
	}
}

// InvalidTile is returned alongside errors so callers always get a usable value.
func InvalidTile() TileState {
	return NewTileState(InvalidPosition.Row, InvalidPosition.Column)
}

// HasOccupant reports whether an entity is recorded on the tile.
func (t TileState) HasOccupant() bool {
	return t.Occupant != NoEntity
}

// TileModifier is a startup seed naming one tile.
type TileModifier struct {
	Row    int `json:"row" yaml:"row"`
	Column int `json:"column" yaml:"column"`
}
