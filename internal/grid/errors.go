package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a row/column or flat index lies outside the grid.
	ErrOutOfRange = errors.New("tile out of range")

	// ErrNotGenerated is returned when the tile store is empty or sized for another layout.
	ErrNotGenerated = fmt.Errorf("%w: tile store not generated", ErrOutOfRange)

	// ErrInvalidTile marks a semantically unusable tile (sentinel position, bad relative target).
	ErrInvalidTile = errors.New("invalid tile")

	// ErrNotSpawnable is returned when a spawn is attempted on a tile that refuses spawns.
	ErrNotSpawnable = fmt.Errorf("%w: tile not spawnable", ErrInvalidTile)

	// ErrStaleReservation is returned when committing a spawn after the store regenerated.
	ErrStaleReservation = errors.New("spawn reservation is stale")

	// ErrInvalidEntity is returned when a mutation is given NoEntity.
	ErrInvalidEntity = errors.New("invalid entity reference")

	// ErrInvalidEntityClass is returned when a spawn request names no entity class.
	ErrInvalidEntityClass = errors.New("invalid entity spawn class")

	// ErrNoWorldContext is returned when no spawner is available to instantiate entities.
	ErrNoWorldContext = errors.New("no world to spawn into")

	// ErrInvalidConfig is returned for non-positive dimensions or tile size.
	ErrInvalidConfig = errors.New("invalid grid config")
)

func outOfRange(row, col int) error {
	return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, row, col)
}
