package grid

import (
	"context"
	"fmt"
	"log"
)

// ClaimTile records entity on the tile containing location. The tile stops
// accepting spawns, and stops accepting movement when affectWalkable is set.
// Claiming an already occupied tile replaces its occupant.
func (g *Grid) ClaimTile(entity EntityRef, location Vec3, affectWalkable bool) bool {
	if entity == NoEntity {
		return false
	}
	row, col, valid := g.cfg.LocationToTile(location)
	if !valid {
		return false
	}

	g.mu.Lock()
	before, err := g.store.Get(row, col)
	if err != nil || before.Position.IsNegative() {
		g.mu.Unlock()
		return false
	}
	after := occupy(before, entity, affectWalkable)
	_ = g.store.Set(row, col, after)
	g.revision++
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	emit(handler, TileChange{
		Kind:       ChangeClaimed,
		Position:   after.Position,
		Before:     before,
		After:      after,
		Entity:     entity,
		Generation: gen,
	})
	return true
}

// ReleaseTile clears the occupant of (row, col) and restores its spawn flag
// to the seeded baseline. restoreWalkable also restores the walk flag.
// Seeded no-spawn and no-walk tiles stay blocked. Returns the previous occupant.
func (g *Grid) ReleaseTile(row, col int, restoreWalkable bool) (EntityRef, error) {
	g.mu.Lock()
	before, err := g.store.Get(row, col)
	if err != nil {
		g.mu.Unlock()
		return NoEntity, err
	}
	base, _ := g.store.Baseline(row, col)
	after := before
	after.Occupant = NoEntity
	after.CanSpawnOn = base.CanSpawnOn
	if restoreWalkable {
		after.CanWalkOn = base.CanWalkOn
	}
	_ = g.store.Set(row, col, after)
	g.revision++
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	emit(handler, TileChange{
		Kind:       ChangeReleased,
		Position:   after.Position,
		Before:     before,
		After:      after,
		Entity:     before.Occupant,
		Generation: gen,
	})
	return before.Occupant, nil
}

// SpawnReservation is a validated spawn location waiting for an entity.
type SpawnReservation struct {
	Position   Position
	Location   Vec3
	generation uint64
}

// ReserveSpawn checks that (row, col) accepts spawns and computes where to
// place the entity. The tile is not marked until CommitSpawn.
func (g *Grid) ReserveSpawn(row, col int, centered bool, offset Vec3) (SpawnReservation, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, err := g.store.Get(row, col)
	if err != nil {
		return SpawnReservation{}, fmt.Errorf("%w: %w", ErrNotSpawnable, err)
	}
	if !t.CanSpawnOn {
		return SpawnReservation{}, fmt.Errorf("%w: (%d, %d)", ErrNotSpawnable, row, col)
	}
	return SpawnReservation{
		Position:   t.Position,
		Location:   g.cfg.TileLocation(row, col, centered, offset),
		generation: g.store.Generation(),
	}, nil
}

// CommitSpawn marks the reserved tile as occupied by entity.
func (g *Grid) CommitSpawn(res SpawnReservation, entity EntityRef, affectWalkable bool) error {
	if entity == NoEntity {
		return ErrInvalidEntity
	}

	g.mu.Lock()
	if g.store.Generation() != res.generation || !g.store.IsInitialized() {
		g.mu.Unlock()
		return fmt.Errorf("%w: tile (%d, %d)", ErrStaleReservation, res.Position.Row, res.Position.Column)
	}
	before, err := g.store.Get(res.Position.Row, res.Position.Column)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStaleReservation, err)
	}
	if !before.CanSpawnOn {
		g.mu.Unlock()
		return fmt.Errorf("%w: (%d, %d) taken since reservation", ErrNotSpawnable, res.Position.Row, res.Position.Column)
	}
	after := occupy(before, entity, affectWalkable)
	_ = g.store.Set(res.Position.Row, res.Position.Column, after)
	g.revision++
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	emit(handler, TileChange{
		Kind:       ChangeSpawned,
		Position:   after.Position,
		Before:     before,
		After:      after,
		Entity:     entity,
		Generation: gen,
	})
	return nil
}

func occupy(t TileState, entity EntityRef, affectWalkable bool) TileState {
	t.CanSpawnOn = false
	if affectWalkable {
		t.CanWalkOn = false
	}
	t.Occupant = entity
	return t
}

// Transform places a spawned entity.
type Transform struct {
	Location Vec3    `json:"location"`
	Rotation Rotator `json:"rotation"`
	Scale    Vec3    `json:"scale"`
}

// IdentityTransform has zero location and rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: Vec3{X: 1, Y: 1, Z: 1}}
}

// Spawner instantiates entities in the host world.
type Spawner interface {
	Spawn(ctx context.Context, class string, t Transform) (EntityRef, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context, class string, t Transform) (EntityRef, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn(ctx context.Context, class string, t Transform) (EntityRef, error) {
	return f(ctx, class, t)
}

// SpawnRequest asks SpawnOnGrid for one entity. Transform.Location is an
// offset from the tile location; rotation and scale pass through.
type SpawnRequest struct {
	Class          string
	Row, Column    int
	Transform      Transform
	Centered       bool
	AffectWalkable bool
}

// NewSpawnRequest returns a centered request with identity transform that
// leaves the tile walkable.
func NewSpawnRequest(class string, row, col int) SpawnRequest {
	return SpawnRequest{
		Class:     class,
		Row:       row,
		Column:    col,
		Transform: IdentityTransform(),
		Centered:  true,
	}
}

// SpawnOnGrid reserves the tile, asks spawner for the entity and records it.
// If the spawn succeeds but the commit fails, the entity is returned along
// with the error and the caller decides whether to destroy it.
func (g *Grid) SpawnOnGrid(ctx context.Context, spawner Spawner, req SpawnRequest) (EntityRef, error) {
	if spawner == nil {
		log.Printf("❌ No world to spawn %q into", req.Class)
		return NoEntity, ErrNoWorldContext
	}
	if req.Class == "" {
		log.Printf("❌ Invalid entity spawn class for tile (%d, %d)", req.Row, req.Column)
		return NoEntity, ErrInvalidEntityClass
	}

	res, err := g.ReserveSpawn(req.Row, req.Column, req.Centered, req.Transform.Location)
	if err != nil {
		return NoEntity, err
	}

	t := req.Transform
	t.Location = res.Location
	entity, err := spawner.Spawn(ctx, req.Class, t)
	if err != nil {
		log.Printf("❌ Spawn %q at (%d, %d) failed: %v", req.Class, req.Row, req.Column, err)
		return NoEntity, fmt.Errorf("spawn %q: %w", req.Class, err)
	}

	if err := g.CommitSpawn(res, entity, req.AffectWalkable); err != nil {
		log.Printf("⚠️ Spawned %s but could not record it on (%d, %d): %v", entity, req.Row, req.Column, err)
		return entity, err
	}
	return entity, nil
}
