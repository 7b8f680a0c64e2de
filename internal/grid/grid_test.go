package grid

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func newTestGrid(tb testing.TB, cfg Config, opts ...Option) *Grid {
	tb.Helper()
	g, err := New(cfg, opts...)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	g.Init()
	return g
}

func center(g *Grid, row, col int) Vec3 {
	loc, _ := g.TileToGridLocation(row, col, true, Vec3{})
	return loc
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Rows: 0, Columns: 3, TileSize: 10})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New error = %v, want ErrInvalidConfig", err)
	}
}

func TestUninitializedGrid(t *testing.T) {
	g, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if g.State() != StoreEmpty || g.IsInitialized() {
		t.Errorf("state = %s, want empty", g.State())
	}
	if _, err := g.Get(0, 0); !errors.Is(err, ErrNotGenerated) {
		t.Errorf("Get error = %v, want ErrNotGenerated", err)
	}
	if g.IsWalkable(0, 0) || g.IsSpawnable(0, 0) {
		t.Error("empty grid reported walkable/spawnable tile")
	}
	if n := g.Neighbors(1, 1, 1, 1); len(n) != 0 {
		t.Errorf("Neighbors on empty grid = %d tiles", len(n))
	}
	if _, _, ok := g.NearestTile(Vec3{}, AnyTile); ok {
		t.Error("NearestTile found a tile on an empty grid")
	}
	if !g.InBounds(0, 0) {
		t.Error("InBounds depends only on the layout")
	}
}

func TestStartupSeeds(t *testing.T) {
	g := newTestGrid(t, DefaultConfig(), WithSeeds(
		[]TileModifier{{Row: 3, Column: 3}},
		[]TileModifier{{Row: 3, Column: 3}},
	))

	if g.State() != StoreModifiersApplied {
		t.Errorf("state = %s, want modifiers_applied", g.State())
	}
	for _, tile := range g.Snapshot().Tiles {
		isSeed := tile.Position == Position{Row: 3, Column: 3}
		if tile.CanWalkOn == isSeed || tile.CanSpawnOn == isSeed || tile.HasOccupant() {
			t.Errorf("tile %+v has unexpected flags", tile)
		}
	}

	if g.ApplyStartupModifiers() {
		t.Error("modifiers applied twice in one generation")
	}
}

func TestValidityGatedLocations(t *testing.T) {
	g := newTestGrid(t, DefaultConfig(), WithSeeds(
		[]TileModifier{{Row: 1, Column: 1}},
		[]TileModifier{{Row: 2, Column: 2}},
	))

	tests := []struct {
		name     string
		row, col int
		walk     bool
		spawn    bool
		inBounds bool
	}{
		{"default", 0, 0, true, true, true},
		{"no spawn", 1, 1, true, false, true},
		{"no walk", 2, 2, false, true, true},
		{"outside", 10, 0, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := g.Config().TileLocation(tt.row, tt.col, false, Vec3{Z: 1})

			loc, ok := g.TileToGridLocation(tt.row, tt.col, false, Vec3{Z: 1})
			if ok != tt.inBounds || loc != want {
				t.Errorf("TileToGridLocation = %+v,%v", loc, ok)
			}
			loc, ok = g.TileToWalkGridLocation(tt.row, tt.col, false, Vec3{Z: 1})
			if ok != tt.walk || loc != want {
				t.Errorf("TileToWalkGridLocation = %+v,%v", loc, ok)
			}
			loc, ok = g.TileToSpawnGridLocation(tt.row, tt.col, false, Vec3{Z: 1})
			if ok != tt.spawn || loc != want {
				t.Errorf("TileToSpawnGridLocation = %+v,%v", loc, ok)
			}
		})
	}
}

func TestLocationToGridLocation(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	loc, ok := g.LocationToGridLocation(Vec3{X: 312, Y: 788, Z: 40})
	if !ok || loc != (Vec3{X: 350, Y: 750}) {
		t.Errorf("LocationToGridLocation = %+v,%v, want (350,750,0),true", loc, ok)
	}
	if _, ok := g.LocationToGridLocation(Vec3{X: -1}); ok {
		t.Error("location below origin snapped to a tile")
	}

	loc, ok = g.LocationToGridLocation(Vec3{X: -150, Y: 250})
	if ok || loc != (Vec3{X: -150, Y: 250}) {
		t.Errorf("off-grid LocationToGridLocation = %+v,%v, want (-150,250,0),false", loc, ok)
	}
}

func TestClaimTileSequence(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())
	loc := Vec3{X: 210, Y: 290}

	if !g.ClaimTile(1, loc, true) {
		t.Fatal("first claim failed")
	}
	got, _ := g.Get(2, 2)
	if got.CanWalkOn || got.CanSpawnOn || got.Occupant != 1 {
		t.Errorf("after first claim: %+v", got)
	}

	if !g.ClaimTile(2, loc, false) {
		t.Fatal("second claim failed")
	}
	got, _ = g.Get(2, 2)
	if got.CanWalkOn || got.CanSpawnOn || got.Occupant != 2 {
		t.Errorf("after second claim: %+v", got)
	}
}

func TestClaimTileRejects(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())
	before := g.Snapshot().Tiles

	if g.ClaimTile(1, Vec3{X: -5, Y: 5}, true) {
		t.Error("claimed a tile outside the grid")
	}
	if g.ClaimTile(1, Vec3{X: 5, Y: 1005}, true) {
		t.Error("claimed a tile past the last column")
	}
	if g.ClaimTile(NoEntity, Vec3{X: 5, Y: 5}, true) {
		t.Error("claimed a tile without an entity")
	}

	after := g.Snapshot().Tiles
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("rejected claim modified tile %d", i)
		}
	}
}

func TestReleaseTile(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())
	g.ClaimTile(9, center(g, 4, 4), true)

	prev, err := g.ReleaseTile(4, 4, false)
	if err != nil || prev != 9 {
		t.Fatalf("ReleaseTile = %v,%v, want entity#9", prev, err)
	}
	got, _ := g.Get(4, 4)
	if got.HasOccupant() || !got.CanSpawnOn || got.CanWalkOn {
		t.Errorf("after release without restore: %+v", got)
	}

	if _, err := g.ReleaseTile(4, 4, true); err != nil {
		t.Fatalf("ReleaseTile: %v", err)
	}
	got, _ = g.Get(4, 4)
	if !got.CanWalkOn {
		t.Error("restoreWalkable did not re-enable movement")
	}

	if _, err := g.ReleaseTile(10, 10, true); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ReleaseTile out of range = %v, want ErrOutOfRange", err)
	}
}

func TestReleaseTileKeepsSeeds(t *testing.T) {
	g := newTestGrid(t, DefaultConfig(), WithSeeds(
		[]TileModifier{{Row: 3, Column: 3}},
		[]TileModifier{{Row: 6, Column: 6}},
	))

	tests := []struct {
		name      string
		row, col  int
		claim     bool
		wantWalk  bool
		wantSpawn bool
	}{
		{"unoccupied no-spawn seed", 3, 3, false, true, false},
		{"claimed no-spawn seed", 3, 3, true, true, false},
		{"claimed no-walk seed", 6, 6, true, false, true},
		{"claimed plain tile", 5, 5, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.claim {
				g.ClaimTile(7, center(g, tt.row, tt.col), true)
			}
			if _, err := g.ReleaseTile(tt.row, tt.col, true); err != nil {
				t.Fatalf("ReleaseTile: %v", err)
			}
			got, _ := g.Get(tt.row, tt.col)
			if got.HasOccupant() || got.CanWalkOn != tt.wantWalk || got.CanSpawnOn != tt.wantSpawn {
				t.Errorf("after release: %+v, want walk=%v spawn=%v", got, tt.wantWalk, tt.wantSpawn)
			}
		})
	}
}

func TestNeighbors(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	got := g.Neighbors(5, 5, 1, 1)
	if len(got) != 9 {
		t.Fatalf("Neighbors returned %d tiles, want 9", len(got))
	}
	i := 0
	for r := 4; r <= 6; r++ {
		for c := 4; c <= 6; c++ {
			if got[i].Position != (Position{Row: r, Column: c}) {
				t.Errorf("neighbor %d = %+v, want (%d,%d)", i, got[i].Position, r, c)
			}
			i++
		}
	}

	if err := g.Set(5, 5, TileState{CanWalkOn: false, CanSpawnOn: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got = g.Neighbors(5, 5, 1, 1)
	if len(got) != 8 {
		t.Fatalf("Neighbors returned %d tiles, want 8", len(got))
	}
	for _, n := range got {
		if n.Position == (Position{Row: 5, Column: 5}) {
			t.Error("non-walkable center tile included")
		}
	}
}

func TestNeighborsEdges(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())
	g.ClaimTile(3, center(g, 1, 0), false)

	corner := g.Neighbors(0, 0, 1, 1)
	if len(corner) != 4 {
		t.Fatalf("corner neighbors = %d, want 4", len(corner))
	}
	if corner[2].Position != (Position{Row: 1, Column: 0}) || corner[2].Occupant != 3 {
		t.Errorf("neighbor should carry stored occupant: %+v", corner[2])
	}

	if n := g.Neighbors(5, 5, -1, 1); len(n) != 0 {
		t.Errorf("negative radius returned %d tiles", len(n))
	}
	if n := g.Neighbors(5, 5, 0, 2); len(n) != 5 {
		t.Errorf("row radius 0, column radius 2 returned %d tiles, want 5", len(n))
	}
}

func TestNeighborsHugeRadius(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	done := make(chan []TileState, 1)
	go func() { done <- g.Neighbors(5, 5, 200000, 200000) }()

	select {
	case got := <-done:
		if len(got) != 100 {
			t.Errorf("huge radius returned %d tiles, want the whole 10x10 grid", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Neighbors with a huge radius did not return")
	}

	if err := g.Set(1, 1, TileState{CanWalkOn: true, CanSpawnOn: true}); err != nil {
		t.Fatalf("Set after huge query: %v", err)
	}

	tests := []struct {
		name                 string
		row, col             int
		rowRadius, colRadius int
		want                 int
	}{
		{"max radius", 5, 5, math.MaxInt, math.MaxInt, 100},
		{"max radius off-grid center", math.MinInt, math.MaxInt, math.MaxInt, 1, 0},
		{"window misses grid", -50, 5, 10, 10, 0},
		{"window clips grid", -5, 5, 5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := g.Neighbors(tt.row, tt.col, tt.rowRadius, tt.colRadius); len(n) != tt.want {
				t.Errorf("Neighbors = %d tiles, want %d", len(n), tt.want)
			}
		})
	}
}

func TestTileRelativeTo(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	tests := []struct {
		name     string
		row, col int
		dr, dc   int
		rotate   bool
		rot      Rotator
		want     Position
		wantErr  error
	}{
		{"step along rows", 2, 2, 1, 0, false, ZeroRotator, Position{3, 2}, nil},
		{"rotation ignored", 2, 2, 1, 0, false, Rotator{Yaw: 90}, Position{3, 2}, nil},
		{"yaw 90 turns rows into columns", 2, 2, 1, 0, true, Rotator{Yaw: 90}, Position{2, 3}, nil},
		{"diagonal back", 5, 5, -2, -3, false, ZeroRotator, Position{3, 2}, nil},
		{"target off grid", 9, 9, 1, 0, false, ZeroRotator, InvalidPosition, ErrOutOfRange},
		{"base off grid", -1, 0, 1, 0, false, ZeroRotator, InvalidPosition, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, tile, err := g.TileRelativeTo(tt.row, tt.col, tt.dr, tt.dc, tt.rotate, tt.rot)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if tile.Position != InvalidPosition {
					t.Errorf("failed lookup returned %+v", tile.Position)
				}
				return
			}
			if err != nil {
				t.Fatalf("TileRelativeTo: %v", err)
			}
			if tile.Position != tt.want {
				t.Errorf("landed on %+v, want %+v", tile.Position, tt.want)
			}
			if loc != center(g, tt.want.Row, tt.want.Column) {
				t.Errorf("location %+v is not the tile center", loc)
			}
		})
	}

	_, tile, err := g.TileRelativeToLocation(Vec3{X: 201, Y: 299}, 0, 1, false, ZeroRotator)
	if err != nil || tile.Position != (Position{Row: 2, Column: 3}) {
		t.Errorf("TileRelativeToLocation = %+v, %v", tile.Position, err)
	}
	if _, _, err := g.TileRelativeToLocation(Vec3{X: -1}, 0, 0, false, ZeroRotator); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("TileRelativeToLocation off grid = %v", err)
	}
}

func TestNearestTile(t *testing.T) {
	g := newTestGrid(t, Config{Rows: 5, Columns: 5, TileSize: 10})
	g.ClaimTile(1, Vec3{X: 12, Y: 12}, false)

	tests := []struct {
		name   string
		loc    Vec3
		filter TileFilter
		want   Position
	}{
		{"containing tile", Vec3{X: 12, Y: 12}, AnyTile, Position{1, 1}},
		{"nil filter", Vec3{X: 12, Y: 12}, nil, Position{1, 1}},
		{"tie goes row-major", Vec3{X: 12, Y: 12}, Spawnable, Position{0, 1}},
		{"unoccupied", Vec3{X: 12, Y: 12}, Unoccupied, Position{0, 1}},
		{"outside clamps to edge", Vec3{X: -100, Y: 23}, AnyTile, Position{0, 2}},
		{"far corner", Vec3{X: 900, Y: 900}, Walkable, Position{4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tile, loc, ok := g.NearestTile(tt.loc, tt.filter)
			if !ok {
				t.Fatal("no tile found")
			}
			if tile.Position != tt.want {
				t.Errorf("nearest = %+v, want %+v", tile.Position, tt.want)
			}
			if loc != center(g, tt.want.Row, tt.want.Column) {
				t.Errorf("location %+v is not the tile center", loc)
			}
		})
	}

	none := func(TileState) bool { return false }
	if _, _, ok := g.NearestTile(Vec3{}, none); ok {
		t.Error("filter rejecting every tile still found one")
	}

	for _, loc := range []Vec3{{X: math.Inf(1)}, {Y: math.Inf(-1)}, {X: math.NaN()}} {
		if tile, _, ok := g.NearestTile(loc, AnyTile); ok {
			t.Errorf("NearestTile(%+v) = %+v, want no tile", loc, tile.Position)
		}
	}
	if tile, _, ok := g.NearestTile(Vec3{X: 1e6, Y: 23}, AnyTile); !ok || tile.Position != (Position{4, 2}) {
		t.Errorf("far finite location = %+v,%v, want (4,2)", tile.Position, ok)
	}
}

func TestNearestTileLargeGridNoMatch(t *testing.T) {
	g := newTestGrid(t, Config{Rows: 300, Columns: 300, TileSize: 1})
	none := func(TileState) bool { return false }

	start := time.Now()
	if _, _, ok := g.NearestTile(Vec3{X: 150, Y: 150}, none); ok {
		t.Fatal("filter rejecting every tile still found one")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("exhaustive search took %v", elapsed)
	}

	g.ClaimTile(1, Vec3{X: 299.5, Y: 0.5}, false)
	tile, _, ok := g.NearestTile(Vec3{X: 150, Y: 150}, func(t TileState) bool { return t.HasOccupant() })
	if !ok || tile.Position != (Position{299, 0}) {
		t.Errorf("lone occupied corner = %+v,%v", tile.Position, ok)
	}
}

func TestNearestTileSearchesPastFirstMatch(t *testing.T) {
	g := newTestGrid(t, Config{Rows: 3, Columns: 6, TileSize: 10})
	for _, p := range []Position{{1, 0}, {0, 1}, {1, 1}, {2, 1}, {0, 2}, {1, 2}, {2, 2}, {0, 3}, {2, 3}} {
		g.ClaimTile(5, center(g, p.Row, p.Column), false)
	}

	// Only the corners (0,0) and (2,0) are free on the first ring; (1,3) on
	// the second ring is closer to a point near the edge of (1,1).
	tile, _, ok := g.NearestTile(Vec3{X: 15, Y: 19.9}, Unoccupied)
	if !ok {
		t.Fatal("no tile found")
	}
	if tile.Position != (Position{Row: 1, Column: 3}) {
		t.Errorf("nearest = %+v, want (1,3)", tile.Position)
	}
}

func TestTwoPhaseSpawn(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	res, err := g.ReserveSpawn(4, 4, true, Vec3{Z: 5})
	if err != nil {
		t.Fatalf("ReserveSpawn: %v", err)
	}
	if res.Location != (Vec3{X: 450, Y: 450, Z: 5}) {
		t.Errorf("reservation location = %+v", res.Location)
	}
	if err := g.CommitSpawn(res, NoEntity, false); !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("commit with NoEntity = %v, want ErrInvalidEntity", err)
	}
	if err := g.CommitSpawn(res, 5, false); err != nil {
		t.Fatalf("CommitSpawn: %v", err)
	}

	got, _ := g.Get(4, 4)
	if got.Occupant != 5 || got.CanSpawnOn || !got.CanWalkOn {
		t.Errorf("after commit: %+v", got)
	}

	_, err = g.ReserveSpawn(4, 4, true, Vec3{})
	if !errors.Is(err, ErrNotSpawnable) || !errors.Is(err, ErrInvalidTile) {
		t.Errorf("reserve occupied tile = %v, want ErrNotSpawnable", err)
	}
	if _, err := g.ReserveSpawn(-1, 4, true, Vec3{}); !errors.Is(err, ErrNotSpawnable) || !errors.Is(err, ErrOutOfRange) {
		t.Errorf("reserve off grid = %v", err)
	}
}

func TestCommitSpawnContended(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	first, _ := g.ReserveSpawn(6, 6, true, Vec3{})
	second, _ := g.ReserveSpawn(6, 6, true, Vec3{})

	if err := g.CommitSpawn(first, 1, true); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := g.CommitSpawn(second, 2, true); !errors.Is(err, ErrNotSpawnable) {
		t.Errorf("second commit = %v, want ErrNotSpawnable", err)
	}
	got, _ := g.Get(6, 6)
	if got.Occupant != 1 {
		t.Errorf("occupant = %s, want entity#1", got.Occupant)
	}
}

func TestCommitSpawnStale(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())
	res, err := g.ReserveSpawn(1, 1, true, Vec3{})
	if err != nil {
		t.Fatalf("ReserveSpawn: %v", err)
	}

	g.mu.Lock()
	g.store.tiles = nil
	g.mu.Unlock()
	if !g.Generate() {
		t.Fatal("Generate did not rebuild a cleared store")
	}

	if err := g.CommitSpawn(res, 3, false); !errors.Is(err, ErrStaleReservation) {
		t.Errorf("commit after regenerate = %v, want ErrStaleReservation", err)
	}
	got, _ := g.Get(1, 1)
	if got.HasOccupant() {
		t.Error("stale commit marked the tile")
	}
}

func TestConcurrentCommitSpawn(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	const workers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []EntityRef
	)
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(e EntityRef) {
			defer wg.Done()
			res, err := g.ReserveSpawn(7, 3, true, Vec3{})
			if err != nil {
				return
			}
			if g.CommitSpawn(res, e, true) == nil {
				mu.Lock()
				wins = append(wins, e)
				mu.Unlock()
			}
		}(EntityRef(i))
	}
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("%d commits succeeded, want exactly 1", len(wins))
	}
	got, _ := g.Get(7, 3)
	if got.Occupant != wins[0] {
		t.Errorf("occupant = %s, winner = %s", got.Occupant, wins[0])
	}
}

type recordingSpawner struct {
	next   EntityRef
	err    error
	calls  int
	class  string
	placed Transform
}

func (s *recordingSpawner) Spawn(_ context.Context, class string, t Transform) (EntityRef, error) {
	s.calls++
	s.class = class
	s.placed = t
	return s.next, s.err
}

func TestSpawnOnGrid(t *testing.T) {
	g := newTestGrid(t, DefaultConfig(), WithSeeds([]TileModifier{{Row: 0, Column: 0}}, nil))
	ctx := context.Background()

	sp := &recordingSpawner{next: 42}
	req := NewSpawnRequest("Goblin", 3, 4)
	req.Transform.Location = Vec3{Z: 50}
	req.Transform.Rotation = Rotator{Yaw: 45}

	entity, err := g.SpawnOnGrid(ctx, sp, req)
	if err != nil || entity != 42 {
		t.Fatalf("SpawnOnGrid = %v,%v", entity, err)
	}
	if sp.class != "Goblin" {
		t.Errorf("class = %q", sp.class)
	}
	if sp.placed.Location != (Vec3{X: 350, Y: 450, Z: 50}) || sp.placed.Rotation.Yaw != 45 || sp.placed.Scale != (Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("transform = %+v", sp.placed)
	}
	got, _ := g.Get(3, 4)
	if got.Occupant != 42 || got.CanSpawnOn || !got.CanWalkOn {
		t.Errorf("spawned tile = %+v", got)
	}

	t.Run("no world", func(t *testing.T) {
		if _, err := g.SpawnOnGrid(ctx, nil, NewSpawnRequest("Goblin", 1, 1)); !errors.Is(err, ErrNoWorldContext) {
			t.Errorf("error = %v, want ErrNoWorldContext", err)
		}
	})
	t.Run("no class", func(t *testing.T) {
		if _, err := g.SpawnOnGrid(ctx, sp, NewSpawnRequest("", 1, 1)); !errors.Is(err, ErrInvalidEntityClass) {
			t.Errorf("error = %v, want ErrInvalidEntityClass", err)
		}
	})
	t.Run("seeded tile", func(t *testing.T) {
		calls := sp.calls
		if _, err := g.SpawnOnGrid(ctx, sp, NewSpawnRequest("Goblin", 0, 0)); !errors.Is(err, ErrNotSpawnable) {
			t.Errorf("error = %v, want ErrNotSpawnable", err)
		}
		if sp.calls != calls {
			t.Error("spawner called for a non-spawnable tile")
		}
	})
	t.Run("spawner fails", func(t *testing.T) {
		boom := errors.New("boom")
		failing := SpawnerFunc(func(context.Context, string, Transform) (EntityRef, error) {
			return NoEntity, boom
		})
		if _, err := g.SpawnOnGrid(ctx, failing, NewSpawnRequest("Goblin", 8, 8)); !errors.Is(err, boom) {
			t.Errorf("error = %v, want wrapped spawner error", err)
		}
		if tile, _ := g.Get(8, 8); !tile.CanSpawnOn || tile.HasOccupant() {
			t.Errorf("failed spawn marked the tile: %+v", tile)
		}
	})
}

func TestChangeHandler(t *testing.T) {
	var (
		g     *Grid
		kinds []ChangeKind
		last  TileChange
	)
	handler := func(c TileChange) {
		// Re-entering the grid must not deadlock.
		_ = g.Stats()
		kinds = append(kinds, c.Kind)
		last = c
	}

	g, err := New(DefaultConfig(), WithChangeHandler(handler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.Init()
	g.ClaimTile(7, center(g, 2, 5), true)

	want := []ChangeKind{ChangeGenerated, ChangeModifiersApplied, ChangeClaimed}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, kinds[i], want[i])
		}
	}

	if last.Position != (Position{Row: 2, Column: 5}) || last.Entity != 7 {
		t.Errorf("claim change = %+v", last)
	}
	if !last.Before.CanWalkOn || last.After.CanWalkOn || last.Generation != 1 {
		t.Errorf("claim before/after = %+v -> %+v", last.Before, last.After)
	}

	g.Generate()
	if len(kinds) != len(want) {
		t.Error("idempotent Generate emitted a change")
	}
}

func TestSetIndex(t *testing.T) {
	g := newTestGrid(t, Config{Rows: 2, Columns: 4, TileSize: 1})

	if err := g.SetIndex(6, TileState{Occupant: 11, CanWalkOn: true}); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	got, _ := g.Get(1, 2)
	if got.Occupant != 11 || got.CanSpawnOn {
		t.Errorf("Get(1,2) = %+v", got)
	}
	if err := g.SetIndex(8, TileState{}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetIndex(8) = %v", err)
	}
	if err := g.Set(2, 0, TileState{}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Set(2,0) = %v", err)
	}
}

func TestSelectTile(t *testing.T) {
	g := newTestGrid(t, DefaultConfig())

	if !g.SelectTile(2, 3) {
		t.Fatal("SelectTile(2,3) rejected")
	}
	if p, visible := g.Selected(); p != (Position{Row: 2, Column: 3}) || !visible {
		t.Errorf("Selected = %+v,%v", p, visible)
	}

	if g.SelectTile(-1, 0) {
		t.Error("SelectTile accepted an invalid tile")
	}
	if _, visible := g.Selected(); visible {
		t.Error("invalid selection should hide the cursor")
	}
}

func TestDescribeTile(t *testing.T) {
	g := newTestGrid(t, DefaultConfig(), WithSeeds(nil, []TileModifier{{Row: 3, Column: 3}}))

	text, at, ok := g.DescribeTile(Vec3{X: 301, Y: 399})
	if !ok {
		t.Fatal("DescribeTile found nothing")
	}
	want := "X: 3\nY: 3\nWalkable False\nSpawnable True\nNone"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if at != (Vec3{X: 350, Y: 350, Z: 10}) {
		t.Errorf("at = %+v", at)
	}

	g.ClaimTile(12, at, false)
	text, _, _ = g.DescribeTile(at)
	if text != "X: 3\nY: 3\nWalkable False\nSpawnable False\nentity#12" {
		t.Errorf("occupied text = %q", text)
	}

	if _, _, ok := g.DescribeTile(Vec3{X: 5000}); ok {
		t.Error("DescribeTile off grid reported a tile")
	}
}

func TestSnapshot(t *testing.T) {
	g := newTestGrid(t, Config{Rows: 3, Columns: 4, TileSize: 25, Origin: Vec3{X: 10}},
		WithSeeds([]TileModifier{{Row: 0, Column: 1}}, []TileModifier{{Row: 2, Column: 2}}))
	g.ClaimTile(4, center(g, 1, 1), true)

	snap := g.Snapshot()
	if snap.Rows != 3 || snap.Columns != 4 || snap.TileSize != 25 || snap.Origin.X != 10 {
		t.Errorf("snapshot layout = %+v", snap)
	}
	if snap.State != "modifiers_applied" || snap.Generation != 1 {
		t.Errorf("snapshot state = %s gen %d", snap.State, snap.Generation)
	}

	st := snap.Stats()
	want := Stats{Tiles: 12, Walkable: 10, Spawnable: 10, Occupied: 1}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
	if live := g.Stats(); live != want {
		t.Errorf("grid Stats = %+v, want %+v", live, want)
	}

	snap.Tiles[0].Occupant = 99
	snap.NoSpawnSeeds[0].Row = 2
	if tile, _ := g.Get(0, 0); tile.HasOccupant() {
		t.Error("snapshot shares tile storage with the grid")
	}
	if g.Snapshot().NoSpawnSeeds[0].Row != 0 {
		t.Error("snapshot shares seed storage with the grid")
	}

	tile, ok := snap.Tile(1, 1)
	if !ok || tile.Occupant != 4 {
		t.Errorf("snap.Tile(1,1) = %+v,%v", tile, ok)
	}
	if _, ok := snap.Tile(3, 0); ok {
		t.Error("snap.Tile accepted an out-of-range row")
	}
	if snap.Config() != g.Config() {
		t.Errorf("snapshot config = %+v", snap.Config())
	}
}

func TestRevisionAdvancesOnMutation(t *testing.T) {
	g, err := New(Config{Rows: 2, Columns: 2, TileSize: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Revision() != 0 {
		t.Fatalf("fresh grid revision = %d", g.Revision())
	}

	g.Init()
	rev := g.Revision()
	if rev != 2 {
		t.Errorf("after Init revision = %d, want 2", rev)
	}

	g.Init()
	if g.Revision() != rev {
		t.Error("repeated Init should not advance the revision")
	}

	steps := []struct {
		name string
		fn   func()
	}{
		{"select", func() { g.SelectTile(0, 0) }},
		{"claim", func() { g.ClaimTile(1, center(g, 0, 1), false) }},
		{"release", func() { g.ReleaseTile(0, 1, false) }},
		{"set", func() { g.Set(1, 1, NewTileState(1, 1)) }},
	}
	for _, s := range steps {
		s.fn()
		if next := g.Revision(); next != rev+1 {
			t.Errorf("%s: revision = %d, want %d", s.name, next, rev+1)
		}
		rev = g.Revision()
	}

	if snap := g.Snapshot(); snap.Revision != rev {
		t.Errorf("Snapshot.Revision = %d, want %d", snap.Revision, rev)
	}
}
