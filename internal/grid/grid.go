package grid

import (
	"fmt"
	"log"
	"sync"
)

// ChangeKind classifies a TileChange.
type ChangeKind uint8

const (
	ChangeGenerated ChangeKind = iota + 1
	ChangeModifiersApplied
	ChangeSet
	ChangeClaimed
	ChangeReleased
	ChangeSpawned
)

// String returns the wire name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeGenerated:
		return "generated"
	case ChangeModifiersApplied:
		return "modifiers_applied"
	case ChangeSet:
		return "set"
	case ChangeClaimed:
		return "claimed"
	case ChangeReleased:
		return "released"
	case ChangeSpawned:
		return "spawned"
	default:
		return "unknown"
	}
}

// TileChange describes one mutation. Grid-wide changes (generate, modifiers)
// carry InvalidPosition and zero tile states.
type TileChange struct {
	Kind       ChangeKind
	Position   Position
	Before     TileState
	After      TileState
	Entity     EntityRef
	Generation uint64
}

// Grid is the spatial index: layout, tile store and the queries over them.
// All methods are safe for concurrent use.
type Grid struct {
	mu    sync.RWMutex
	cfg   Config
	store *Store

	noSpawnSeeds []TileModifier
	noWalkSeeds  []TileModifier

	selected   Position
	showSelect bool

	// revision counts every mutation, selection included.
	revision uint64

	onChange func(TileChange)
}

// Option configures a Grid at construction.
type Option func(*Grid)

// WithSeeds sets the startup no-spawn and no-walk lists.
func WithSeeds(noSpawn, noWalk []TileModifier) Option {
	return func(g *Grid) {
		g.noSpawnSeeds = append([]TileModifier(nil), noSpawn...)
		g.noWalkSeeds = append([]TileModifier(nil), noWalk...)
	}
}

// WithChangeHandler registers fn for every mutation. fn runs outside the grid lock.
func WithChangeHandler(fn func(TileChange)) Option {
	return func(g *Grid) {
		g.onChange = fn
	}
}

// New builds an empty grid. Call Init (or Generate) before querying tiles.
func New(cfg Config, opts ...Option) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		cfg:      cfg,
		store:    NewStore(cfg.Rows, cfg.Columns),
		selected: InvalidPosition,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SetChangeHandler replaces the mutation callback.
func (g *Grid) SetChangeHandler(fn func(TileChange)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

// Init generates the tiles if needed and overlays the startup seeds.
func (g *Grid) Init() {
	g.Generate()
	g.ApplyStartupModifiers()
}

// Generate rebuilds the store when its size does not match the layout.
func (g *Grid) Generate() bool {
	g.mu.Lock()
	rebuilt := g.store.Generate()
	if rebuilt {
		g.revision++
	}
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	if rebuilt {
		log.Printf("🧱 Generated %dx%d tile grid (generation %d)", g.cfg.Rows, g.cfg.Columns, gen)
		emit(handler, TileChange{Kind: ChangeGenerated, Position: InvalidPosition, Generation: gen})
	}
	return rebuilt
}

// ApplyStartupModifiers overlays the configured seed lists once per generation.
func (g *Grid) ApplyStartupModifiers() bool {
	g.mu.Lock()
	applied := g.store.ApplyStartupModifiers(g.noSpawnSeeds, g.noWalkSeeds)
	if applied {
		g.revision++
	}
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	if applied {
		emit(handler, TileChange{Kind: ChangeModifiersApplied, Position: InvalidPosition, Generation: gen})
	}
	return applied
}

// Config returns the immutable layout.
func (g *Grid) Config() Config {
	return g.cfg
}

// Dimensions returns rows and columns.
func (g *Grid) Dimensions() (rows, cols int) {
	return g.cfg.Rows, g.cfg.Columns
}

// TileSize returns the edge length of one tile.
func (g *Grid) TileSize() float64 { return g.cfg.TileSize }

// Width returns Columns*TileSize.
func (g *Grid) Width() float64 { return g.cfg.Width() }

// Height returns Rows*TileSize.
func (g *Grid) Height() float64 { return g.cfg.Height() }

// Origin returns the world anchor of tile (0,0).
func (g *Grid) Origin() Vec3 { return g.cfg.Origin }

// IsInitialized reports whether the store holds a full set of tiles.
func (g *Grid) IsInitialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.IsInitialized()
}

// State reports the store's init state.
func (g *Grid) State() StoreState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.State()
}

// Get returns a copy of the tile at (row, col).
func (g *Grid) Get(row, col int) (TileState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.Get(row, col)
}

// GetIndex returns a copy of the tile at flat index i (row*Columns+col).
func (g *Grid) GetIndex(i int) (TileState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.GetIndex(i)
}

// Set replaces the walk, spawn and occupant fields at (row, col).
func (g *Grid) Set(row, col int, state TileState) error {
	g.mu.Lock()
	before, err := g.store.Get(row, col)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	_ = g.store.Set(row, col, state)
	g.revision++
	after, _ := g.store.Get(row, col)
	gen := g.store.Generation()
	handler := g.onChange
	g.mu.Unlock()

	emit(handler, TileChange{
		Kind:       ChangeSet,
		Position:   after.Position,
		Before:     before,
		After:      after,
		Entity:     after.Occupant,
		Generation: gen,
	})
	return nil
}

// SetIndex is Set addressed by flat index.
func (g *Grid) SetIndex(i int, state TileState) error {
	g.mu.RLock()
	t, err := g.store.GetIndex(i)
	g.mu.RUnlock()
	if err != nil {
		return err
	}
	return g.Set(t.Position.Row, t.Position.Column, state)
}

// SelectTile moves the selection cursor used by overlays.
// An out-of-range tile hides the selection and returns false.
func (g *Grid) SelectTile(row, col int) bool {
	valid := g.cfg.InBounds(row, col)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.revision++
	g.showSelect = valid
	if valid {
		g.selected = Position{Row: row, Column: col}
	}
	return valid
}

// Revision returns a counter that advances on every mutation.
func (g *Grid) Revision() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

// Selected returns the selection cursor and whether it is visible.
func (g *Grid) Selected() (Position, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selected, g.showSelect
}

// DescribeTile formats the tile under loc for debug display. at is where a
// renderer should draw the text: the tile center raised 10 units.
func (g *Grid) DescribeTile(loc Vec3) (text string, at Vec3, ok bool) {
	row, col, valid := g.cfg.LocationToTile(loc)
	if !valid {
		return "", Vec3{}, false
	}

	g.mu.RLock()
	t, err := g.store.Get(row, col)
	g.mu.RUnlock()
	if err != nil {
		return "", Vec3{}, false
	}

	at = g.cfg.TileLocation(row, col, true, Vec3{Z: 10})
	text = fmt.Sprintf("X: %d\nY: %d\nWalkable %s\nSpawnable %s\n%s",
		t.Position.Row, t.Position.Column, titleBool(t.CanWalkOn), titleBool(t.CanSpawnOn), t.Occupant)
	return text, at, true
}

func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func emit(handler func(TileChange), changes ...TileChange) {
	if handler == nil {
		return
	}
	for _, c := range changes {
		handler(c)
	}
}
