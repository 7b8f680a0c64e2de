package grid

// Snapshot is an immutable copy of the grid for renderers and the API.
type Snapshot struct {
	Rows             int            `json:"rows"`
	Columns          int            `json:"columns"`
	TileSize         float64        `json:"tileSize"`
	Origin           Vec3           `json:"origin"`
	State            string         `json:"state"`
	Generation       uint64         `json:"generation"`
	Revision         uint64         `json:"revision"`
	Tiles            []TileState    `json:"tiles"`
	NoSpawnSeeds     []TileModifier `json:"noSpawnSeeds"`
	NoWalkSeeds      []TileModifier `json:"noWalkSeeds"`
	Selected         Position       `json:"selected"`
	SelectionVisible bool           `json:"selectionVisible"`
}

// Stats counts tile flags.
type Stats struct {
	Tiles     int `json:"tiles"`
	Walkable  int `json:"walkable"`
	Spawnable int `json:"spawnable"`
	Occupied  int `json:"occupied"`
}

// Snapshot copies the current grid state.
func (g *Grid) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return &Snapshot{
		Rows:             g.cfg.Rows,
		Columns:          g.cfg.Columns,
		TileSize:         g.cfg.TileSize,
		Origin:           g.cfg.Origin,
		State:            g.store.State().String(),
		Generation:       g.store.Generation(),
		Revision:         g.revision,
		Tiles:            g.store.Tiles(),
		NoSpawnSeeds:     append([]TileModifier(nil), g.noSpawnSeeds...),
		NoWalkSeeds:      append([]TileModifier(nil), g.noWalkSeeds...),
		Selected:         g.selected,
		SelectionVisible: g.showSelect,
	}
}

// Stats counts tile flags without copying the store.
func (g *Grid) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return countTiles(g.store.tiles)
}

// Tile returns the tile at (row, col) from the snapshot.
func (s *Snapshot) Tile(row, col int) (TileState, bool) {
	if row < 0 || row >= s.Rows || col < 0 || col >= s.Columns || len(s.Tiles) != s.Rows*s.Columns {
		return InvalidTile(), false
	}
	return s.Tiles[row*s.Columns+col], true
}

// Config rebuilds the layout the snapshot was taken from.
func (s *Snapshot) Config() Config {
	return Config{Rows: s.Rows, Columns: s.Columns, TileSize: s.TileSize, Origin: s.Origin}
}

// Stats counts tile flags in the snapshot.
func (s *Snapshot) Stats() Stats {
	return countTiles(s.Tiles)
}

func countTiles(tiles []TileState) Stats {
	st := Stats{Tiles: len(tiles)}
	for _, t := range tiles {
		if t.CanWalkOn {
			st.Walkable++
		}
		if t.CanSpawnOn {
			st.Spawnable++
		}
		if t.HasOccupant() {
			st.Occupied++
		}
	}
	return st
}
