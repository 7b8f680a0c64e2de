package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tilegrid/internal/grid"
)

// tileResponse pairs a tile with its world-space center.
type tileResponse struct {
	Tile     grid.TileState `json:"tile"`
	Location grid.Vec3      `json:"location"`
}

func (h *routerHandlers) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	cfg := h.grid.Config()
	sel, visible := h.grid.Selected()

	writeJSON(w, map[string]interface{}{
		"rows":             cfg.Rows,
		"columns":          cfg.Columns,
		"tileSize":         cfg.TileSize,
		"origin":           cfg.Origin,
		"width":            cfg.Width(),
		"height":           cfg.Height(),
		"state":            h.grid.State().String(),
		"stats":            h.grid.Stats(),
		"selected":         sel,
		"selectionVisible": visible,
	})
}

func (h *routerHandlers) handleGetTiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.grid.Snapshot())
}

func (h *routerHandlers) handleGetTile(w http.ResponseWriter, r *http.Request) {
	row, col, ok := tileParams(w, r)
	if !ok {
		return
	}
	tile, loc, err := h.grid.TileWithLocation(row, col)
	if err != nil {
		writeGridError(w, err)
		return
	}
	writeJSON(w, tileResponse{Tile: tile, Location: loc})
}

func (h *routerHandlers) handleSetTile(w http.ResponseWriter, r *http.Request) {
	row, col, ok := tileParams(w, r)
	if !ok {
		return
	}

	var req struct {
		CanWalkOn  *bool          `json:"canWalkOn"`
		CanSpawnOn *bool          `json:"canSpawnOn"`
		Occupant   grid.EntityRef `json:"occupant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.CanWalkOn == nil || req.CanSpawnOn == nil {
		writeError(w, "canWalkOn and canSpawnOn are required", http.StatusBadRequest)
		return
	}

	state := grid.TileState{CanWalkOn: *req.CanWalkOn, CanSpawnOn: *req.CanSpawnOn, Occupant: req.Occupant}
	if err := h.grid.Set(row, col, state); err != nil {
		writeGridError(w, err)
		return
	}
	tile, loc, _ := h.grid.TileWithLocation(row, col)
	writeJSON(w, tileResponse{Tile: tile, Location: loc})
}

func (h *routerHandlers) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	row, col, ok := tileParams(w, r)
	if !ok {
		return
	}
	rowRadius, err1 := queryInt(r, "rows", 1)
	colRadius, err2 := queryInt(r, "cols", 1)
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.grid.Config().InBounds(row, col) {
		writeGridError(w, fmt.Errorf("%w: (%d, %d)", grid.ErrOutOfRange, row, col))
		return
	}

	tiles := h.grid.Neighbors(row, col, rowRadius, colRadius)
	if tiles == nil {
		tiles = []grid.TileState{}
	}
	writeJSON(w, map[string]interface{}{
		"tiles": tiles,
		"count": len(tiles),
	})
}

func (h *routerHandlers) handleRelative(w http.ResponseWriter, r *http.Request) {
	row, col, ok := tileParams(w, r)
	if !ok {
		return
	}
	dr, err1 := queryInt(r, "dr", 0)
	dc, err2 := queryInt(r, "dc", 0)
	pitch, err3 := queryFloat(r, "pitch", 0)
	yaw, err4 := queryFloat(r, "yaw", 0)
	roll, err5 := queryFloat(r, "roll", 0)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rot := grid.Rotator{Pitch: pitch, Yaw: yaw, Roll: roll}
	loc, tile, err := h.grid.TileRelativeTo(row, col, dr, dc, !rot.IsZero(), rot)
	if err != nil {
		writeGridError(w, err)
		return
	}
	writeJSON(w, tileResponse{Tile: tile, Location: loc})
}

func (h *routerHandlers) handleLocate(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationParams(w, r)
	if !ok {
		return
	}
	row, col, valid := h.grid.LocationToTile(loc)
	resp := map[string]interface{}{
		"row":    row,
		"column": col,
		"valid":  valid,
	}
	if valid {
		resp["center"] = h.grid.Config().TileLocation(row, col, true, grid.Vec3{})
	}
	writeJSON(w, resp)
}

var tileFilters = map[string]grid.TileFilter{
	"":           grid.AnyTile,
	"any":        grid.AnyTile,
	"walkable":   grid.Walkable,
	"spawnable":  grid.Spawnable,
	"unoccupied": grid.Unoccupied,
}

func (h *routerHandlers) handleNearest(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationParams(w, r)
	if !ok {
		return
	}
	filter, known := tileFilters[r.URL.Query().Get("filter")]
	if !known {
		writeError(w, "filter must be one of any, walkable, spawnable, unoccupied", http.StatusBadRequest)
		return
	}

	tile, center, found := h.grid.NearestTile(loc, filter)
	if !found {
		writeError(w, "No matching tile", http.StatusNotFound)
		return
	}
	writeJSON(w, tileResponse{Tile: tile, Location: center})
}

func (h *routerHandlers) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entity         grid.EntityRef `json:"entity"`
		X              float64        `json:"x"`
		Y              float64        `json:"y"`
		Z              float64        `json:"z"`
		AffectWalkable bool           `json:"affectWalkable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Entity == grid.NoEntity {
		writeError(w, "entity is required", http.StatusBadRequest)
		return
	}

	loc := grid.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	if !h.grid.ClaimTile(req.Entity, loc, req.AffectWalkable) {
		writeError(w, "No claimable tile at location", http.StatusConflict)
		return
	}

	row, col, _ := h.grid.LocationToTile(loc)
	tile, center, _ := h.grid.TileWithLocation(row, col)
	writeJSON(w, tileResponse{Tile: tile, Location: center})
}

func (h *routerHandlers) handleRelease(w http.ResponseWriter, r *http.Request) {
	row, col, ok := tileParams(w, r)
	if !ok {
		return
	}

	var req struct {
		RestoreWalkable bool `json:"restoreWalkable"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "Invalid request", http.StatusBadRequest)
			return
		}
	}

	prev, err := h.grid.ReleaseTile(row, col, req.RestoreWalkable)
	if err != nil {
		writeGridError(w, err)
		return
	}
	tile, center, _ := h.grid.TileWithLocation(row, col)
	writeJSON(w, map[string]interface{}{
		"previous": prev,
		"tile":     tile,
		"location": center,
	})
}

func (h *routerHandlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row    int `json:"row"`
		Column int `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	valid := h.grid.SelectTile(req.Row, req.Column)
	sel, visible := h.grid.Selected()
	writeJSON(w, map[string]interface{}{
		"success":  valid,
		"selected": sel,
		"visible":  visible,
	})
}

func (h *routerHandlers) handleDebug(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationParams(w, r)
	if !ok {
		return
	}
	text, at, found := h.grid.DescribeTile(loc)
	if !found {
		writeError(w, "No tile at location", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"text": text,
		"at":   at,
	})
}

func (h *routerHandlers) handleOverlay(w http.ResponseWriter, r *http.Request) {
	img, err := h.overlay.PNG(h.grid.Revision(), h.grid.Snapshot)
	if err != nil {
		log.Printf("⚠️ Overlay render failed: %v", err)
		writeError(w, "Overlay render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// Helper functions (package-level for reuse)

func tileParams(w http.ResponseWriter, r *http.Request) (row, col int, ok bool) {
	row, err1 := strconv.Atoi(chi.URLParam(r, "row"))
	col, err2 := strconv.Atoi(chi.URLParam(r, "col"))
	if err1 != nil || err2 != nil {
		writeError(w, "row and col must be integers", http.StatusBadRequest)
		return 0, 0, false
	}
	return row, col, true
}

func locationParams(w http.ResponseWriter, r *http.Request) (grid.Vec3, bool) {
	x, err1 := queryFloat(r, "x", 0)
	y, err2 := queryFloat(r, "y", 0)
	z, err3 := queryFloat(r, "z", 0)
	if err := errors.Join(err1, err2, err3); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return grid.Vec3{}, false
	}
	return grid.Vec3{X: x, Y: y, Z: z}, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return i, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

// writeGridError maps grid sentinels onto status codes.
func writeGridError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grid.ErrOutOfRange):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, grid.ErrInvalidTile), errors.Is(err, grid.ErrStaleReservation):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, grid.ErrInvalidEntity), errors.Is(err, grid.ErrInvalidEntityClass):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("❌ Grid request failed: %v", err)
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
