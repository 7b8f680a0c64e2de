package overlay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tilegrid/internal/grid"
)

func TestRemoteGrid(t *testing.T) {
	g, _ := testSnapshot(t)

	var gotAuth atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tiles", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(g.Snapshot())
	})
	mux.HandleFunc("/api/select", func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		gotAuth.Store(ok)
		var req struct {
			Row    int `json:"row"`
			Column int `json:"column"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]bool{"success": g.SelectTile(req.Row, req.Column)})
	})
	mux.HandleFunc("/api/debug", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("x") == "-1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "No tile at location"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"text": "X: 0", "at": grid.Vec3{Z: 10}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	remote := NewRemoteGrid(ts.URL + "/")
	remote.SetBasicAuth("ops", "secret")

	snap := remote.Snapshot()
	if snap.Rows != g.Config().Rows || len(snap.Tiles) != len(g.Snapshot().Tiles) {
		t.Fatalf("snapshot = %dx%d with %d tiles", snap.Rows, snap.Columns, len(snap.Tiles))
	}

	if !remote.SelectTile(1, 2) || !gotAuth.Load() {
		t.Error("SelectTile should succeed with credentials")
	}
	if sel, visible := g.Selected(); !visible || sel != (grid.Position{Row: 1, Column: 2}) {
		t.Errorf("server selection = %+v %v", sel, visible)
	}
	if remote.SelectTile(99, 0) {
		t.Error("SelectTile off grid should fail")
	}

	if text, at, ok := remote.DescribeTile(grid.Vec3{X: 5, Y: 5}); !ok || text != "X: 0" || at.Z != 10 {
		t.Errorf("DescribeTile = %q %+v %v", text, at, ok)
	}
	if _, _, ok := remote.DescribeTile(grid.Vec3{X: -1}); ok {
		t.Error("DescribeTile off grid should report false")
	}
}

func TestRemoteGridKeepsLastSnapshot(t *testing.T) {
	g, _ := testSnapshot(t)

	var up atomic.Bool
	up.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(g.Snapshot())
	}))
	defer ts.Close()

	remote := NewRemoteGrid(ts.URL)
	first := remote.Snapshot()
	up.Store(false)

	if _, err := remote.Fetch(); err == nil {
		t.Error("Fetch should fail while the server is down")
	}
	if again := remote.Snapshot(); again != first {
		t.Error("Snapshot should fall back to the last good copy")
	}
}
