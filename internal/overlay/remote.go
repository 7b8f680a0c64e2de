package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tilegrid/internal/grid"
)

// RemoteGrid is a GridView backed by a running tile server's HTTP API.
// Failed requests are logged and fall back to the last good snapshot.
type RemoteGrid struct {
	baseURL string
	client  *http.Client

	user, pass string

	mu   sync.Mutex
	last *grid.Snapshot
}

// NewRemoteGrid targets the server at baseURL, e.g. "http://localhost:3000".
func NewRemoteGrid(baseURL string) *RemoteGrid {
	return &RemoteGrid{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		last:    &grid.Snapshot{Selected: grid.InvalidPosition},
	}
}

// SetBasicAuth sets credentials for the server's mutating routes.
func (r *RemoteGrid) SetBasicAuth(user, pass string) {
	r.user, r.pass = user, pass
}

// Fetch returns the server's current snapshot.
func (r *RemoteGrid) Fetch() (*grid.Snapshot, error) {
	var snap grid.Snapshot
	if err := r.do(http.MethodGet, "/api/tiles", nil, &snap); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.last = &snap
	r.mu.Unlock()
	return &snap, nil
}

// Snapshot implements GridView.
func (r *RemoteGrid) Snapshot() *grid.Snapshot {
	snap, err := r.Fetch()
	if err != nil {
		log.Printf("⚠️ Snapshot fetch failed: %v", err)
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.last
	}
	return snap
}

// SelectTile implements GridView.
func (r *RemoteGrid) SelectTile(row, col int) bool {
	var resp struct {
		Success bool `json:"success"`
	}
	body := map[string]int{"row": row, "column": col}
	if err := r.do(http.MethodPost, "/api/select", body, &resp); err != nil {
		log.Printf("⚠️ Select failed: %v", err)
		return false
	}
	return resp.Success
}

// DescribeTile implements GridView. Off-grid locations report ok=false.
func (r *RemoteGrid) DescribeTile(loc grid.Vec3) (string, grid.Vec3, bool) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(loc.X, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(loc.Y, 'f', -1, 64))
	q.Set("z", strconv.FormatFloat(loc.Z, 'f', -1, 64))

	var resp struct {
		Text string    `json:"text"`
		At   grid.Vec3 `json:"at"`
	}
	if err := r.do(http.MethodGet, "/api/debug?"+q.Encode(), nil, &resp); err != nil {
		return "", grid.Vec3{}, false
	}
	return resp.Text, resp.At, true
}

func (r *RemoteGrid) do(method, path string, in, out interface{}) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, r.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.user != "" {
		req.SetBasicAuth(r.user, r.pass)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
