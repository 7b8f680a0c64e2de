package journal

import (
	"encoding/json"
	"time"

	"tilegrid/internal/grid"
)

// EventVersion is bumped when the line format changes.
const EventVersion uint8 = 1

// Event is one journal line.
type Event struct {
	Version    uint8           `json:"version"`
	Kind       string          `json:"kind"`
	Timestamp  int64           `json:"timestamp"` // Unix nano
	Sequence   uint64          `json:"sequence"`
	Generation uint64          `json:"generation"`
	Entity     grid.EntityRef  `json:"entity,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// TilePayload carries a single-tile mutation.
type TilePayload struct {
	Position grid.Position  `json:"position"`
	Before   grid.TileState `json:"before"`
	After    grid.TileState `json:"after"`
}

// EncodePayload marshals a payload, returning nil on failure.
func EncodePayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// FromChange converts a grid mutation into a journal event.
func FromChange(c grid.TileChange) Event {
	ev := Event{
		Version:    EventVersion,
		Kind:       c.Kind.String(),
		Timestamp:  time.Now().UnixNano(),
		Generation: c.Generation,
		Entity:     c.Entity,
	}
	if c.Position != grid.InvalidPosition {
		ev.Payload = EncodePayload(TilePayload{Position: c.Position, Before: c.Before, After: c.After})
	}
	return ev
}
