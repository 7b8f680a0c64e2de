package overlay

import (
	"bytes"
	"sync"
	"sync/atomic"

	"tilegrid/internal/grid"
)

const DefaultCacheSize = 8

// Cache keeps encoded PNGs by grid revision with LRU eviction, so
// unchanged grids are not redrawn on every request.
type Cache struct {
	renderer *Renderer

	mu      sync.Mutex
	images  map[uint64][]byte
	order   []uint64 // LRU order (oldest first)
	maxSize int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache wraps r. maxSize <= 0 uses DefaultCacheSize.
func NewCache(r *Renderer, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		renderer: r,
		images:   make(map[uint64][]byte),
		order:    make([]uint64, 0, maxSize),
		maxSize:  maxSize,
	}
}

// Get returns the PNG for revision if cached.
func (c *Cache) Get(revision uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.images[revision]
	if ok {
		c.touch(revision)
	}
	return img, ok
}

// PNG returns the image for revision, calling snapshot and rendering only
// on a miss. The result is stored under the snapshot's own revision.
func (c *Cache) PNG(revision uint64, snapshot func() *grid.Snapshot) ([]byte, error) {
	if img, ok := c.Get(revision); ok {
		c.hits.Add(1)
		return img, nil
	}
	c.misses.Add(1)

	snap := snapshot()
	var buf bytes.Buffer
	if err := c.renderer.WritePNG(&buf, snap); err != nil {
		return nil, err
	}
	img := buf.Bytes()
	c.put(snap.Revision, img)
	return img, nil
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) put(revision uint64, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.images[revision]; exists {
		c.touch(revision)
		return
	}
	for len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.images, oldest)
	}
	c.images[revision] = img
	c.order = append(c.order, revision)
}

// touch moves revision to the back of the LRU order; c.mu must be held.
func (c *Cache) touch(revision uint64) {
	for i, r := range c.order {
		if r == revision {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, revision)
}
