package journal

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tilegrid/internal/grid"
)

const (
	DefaultBufferSize       = 1024
	DefaultMaxEventsPerSec  = 10000
	DefaultMaxPerEntity     = 100 // per second
	DefaultFlushSize        = 64
	DefaultFlushInterval    = 100 * time.Millisecond
	entityLimiterCleanupAge = 5 * time.Minute
)

// Options tunes a Journal. Zero fields take the defaults above.
type Options struct {
	BufferSize      int
	MaxEventsPerSec int
	MaxPerEntity    int
	FlushSize       int
	FlushInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.MaxEventsPerSec <= 0 {
		o.MaxEventsPerSec = DefaultMaxEventsPerSec
	}
	if o.MaxPerEntity <= 0 {
		o.MaxPerEntity = DefaultMaxPerEntity
	}
	if o.FlushSize <= 0 {
		o.FlushSize = DefaultFlushSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	return o
}

// Journal is a bounded, rate-limited, append-only log of tile mutations
// written as newline-delimited JSON.
type Journal struct {
	opts Options

	// Ring buffer; the oldest pending event is dropped when full.
	mu     sync.Mutex
	buffer []Event
	head   uint64 // events accepted so far; also the last sequence assigned
	tail   uint64 // events flushed or dropped

	globalLimiter  *rate.Limiter
	entityLimiters sync.Map // map[grid.EntityRef]*limiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    *bufio.Writer
	closer io.Closer

	dropped atomic.Uint64
	total   atomic.Uint64
	written atomic.Uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // Unix nano
}

// New creates a stopped journal.
func New(opts Options) *Journal {
	opts = opts.withDefaults()
	return &Journal{
		opts:          opts,
		buffer:        make([]Event, opts.BufferSize),
		globalLimiter: rate.NewLimiter(rate.Limit(opts.MaxEventsPerSec), max(opts.MaxEventsPerSec/10, 1)),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and starts the writer. An empty path
// keeps events in memory only and discards them on flush.
func (j *Journal) Start(filePath string) error {
	if filePath == "" {
		return j.StartWriter(io.Discard)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := j.StartWriter(file); err != nil {
		file.Close()
		return err
	}
	j.closer = file
	log.Printf("📝 Tile journal writing to %s", filePath)
	return nil
}

// StartWriter starts the writer goroutines against w.
func (j *Journal) StartWriter(w io.Writer) error {
	if !j.running.CompareAndSwap(false, true) {
		return nil
	}
	j.out = bufio.NewWriter(w)
	j.writerWg.Add(2)
	go j.writerLoop()
	go j.cleanupLoop()
	return nil
}

// Stop flushes pending events and closes the output. Safe to call twice.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		if !j.running.Load() {
			close(j.stopChan)
			return
		}
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		if err := j.out.Flush(); err != nil {
			log.Printf("⚠️ Journal flush failed: %v", err)
		}
		if j.closer != nil {
			j.closer.Close()
		}
	})
}

// Record is a grid change handler: it converts and emits c.
func (j *Journal) Record(c grid.TileChange) {
	j.Emit(FromChange(c))
}

// Emit queues ev. Returns false when stopped or rate limited.
func (j *Journal) Emit(ev Event) bool {
	if !j.running.Load() {
		return false
	}
	if !j.globalLimiter.Allow() {
		j.dropped.Add(1)
		return false
	}
	if ev.Entity != grid.NoEntity && !j.entityLimiter(ev.Entity).Allow() {
		j.dropped.Add(1)
		return false
	}

	j.mu.Lock()
	size := uint64(len(j.buffer))
	if j.head-j.tail >= size {
		j.tail++
		j.dropped.Add(1)
	}
	ev.Sequence = j.head + 1
	j.buffer[j.head%size] = ev
	j.head++
	j.mu.Unlock()

	j.total.Add(1)
	return true
}

func (j *Journal) entityLimiter(e grid.EntityRef) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := j.entityLimiters.Load(e); ok {
		entry := v.(*limiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	entry := &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(j.opts.MaxPerEntity), max(j.opts.MaxPerEntity/10, 1)),
	}
	entry.lastUsed.Store(now)
	actual, _ := j.entityLimiters.LoadOrStore(e, entry)
	return actual.(*limiterEntry).limiter
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, j.opts.FlushSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

func (j *Journal) cleanupLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(entityLimiterCleanupAge)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.cleanupLimiters(time.Now().Add(-entityLimiterCleanupAge))
		}
	}
}

func (j *Journal) cleanupLimiters(cutoff time.Time) {
	j.entityLimiters.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastUsed.Load() < cutoff.UnixNano() {
			j.entityLimiters.Delete(key)
		}
		return true
	})
}

func (j *Journal) collectBatch(batch []Event) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	size := uint64(len(j.buffer))
	for j.tail < j.head && len(batch) < j.opts.FlushSize {
		batch = append(batch, j.buffer[j.tail%size])
		j.tail++
	}
	return batch
}

func (j *Journal) flushBatch(batch []Event) {
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		j.out.Write(data)
		j.out.WriteByte('\n')
	}
	if err := j.out.Flush(); err != nil {
		log.Printf("⚠️ Journal write failed: %v", err)
		return
	}
	j.written.Add(uint64(len(batch)))
}

// Stats is a point-in-time view of journal counters.
type Stats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Written uint64 `json:"written"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// Stats returns the journal counters.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	pending := j.head - j.tail
	j.mu.Unlock()

	return Stats{
		Total:   j.total.Load(),
		Dropped: j.dropped.Load(),
		Written: j.written.Load(),
		Pending: pending,
		Running: j.running.Load(),
	}
}
