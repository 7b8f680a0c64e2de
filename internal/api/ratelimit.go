package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets per-client request budgets. Reads (GET, HEAD,
// OPTIONS) and grid mutations draw from separate buckets.
type RateLimitConfig struct {
	RequestsPerSecond float64       // sustained read rate per client IP
	Burst             int           // read burst
	WriteRate         float64       // sustained mutation rate; 0 uses RequestsPerSecond
	WriteBurst        int           // mutation burst; 0 uses Burst
	CleanupInterval   time.Duration // how often idle clients are dropped
}

// DefaultRateLimitConfig matches the server defaults in config.DefaultServer.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	WriteRate:         5,
	WriteBurst:        10,
	CleanupInterval:   5 * time.Minute,
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.WriteRate <= 0 {
		c.WriteRate = c.RequestsPerSecond
	}
	if c.WriteBurst <= 0 {
		c.WriteBurst = c.Burst
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	return c
}

// RateLimitStats counts limiter decisions.
type RateLimitStats struct {
	Allowed        uint64 `json:"allowed"`
	RejectedReads  uint64 `json:"rejectedReads"`
	RejectedWrites uint64 `json:"rejectedWrites"`
	Clients        int    `json:"clients"`
}

// clientBudget is one IP's pair of buckets.
type clientBudget struct {
	read, write *rate.Limiter
	lastSeen    atomic.Int64 // unix nanos
}

// IPRateLimiter throttles grid API requests per client IP.
type IPRateLimiter struct {
	clients  sync.Map // map[string]*clientBudget
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once

	allowed        atomic.Uint64
	rejectedReads  atomic.Uint64
	rejectedWrites atomic.Uint64
}

// NewIPRateLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:   cfg.withDefaults(),
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) budget(ip string) *clientBudget {
	now := time.Now().UnixNano()
	if v, ok := rl.clients.Load(ip); ok {
		b := v.(*clientBudget)
		b.lastSeen.Store(now)
		return b
	}

	b := &clientBudget{
		read:  rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		write: rate.NewLimiter(rate.Limit(rl.config.WriteRate), rl.config.WriteBurst),
	}
	b.lastSeen.Store(now)
	actual, _ := rl.clients.LoadOrStore(ip, b)
	return actual.(*clientBudget)
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-rl.config.CleanupInterval * 2))
		}
	}
}

// cleanup drops clients idle since before cutoff.
func (rl *IPRateLimiter) cleanup(cutoff time.Time) {
	limit := cutoff.UnixNano()
	rl.clients.Range(func(key, value interface{}) bool {
		if value.(*clientBudget).lastSeen.Load() < limit {
			rl.clients.Delete(key)
		}
		return true
	})
}

// Allow reports whether a request from ip may proceed. write selects the
// mutation bucket.
func (rl *IPRateLimiter) Allow(ip string, write bool) bool {
	b := rl.budget(ip)
	if write {
		if !b.write.Allow() {
			rl.rejectedWrites.Add(1)
			return false
		}
	} else if !b.read.Allow() {
		rl.rejectedReads.Add(1)
		return false
	}
	rl.allowed.Add(1)
	return true
}

// Middleware rejects over-budget requests with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write := isMutation(r.Method)
		if !rl.Allow(GetClientIP(r), write) {
			reason := "rate_limit"
			if write {
				reason = "rate_limit_write"
			}
			RecordConnectionRejected(reason)
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the limiter counters and the number of tracked clients.
func (rl *IPRateLimiter) Stats() RateLimitStats {
	clients := 0
	rl.clients.Range(func(_, _ interface{}) bool {
		clients++
		return true
	})
	return RateLimitStats{
		Allowed:        rl.allowed.Load(),
		RejectedReads:  rl.rejectedReads.Load(),
		RejectedWrites: rl.rejectedWrites.Load(),
		Clients:        clients,
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// GetClientIP extracts the client IP, honoring proxy headers.
func GetClientIP(r *http.Request) string {
	// CAUTION: spoofable unless behind a trusted proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// WebSocketRateLimiter caps concurrent WebSocket connections per IP.
type WebSocketRateLimiter struct {
	connections sync.Map // map[string]*atomic.Int32
	maxPerIP    int

	rejected atomic.Uint64
}

// NewWebSocketRateLimiter creates a connection limiter.
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{maxPerIP: maxPerIP}
}

// Allow reserves a connection slot for ip, if one is free.
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	actual, _ := wrl.connections.LoadOrStore(ip, new(atomic.Int32))
	counter := actual.(*atomic.Int32)

	for {
		current := counter.Load()
		if int(current) >= wrl.maxPerIP {
			wrl.rejected.Add(1)
			return false
		}
		if counter.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot taken by Allow.
func (wrl *WebSocketRateLimiter) Release(ip string) {
	if v, ok := wrl.connections.Load(ip); ok {
		v.(*atomic.Int32).Add(-1)
	}
}

// ConnectionCount returns the open connections for ip.
func (wrl *WebSocketRateLimiter) ConnectionCount(ip string) int {
	if v, ok := wrl.connections.Load(ip); ok {
		return int(v.(*atomic.Int32).Load())
	}
	return 0
}

// OriginMatcher checks browser origins against an allow list. Entries may
// end in ":*" to accept any port, e.g. "http://localhost:*".
type OriginMatcher struct {
	exact    map[string]bool
	prefixes []string
}

// NewOriginMatcher builds a matcher; a nil list falls back to DefaultCORSOrigins.
func NewOriginMatcher(origins []string) *OriginMatcher {
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	m := &OriginMatcher{exact: make(map[string]bool)}
	for _, o := range origins {
		if prefix, ok := strings.CutSuffix(o, ":*"); ok {
			m.prefixes = append(m.prefixes, prefix)
			continue
		}
		m.exact[o] = true
	}
	return m
}

// Allowed reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are accepted.
func (m *OriginMatcher) Allowed(origin string) bool {
	if origin == "" || m.exact["*"] || m.exact[origin] {
		return true
	}
	for _, p := range m.prefixes {
		if origin == p || strings.HasPrefix(origin, p+":") {
			return true
		}
	}
	return false
}
