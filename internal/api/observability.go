package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tilegrid/internal/config"
	"tilegrid/internal/grid"
	"tilegrid/internal/journal"
)

// Metrics with bounded cardinality: never label by tile, entity or raw path.
var (
	gridTiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tilegrid_tiles",
		Help: "Tiles by flag",
	}, []string{"flag"}) // Bounded: "total", "walkable", "spawnable", "occupied"

	gridGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilegrid_generation",
		Help: "Number of times the tile store has been generated",
	})

	tileChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilegrid_tile_changes_total",
		Help: "Tile mutations by kind",
	}, []string{"kind"})

	journalTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilegrid_journal_events",
		Help: "Events accepted by the tile journal",
	})

	journalDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilegrid_journal_dropped",
		Help: "Events dropped by rate limiting or a full buffer",
	})

	journalPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tilegrid_journal_pending",
		Help: "Events buffered but not yet written",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Requests rejected by rate limiter, auth or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "auth", "origin", "ws_ip_limit", "ws_total_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// DebugServer serves pprof, /metrics and /health on a private address.
type DebugServer struct {
	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// StartDebugServer starts the observability server. It returns nil, nil
// when the server is disabled.
//
// Non-loopback addresses are refused unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg config.DebugConfig) (*DebugServer, error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil, nil
	}

	addr := cfg.Addr
	if !isLoopback(addr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Printf("⚠️ Debug server forced to localhost (requested %s)", addr)
		addr = config.DefaultDebug().Addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ds := &DebugServer{
		srv:      &http.Server{Handler: debugHandler(cfg), ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
	}

	ds.wg.Add(1)
	go func() {
		defer ds.wg.Done()
		log.Printf("📊 Debug server starting on %s", ln.Addr())
		log.Printf("   - pprof:   http://%s/debug/pprof/", ln.Addr())
		log.Printf("   - metrics: http://%s/metrics", ln.Addr())
		if err := ds.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return ds, nil
}

// Addr returns the bound listener address.
func (d *DebugServer) Addr() string {
	return d.listener.Addr().String()
}

// Close stops the debug server and waits for it to exit.
func (d *DebugServer) Close() error {
	err := d.srv.Close()
	d.wg.Wait()
	return err
}

func debugHandler(cfg config.DebugConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.User != "" {
		return basicAuthMiddleware(cfg.User, cfg.Pass, mux)
	}
	return mux
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UpdateGridStats publishes tile flag counts.
func UpdateGridStats(s grid.Stats, generation uint64) {
	gridTiles.WithLabelValues("total").Set(float64(s.Tiles))
	gridTiles.WithLabelValues("walkable").Set(float64(s.Walkable))
	gridTiles.WithLabelValues("spawnable").Set(float64(s.Spawnable))
	gridTiles.WithLabelValues("occupied").Set(float64(s.Occupied))
	gridGeneration.Set(float64(generation))
}

// RecordTileChange counts one grid mutation.
func RecordTileChange(c grid.TileChange) {
	tileChanges.WithLabelValues(c.Kind.String()).Inc()
}

// UpdateJournalStats mirrors the journal's counters into gauges.
func UpdateJournalStats(s journal.Stats) {
	journalTotal.Set(float64(s.Total))
	journalDropped.Set(float64(s.Dropped))
	journalPending.Set(float64(s.Pending))
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates the WebSocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one broadcast.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
