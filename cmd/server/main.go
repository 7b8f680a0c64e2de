package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tilegrid/internal/api"
	"tilegrid/internal/config"
	"tilegrid/internal/grid"
	"tilegrid/internal/journal"
	"tilegrid/internal/overlay"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🧱 ================================")
	log.Println("🧱  TILEGRID - SPATIAL INDEX")
	log.Println("🧱 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	gridCfg := appConfig.Grid
	serverCfg := appConfig.Server

	log.Printf("🧱 Layout: %dx%d tiles of %.1f units at (%.1f, %.1f, %.1f)",
		gridCfg.Rows, gridCfg.Columns, gridCfg.TileSize, gridCfg.OriginX, gridCfg.OriginY, gridCfg.OriginZ)
	log.Printf("🧱 Seeds: %d no-spawn, %d no-walk", len(gridCfg.NoSpawn), len(gridCfg.NoWalk))

	g, err := grid.New(gridCfg.Layout(), grid.WithSeeds(gridCfg.NoSpawn, gridCfg.NoWalk))
	if err != nil {
		log.Fatalf("❌ Failed to create grid: %v", err)
	}

	// Start tile journal
	tileJournal := journal.New(journal.Options{
		MaxEventsPerSec: appConfig.Journal.MaxEventsPerSec,
		MaxPerEntity:    appConfig.Journal.MaxPerEntity,
	})
	if err := tileJournal.Start(appConfig.Journal.Path); err != nil {
		log.Printf("⚠️ Tile journal disabled: %v", err)
	}

	// Start debug server
	debugServer, err := api.StartDebugServer(appConfig.Debug)
	if err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	server := api.NewServer(api.RouterConfig{
		Grid:    g,
		Overlay: overlay.NewRenderer(appConfig.Overlay),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RateLimit,
			Burst:             serverCfg.RateBurst,
			WriteRate:         serverCfg.WriteRateLimit,
			WriteBurst:        serverCfg.WriteRateBurst,
		},
		CORSOrigins:    serverCfg.CORSOrigins,
		AdminUser:      serverCfg.AdminUser,
		AdminPass:      serverCfg.AdminPass,
		DisableLogging: !serverCfg.RequestLogging,
	}, api.DefaultStatsInterval)

	if serverCfg.AdminUser != "" {
		log.Printf("🔐 Admin authentication ENABLED for %s", serverCfg.AdminUser)
	} else {
		log.Println("⚠️ Admin authentication DISABLED (set ADMIN_USER and ADMIN_PASS to enable)")
	}

	// Every mutation goes to the journal, WebSocket clients and metrics.
	g.SetChangeHandler(func(c grid.TileChange) {
		tileJournal.Record(c)
		server.PublishChange(c)
	})
	g.Init()
	api.UpdateGridStats(g.Stats(), g.Snapshot().Generation)

	journalDone := make(chan struct{})
	go reportJournal(tileJournal, journalDone)

	addr := fmt.Sprintf(":%d", serverCfg.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s/api/grid", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	if debugServer != nil {
		debugServer.Close()
	}
	close(journalDone)
	tileJournal.Stop()

	stats := tileJournal.Stats()
	log.Printf("📝 Journal: %d accepted, %d written, %d dropped", stats.Total, stats.Written, stats.Dropped)
	log.Println("👋 Goodbye!")
}

// reportJournal mirrors journal counters into metrics until done closes.
func reportJournal(j *journal.Journal, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			api.UpdateJournalStats(j.Stats())
		}
	}
}
