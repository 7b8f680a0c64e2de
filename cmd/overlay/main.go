// =============================================================================
// TILEGRID - OVERLAY
// =============================================================================
// Draws a tile grid as a PNG or browses it in the terminal.
//
// The grid is either built locally from the environment and GRID_LAYOUT_FILE
// or read from a running server with -server.
//
// USAGE:
//   go run ./cmd/overlay -out grid.png
//   go run ./cmd/overlay -server http://localhost:3000 -tui
// =============================================================================
package main

import (
	"flag"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"

	"tilegrid/internal/config"
	"tilegrid/internal/grid"
	"tilegrid/internal/overlay"
)

func main() {
	serverURL := flag.String("server", "", "read the grid from a running server instead of the local layout")
	out := flag.String("out", "overlay.png", "PNG output path")
	tui := flag.Bool("tui", false, "browse the grid in the terminal instead of writing a PNG")
	flag.Parse()

	if err := godotenv.Load(".env"); err == nil {
		log.Println("✅ Loaded environment from .env")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	view, err := openView(*serverURL, appConfig)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if *tui {
		screen, err := tcell.NewScreen()
		if err != nil {
			log.Fatalf("❌ Failed to open terminal: %v", err)
		}
		if err := overlay.NewTerminal(view, screen).Run(); err != nil {
			log.Fatalf("❌ Terminal viewer: %v", err)
		}
		return
	}

	snap := view.Snapshot()
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("❌ Failed to create %s: %v", *out, err)
	}
	if err := overlay.WritePNG(f, snap, appConfig.Overlay); err != nil {
		f.Close()
		log.Fatalf("❌ Failed to render overlay: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("❌ Failed to write %s: %v", *out, err)
	}
	log.Printf("🗺️  Wrote %dx%d overlay to %s", snap.Rows, snap.Columns, *out)
}

// openView returns the remote server's grid when serverURL is set, or a
// freshly initialized local grid.
func openView(serverURL string, appConfig config.AppConfig) (overlay.GridView, error) {
	if serverURL != "" {
		remote := overlay.NewRemoteGrid(serverURL)
		remote.SetBasicAuth(appConfig.Server.AdminUser, appConfig.Server.AdminPass)
		if _, err := remote.Fetch(); err != nil {
			return nil, err
		}
		log.Printf("🌐 Reading grid from %s", serverURL)
		return remote, nil
	}

	gridCfg := appConfig.Grid
	g, err := grid.New(gridCfg.Layout(), grid.WithSeeds(gridCfg.NoSpawn, gridCfg.NoWalk))
	if err != nil {
		return nil, err
	}
	g.Init()
	return g, nil
}
