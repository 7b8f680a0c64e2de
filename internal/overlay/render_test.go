package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"tilegrid/internal/config"
	"tilegrid/internal/grid"
)

func testSnapshot(t *testing.T, opts ...grid.Option) (*grid.Grid, *grid.Snapshot) {
	t.Helper()
	g, err := grid.New(grid.Config{Rows: 3, Columns: 4, TileSize: 100}, opts...)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	g.Init()
	return g, g.Snapshot()
}

func testOverlay() config.OverlayConfig {
	cfg := config.DefaultOverlay()
	cfg.PixelsPerTile = 20
	cfg.LineThickness = 2
	cfg.Labels = false
	return cfg
}

func pixel(img image.Image, x, y float64) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(int(x), int(y))).(color.NRGBA)
}

func tileCenter(r *Renderer, snap *grid.Snapshot, row, col int) (float64, float64) {
	l := r.layout(snap)
	x, y := l.tileOrigin(row, col)
	return x + l.tile/2, y + l.tile/2
}

func TestRenderSize(t *testing.T) {
	_, snap := testSnapshot(t)
	cfg := testOverlay()

	img := RenderPNG(snap, cfg)
	b := img.Bounds()
	// 2px padding on each side around 4x3 tiles of 20px.
	if b.Dx() != 84 || b.Dy() != 64 {
		t.Errorf("image size = %dx%d, want 84x64", b.Dx(), b.Dy())
	}

	cfg.Labels = true
	b = RenderPNG(snap, cfg).Bounds()
	if b.Dx() != 84+labelGutter || b.Dy() != 64+labelGutter {
		t.Errorf("labelled image size = %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderLines(t *testing.T) {
	_, snap := testSnapshot(t)
	r := NewRenderer(testOverlay())
	img := r.Render(snap)
	l := r.layout(snap)

	// Every horizontal line crosses the middle of column 1.
	midX := l.offX + 1.5*l.tile
	for row := 0; row <= snap.Rows; row++ {
		y := l.offY + float64(row)*l.tile
		if p := pixel(img, midX, y); p.G < 200 || p.R > 50 || p.A < 200 {
			t.Errorf("horizontal line %d pixel = %+v, want green", row, p)
		}
	}
	midY := l.offY + 0.5*l.tile
	for col := 0; col <= snap.Columns; col++ {
		x := l.offX + float64(col)*l.tile
		if p := pixel(img, x, midY); p.G < 200 || p.A < 200 {
			t.Errorf("vertical line %d pixel = %+v, want green", col, p)
		}
	}

	x, y := tileCenter(r, snap, 1, 1)
	if p := pixel(img, x, y); p.A != 0 {
		t.Errorf("free tile interior = %+v, want transparent", p)
	}
}

func TestRenderSeedHighlights(t *testing.T) {
	_, snap := testSnapshot(t, grid.WithSeeds(
		[]grid.TileModifier{{Row: 0, Column: 3}, {Row: 9, Column: 9}},
		[]grid.TileModifier{{Row: 2, Column: 0}},
	))
	r := NewRenderer(testOverlay())
	img := r.Render(snap)

	x, y := tileCenter(r, snap, 2, 0)
	if p := pixel(img, x, y); p.R < 200 || p.G > 50 || p.B > 50 || p.A == 0 {
		t.Errorf("no-walk tile = %+v, want red", p)
	}
	x, y = tileCenter(r, snap, 0, 3)
	if p := pixel(img, x, y); p.B < 200 || p.R > 50 || p.A == 0 {
		t.Errorf("no-spawn tile = %+v, want blue", p)
	}
}

func TestRenderLiveFlags(t *testing.T) {
	g, _ := testSnapshot(t)
	g.ClaimTile(5, grid.Vec3{X: 150, Y: 250}, true) // tile (1,2)

	cfg := testOverlay()
	seedOnly := NewRenderer(cfg)
	cfg.LiveFlags = true
	live := NewRenderer(cfg)
	snap := g.Snapshot()

	x, y := tileCenter(live, snap, 1, 2)
	if p := pixel(seedOnly.Render(snap), x, y); p.A != 0 {
		t.Errorf("seed mode highlighted a claimed tile: %+v", p)
	}
	if p := pixel(live.Render(snap), x, y); p.A == 0 {
		t.Error("live mode did not highlight a claimed tile")
	}
}

func TestRenderSelection(t *testing.T) {
	g, _ := testSnapshot(t)
	g.SelectTile(1, 3)
	snap := g.Snapshot()

	r := NewRenderer(testOverlay())
	x, y := tileCenter(r, snap, 1, 3)
	p := pixel(r.Render(snap), x, y)
	if p.R < 200 || p.G < 200 || p.B < 200 {
		t.Errorf("selection = %+v, want white", p)
	}
	if want := uint8(89); p.A < want-2 || p.A > want+2 {
		t.Errorf("selection alpha = %d, want about %d", p.A, want)
	}
}

func TestWritePNG(t *testing.T) {
	_, snap := testSnapshot(t)
	cfg := testOverlay()
	cfg.Labels = true

	var buf bytes.Buffer
	if err := WritePNG(&buf, snap, cfg); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 84+labelGutter {
		t.Errorf("decoded width = %d", img.Bounds().Dx())
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#00ff00", color.NRGBA{0, 255, 0, 255}},
		{"#1A2b3C", color.NRGBA{0x1a, 0x2b, 0x3c, 255}},
		{"green", color.NRGBA{255, 255, 255, 255}},
		{"", color.NRGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	if c := withOpacity(color.NRGBA{A: 255}, 1.7); c.A != 255 {
		t.Errorf("opacity above 1 gave alpha %d", c.A)
	}
	if c := withOpacity(color.NRGBA{A: 255}, 0.35); c.A != 89 {
		t.Errorf("opacity 0.35 gave alpha %d", c.A)
	}
}
