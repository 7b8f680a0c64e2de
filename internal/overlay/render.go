// Package overlay draws a grid snapshot as a PNG image or in a terminal.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"tilegrid/internal/config"
	"tilegrid/internal/grid"
)

const labelGutter = 18 // pixels reserved for row/column numbers

// Renderer draws snapshots with fixed styling. Safe for concurrent use.
type Renderer struct {
	cfg       config.OverlayConfig
	line      color.NRGBA
	selection color.NRGBA
	noWalk    color.NRGBA
	noSpawn   color.NRGBA
}

// NewRenderer resolves the configured colours once.
func NewRenderer(cfg config.OverlayConfig) *Renderer {
	if cfg.PixelsPerTile <= 0 {
		cfg.PixelsPerTile = config.DefaultOverlay().PixelsPerTile
	}
	return &Renderer{
		cfg:       cfg,
		line:      withOpacity(parseHexColor(cfg.LineColor), cfg.LineOpacity),
		selection: withOpacity(parseHexColor(cfg.SelectionColor), cfg.SelectionOpacity),
		noWalk:    withOpacity(parseHexColor(cfg.NoWalkColor), cfg.NoWalkOpacity),
		noSpawn:   withOpacity(parseHexColor(cfg.NoSpawnColor), cfg.NoSpawnOpacity),
	}
}

// RenderPNG draws snap with cfg.
func RenderPNG(snap *grid.Snapshot, cfg config.OverlayConfig) image.Image {
	return NewRenderer(cfg).Render(snap)
}

// WritePNG encodes the rendered snapshot to w.
func WritePNG(w io.Writer, snap *grid.Snapshot, cfg config.OverlayConfig) error {
	return NewRenderer(cfg).WritePNG(w, snap)
}

// layout maps tile indices to pixels: columns run left to right, rows top to bottom.
type layout struct {
	offX, offY float64
	tile       float64
	w, h       int
}

func (r *Renderer) layout(snap *grid.Snapshot) layout {
	pad := math.Ceil(r.cfg.LineThickness)
	off := pad
	if r.cfg.Labels {
		off += labelGutter
	}
	tile := float64(r.cfg.PixelsPerTile)
	return layout{
		offX: off,
		offY: off,
		tile: tile,
		w:    int(off + float64(snap.Columns)*tile + pad),
		h:    int(off + float64(snap.Rows)*tile + pad),
	}
}

func (l layout) tileOrigin(row, col int) (x, y float64) {
	return l.offX + float64(col)*l.tile, l.offY + float64(row)*l.tile
}

// Render draws snap onto a transparent canvas.
func (r *Renderer) Render(snap *grid.Snapshot) image.Image {
	return r.draw(snap).Image()
}

// WritePNG renders snap and encodes it to w.
func (r *Renderer) WritePNG(w io.Writer, snap *grid.Snapshot) error {
	if err := r.draw(snap).EncodePNG(w); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return nil
}

func (r *Renderer) draw(snap *grid.Snapshot) *gg.Context {
	l := r.layout(snap)
	dc := gg.NewContext(l.w, l.h)

	r.drawHighlights(dc, l, snap)
	if snap.SelectionVisible {
		r.fillTile(dc, l, snap.Selected.Row, snap.Selected.Column, r.selection)
	}
	r.drawLines(dc, l, snap)
	if r.cfg.Labels {
		r.drawLabels(dc, l, snap)
	}
	return dc
}

func (r *Renderer) drawHighlights(dc *gg.Context, l layout, snap *grid.Snapshot) {
	if r.cfg.LiveFlags {
		for _, t := range snap.Tiles {
			if !t.CanWalkOn {
				r.fillTile(dc, l, t.Position.Row, t.Position.Column, r.noWalk)
			}
			if !t.CanSpawnOn {
				r.fillTile(dc, l, t.Position.Row, t.Position.Column, r.noSpawn)
			}
		}
		return
	}

	for _, m := range snap.NoWalkSeeds {
		r.fillSeed(dc, l, snap, m, r.noWalk)
	}
	for _, m := range snap.NoSpawnSeeds {
		r.fillSeed(dc, l, snap, m, r.noSpawn)
	}
}

func (r *Renderer) fillSeed(dc *gg.Context, l layout, snap *grid.Snapshot, m grid.TileModifier, c color.NRGBA) {
	if m.Row < 0 || m.Row >= snap.Rows || m.Column < 0 || m.Column >= snap.Columns {
		return
	}
	r.fillTile(dc, l, m.Row, m.Column, c)
}

func (r *Renderer) fillTile(dc *gg.Context, l layout, row, col int, c color.NRGBA) {
	x, y := l.tileOrigin(row, col)
	dc.SetColor(c)
	dc.DrawRectangle(x, y, l.tile, l.tile)
	dc.Fill()
}

// drawLines strokes Rows+1 horizontal and Columns+1 vertical lines.
func (r *Renderer) drawLines(dc *gg.Context, l layout, snap *grid.Snapshot) {
	dc.SetColor(r.line)
	dc.SetLineWidth(r.cfg.LineThickness)

	right := l.offX + float64(snap.Columns)*l.tile
	bottom := l.offY + float64(snap.Rows)*l.tile
	for row := 0; row <= snap.Rows; row++ {
		y := l.offY + float64(row)*l.tile
		dc.DrawLine(l.offX, y, right, y)
		dc.Stroke()
	}
	for col := 0; col <= snap.Columns; col++ {
		x := l.offX + float64(col)*l.tile
		dc.DrawLine(x, l.offY, x, bottom)
		dc.Stroke()
	}
}

func (r *Renderer) drawLabels(dc *gg.Context, l layout, snap *grid.Snapshot) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.White)

	for col := 0; col < snap.Columns; col++ {
		x, _ := l.tileOrigin(0, col)
		dc.DrawStringAnchored(strconv.Itoa(col), x+l.tile/2, l.offY-labelGutter/2, 0.5, 0.5)
	}
	for row := 0; row < snap.Rows; row++ {
		_, y := l.tileOrigin(row, 0)
		dc.DrawStringAnchored(strconv.Itoa(row), l.offX-labelGutter/2, y+l.tile/2, 0.5, 0.5)
	}
}

func parseHexColor(hex string) color.NRGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.NRGBA{r, g, b, 255}
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(math.Round(math.Max(0, math.Min(1, opacity)) * 255))
	return c
}
