package overlay

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"tilegrid/internal/grid"
)

// Cell glyphs for the terminal view.
const (
	glyphFree     = '.'
	glyphNoWalk   = '#'
	glyphNoSpawn  = 'x'
	glyphOccupied = '@'
)

// Canvas is the subset of tcell.Screen the viewer draws on.
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

// GridView is what the terminal viewer reads and steers.
type GridView interface {
	Snapshot() *grid.Snapshot
	SelectTile(row, col int) bool
	DescribeTile(loc grid.Vec3) (string, grid.Vec3, bool)
}

// Terminal is an interactive one-cell-per-tile viewer.
type Terminal struct {
	grid   GridView
	screen tcell.Screen
	cursor grid.Position
}

// NewTerminal wraps screen. The screen must not be initialized yet.
func NewTerminal(g GridView, screen tcell.Screen) *Terminal {
	return &Terminal{grid: g, screen: screen}
}

// Run initializes the screen and handles input until Esc or q.
func (t *Terminal) Run() error {
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer t.screen.Fini()

	if snap := t.grid.Snapshot(); snap.SelectionVisible {
		t.cursor = snap.Selected
	}
	t.grid.SelectTile(t.cursor.Row, t.cursor.Column)

	for {
		t.redraw()
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if t.HandleKey(ev) {
				return nil
			}
		case *tcell.EventResize:
			t.screen.Sync()
		case nil:
			return nil
		}
	}
}

// HandleKey moves the selection cursor. Returns true to quit.
func (t *Terminal) HandleKey(ev *tcell.EventKey) bool {
	dr, dc := 0, 0
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		dr = -1
	case tcell.KeyDown:
		dr = 1
	case tcell.KeyLeft:
		dc = -1
	case tcell.KeyRight:
		dc = 1
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			dr = -1
		case 'j':
			dr = 1
		case 'h':
			dc = -1
		case 'l':
			dc = 1
		}
	}

	next := grid.Position{Row: t.cursor.Row + dr, Column: t.cursor.Column + dc}
	if t.grid.SelectTile(next.Row, next.Column) {
		t.cursor = next
	} else {
		// Off the edge: keep the old cursor visible.
		t.grid.SelectTile(t.cursor.Row, t.cursor.Column)
	}
	return false
}

// Cursor returns the selected tile.
func (t *Terminal) Cursor() grid.Position {
	return t.cursor
}

func (t *Terminal) redraw() {
	t.screen.Clear()
	snap := t.grid.Snapshot()
	DrawTerminal(t.screen, snap)

	loc := snap.Config().TileLocation(t.cursor.Row, t.cursor.Column, true, grid.Vec3{})
	if text, _, ok := t.grid.DescribeTile(loc); ok {
		drawText(t.screen, snap.Columns+2, 0, text, tcell.StyleDefault.Foreground(tcell.ColorWhite))
	}
	drawText(t.screen, 0, snap.Rows+1, "arrows/hjkl move, q quits", tcell.StyleDefault.Foreground(tcell.ColorGray))
	t.screen.Show()
}

// DrawTerminal draws one cell per tile: rows down, columns across.
func DrawTerminal(c Canvas, snap *grid.Snapshot) {
	base := tcell.StyleDefault
	for _, tile := range snap.Tiles {
		glyph, style := glyphFree, base.Foreground(tcell.ColorGreen)
		switch {
		case tile.HasOccupant():
			glyph, style = glyphOccupied, base.Foreground(tcell.ColorYellow)
		case !tile.CanWalkOn:
			glyph, style = glyphNoWalk, base.Foreground(tcell.ColorRed)
		case !tile.CanSpawnOn:
			glyph, style = glyphNoSpawn, base.Foreground(tcell.ColorBlue)
		}
		if snap.SelectionVisible && tile.Position == snap.Selected {
			style = style.Reverse(true)
		}
		c.SetContent(tile.Position.Column, tile.Position.Row, glyph, nil, style)
	}
}

func drawText(c Canvas, x, y int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if r == '\n' {
			y++
			col = x
			continue
		}
		c.SetContent(col, y, r, nil, style)
		col++
	}
}
