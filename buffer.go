package weave

import (
	"errors"

	"github.com/mattn/go-runewidth"
)

// ErrDimensionMismatch is returned by CopyFrom when source and destination
// buffers have different dimensions.
var ErrDimensionMismatch = errors.New("weave: buffer dimension mismatch")

// AttrMask is a bitmask of text attributes.
type AttrMask uint8

const (
	AttrBold AttrMask = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrStrike
)

// wideContinuation marks the second cell of a two-column-wide glyph. It
// carries no visible content of its own; the diff strategy treats the pair
// as a single atomic unit.
const wideContinuation rune = 0

// Cell is one character grid position with style.
type Cell struct {
	Rune  rune
	FG    Color
	BG    Color
	Attrs AttrMask
}

// EmptyCell is a blank, default-styled cell.
func EmptyCell() Cell {
	return Cell{Rune: ' '}
}

// Equal reports whether two cells are identical in every field.
func (c Cell) Equal(o Cell) bool {
	return c.Rune == o.Rune && c.FG == o.FG && c.BG == o.BG && c.Attrs == o.Attrs
}

// Region describes a rectangular sub-area of a buffer, in cell coordinates.
type Region struct {
	X, Y, W, H int
}

// Diff describes one cell that differs between two buffers.
type Diff struct {
	X, Y int
	Cell Cell
}

// ScreenBuffer is a row-major width x height grid of styled cells plus an
// explicit cursor. Indexing is bounds-checked and silently no-ops out of
// range, per the spec.
type ScreenBuffer struct {
	cells  []Cell
	width  int
	height int

	CursorX, CursorY int
	CursorVisible    bool
}

// NewScreenBuffer creates a buffer of the given dimensions, filled with
// empty cells.
func NewScreenBuffer(width, height int) *ScreenBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	b := &ScreenBuffer{width: width, height: height}
	b.cells = make([]Cell, width*height)
	empty := EmptyCell()
	for i := range b.cells {
		b.cells[i] = empty
	}
	return b
}

// Width returns the buffer width in cells.
func (b *ScreenBuffer) Width() int { return b.width }

// Height returns the buffer height in cells.
func (b *ScreenBuffer) Height() int { return b.height }

func (b *ScreenBuffer) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.width && y < b.height
}

func (b *ScreenBuffer) index(x, y int) int { return y*b.width + x }

// Get returns the cell at (x,y), or the empty cell if out of bounds.
func (b *ScreenBuffer) Get(x, y int) Cell {
	if !b.inBounds(x, y) {
		return EmptyCell()
	}
	return b.cells[b.index(x, y)]
}

// Set writes a cell at (x,y). Out-of-range positions are silently ignored.
// A rune with display width 2 also writes a wide-continuation placeholder
// in the adjacent cell so the two are diffed as one atomic unit.
func (b *ScreenBuffer) Set(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	b.cells[b.index(x, y)] = c
	w := runewidth.RuneWidth(c.Rune)
	if w == 2 && b.inBounds(x+1, y) {
		b.cells[b.index(x+1, y)] = Cell{Rune: wideContinuation, FG: c.FG, BG: c.BG, Attrs: c.Attrs}
	}
}

// Fill sets every cell in region to c. A zero-value region fills the whole
// buffer.
func (b *ScreenBuffer) Fill(region Region, c Cell) {
	if region == (Region{}) {
		region = Region{0, 0, b.width, b.height}
	}
	for y := region.Y; y < region.Y+region.H; y++ {
		for x := region.X; x < region.X+region.W; x++ {
			b.Set(x, y, c)
		}
	}
}

// Clear resets region (or the whole buffer, if zero-valued) to empty cells.
func (b *ScreenBuffer) Clear(region Region) {
	b.Fill(region, EmptyCell())
}

// CopyFrom replaces b's contents with other's. Dimensions must match.
func (b *ScreenBuffer) CopyFrom(other *ScreenBuffer) error {
	if b.width != other.width || b.height != other.height {
		return ErrDimensionMismatch
	}
	copy(b.cells, other.cells)
	b.CursorX, b.CursorY, b.CursorVisible = other.CursorX, other.CursorY, other.CursorVisible
	return nil
}

// Resize changes the buffer's dimensions, preserving the overlapping region
// and filling any newly exposed area with empty cells.
func (b *ScreenBuffer) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	next := NewScreenBuffer(width, height)
	minW, minH := width, height
	if b.width < minW {
		minW = b.width
	}
	if b.height < minH {
		minH = b.height
	}
	for y := 0; y < minH; y++ {
		for x := 0; x < minW; x++ {
			next.cells[next.index(x, y)] = b.cells[b.index(x, y)]
		}
	}
	b.cells = next.cells
	b.width, b.height = width, height
}

// DiffIter yields (x,y,cell) for every position whose cell differs from
// other's corresponding cell. DiffIter(self) is always empty.
func (b *ScreenBuffer) DiffIter(other *ScreenBuffer) []Diff {
	var diffs []Diff
	w, h := b.width, b.height
	if other.width < w {
		w = other.width
	}
	if other.height < h {
		h = other.height
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := b.cells[b.index(x, y)]
			o := other.cells[other.index(x, y)]
			if !a.Equal(o) {
				diffs = append(diffs, Diff{X: x, Y: y, Cell: a})
			}
		}
	}
	// Any area present in one buffer but not the other also counts as a
	// difference against its implicit empty-cell counterpart.
	if other.width > w || other.height > h {
		diffs = append(diffs, rangeDiff(other, w, h)...)
	} else if b.width > w || b.height > h {
		diffs = append(diffs, rangeDiff(b, w, h)...)
	}
	return diffs
}

func rangeDiff(buf *ScreenBuffer, fromW, fromH int) []Diff {
	var diffs []Diff
	empty := EmptyCell()
	for y := 0; y < buf.height; y++ {
		for x := 0; x < buf.width; x++ {
			if x < fromW && y < fromH {
				continue
			}
			c := buf.cells[buf.index(x, y)]
			if !c.Equal(empty) {
				diffs = append(diffs, Diff{X: x, Y: y, Cell: c})
			}
		}
	}
	return diffs
}

// DoubleBuffer owns a front (currently on screen) and back (under
// construction) ScreenBuffer. Swap exchanges ownership in O(1).
type DoubleBuffer struct {
	front, back *ScreenBuffer
}

// NewDoubleBuffer creates a front/back pair of the given dimensions.
func NewDoubleBuffer(width, height int) *DoubleBuffer {
	return &DoubleBuffer{
		front: NewScreenBuffer(width, height),
		back:  NewScreenBuffer(width, height),
	}
}

// Front returns the buffer currently reflecting what the terminal shows.
func (d *DoubleBuffer) Front() *ScreenBuffer { return d.front }

// Back returns the buffer under construction for the next frame.
func (d *DoubleBuffer) Back() *ScreenBuffer { return d.back }

// Swap exchanges front and back. After Swap, the caller's next paint should
// target the new Back (the buffer that was front a moment ago).
func (d *DoubleBuffer) Swap() {
	d.front, d.back = d.back, d.front
}

// Resize resizes both buffers, preserving overlap in each independently.
func (d *DoubleBuffer) Resize(width, height int) {
	d.front.Resize(width, height)
	d.back.Resize(width, height)
}
