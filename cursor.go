package weave

// CursorShape is a terminal cursor rendering style, set via DECSCUSR
// (`ESC[N q`).
//
// Grounded on kungfusheep-glyph/screen.go's CursorShape enum and
// Screen.SetCursorShape.
type CursorShape int

const (
	CursorDefault        CursorShape = 0 // terminal default
	CursorBlockBlink     CursorShape = 1
	CursorBlock          CursorShape = 2
	CursorUnderlineBlink CursorShape = 3
	CursorUnderline      CursorShape = 4
	CursorBarBlink       CursorShape = 5
	CursorBar            CursorShape = 6
)

// Cursor is the cursor's position, shape and visibility, as tracked by a
// Renderer between frames.
type Cursor struct {
	X, Y    int
	Shape   CursorShape
	Visible bool
}

// DefaultCursor returns a visible block cursor at the origin.
func DefaultCursor() Cursor {
	return Cursor{Shape: CursorBlock, Visible: true}
}

// SetCursorShape writes the DECSCUSR sequence selecting shape on t and
// flushes immediately, like the cursor show/hide control sequences.
func (t *Terminal) SetCursorShape(shape CursorShape) error {
	t.rawWrite(appendCursorShape(nil, shape))
	return t.Flush()
}

func appendCursorShape(b []byte, shape CursorShape) []byte {
	b = append(b, "\x1b["...)
	b = appendInt(b, int(shape))
	b = append(b, " q"...)
	return b
}
