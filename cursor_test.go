package weave

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultCursorIsVisibleBlock(t *testing.T) {
	c := DefaultCursor()
	if c.Shape != CursorBlock || !c.Visible {
		t.Fatalf("unexpected default cursor: %+v", c)
	}
}

func TestAppendCursorShapeEncodesDECSCUSR(t *testing.T) {
	got := string(appendCursorShape(nil, CursorBarBlink))
	if got != "\x1b[5 q" {
		t.Fatalf("got %q", got)
	}
}

func TestTerminalSetCursorShapeWritesSequence(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())
	if err := term.SetCursorShape(CursorUnderline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[4 q") {
		t.Fatalf("expected DECSCUSR sequence in output, got %q", buf.String())
	}
}

func TestRendererSetCursorShapeTracksState(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())
	enc := NewEncoder()
	r := NewRenderer(term, enc, 10, 2, DefaultRendererConfig())

	if err := r.SetCursorShape(CursorBar); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Cursor().Shape != CursorBar {
		t.Fatalf("expected tracked cursor shape to update")
	}
}
