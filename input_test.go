package weave

import (
	"testing"
	"time"
)

func TestDecoderRoundTripPlainKey(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("a"))
	if len(events) != 1 || events[0].Key.Key != "a" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderPartialSequenceSafety(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte{0x1b, '['})
	if len(events) != 0 {
		t.Fatalf("expected no events from partial CSI, got %+v", events)
	}
	if !d.Incomplete() {
		t.Fatalf("expected decoder to report incomplete state")
	}
	events = d.Feed([]byte{'A'})
	if len(events) != 1 || events[0].Key.Key != "Up" {
		t.Fatalf("expected Up arrow once sequence completes, got %+v", events)
	}
	if d.Incomplete() {
		t.Fatalf("expected decoder to be back at ground state")
	}
}

func TestDecoderEscapeTimeoutFlushesLiteralEscape(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	d.Feed([]byte{0x1b})
	events := d.CheckTimeout(time.Now().Add(100 * time.Millisecond))
	if len(events) != 1 || events[0].Key.Key != "Escape" {
		t.Fatalf("expected bare Escape key after timeout, got %+v", events)
	}
}

func TestDecoderSGRMouseCoordinates(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("\x1b[<0;10;20M"))
	if len(events) != 1 {
		t.Fatalf("got %+v", events)
	}
	ev := events[0]
	if ev.Type != EventMouse || ev.Mouse.X != 10 || ev.Mouse.Y != 20 || ev.Mouse.Button != MouseLeft || ev.Mouse.Action != MousePress {
		t.Fatalf("got %+v", ev.Mouse)
	}
}

func TestDecoderSGRMouseRelease(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("\x1b[<0;5;6m"))
	if len(events) != 1 || events[0].Mouse.Action != MouseRelease {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderBracketedPasteAtomicity(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("\x1b[200~hello\nworld\x1b[201~"))
	if len(events) != 1 || events[0].Type != EventPaste {
		t.Fatalf("got %+v", events)
	}
	if events[0].Paste.Text != "hello\nworld" {
		t.Fatalf("got paste text %q", events[0].Paste.Text)
	}
	if events[0].Paste.Clusters != 11 {
		t.Fatalf("got cluster count %d, want 11", events[0].Paste.Clusters)
	}
}

func TestDecoderPasteClusterCountKeepsMultiRuneGraphemesWhole(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	// family emoji (man+zwj+woman+zwj+girl), one grapheme cluster, 5 runes.
	text := "\U0001F468‍\U0001F469‍\U0001F467"
	events := d.Feed(append(append([]byte("\x1b[200~"), []byte(text)...), []byte("\x1b[201~")...))
	if len(events) != 1 || events[0].Type != EventPaste {
		t.Fatalf("got %+v", events)
	}
	if events[0].Paste.Clusters != 1 {
		t.Fatalf("got cluster count %d, want 1 for a single combined emoji", events[0].Paste.Clusters)
	}
}

func TestDecoderPasteTextNotInterpretedAsEscapes(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("\x1b[200~not \x1b[A an arrow\x1b[201~"))
	if len(events) != 1 || events[0].Type != EventPaste {
		t.Fatalf("expected the embedded CSI sequence to stay literal text, got %+v", events)
	}
	if events[0].Paste.Text != "not \x1b[A an arrow" {
		t.Fatalf("got %q", events[0].Paste.Text)
	}
}

func TestDecoderOverflowFlushKeepsAllPendingBytes(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.MaxEscapeLength = 4
	d := NewDecoder(cfg)

	// An unterminated CSI sequence with more param bytes than
	// MaxEscapeLength: the leading ESC must surface, and every remaining
	// buffered byte must resync through Ground rather than vanish.
	events := d.Feed([]byte("\x1b[11111"))
	if len(events) == 0 {
		t.Fatalf("expected overflow to surface events, got none")
	}
	if events[0].Key.Key != "Escape" {
		t.Fatalf("expected leading event to be a literal Escape, got %+v", events[0])
	}

	var recovered []byte
	for _, ev := range events[1:] {
		if ev.Type != EventKey || len(ev.Key.Raw) != 1 {
			t.Fatalf("expected resynchronized literal key events, got %+v", ev)
		}
		recovered = append(recovered, ev.Key.Raw[0])
	}
	if string(recovered) != "[11111" {
		t.Fatalf("expected every byte after the leading ESC to resurface, got %q", recovered)
	}
	if d.Incomplete() {
		t.Fatalf("expected decoder back at ground state after overflow flush")
	}
}

func TestDecoderAltKey(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte{0x1b, 'x'})
	if len(events) != 1 || events[0].Key.Key != "x" || !events[0].Key.Alt {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderCtrlLetter(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte{0x01}) // Ctrl+A
	if len(events) != 1 || !events[0].Key.Ctrl || events[0].Key.Key != "a" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderModifiedArrowKey(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("\x1b[1;5C")) // Ctrl+Right
	if len(events) != 1 || events[0].Key.Key != "Right" || !events[0].Key.Ctrl {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderUTF8MultibyteRune(t *testing.T) {
	d := NewDecoder(DefaultDecoderConfig())
	events := d.Feed([]byte("é"))
	if len(events) != 1 || events[0].Key.Key != "é" {
		t.Fatalf("got %+v", events)
	}
}
