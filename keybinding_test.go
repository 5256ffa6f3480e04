package weave

import (
	"testing"
	"time"
)

func TestParseChord(t *testing.T) {
	c, err := ParseChord("ctrl+s")
	if err != nil {
		t.Fatalf("ParseChord: %v", err)
	}
	if c.Key != "s" || !c.Ctrl || c.Alt || c.Shift {
		t.Fatalf("got %+v", c)
	}
}

func TestFormatChord(t *testing.T) {
	got := FormatChord(KeyChord{Key: "f1", Ctrl: true, Alt: true, Shift: true})
	if got != "Ctrl+Alt+Shift+F1" {
		t.Fatalf("got %q", got)
	}
}

func TestKeyBindingsSingleChord(t *testing.T) {
	kb := NewKeyBindings(DefaultKeyBindingsConfig())
	fired := false
	kb.Register(KeyBinding{ID: "save", Chords: []KeyChord{{Key: "s", Ctrl: true}}, Callback: func(ev *Event) bool {
		fired = true
		return true
	}})
	ev := NewKeyEvent(KeyData{Key: "s", Ctrl: true})
	if !kb.HandleKey(&ev) || !fired {
		t.Fatalf("expected binding to fire")
	}
}

func TestKeyBindingsSequenceFiresWithinTimeout(t *testing.T) {
	kb := NewKeyBindings(KeyBindingsConfig{SequenceTimeout: 50 * time.Millisecond})
	fired := false
	kb.Register(KeyBinding{
		ID:     "seq",
		Chords: []KeyChord{{Key: "k", Ctrl: true}, {Key: "s", Ctrl: true}},
		Callback: func(ev *Event) bool {
			fired = true
			return true
		},
	})
	ev1 := NewKeyEvent(KeyData{Key: "k", Ctrl: true})
	kb.HandleKey(&ev1)
	if fired {
		t.Fatalf("should not fire after only the first chord")
	}
	ev2 := NewKeyEvent(KeyData{Key: "s", Ctrl: true})
	kb.HandleKey(&ev2)
	if !fired {
		t.Fatalf("expected binding to fire after both chords")
	}
}

func TestKeyBindingsSequenceResetsAfterTimeout(t *testing.T) {
	kb := NewKeyBindings(KeyBindingsConfig{SequenceTimeout: 20 * time.Millisecond})
	fired := false
	kb.Register(KeyBinding{
		ID:     "seq",
		Chords: []KeyChord{{Key: "k", Ctrl: true}, {Key: "s", Ctrl: true}},
		Callback: func(ev *Event) bool {
			fired = true
			return true
		},
	})
	ev1 := NewKeyEvent(KeyData{Key: "k", Ctrl: true})
	kb.HandleKey(&ev1)

	time.Sleep(40 * time.Millisecond) // exceed the sequence timeout

	ev2 := NewKeyEvent(KeyData{Key: "s", Ctrl: true})
	kb.HandleKey(&ev2)
	if fired {
		t.Fatalf("expected the stale sequence to have been dropped by the timeout")
	}
}
