package weave

import (
	"bytes"
	"sync"
	"testing"
)

func TestSignalHandlerWinchCoalescing(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())

	h := NewSignalHandler(SignalHandlerConfig{Winch: true}, term)
	var mu sync.Mutex
	var resizeEvents []Event
	done := make(chan struct{}, 1)
	h.OnEvent(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Type == EventResize {
			resizeEvents = append(resizeEvents, ev)
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})

	// Simulate two back-to-back size changes landing in the same
	// notification burst, as WatchResize's goroutine would publish them.
	term.resizeCh <- [2]Size{{Columns: 90, Rows: 30}, {Columns: 80, Rows: 24}}
	term.resizeCh <- [2]Size{{Columns: 100, Rows: 40}, {Columns: 90, Rows: 30}}

	stopCh := make(chan struct{})
	go h.watchResize(term.ResizeChan(), stopCh)
	<-done
	close(stopCh)

	mu.Lock()
	defer mu.Unlock()
	if len(resizeEvents) != 1 {
		t.Fatalf("expected exactly one coalesced Resize event, got %d: %+v", len(resizeEvents), resizeEvents)
	}
	r := resizeEvents[0].Resize
	if r.Columns != 100 || r.Rows != 40 {
		t.Fatalf("expected final size 100x40, got %dx%d", r.Columns, r.Rows)
	}
}

func TestSignalHandlerStartStopIdempotent(t *testing.T) {
	h := NewSignalHandler(SignalHandlerConfig{}, nil)
	h.Start()
	h.Start()
	h.Stop()
	h.Stop()
}

func TestSignalHandlerIntVeto(t *testing.T) {
	h := NewSignalHandler(SignalHandlerConfig{Int: true}, nil)
	vetoed := false
	h.OnInt(func() bool {
		vetoed = true
		return false
	})
	exited := false
	h.mu.Lock()
	h.onSignal = func(ev Event) { exited = true }
	h.mu.Unlock()
	h.emitSignal(SigInt)
	if !vetoed {
		t.Fatalf("expected veto callback to run")
	}
	if exited {
		t.Fatalf("expected emission to be suppressed once a veto returned false")
	}
}
