package weave

import (
	"bytes"
	"errors"
	"testing"
)

func TestTerminalSizeFallsBackTo80x24ForNonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())
	size := term.Size()
	if size.Columns != 80 || size.Rows != 24 {
		t.Fatalf("expected fallback 80x24, got %+v", size)
	}
}

func TestTerminalFlushWritesBufferedBytes(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())
	term.Write([]byte("hello"))
	if err := term.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("got %q, want %q", buf.String(), "hello")
	}
	if term.BytesWritten() != 5 {
		t.Fatalf("BytesWritten = %d, want 5", term.BytesWritten())
	}
}

func TestTerminalClearDiscardsUnflushedBytes(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, DefaultTerminalConfig())
	term.Write([]byte("discarded"))
	term.Clear()
	term.Flush()
	if buf.Len() != 0 {
		t.Fatalf("expected nothing flushed after Clear, got %q", buf.String())
	}
}

// failingWriter always errors, to exercise the retry/backoff path.
type failingWriter struct{ calls int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	return 0, errors.New("boom")
}

func TestTerminalFlushRetriesThenSurfacesError(t *testing.T) {
	fw := &failingWriter{}
	cfg := DefaultTerminalConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = 0
	term := NewTerminal(fw, cfg)
	term.Write([]byte("x"))
	err := term.Flush()
	if !errors.Is(err, ErrOutputWriteFailure) {
		t.Fatalf("expected ErrOutputWriteFailure, got %v", err)
	}
	if fw.calls != 3 { // initial + 2 retries
		t.Fatalf("expected 3 write attempts, got %d", fw.calls)
	}
}

func TestTerminalAutoFlushThreshold(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTerminalConfig()
	cfg.BufferSize = 4
	cfg.AutoFlush = true
	term := NewTerminal(&buf, cfg)
	term.Write([]byte("abcdef"))
	if buf.String() != "abcdef" {
		t.Fatalf("expected auto-flush once threshold exceeded, got %q", buf.String())
	}
}
