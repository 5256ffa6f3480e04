package weave

import "testing"

type capturingLogger struct {
	lines []string
}

func (c *capturingLogger) Printf(format string, args ...any) {
	c.lines = append(c.lines, format)
}

func (c *capturingLogger) Println(args ...any) {
	c.lines = append(c.lines, "println")
}

func TestSetLoggerReplacesDefault(t *testing.T) {
	orig := defaultLogger
	defer SetLogger(orig)

	cl := &capturingLogger{}
	SetLogger(cl)
	defaultLogger.Printf("hello %d", 1)

	if len(cl.lines) != 1 {
		t.Fatalf("expected custom logger to receive the call, got %d lines", len(cl.lines))
	}
}

func TestSetLoggerNilFallsBackToDefault(t *testing.T) {
	orig := defaultLogger
	defer SetLogger(orig)

	SetLogger(nil)
	if defaultLogger == nil {
		t.Fatalf("expected SetLogger(nil) to install a non-nil default")
	}
}
