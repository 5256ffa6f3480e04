package weave

import "errors"

// Sentinel errors for the error kinds enumerated in SPEC_FULL.md §7 that
// are not already defined alongside their owning component
// (ErrDimensionMismatch lives in buffer.go, ErrOutputWriteFailure in
// term.go, next to the code that raises them).
var (
	// ErrQueueOverflow marks an event dropped by EventQueue's overflow
	// policy. Never returned from Enqueue (which reports loss via its
	// bool result); used when an overflow is surfaced as an event payload.
	ErrQueueOverflow = errors.New("weave: event queue overflow, oldest event dropped")

	// ErrLayoutOverflow marks a LayoutNode whose resolved size was
	// clamped to fit its parent's constraints.
	ErrLayoutOverflow = errors.New("weave: layout constraint overflow, size clamped")

	// ErrMalformedSequence marks a decoder byte run that did not match
	// any recognized escape sequence and was consumed as literal keys.
	ErrMalformedSequence = errors.New("weave: malformed escape sequence")

	// ErrHandlerPanic wraps a recovered panic from an event handler or a
	// widget's Paint method, isolated so the render loop keeps running.
	ErrHandlerPanic = errors.New("weave: handler panic recovered")

	// ErrConfigLoad wraps failures reading or parsing a Config file.
	ErrConfigLoad = errors.New("weave: config load failure")
)
