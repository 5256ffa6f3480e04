package weave

import "time"

// Priority is one of the three dispatch/queue priority bands.
type Priority uint8

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

// EventType discriminates the Event sum type.
type EventType uint8

const (
	EventKey EventType = iota
	EventMouse
	EventPaste
	EventFocus
	EventResize
	EventSignal
	EventCustom
)

// MouseAction enumerates mouse event kinds.
type MouseAction uint8

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMove
	MouseScroll
)

// MouseButton enumerates mouse buttons, including synthetic scroll "buttons".
type MouseButton uint8

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// SignalKind enumerates the process signals the runtime translates to
// events.
type SignalKind uint8

const (
	SigInt SignalKind = iota
	SigTerm
	SigHup
	SigWinch
	SigQuit
	SigTstp
	SigCont
)

// KeyData holds the Key event variant's fields.
type KeyData struct {
	Key   string // logical name ("a", "Enter", "F5", ...) or single char
	Raw   []byte
	Ctrl  bool
	Alt   bool
	Shift bool
	Code  rune
}

// MouseData holds the Mouse event variant's fields.
type MouseData struct {
	Action           MouseAction
	Button           MouseButton
	X, Y             int
	Ctrl, Alt, Shift bool
}

// PasteData holds the Paste event variant's fields.
type PasteData struct {
	Text string
	// Clusters is the number of grapheme clusters in Text, as measured by
	// uniseg. Widgets use this instead of len(Text) or len([]rune(Text))
	// to size pasted content correctly when it contains combining marks
	// or multi-rune emoji sequences.
	Clusters int
}

// FocusData holds the Focus event variant's fields.
type FocusData struct {
	WidgetID string
	Gained   bool
}

// ResizeData holds the Resize event variant's fields.
type ResizeData struct {
	Columns, Rows         int
	PrevColumns, PrevRows int
}

// SignalData holds the Signal event variant's fields.
type SignalData struct {
	Kind SignalKind
}

// CustomData holds the Custom event variant's fields.
type CustomData struct {
	Name    string
	Payload any
}

// Event is the sum type dispatched through the queue and dispatcher. Only
// the field matching Type is meaningful.
type Event struct {
	Type   EventType
	Key    KeyData
	Mouse  MouseData
	Paste  PasteData
	Focus  FocusData
	Resize ResizeData
	Signal SignalData
	Custom CustomData

	Priority  Priority
	Timestamp time.Time

	propagationStopped bool
	defaultPrevented   bool
}

// StopPropagation halts further dispatcher phases/handlers for this event.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// PropagationStopped reports whether StopPropagation has been called.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// PreventDefault marks the event as having its default action suppressed.
// This is informational for callers; the dispatcher does not act on it.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault has been called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// NewKeyEvent builds a normal-priority Key event stamped with now.
func NewKeyEvent(data KeyData) Event {
	return Event{Type: EventKey, Key: data, Priority: PriorityNormal, Timestamp: time.Now()}
}
