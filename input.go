package weave

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// DecoderConfig configures the Input decoder, per SPEC_FULL.md §6.
type DecoderConfig struct {
	EscapeTimeout   time.Duration
	MaxEscapeLength int
	MouseSupport    bool
	BracketedPaste  bool
	FocusEvents     bool
}

// DefaultDecoderConfig matches the spec's stated defaults.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		EscapeTimeout:   50 * time.Millisecond,
		MaxEscapeLength: 100,
		MouseSupport:    true,
		BracketedPaste:  true,
		FocusEvents:     true,
	}
}

type decoderState uint8

const (
	stGround decoderState = iota
	stEscape
	stCSI
	stCSIX10 // after ESC[M, waiting for 3 raw mouse bytes
	stSS3
	stPaste
)

// Decoder turns a raw terminal byte stream into typed Events. It is fed
// byte chunks incrementally and keeps partial escape sequences buffered
// across calls, reporting Incomplete() until a full sequence (or a
// timeout) resolves them.
//
// Grounded on AhnafCodes-basementui/go/tui/input.go's overall processEsc/
// parseCSI/dispatchCSI shape, generalized into a formal state machine using
// regenrek-vibetunnel's AnsiParser state-enum structure so arbitrary byte
// chunking is handled correctly (testable property 2).
type Decoder struct {
	cfg DecoderConfig

	state   decoderState
	pending []byte // raw bytes seen since leaving Ground, for timeout flush
	params  []byte // CSI intermediate/param bytes collected so far

	x10Bytes []byte // accumulator while in stCSIX10

	pasteBuf []byte

	runeBuf []byte // partial UTF-8 continuation bytes in Ground state

	lastByteTime time.Time

	// queued holds events produced by overflowFlush's re-synchronization
	// pass that step()'s single-event return can't carry directly. Feed
	// drains it after every step() call.
	queued []Event
}

// NewDecoder creates a Decoder with the given configuration.
func NewDecoder(cfg DecoderConfig) *Decoder {
	return &Decoder{cfg: cfg, state: stGround}
}

// Incomplete reports whether the decoder is holding a partial sequence.
func (d *Decoder) Incomplete() bool {
	return d.state != stGround || len(d.runeBuf) > 0
}

// Feed processes data and returns the events it produced. Any partial
// trailing sequence remains buffered internally for the next call.
func (d *Decoder) Feed(data []byte) []Event {
	var events []Event
	for _, b := range data {
		if ev, ok := d.step(b); ok {
			events = append(events, ev)
		}
		if len(d.queued) > 0 {
			events = append(events, d.queued...)
			d.queued = nil
		}
	}
	return events
}

// CheckTimeout should be called periodically by the owning event loop. If
// a pending escape sequence has been idle for longer than EscapeTimeout, it
// is flushed as literal keystrokes so a bare ESC is never swallowed.
func (d *Decoder) CheckTimeout(now time.Time) []Event {
	if d.state == stGround {
		return nil
	}
	timeout := d.cfg.EscapeTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	if now.Sub(d.lastByteTime) < timeout {
		return nil
	}
	return d.flushPendingAsLiteral()
}

func (d *Decoder) flushPendingAsLiteral() []Event {
	var events []Event
	for _, b := range d.pending {
		events = append(events, literalKeyEvent(b))
	}
	d.reset()
	return events
}

func (d *Decoder) reset() {
	d.state = stGround
	d.pending = nil
	d.params = nil
	d.x10Bytes = nil
}

func literalKeyEvent(b byte) Event {
	if b == 0x1b {
		return NewKeyEvent(KeyData{Key: "Escape", Raw: []byte{b}})
	}
	return NewKeyEvent(controlKeyData(b))
}

// step feeds one byte through the state machine.
func (d *Decoder) step(b byte) (Event, bool) {
	d.lastByteTime = time.Now()

	switch d.state {
	case stGround:
		return d.stepGround(b)
	case stEscape:
		return d.stepEscape(b)
	case stCSI:
		return d.stepCSI(b)
	case stCSIX10:
		return d.stepX10(b)
	case stSS3:
		return d.stepSS3(b)
	case stPaste:
		return d.stepPaste(b)
	}
	return Event{}, false
}

func (d *Decoder) stepGround(b byte) (Event, bool) {
	if b == 0x1b {
		d.state = stEscape
		d.pending = []byte{b}
		return Event{}, false
	}
	if b < 0x20 || b == 0x7f {
		return NewKeyEvent(controlKeyData(b)), true
	}
	if b < 0x80 {
		return NewKeyEvent(KeyData{Key: string(rune(b)), Raw: []byte{b}, Code: rune(b)}), true
	}

	// Multi-byte UTF-8: accumulate until a full rune is available.
	d.runeBuf = append(d.runeBuf, b)
	if !utf8.FullRune(d.runeBuf) {
		return Event{}, false
	}
	r, size := utf8.DecodeRune(d.runeBuf)
	raw := append([]byte(nil), d.runeBuf[:size]...)
	d.runeBuf = d.runeBuf[size:]
	if r == utf8.RuneError {
		return Event{}, false
	}
	return NewKeyEvent(KeyData{Key: string(r), Raw: raw, Code: r}), true
}

// controlKeyData maps a C0 control byte / DEL to a named key, per the
// spec's "tab/return/backspace do not set ctrl" carve-out.
func controlKeyData(b byte) KeyData {
	switch b {
	case '\t':
		return KeyData{Key: "Tab", Raw: []byte{b}}
	case '\r', '\n':
		return KeyData{Key: "Enter", Raw: []byte{b}}
	case 0x08, 0x7f:
		return KeyData{Key: "Backspace", Raw: []byte{b}}
	case 0x1b:
		return KeyData{Key: "Escape", Raw: []byte{b}}
	default:
		// Ctrl+letter: C0 controls are (letter - 'a' + 1) for a-z.
		letter := rune(b + 'a' - 1)
		return KeyData{Key: string(letter), Raw: []byte{b}, Ctrl: true, Code: letter}
	}
}

func (d *Decoder) stepEscape(b byte) (Event, bool) {
	d.pending = append(d.pending, b)
	switch b {
	case 0x1b:
		// ESC ESC => literal escape key with alt set.
		d.reset()
		return NewKeyEvent(KeyData{Key: "Escape", Alt: true, Raw: []byte{0x1b, 0x1b}}), true
	case '[':
		d.state = stCSI
		d.params = nil
		return Event{}, false
	case 'O':
		d.state = stSS3
		return Event{}, false
	default:
		// ESC <char> => alt+char.
		d.reset()
		if b < 0x20 || b == 0x7f {
			kd := controlKeyData(b)
			kd.Alt = true
			return NewKeyEvent(kd), true
		}
		return NewKeyEvent(KeyData{Key: string(rune(b)), Alt: true, Raw: []byte{b}, Code: rune(b)}), true
	}
}

func (d *Decoder) stepSS3(b byte) (Event, bool) {
	d.pending = append(d.pending, b)
	d.reset()
	switch b {
	case 'A':
		return NewKeyEvent(KeyData{Key: "Up"}), true
	case 'B':
		return NewKeyEvent(KeyData{Key: "Down"}), true
	case 'C':
		return NewKeyEvent(KeyData{Key: "Right"}), true
	case 'D':
		return NewKeyEvent(KeyData{Key: "Left"}), true
	case 'P':
		return NewKeyEvent(KeyData{Key: "F1"}), true
	case 'Q':
		return NewKeyEvent(KeyData{Key: "F2"}), true
	case 'R':
		return NewKeyEvent(KeyData{Key: "F3"}), true
	case 'S':
		return NewKeyEvent(KeyData{Key: "F4"}), true
	default:
		// Unrecognized SS3 final: resynchronize, drop silently (malformed,
		// never surfaced per §7 DecoderMalformedSequence).
		return Event{}, false
	}
}

func (d *Decoder) stepCSI(b byte) (Event, bool) {
	d.pending = append(d.pending, b)

	isFinal := b >= 0x40 && b <= 0x7e
	if !isFinal {
		d.params = append(d.params, b)
		if len(d.pending) > d.cfg.MaxEscapeLength {
			return d.overflowFlush()
		}
		return Event{}, false
	}

	if b == 'M' && len(d.params) == 0 {
		// X10 mouse: ESC[M followed by 3 raw bytes, no param digits seen.
		d.state = stCSIX10
		d.x10Bytes = nil
		return Event{}, false
	}

	ev, ok := d.finalizeCSI(d.params, b)
	if d.state == stPaste {
		// tildeKey entered bracketed-paste mode; keep it.
		d.pending, d.params = nil, nil
		return ev, ok
	}
	d.reset()
	return ev, ok
}

// overflowFlush handles a CSI sequence that has grown past MaxEscapeLength
// without a final byte: rather than flattening the whole buffered run to
// literal keys (which would discard the escape's structure if the terminal
// was just slow to send a long parameter list), it emits the leading ESC as
// a literal key and re-synchronizes by re-running the remaining pending
// bytes through the state machine from Ground. Any events that produces are
// stashed on d.queued for Feed to pick up, since step()'s contract only
// returns one event per call.
func (d *Decoder) overflowFlush() (Event, bool) {
	pending := d.pending
	d.reset()
	if len(pending) == 0 {
		return Event{}, false
	}

	leading := literalKeyEvent(pending[0])
	for _, b := range pending[1:] {
		if ev, ok := d.step(b); ok {
			d.queued = append(d.queued, ev)
		}
	}
	return leading, true
}

func (d *Decoder) stepX10(b byte) (Event, bool) {
	d.x10Bytes = append(d.x10Bytes, b)
	if len(d.x10Bytes) < 3 {
		return Event{}, false
	}
	cb := int(d.x10Bytes[0]) - 32
	cx := int(d.x10Bytes[1]) - 32
	cy := int(d.x10Bytes[2]) - 32
	d.reset()
	if !d.cfg.MouseSupport {
		return Event{}, false
	}
	button, action, ctrl, alt, shift := decodeMouseBits(cb)
	if action != MouseScroll && cb&0x03 == 3 {
		action = MouseRelease
		button = MouseNone
	}
	return Event{
		Type:      EventMouse,
		Mouse:     MouseData{Action: action, Button: button, X: cx, Y: cy, Ctrl: ctrl, Alt: alt, Shift: shift},
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}, true
}

// finalizeCSI interprets the accumulated param bytes plus final byte.
func (d *Decoder) finalizeCSI(params []byte, final byte) (Event, bool) {
	switch final {
	case 'A', 'B', 'C', 'D', 'H', 'F':
		return d.arrowOrHomeEnd(params, final), true
	case '~':
		return d.tildeKey(params)
	case 'M', 'm':
		return d.sgrMouse(params, final)
	case 'I':
		if !d.cfg.FocusEvents {
			return Event{}, false
		}
		return Event{Type: EventFocus, Focus: FocusData{Gained: true}, Priority: PriorityNormal, Timestamp: time.Now()}, true
	case 'O':
		if !d.cfg.FocusEvents {
			return Event{}, false
		}
		return Event{Type: EventFocus, Focus: FocusData{Gained: false}, Priority: PriorityNormal, Timestamp: time.Now()}, true
	default:
		return Event{}, false
	}
}

func parseSemicolonInts(params []byte) []int {
	s := strings.TrimLeft(string(params), "<?")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func modifiersFromCode(m int) (shift, alt, ctrl bool) {
	m--
	shift = m&1 != 0
	alt = m&2 != 0
	ctrl = m&4 != 0
	return
}

func (d *Decoder) arrowOrHomeEnd(params []byte, final byte) Event {
	name := map[byte]string{'A': "Up", 'B': "Down", 'C': "Right", 'D': "Left", 'H': "Home", 'F': "End"}[final]
	kd := KeyData{Key: name}
	ints := parseSemicolonInts(params)
	if len(ints) == 2 {
		kd.Shift, kd.Alt, kd.Ctrl = modifiersFromCode(ints[1])
	}
	return NewKeyEvent(kd)
}

var tildeKeyNames = map[int]string{
	1: "Home", 2: "Insert", 3: "Delete", 4: "End", 5: "PageUp", 6: "PageDown",
	7: "Home", 8: "End",
	15: "F5", 17: "F6", 18: "F7", 19: "F8", 20: "F9", 21: "F10", 23: "F11", 24: "F12",
	200: "__PasteStart", 201: "__PasteEnd",
}

func (d *Decoder) tildeKey(params []byte) (Event, bool) {
	ints := parseSemicolonInts(params)
	if len(ints) == 0 {
		return Event{}, false
	}
	code := ints[0]
	name, ok := tildeKeyNames[code]
	if !ok {
		return Event{}, false
	}
	if name == "__PasteStart" {
		if !d.cfg.BracketedPaste {
			return Event{}, false
		}
		d.state = stPaste
		d.pasteBuf = nil
		return Event{}, false
	}
	kd := KeyData{Key: name}
	if len(ints) == 2 {
		kd.Shift, kd.Alt, kd.Ctrl = modifiersFromCode(ints[1])
	}
	return NewKeyEvent(kd), true
}

// decodeMouseBits extracts button/modifier/motion/scroll info from a Cb
// value, shared between the SGR and X10 mouse paths.
func decodeMouseBits(cb int) (button MouseButton, action MouseAction, ctrl, alt, shift bool) {
	shift = cb&0x04 != 0
	alt = cb&0x08 != 0
	ctrl = cb&0x10 != 0
	motion := cb&0x20 != 0
	if cb&0x40 != 0 {
		if cb&0x01 != 0 {
			button = MouseWheelDown
		} else {
			button = MouseWheelUp
		}
		action = MouseScroll
		return
	}
	switch cb & 0x03 {
	case 0:
		button = MouseLeft
	case 1:
		button = MouseMiddle
	case 2:
		button = MouseRight
	case 3:
		button = MouseNone
	}
	if motion {
		action = MouseMove
	} else {
		action = MousePress
	}
	return
}

func (d *Decoder) sgrMouse(params []byte, final byte) (Event, bool) {
	if !d.cfg.MouseSupport {
		return Event{}, false
	}
	ints := parseSemicolonInts(params)
	if len(ints) != 3 {
		return Event{}, false
	}
	cb, x, y := ints[0], ints[1], ints[2]
	button, action, ctrl, alt, shift := decodeMouseBits(cb)
	if action != MouseScroll {
		if final == 'm' {
			action = MouseRelease
		}
	}
	return Event{
		Type:      EventMouse,
		Mouse:     MouseData{Action: action, Button: button, X: x, Y: y, Ctrl: ctrl, Alt: alt, Shift: shift},
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}, true
}

func (d *Decoder) stepPaste(b byte) (Event, bool) {
	d.pasteBuf = append(d.pasteBuf, b)
	const terminator = "\x1b[201~"
	if len(d.pasteBuf) >= len(terminator) && string(d.pasteBuf[len(d.pasteBuf)-len(terminator):]) == terminator {
		text := string(d.pasteBuf[:len(d.pasteBuf)-len(terminator)])
		clusters := uniseg.GraphemeClusterCount(text)
		d.reset()
		return Event{
			Type:      EventPaste,
			Paste:     PasteData{Text: text, Clusters: clusters},
			Priority:  PriorityNormal,
			Timestamp: time.Now(),
		}, true
	}
	return Event{}, false
}
