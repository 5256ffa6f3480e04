package weave

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyChord identifies one keystroke with modifiers.
type KeyChord struct {
	Key   string
	Ctrl  bool
	Alt   bool
	Shift bool
}

func chordFromKeyData(kd KeyData) KeyChord {
	return KeyChord{Key: kd.Key, Ctrl: kd.Ctrl, Alt: kd.Alt, Shift: kd.Shift}
}

// KeyBinding associates an ordered, non-empty chord sequence with a
// callback. A single-chord binding has len(Chords) == 1.
type KeyBinding struct {
	ID          string
	Chords      []KeyChord
	Callback    func(ev *Event) bool
	Priority    int
	Description string
}

// KeyBindingsConfig configures a KeyBindings matcher, per SPEC_FULL.md §6.
type KeyBindingsConfig struct {
	SequenceTimeout time.Duration
	CaseSensitive   bool
}

// DefaultKeyBindingsConfig matches the spec's stated defaults.
func DefaultKeyBindingsConfig() KeyBindingsConfig {
	return KeyBindingsConfig{SequenceTimeout: 1000 * time.Millisecond, CaseSensitive: false}
}

type pendingSequence struct {
	binding  *KeyBinding
	position int
}

// KeyBindings matches incoming key events against registered single-chord
// and timed multi-chord sequence bindings.
//
// Grounded on kungfusheep-glyph/focusmanager.go's binding-registration
// shape, reimplemented natively (not via riffkey, which is unfetchable):
// sequence matching and the single re-armed timeout are built here from
// scratch per the spec's matching algorithm.
type KeyBindings struct {
	mu       sync.Mutex
	cfg      KeyBindingsConfig
	bindings map[string]*KeyBinding
	order    []*KeyBinding // kept sorted by descending priority, insertion order ties

	pending []pendingSequence
	timer   *time.Timer
}

// NewKeyBindings creates an empty KeyBindings matcher.
func NewKeyBindings(cfg KeyBindingsConfig) *KeyBindings {
	return &KeyBindings{cfg: cfg, bindings: make(map[string]*KeyBinding)}
}

// Register adds a binding and returns an unregister handle (its id).
func (kb *KeyBindings) Register(b KeyBinding) (string, error) {
	if len(b.Chords) == 0 {
		return "", fmt.Errorf("weave: key binding %q has no chords", b.ID)
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	bound := b
	kb.bindings[bound.ID] = &bound
	kb.order = insertBindingSorted(kb.order, &bound)
	return bound.ID, nil
}

func insertBindingSorted(order []*KeyBinding, b *KeyBinding) []*KeyBinding {
	i := 0
	for ; i < len(order); i++ {
		if b.Priority > order[i].Priority {
			break
		}
	}
	order = append(order, nil)
	copy(order[i+1:], order[i:])
	order[i] = b
	return order
}

// Unregister removes a binding by id.
func (kb *KeyBindings) Unregister(id string) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	delete(kb.bindings, id)
	for i, b := range kb.order {
		if b.ID == id {
			kb.order = append(kb.order[:i], kb.order[i+1:]...)
			break
		}
	}
	for i, p := range kb.pending {
		if p.binding.ID == id {
			kb.pending = append(kb.pending[:i], kb.pending[i+1:]...)
			break
		}
	}
}

func (kb *KeyBindings) normalize(key string) string {
	if kb.cfg.CaseSensitive {
		return key
	}
	return strings.ToLower(key)
}

func (kb *KeyBindings) chordsEqual(a, b KeyChord) bool {
	return kb.normalize(a.Key) == kb.normalize(b.Key) && a.Ctrl == b.Ctrl && a.Alt == b.Alt && a.Shift == b.Shift
}

// HandleKey matches ev against active sequences, then single-chord
// bindings, then opens new multi-chord sequences. It returns whether a
// binding fired or a sequence advanced/opened.
func (kb *KeyBindings) HandleKey(ev *Event) bool {
	if ev.Type != EventKey {
		return false
	}
	chord := chordFromKeyData(ev.Key)

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if len(kb.pending) > 0 {
		return kb.advancePendingLocked(chord, ev)
	}

	for _, b := range kb.order {
		if len(b.Chords) == 1 && kb.chordsEqual(b.Chords[0], chord) {
			kb.fireLocked(b, ev)
			return true
		}
	}

	for _, b := range kb.order {
		if len(b.Chords) > 1 && kb.chordsEqual(b.Chords[0], chord) {
			kb.pending = append(kb.pending, pendingSequence{binding: b, position: 1})
		}
	}
	if len(kb.pending) > 0 {
		kb.armTimerLocked()
		return true
	}
	return false
}

func (kb *KeyBindings) advancePendingLocked(chord KeyChord, ev *Event) bool {
	var next []pendingSequence
	fired := false
	for _, p := range kb.pending {
		if !kb.chordsEqual(p.binding.Chords[p.position], chord) {
			continue // drop non-matching sequence, per "partial match resets the timeout" (others may still match)
		}
		p.position++
		if p.position == len(p.binding.Chords) {
			kb.fireLocked(p.binding, ev)
			fired = true
			continue
		}
		next = append(next, p)
	}
	kb.pending = next
	if len(kb.pending) > 0 {
		kb.armTimerLocked()
	} else if kb.timer != nil {
		kb.timer.Stop()
		kb.timer = nil
	}
	return fired || len(kb.pending) > 0
}

func (kb *KeyBindings) fireLocked(b *KeyBinding, ev *Event) {
	kb.pending = nil
	if kb.timer != nil {
		kb.timer.Stop()
		kb.timer = nil
	}
	ev.PreventDefault()
	if b.Callback != nil && !b.Callback(ev) {
		ev.StopPropagation()
	}
}

func (kb *KeyBindings) armTimerLocked() {
	timeout := kb.cfg.SequenceTimeout
	if timeout <= 0 {
		timeout = 1000 * time.Millisecond
	}
	if kb.timer != nil {
		kb.timer.Stop()
	}
	kb.timer = time.AfterFunc(timeout, kb.expirePending)
}

func (kb *KeyBindings) expirePending() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.pending = nil
	kb.timer = nil
}

// ParseChord parses a string like "ctrl+alt+shift+f1" into a KeyChord.
func ParseChord(s string) (KeyChord, error) {
	parts := strings.Split(s, "+")
	if len(parts) == 0 {
		return KeyChord{}, fmt.Errorf("weave: empty chord")
	}
	var c KeyChord
	for i, p := range parts {
		lower := strings.ToLower(strings.TrimSpace(p))
		switch lower {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt", "option":
			c.Alt = true
		case "shift":
			c.Shift = true
		default:
			if i != len(parts)-1 {
				return KeyChord{}, fmt.Errorf("weave: unexpected modifier-position token %q in chord %q", p, s)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return KeyChord{}, fmt.Errorf("weave: chord %q has no base key", s)
	}
	return c, nil
}

// FormatChord renders a KeyChord as "Ctrl+Alt+Shift+<Key>", titlecasing the
// key name.
func FormatChord(c KeyChord) string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Alt {
		parts = append(parts, "Alt")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	parts = append(parts, titleCaseKey(c.Key))
	return strings.Join(parts, "+")
}

func titleCaseKey(key string) string {
	if key == "" {
		return key
	}
	if len(key) == 1 {
		return strings.ToUpper(key)
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
