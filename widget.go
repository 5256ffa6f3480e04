package weave

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Style is the paint-time appearance applied by the drawing primitives.
type Style struct {
	FG   Color
	BG   Color
	Attr AttrMask
}

// Theme groups the styles a widget tree pulls from instead of hardcoding
// colors, mirroring kungfusheep-glyph/theme.go's five-role set.
type Theme struct {
	Base   Style
	Muted  Style
	Accent Style
	Error  Style
	Border Style
}

// ThemeDark, ThemeLight, ThemeMonochrome are the three stock themes carried
// over from the teacher, re-expressed against this package's Color/AttrMask.
var ThemeDark = Theme{
	Base:   Style{FG: Named(White)},
	Muted:  Style{FG: Named(BrightBlack)},
	Accent: Style{FG: Named(BrightCyan)},
	Error:  Style{FG: Named(BrightRed)},
	Border: Style{FG: Named(BrightBlack)},
}

var ThemeLight = Theme{
	Base:   Style{FG: Named(Black)},
	Muted:  Style{FG: Named(BrightBlack)},
	Accent: Style{FG: Named(Blue)},
	Error:  Style{FG: Named(Red)},
	Border: Style{FG: Named(White)},
}

var ThemeMonochrome = Theme{
	Base:   Style{},
	Muted:  Style{Attr: AttrDim},
	Accent: Style{Attr: AttrBold},
	Error:  Style{Attr: AttrBold | AttrUnderline},
	Border: Style{Attr: AttrDim},
}

// RenderContext is the handle widgets receive during Paint. It exposes the
// primitives the spec names and nothing else — a widget never reaches the
// ScreenBuffer, Terminal, or Renderer directly.
//
// Grounded on kungfusheep-glyph/widget.go's Context (app + refresh callback)
// generalized to the full primitive set §4.11 requires.
type RenderContext struct {
	buf   *ScreenBuffer
	theme Theme
}

// NewRenderContext wraps buf for a single paint pass.
func NewRenderContext(buf *ScreenBuffer, theme Theme) *RenderContext {
	return &RenderContext{buf: buf, theme: theme}
}

// Theme returns the active theme for this paint pass.
func (c *RenderContext) Theme() Theme { return c.theme }

func styledCell(r rune, s Style) Cell {
	return Cell{Rune: r, FG: s.FG, BG: s.BG, Attrs: s.Attr}
}

// DrawText writes s left-to-right starting at (x,y), clipped to bounds.
func (c *RenderContext) DrawText(bounds Region, x, y int, s string, style Style) {
	col := x
	for _, r := range s {
		px, py := bounds.X+col, bounds.Y+y
		if col >= bounds.W || y >= bounds.H {
			break
		}
		c.buf.Set(px, py, styledCell(r, style))
		col++
	}
}

// Fill paints every cell in region with a single styled rune (space by
// default via the zero Cell).
func (c *RenderContext) Fill(region Region, r rune, style Style) {
	if r == 0 {
		r = ' '
	}
	c.buf.Fill(region, styledCell(r, style))
}

// DrawBox draws a single-line box border around region.
func (c *RenderContext) DrawBox(region Region, style Style) {
	if region.W < 2 || region.H < 2 {
		return
	}
	corners := [4]rune{'┌', '┐', '└', '┘'}
	c.buf.Set(region.X, region.Y, styledCell(corners[0], style))
	c.buf.Set(region.X+region.W-1, region.Y, styledCell(corners[1], style))
	c.buf.Set(region.X, region.Y+region.H-1, styledCell(corners[2], style))
	c.buf.Set(region.X+region.W-1, region.Y+region.H-1, styledCell(corners[3], style))
	for x := region.X + 1; x < region.X+region.W-1; x++ {
		c.buf.Set(x, region.Y, styledCell('─', style))
		c.buf.Set(x, region.Y+region.H-1, styledCell('─', style))
	}
	for y := region.Y + 1; y < region.Y+region.H-1; y++ {
		c.buf.Set(region.X, y, styledCell('│', style))
		c.buf.Set(region.X+region.W-1, y, styledCell('│', style))
	}
}

// DrawSeparator draws a horizontal or vertical rule of the given length.
func (c *RenderContext) DrawSeparator(x, y, length int, horizontal bool, style Style) {
	for i := 0; i < length; i++ {
		if horizontal {
			c.buf.Set(x+i, y, styledCell('─', style))
		} else {
			c.buf.Set(x, y+i, styledCell('│', style))
		}
	}
}

// DrawCheckbox draws a [x]/[ ] checkbox glyph at (x,y).
func (c *RenderContext) DrawCheckbox(x, y int, checked bool, style Style) {
	r := ' '
	if checked {
		r = 'x'
	}
	c.buf.Set(x, y, styledCell('[', style))
	c.buf.Set(x+1, y, styledCell(r, style))
	c.buf.Set(x+2, y, styledCell(']', style))
}

// DrawRadio draws a (o)/( ) radio glyph at (x,y).
func (c *RenderContext) DrawRadio(x, y int, selected bool, style Style) {
	r := ' '
	if selected {
		r = 'o'
	}
	c.buf.Set(x, y, styledCell('(', style))
	c.buf.Set(x+1, y, styledCell(r, style))
	c.buf.Set(x+2, y, styledCell(')', style))
}

// Component is the contract minimum every widget implements, per §4.11.
type Component interface {
	ID() string
	Node() *LayoutNode
	Paint(ctx *RenderContext, bounds Region)
	HandleEvent(ev *Event) bool

	Focusable() bool
	Focused() bool
	SetFocused(focused bool)
	TabIndex() int

	Mount(parent Container)
	Unmount()

	Invalidated() bool
	Invalidate()
	clearInvalidated()
}

// Container is a Component that owns children.
type Container interface {
	Component
	Children() []Component
	Add(children ...Component) Container
	Remove(child Component)
	Clear()
}

// Base provides the bookkeeping every concrete widget needs: id, layout
// node, parent link, focus/tab-index state, and the invalidation flag the
// Renderer consults before repainting.
//
// Grounded on kungfusheep-glyph/component.go's Base, generalized from the
// fixed width/height/flex bookkeeping (now owned by LayoutNode/C8) to just
// the widget-identity and focus concerns C11 actually needs.
type Base struct {
	id       string
	node     *LayoutNode
	parent   Container
	focused  bool
	tabIndex int
	invalid  bool
}

// NewBase constructs a Base with the given stable id and backing layout
// node.
func NewBase(id string, node *LayoutNode) Base {
	return Base{id: id, node: node, invalid: true}
}

// NewAutoBase is NewBase with a generated uuid id, for widgets that have no
// natural caller-supplied identity.
func NewAutoBase(node *LayoutNode) Base {
	return NewBase(uuid.NewString(), node)
}

func (b *Base) ID() string       { return b.id }
func (b *Base) Node() *LayoutNode { return b.node }

func (b *Base) Focusable() bool      { return false }
func (b *Base) Focused() bool        { return b.focused }
func (b *Base) SetFocused(f bool)    { b.focused = f }
func (b *Base) TabIndex() int        { return b.tabIndex }
func (b *Base) SetTabIndex(idx int)  { b.tabIndex = idx }

func (b *Base) Mount(parent Container) { b.parent = parent }
func (b *Base) Unmount()                { b.parent = nil }
func (b *Base) Parent() Container       { return b.parent }

func (b *Base) Invalidated() bool   { return b.invalid }
func (b *Base) Invalidate()         { b.invalid = true }
func (b *Base) clearInvalidated()   { b.invalid = false }

// HandleEvent is the no-op default; embedders override it.
func (b *Base) HandleEvent(ev *Event) bool { return false }

// BaseContainer embeds Base plus a child slice, unmounting children first
// per the spec's lifecycle ("children unmounted first").
type BaseContainer struct {
	Base
	children []Component
}

// NewBaseContainer constructs a BaseContainer.
func NewBaseContainer(id string, node *LayoutNode) BaseContainer {
	return BaseContainer{Base: NewBase(id, node)}
}

func (c *BaseContainer) Children() []Component { return c.children }

// Unmount unmounts every child before detaching the container itself.
func (c *BaseContainer) Unmount() {
	for _, ch := range c.children {
		ch.Unmount()
	}
	c.Base.Unmount()
}

// AddChild mounts child under owner and attaches its layout node, appending
// it to the child slice. Concrete container types (the ones that actually
// implement Container, since Add must return their own type) call this from
// their own Add method — mirroring kungfusheep-glyph/component.go's
// BaseContainer.AddChild, which concrete containers wrap the same way.
func (c *BaseContainer) AddChild(owner Container, child Component) {
	child.Mount(owner)
	if c.node != nil && child.Node() != nil {
		c.node.Children = append(c.node.Children, child.Node())
	}
	c.children = append(c.children, child)
	c.Invalidate()
}

// AddChildren mounts multiple children under owner in order.
func (c *BaseContainer) AddChildren(owner Container, children ...Component) {
	for _, ch := range children {
		c.AddChild(owner, ch)
	}
}

// Remove unmounts and drops a single child.
func (c *BaseContainer) Remove(child Component) {
	for i, ch := range c.children {
		if ch == child {
			child.Unmount()
			c.children = append(c.children[:i], c.children[i+1:]...)
			c.Invalidate()
			return
		}
	}
}

// Clear unmounts every child, children-first per the lifecycle contract.
func (c *BaseContainer) Clear() {
	for _, ch := range c.children {
		ch.Unmount()
	}
	c.children = c.children[:0]
	c.Invalidate()
}

// PaintSafely invokes w.Paint, recovering from a panicking widget. On
// failure the paint is skipped entirely, so bounds already present in the
// buffer (last frame's content, which the Renderer copies into the back
// buffer after each Swap) are left untouched; the differential strategy
// then finds no change there. The recovered value is returned (nil on success) so the caller can
// log it.
func PaintSafely(w Component, ctx *RenderContext, bounds Region) (recovered any) {
	defer func() {
		recovered = recover()
		if recovered != nil {
			defaultLogger.Printf("%v: widget %s: %v", ErrHandlerPanic, w.ID(), recovered)
		}
	}()
	w.Paint(ctx, bounds)
	w.clearInvalidated()
	return nil
}

// focusEntry pairs a focusable component with its tab index for ordering.
type focusEntry struct {
	widget   Component
	tabIndex int
}

// FocusManager owns the focus chain within a single root, cycling in
// tab-index order and emitting FocusGained/FocusLost events through the
// Dispatcher passed to NewFocusManager.
//
// Grounded on kungfusheep-glyph/focusmanager.go's registry/Next/Prev/
// OnChange shape, reimplemented against this package's own Component/Event
// types instead of riffkey's text-input bindings.
type FocusManager struct {
	mu       sync.Mutex
	entries  []focusEntry
	current  int
	dispatch *Dispatcher
}

// NewFocusManager builds a FocusManager that emits focus events through d
// (may be nil to disable event emission).
func NewFocusManager(d *Dispatcher) *FocusManager {
	return &FocusManager{current: -1, dispatch: d}
}

// Register adds a focusable widget to the chain, honoring tabIndex for
// ordering (stable sort among equal indices, insertion order preserved).
func (fm *FocusManager) Register(w Component, tabIndex int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	entry := focusEntry{widget: w, tabIndex: tabIndex}
	i := len(fm.entries)
	for i > 0 && fm.entries[i-1].tabIndex > tabIndex {
		i--
	}
	fm.entries = append(fm.entries, focusEntry{})
	copy(fm.entries[i+1:], fm.entries[i:])
	fm.entries[i] = entry
	if fm.current >= i {
		fm.current++
	}
	if fm.current == -1 && len(fm.entries) == 1 {
		fm.current = 0
		fm.setFocusedLocked(w, true)
	}
}

// Unregister removes w from the chain.
func (fm *FocusManager) Unregister(w Component) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for i, e := range fm.entries {
		if e.widget == w {
			fm.entries = append(fm.entries[:i], fm.entries[i+1:]...)
			if fm.current == i {
				fm.current = -1
			} else if fm.current > i {
				fm.current--
			}
			return
		}
	}
}

// FocusNext moves focus to the next entry in tab-index order, wrapping.
func (fm *FocusManager) FocusNext() { fm.move(1) }

// FocusPrev moves focus to the previous entry, wrapping.
func (fm *FocusManager) FocusPrev() { fm.move(-1) }

func (fm *FocusManager) move(delta int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if len(fm.entries) == 0 {
		return
	}
	prev := fm.current
	next := prev
	if prev < 0 {
		next = 0
	} else {
		next = (prev + len(fm.entries) + delta) % len(fm.entries)
	}
	fm.transitionLocked(prev, next)
}

// FocusByID moves focus directly to the widget with the given id, if
// registered.
func (fm *FocusManager) FocusByID(id string) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for i, e := range fm.entries {
		if e.widget.ID() == id {
			fm.transitionLocked(fm.current, i)
			return true
		}
	}
	return false
}

func (fm *FocusManager) transitionLocked(prev, next int) {
	if prev == next {
		return
	}
	if prev >= 0 && prev < len(fm.entries) {
		fm.setFocusedLocked(fm.entries[prev].widget, false)
	}
	fm.current = next
	if next >= 0 && next < len(fm.entries) {
		fm.setFocusedLocked(fm.entries[next].widget, true)
	}
}

func (fm *FocusManager) setFocusedLocked(w Component, focused bool) {
	w.SetFocused(focused)
	w.Invalidate()
	if fm.dispatch == nil {
		return
	}
	ev := Event{
		Type:      EventFocus,
		Focus:     FocusData{WidgetID: w.ID(), Gained: focused},
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}
	fm.dispatch.Dispatch(&ev)
}

// Current returns the currently focused widget, or nil if none.
func (fm *FocusManager) Current() Component {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.current < 0 || fm.current >= len(fm.entries) {
		return nil
	}
	return fm.entries[fm.current].widget
}

// HandleKey routes a key event to the currently focused widget.
func (fm *FocusManager) HandleKey(ev *Event) bool {
	w := fm.Current()
	if w == nil {
		return false
	}
	return w.HandleEvent(ev)
}
