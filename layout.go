package weave

import "math"

// DimensionKind discriminates a Dimension's unit.
type DimensionKind uint8

const (
	DimAbsolute DimensionKind = iota
	DimPercentage
	DimAuto
	DimFlex
)

// Dimension is one of absolute cells, a percentage of the container,
// "auto" (intrinsic), or an "fr"-like flexible share.
type Dimension struct {
	Kind  DimensionKind
	Value float64
}

func Absolute(v float64) Dimension { return Dimension{Kind: DimAbsolute, Value: v} }
func Percent(v float64) Dimension  { return Dimension{Kind: DimPercentage, Value: v} }
func Auto() Dimension              { return Dimension{Kind: DimAuto} }
func FlexUnit(v float64) Dimension { return Dimension{Kind: DimFlex, Value: v} }
func (d Dimension) IsAuto() bool   { return d.Kind == DimAuto }

// Constraint bounds a resolved dimension.
type Constraint struct {
	Min, Max float64
}

// NormalizeConstraint clamps Min to ≥0 and ensures Min ≤ Max, with Min
// winning any conflict (testable property 10).
func NormalizeConstraint(c Constraint) Constraint {
	if c.Min < 0 {
		c.Min = 0
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	return c
}

func clamp(v float64, c Constraint) float64 {
	if v < c.Min {
		v = c.Min
	}
	if c.Max > 0 && v > c.Max {
		v = c.Max
	}
	return v
}

// ResolveDimension computes a concrete size for d given the container's
// inner content-box size and the node's intrinsic content size (used for
// Auto), then clamps to constraint.
func ResolveDimension(d Dimension, containerSize, intrinsicSize float64, constraint Constraint) float64 {
	constraint = NormalizeConstraint(constraint)
	var v float64
	switch d.Kind {
	case DimAbsolute:
		v = d.Value
	case DimPercentage:
		v = containerSize * d.Value / 100
	case DimAuto:
		if intrinsicSize > 0 {
			v = intrinsicSize
		} else {
			v = containerSize
		}
	case DimFlex:
		v = 0 // resolved by the flex algorithm, not standalone
	}
	return clamp(v, constraint)
}

// Direction is a flex container's main axis and its traversal order.
type Direction uint8

const (
	DirRow Direction = iota
	DirRowReverse
	DirCol
	DirColReverse
)

func (d Direction) isRow() bool     { return d == DirRow || d == DirRowReverse }
func (d Direction) isReverse() bool { return d == DirRowReverse || d == DirColReverse }

// Justify is the main-axis distribution strategy.
type Justify uint8

const (
	JustifyStart Justify = iota
	JustifyEnd
	JustifyCenter
	JustifySpaceBetween
	JustifySpaceAround
	JustifySpaceEvenly
)

// AlignItems is the cross-axis strategy for individual items.
type AlignItems uint8

const (
	AlignStretch AlignItems = iota
	AlignStart
	AlignEnd
	AlignCenter
)

// AlignContent is the cross-axis strategy applied across wrapped lines.
type AlignContent uint8

const (
	ContentStretch AlignContent = iota
	ContentStart
	ContentEnd
	ContentCenter
	ContentSpaceBetween
	ContentSpaceAround
	ContentSpaceEvenly
)

// NodeStyle is the subset of a LayoutNode's style spec.md models as a
// loose struct: width/height, min/max, padding, margin, and flex factors.
type NodeStyle struct {
	Width, Height                                        Dimension
	MinWidth, MaxWidth                                   float64
	MinHeight, MaxHeight                                 float64
	PaddingTop, PaddingRight, PaddingBottom, PaddingLeft float64
	MarginTop, MarginRight, MarginBottom, MarginLeft     float64
	FlexGrow, FlexShrink                                 float64
	FlexBasis                                            *Dimension // nil means "use intrinsic main size"
}

// ContainerStyle is present only on FlexContainer nodes.
type ContainerStyle struct {
	Direction           Direction
	Wrap                bool
	Justify             Justify
	AlignItems          AlignItems
	AlignContent        AlignContent
	Gap, RowGap, ColGap float64
}

// ComputedLayout is the result of resolving a node's box.
type ComputedLayout struct {
	OriginX, OriginY float64
	Width, Height    float64
	Valid            bool
}

// LayoutNode is one box in the layout tree; FlexContainer nodes set
// Container non-nil.
//
// Grounded on kungfusheep-glyph/flexlayout.go's FlexNode (gap/padding
// fields, parent/children tree, per-node geometry), generalized from its
// fixed Vertical/HorizontalLayout pair into the spec's full flex model
// (wrap, justify-content, align-items/content, percentage/auto/flex
// dimensions, min/max constraints).
type LayoutNode struct {
	ID        string
	Style     NodeStyle
	Container *ContainerStyle
	Visible   bool
	Children  []*LayoutNode
	Computed  ComputedLayout
	CacheKey  string

	// Measure returns a leaf's intrinsic content size given the available
	// space; containers ignore it.
	Measure func(availableW, availableH float64) (w, h float64)

	parent *LayoutNode
}

// NewLayoutNode creates a visible leaf node.
func NewLayoutNode(id string) *LayoutNode {
	return &LayoutNode{ID: id, Visible: true}
}

// NewFlexContainer creates a visible container node with the given
// direction.
func NewFlexContainer(id string, direction Direction) *LayoutNode {
	return &LayoutNode{ID: id, Visible: true, Container: &ContainerStyle{Direction: direction}}
}

func (n *LayoutNode) widthConstraint() Constraint {
	return Constraint{Min: n.Style.MinWidth, Max: n.Style.MaxWidth}
}

func (n *LayoutNode) heightConstraint() Constraint {
	return Constraint{Min: n.Style.MinHeight, Max: n.Style.MaxHeight}
}

func (n *LayoutNode) innerWidth() float64 {
	return math.Max(0, n.Computed.Width-n.Style.PaddingLeft-n.Style.PaddingRight)
}

func (n *LayoutNode) innerHeight() float64 {
	return math.Max(0, n.Computed.Height-n.Style.PaddingTop-n.Style.PaddingBottom)
}

func (n *LayoutNode) marginMainSize(isRow bool) float64 {
	if isRow {
		return n.Style.MarginLeft + n.Style.MarginRight
	}
	return n.Style.MarginTop + n.Style.MarginBottom
}

// flexItem is the per-child working state during one flex pass.
type flexItem struct {
	node      *LayoutNode
	baseMain  float64
	main      float64
	cross     float64
	lineIndex int
}

// LayoutFlexContainer runs the spec's one-pass flex algorithm, assuming
// node.Computed.Width/Height (the container's own box) are already set.
func LayoutFlexContainer(node *LayoutNode) {
	c := node.Container
	if c == nil {
		return
	}
	isRow := c.Direction.isRow()
	availMain := node.innerWidth()
	availCross := node.innerHeight()
	if !isRow {
		availMain, availCross = availCross, availMain
	}

	visible := make([]*LayoutNode, 0, len(node.Children))
	for _, ch := range node.Children {
		if !ch.Visible {
			ch.Computed.Valid = false
			continue
		}
		visible = append(visible, ch)
	}
	if len(visible) == 0 {
		return
	}

	gap := c.Gap
	if isRow && c.ColGap != 0 {
		gap = c.ColGap
	} else if !isRow && c.RowGap != 0 {
		gap = c.RowGap
	}

	items := make([]*flexItem, len(visible))
	for i, ch := range visible {
		items[i] = &flexItem{node: ch, baseMain: itemBaseMain(ch, isRow, availMain, availCross)}
	}

	lines := [][]*flexItem{items}
	if c.Wrap {
		lines = wrapIntoLines(items, availMain, gap)
	}

	for _, line := range lines {
		layoutLine(node, line, isRow, availMain, availCross, gap, c)
	}

	placeLinesCrossAxis(node, lines, isRow, availCross, c)
}

func itemBaseMain(ch *LayoutNode, isRow bool, availMain, availCross float64) float64 {
	var basis *Dimension
	if ch.Style.FlexBasis != nil {
		basis = ch.Style.FlexBasis
	} else if isRow {
		basis = &ch.Style.Width
	} else {
		basis = &ch.Style.Height
	}

	constraint := ch.widthConstraint()
	if !isRow {
		constraint = ch.heightConstraint()
	}

	if basis.IsAuto() && basis.Kind != DimFlex {
		if ch.Measure != nil {
			w, h := ch.Measure(availMain, availCross)
			if isRow {
				return clamp(w, constraint)
			}
			return clamp(h, constraint)
		}
	}
	return ResolveDimension(*basis, availMain, 0, constraint)
}

func wrapIntoLines(items []*flexItem, availMain, gap float64) [][]*flexItem {
	var lines [][]*flexItem
	var current []*flexItem
	var used float64
	for _, it := range items {
		add := it.baseMain
		if len(current) > 0 {
			add += gap
		}
		if len(current) > 0 && used+add > availMain {
			lines = append(lines, current)
			current = nil
			used = 0
			add = it.baseMain
		}
		current = append(current, it)
		used += add
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}

func layoutLine(node *LayoutNode, line []*flexItem, isRow bool, availMain, availCross, gap float64, c *ContainerStyle) {
	n := len(line)
	if n == 0 {
		return
	}
	var sumBase float64
	var totalGrow, totalShrink float64
	for i, it := range line {
		sumBase += it.baseMain
		if i > 0 {
			sumBase += gap
		}
		totalGrow += it.node.Style.FlexGrow
		totalShrink += it.node.Style.FlexShrink
		it.main = it.baseMain
	}

	if sumBase < availMain && totalGrow > 0 {
		surplus := availMain - sumBase
		for _, it := range line {
			if it.node.Style.FlexGrow > 0 {
				it.main += surplus * (it.node.Style.FlexGrow / totalGrow)
			}
		}
	} else if sumBase > availMain && totalShrink > 0 {
		overflow := sumBase - availMain
		var weightSum float64
		for _, it := range line {
			weightSum += it.node.Style.FlexShrink * it.baseMain
		}
		if weightSum > 0 {
			for _, it := range line {
				weight := it.node.Style.FlexShrink * it.baseMain
				it.main -= overflow * (weight / weightSum)
				if it.main < 0 {
					it.main = 0
				}
			}
		}
	}

	for _, it := range line {
		constraint := it.node.widthConstraint()
		if !isRow {
			constraint = it.node.heightConstraint()
		}
		it.main = clamp(it.main, constraint)
	}

	for _, it := range line {
		if c.AlignItems == AlignStretch {
			it.cross = availCross
		} else if it.node.Measure != nil {
			w, h := it.node.Measure(it.main, availCross)
			if isRow {
				it.cross = h
			} else {
				it.cross = w
			}
		} else {
			it.cross = availCross
		}
	}

	placeMainAxis(line, isRow, availMain, gap, c.Justify)
	placeCrossAxisInLine(line, isRow, availCross, c.AlignItems)

	for _, it := range line {
		if isRow {
			it.node.Computed.Width = it.main
			it.node.Computed.Height = it.cross
		} else {
			it.node.Computed.Width = it.cross
			it.node.Computed.Height = it.main
		}
		it.node.Computed.Valid = true
	}
}

func placeMainAxis(line []*flexItem, isRow bool, availMain, gap float64, justify Justify) {
	n := len(line)
	var sumMain float64
	for _, it := range line {
		sumMain += it.main
	}
	totalGap := gap * float64(n-1)
	free := availMain - sumMain - totalGap
	if free < 0 {
		free = 0
	}

	var start, between float64
	switch justify {
	case JustifyStart:
		start, between = 0, gap
	case JustifyEnd:
		start, between = free, gap
	case JustifyCenter:
		start, between = free/2, gap
	case JustifySpaceBetween:
		if n > 1 {
			between = gap + free/float64(n-1)
		} else {
			start = free / 2
			between = gap
		}
	case JustifySpaceAround:
		pad := free / float64(n)
		start = pad / 2
		between = gap + pad
	case JustifySpaceEvenly:
		pad := free / float64(n+1)
		start = pad
		between = gap + pad
	}

	pos := start
	for i, it := range line {
		setMainOrigin(it.node, isRow, pos)
		pos += it.main
		if i < n-1 {
			pos += between
		}
	}
}

func setMainOrigin(n *LayoutNode, isRow bool, pos float64) {
	if isRow {
		n.Computed.OriginX = pos
	} else {
		n.Computed.OriginY = pos
	}
}

func placeCrossAxisInLine(line []*flexItem, isRow bool, availCross float64, align AlignItems) {
	for _, it := range line {
		var pos float64
		switch align {
		case AlignStretch, AlignStart:
			pos = 0
		case AlignEnd:
			pos = availCross - it.cross
		case AlignCenter:
			pos = (availCross - it.cross) / 2
		}
		if isRow {
			it.node.Computed.OriginY = pos
		} else {
			it.node.Computed.OriginX = pos
		}
	}
}

func placeLinesCrossAxis(node *LayoutNode, lines [][]*flexItem, isRow bool, availCross float64, c *ContainerStyle) {
	if len(lines) <= 1 {
		return
	}
	lineCross := make([]float64, len(lines))
	var sumLines float64
	for i, line := range lines {
		var maxCross float64
		for _, it := range line {
			if it.cross > maxCross {
				maxCross = it.cross
			}
		}
		lineCross[i] = maxCross
		sumLines += maxCross
	}
	gap := c.RowGap
	if isRow {
		gap = c.RowGap
	}
	totalGap := gap * float64(len(lines)-1)
	free := availCross - sumLines - totalGap
	if free < 0 {
		free = 0
	}

	var start, between float64
	switch c.AlignContent {
	case ContentStart, ContentStretch:
		start, between = 0, gap
	case ContentEnd:
		start, between = free, gap
	case ContentCenter:
		start, between = free/2, gap
	case ContentSpaceBetween:
		if len(lines) > 1 {
			between = gap + free/float64(len(lines)-1)
		}
	case ContentSpaceAround:
		pad := free / float64(len(lines))
		start = pad / 2
		between = gap + pad
	case ContentSpaceEvenly:
		pad := free / float64(len(lines)+1)
		start = pad
		between = gap + pad
	}

	offset := start
	for i, line := range lines {
		for _, it := range line {
			if isRow {
				it.node.Computed.OriginY += offset
			} else {
				it.node.Computed.OriginX += offset
			}
		}
		offset += lineCross[i] + between
	}
}

// Breakpoint is a named viewport size class.
type Breakpoint uint8

const (
	BreakpointSmall Breakpoint = iota
	BreakpointMedium
	BreakpointLarge
	BreakpointXLarge
)

// Orientation classifies a viewport's aspect.
type Orientation uint8

const (
	OrientationPortrait Orientation = iota
	OrientationLandscape
	OrientationSquare
)

// ClassifyBreakpoint maps a viewport width to its named breakpoint:
// Small (0,80], Medium (80,120], Large (120,160], XLarge (160,∞).
func ClassifyBreakpoint(width int) Breakpoint {
	switch {
	case width <= 80:
		return BreakpointSmall
	case width <= 120:
		return BreakpointMedium
	case width <= 160:
		return BreakpointLarge
	default:
		return BreakpointXLarge
	}
}

// ClassifyOrientation compares rows to columns.
func ClassifyOrientation(columns, rows int) Orientation {
	switch {
	case rows > columns:
		return OrientationPortrait
	case columns > rows:
		return OrientationLandscape
	default:
		return OrientationSquare
	}
}

// LayoutFactory builds a root LayoutNode for a given breakpoint/orientation.
type LayoutFactory func() *LayoutNode

// Responsive maps breakpoint and orientation to layout factories and fires
// callbacks exactly on transitions.
type Responsive struct {
	factories map[Breakpoint]map[Orientation]LayoutFactory
	defaults  map[Breakpoint]LayoutFactory
	fallback  LayoutFactory

	curBreakpoint  Breakpoint
	curOrientation Orientation
	haveCurrent    bool

	OnBreakpointChange  func(from, to Breakpoint)
	OnOrientationChange func(from, to Orientation)
}

// NewResponsive creates an empty Responsive layer using fallback when no
// more specific factory is registered.
func NewResponsive(fallback LayoutFactory) *Responsive {
	return &Responsive{
		factories: make(map[Breakpoint]map[Orientation]LayoutFactory),
		defaults:  make(map[Breakpoint]LayoutFactory),
		fallback:  fallback,
	}
}

// Register installs a factory for a specific breakpoint+orientation pair.
func (r *Responsive) Register(bp Breakpoint, o Orientation, f LayoutFactory) {
	if r.factories[bp] == nil {
		r.factories[bp] = make(map[Orientation]LayoutFactory)
	}
	r.factories[bp][o] = f
}

// RegisterDefault installs a factory used for a breakpoint regardless of
// orientation, when no more specific factory matches.
func (r *Responsive) RegisterDefault(bp Breakpoint, f LayoutFactory) {
	r.defaults[bp] = f
}

// Resolve picks a factory for the given viewport and fires transition
// callbacks exactly when breakpoint or orientation actually changed.
func (r *Responsive) Resolve(columns, rows int) LayoutFactory {
	bp := ClassifyBreakpoint(columns)
	o := ClassifyOrientation(columns, rows)

	if r.haveCurrent {
		if bp != r.curBreakpoint && r.OnBreakpointChange != nil {
			r.OnBreakpointChange(r.curBreakpoint, bp)
		}
		if o != r.curOrientation && r.OnOrientationChange != nil {
			r.OnOrientationChange(r.curOrientation, o)
		}
	}
	r.curBreakpoint = bp
	r.curOrientation = o
	r.haveCurrent = true

	if byOrientation, ok := r.factories[bp]; ok {
		if f, ok := byOrientation[o]; ok {
			return f
		}
	}
	if f, ok := r.defaults[bp]; ok {
		return f
	}
	return r.fallback
}

// NodeDiff records a node whose computed box changed since the previous
// calculation.
type NodeDiff struct {
	ID     string
	Before ComputedLayout
	After  ComputedLayout
}

// Calculator walks a tree depth-first, resolving each container's flex
// layout, with an optional per-node cache keyed by CacheKey and a
// depth-cap safety limit.
type Calculator struct {
	cacheEnabled bool
	maxDepth     int
	cache        map[string]ComputedLayout
}

// NewCalculator creates a Calculator. maxDepth <= 0 uses a default safety
// limit of 64.
func NewCalculator(cacheEnabled bool, maxDepth int) *Calculator {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &Calculator{cacheEnabled: cacheEnabled, maxDepth: maxDepth, cache: make(map[string]ComputedLayout)}
}

// Calculate resolves root's box to (width, height) and recursively lays
// out its subtree, returning the nodes whose computed box changed.
func (c *Calculator) Calculate(root *LayoutNode, width, height float64) []NodeDiff {
	root.Computed.Width = clamp(width, root.widthConstraint())
	root.Computed.Height = clamp(height, root.heightConstraint())
	root.Computed.OriginX = 0
	root.Computed.OriginY = 0

	var diffs []NodeDiff
	c.walk(root, 0, &diffs)
	return diffs
}

func (c *Calculator) walk(node *LayoutNode, depth int, diffs *[]NodeDiff) {
	if depth > c.maxDepth {
		return
	}
	if !node.Visible {
		node.Computed.Valid = false
		return
	}

	before, hadCache := c.cache[node.CacheKey]

	// A cache hit means this node was last computed under the same
	// CacheKey (which callers derive from available size + constraints):
	// the computed box can't have changed, so skip recomputing this
	// subtree entirely rather than just recording it for diffing.
	if c.cacheEnabled && node.CacheKey != "" && hadCache {
		node.Computed = before
		return
	}

	if node.Container != nil {
		LayoutFlexContainer(node)
		for _, ch := range node.Children {
			c.walk(ch, depth+1, diffs)
		}
	} else {
		node.Computed.Valid = true
	}

	after := node.Computed
	if !hadCache || after != before {
		*diffs = append(*diffs, NodeDiff{ID: node.ID, Before: before, After: after})
	}
	if c.cacheEnabled && node.CacheKey != "" {
		c.cache[node.CacheKey] = after
	}
}
