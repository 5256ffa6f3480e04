package weave

import "strconv"

// RenderStats summarizes one strategy invocation.
type RenderStats struct {
	ChangedCells int
	Sequences    int
	IsFullRender bool
	StrategyName string
}

// RenderResult is a patch (an ordered list of ANSI byte blocks) plus the
// stats describing how it was produced.
type RenderResult struct {
	Patch [][]byte
	Stats RenderStats
}

// RenderStrategy computes the minimal patch moving front to back.
type RenderStrategy interface {
	Compute(front, back *ScreenBuffer, enc *Encoder) RenderResult
}

func cursorMove(b []byte, x, y int) []byte {
	b = append(b, "\x1b["...)
	b = strconv.AppendInt(b, int64(y+1), 10)
	b = append(b, ';')
	b = strconv.AppendInt(b, int64(x+1), 10)
	return append(b, 'H')
}

// styledRun is one horizontal run of cells sharing a row to be emitted as
// a single cursor-move + (possibly styled) text block.
type styledRun struct {
	x, y  int
	cells []Cell
}

// coalesceRuns groups diffs into horizontally-adjacent runs per row, in
// row-then-column order, for deterministic output.
func coalesceRuns(diffs []Diff, back *ScreenBuffer) []styledRun {
	if len(diffs) == 0 {
		return nil
	}
	byRow := make(map[int][]Diff)
	for _, d := range diffs {
		byRow[d.Y] = append(byRow[d.Y], d)
	}

	var rows []int
	for y := range byRow {
		rows = append(rows, y)
	}
	sortInts(rows)

	var runs []styledRun
	for _, y := range rows {
		line := byRow[y]
		sortDiffsByX(line)
		var cur *styledRun
		lastX := -2
		for _, d := range line {
			if d.Cell.Rune == wideContinuation {
				// Part of the previous wide rune; already represented.
				if cur != nil {
					cur.cells = append(cur.cells, d.Cell)
					lastX = d.X
				}
				continue
			}
			if cur != nil && d.X == lastX+1 {
				cur.cells = append(cur.cells, d.Cell)
			} else {
				if cur != nil {
					runs = append(runs, *cur)
				}
				cur = &styledRun{x: d.X, y: y, cells: []Cell{d.Cell}}
			}
			lastX = d.X
		}
		if cur != nil {
			runs = append(runs, *cur)
		}
	}
	return runs
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortDiffsByX(s []Diff) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].X > s[j].X; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// emitRuns renders runs into a patch, only emitting a style change when it
// differs from the previously emitted cell's style, and returns the
// sequence count.
func emitRuns(runs []styledRun, enc *Encoder) ([][]byte, int) {
	var patch [][]byte
	var lastStyle *Cell
	for _, run := range runs {
		block := cursorMove(nil, run.x, run.y)
		for _, c := range run.cells {
			if c.Rune == wideContinuation {
				continue
			}
			if lastStyle == nil || !sameStyle(*lastStyle, c) {
				if lastStyle != nil && lastStyle.Attrs&^c.Attrs != 0 {
					// Attributes have no "off" codes here; dropping one
					// takes a reset before the new style is applied.
					block = enc.Reset(block)
				}
				block = enc.FG(block, c.FG)
				block = enc.BG(block, c.BG)
				block = appendAttrs(block, c.Attrs)
				styleCopy := c
				lastStyle = &styleCopy
			}
			r := c.Rune
			if r == 0 {
				r = ' '
			}
			block = append(block, []byte(string(r))...)
		}
		patch = append(patch, block)
	}
	return patch, len(patch)
}

func sameStyle(a, b Cell) bool {
	return a.FG == b.FG && a.BG == b.BG && a.Attrs == b.Attrs
}

func appendAttrs(b []byte, attrs AttrMask) []byte {
	if attrs == 0 {
		return b
	}
	codes := []struct {
		mask AttrMask
		code string
	}{
		{AttrBold, "1"}, {AttrDim, "2"}, {AttrItalic, "3"}, {AttrUnderline, "4"},
		{AttrBlink, "5"}, {AttrReverse, "7"}, {AttrStrike, "9"},
	}
	for _, c := range codes {
		if attrs&c.mask != 0 {
			b = append(b, "\x1b["...)
			b = append(b, c.code...)
			b = append(b, 'm')
		}
	}
	return b
}

// FullStrategy clears and redraws the entire back buffer.
//
// Grounded on kungfusheep-glyph/screen.go's full-screen flush path,
// generalized to emit run-coalesced, minimal-SGR output per the spec.
type FullStrategy struct{}

func (FullStrategy) Compute(front, back *ScreenBuffer, enc *Encoder) RenderResult {
	empty := NewScreenBuffer(back.Width(), back.Height())
	diffs := back.DiffIter(empty) // every cell of back, diffed against a blank reference
	runs := coalesceRuns(diffs, back)
	patch, seqs := emitRuns(runs, enc)
	full := [][]byte{append([]byte(nil), "\x1b[2J\x1b[H"...)}
	full = append(full, patch...)
	return RenderResult{
		Patch: full,
		Stats: RenderStats{ChangedCells: len(diffs), Sequences: seqs + 1, IsFullRender: true, StrategyName: "Full"},
	}
}

// DifferentialStrategy emits only the cells that changed between front and
// back, coalesced into horizontal runs with minimal SGR emission.
type DifferentialStrategy struct{}

func (DifferentialStrategy) Compute(front, back *ScreenBuffer, enc *Encoder) RenderResult {
	diffs := back.DiffIter(front)
	runs := coalesceRuns(diffs, back)
	patch, seqs := emitRuns(runs, enc)
	return RenderResult{
		Patch: patch,
		Stats: RenderStats{ChangedCells: len(diffs), Sequences: seqs, IsFullRender: false, StrategyName: "Differential"},
	}
}

// SmartStrategy picks Full or Differential based on the changed-cell
// fraction, defaulting to Full at or above 60%.
type SmartStrategy struct {
	FullThreshold float64 // default 0.6
}

func (s SmartStrategy) Compute(front, back *ScreenBuffer, enc *Encoder) RenderResult {
	threshold := s.FullThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	diffs := back.DiffIter(front)
	total := back.Width() * back.Height()
	fraction := 0.0
	if total > 0 {
		fraction = float64(len(diffs)) / float64(total)
	}
	if fraction >= threshold {
		result := (FullStrategy{}).Compute(front, back, enc)
		result.Stats.StrategyName = "Smart"
		return result
	}
	result := (DifferentialStrategy{}).Compute(front, back, enc)
	result.Stats.StrategyName = "Smart"
	return result
}
