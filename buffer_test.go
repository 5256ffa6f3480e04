package weave

import "testing"

func TestScreenBufferGetSetBounds(t *testing.T) {
	b := NewScreenBuffer(4, 2)
	b.Set(1, 1, Cell{Rune: 'x'})
	if got := b.Get(1, 1); got.Rune != 'x' {
		t.Fatalf("Get(1,1) = %v, want rune x", got)
	}
	// Out-of-range reads/writes are no-ops, never panics.
	b.Set(-1, 0, Cell{Rune: 'z'})
	b.Set(100, 100, Cell{Rune: 'z'})
	if got := b.Get(-1, 0); got.Rune != ' ' {
		t.Fatalf("out-of-range Get should return empty cell, got %v", got)
	}
}

func TestScreenBufferWideRuneContinuation(t *testing.T) {
	b := NewScreenBuffer(4, 1)
	b.Set(0, 0, Cell{Rune: '漢'}) // width 2
	if b.Get(1, 0).Rune != wideContinuation {
		t.Fatalf("expected wide continuation placeholder in second cell")
	}
}

func TestScreenBufferCopyFromRequiresEqualDims(t *testing.T) {
	a := NewScreenBuffer(3, 3)
	b := NewScreenBuffer(4, 4)
	if err := a.CopyFrom(b); err != ErrDimensionMismatch {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestScreenBufferDiffIterIdempotence(t *testing.T) {
	a := NewScreenBuffer(5, 5)
	b := NewScreenBuffer(5, 5)
	b.Set(2, 2, Cell{Rune: 'q'})
	if err := a.CopyFrom(b); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if diffs := a.DiffIter(b); len(diffs) != 0 {
		t.Fatalf("expected empty diff after CopyFrom, got %d entries", len(diffs))
	}
}

func TestScreenBufferDiffIterSingleCell(t *testing.T) {
	a := NewScreenBuffer(5, 5)
	b := NewScreenBuffer(5, 5)
	b.Set(2, 3, Cell{Rune: 'Q'})
	diffs := a.DiffIter(b)
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}
	if diffs[0].X != 2 || diffs[0].Y != 3 {
		t.Fatalf("diff at wrong position: %+v", diffs[0])
	}
}

func TestScreenBufferResizePreservesOverlap(t *testing.T) {
	b := NewScreenBuffer(3, 3)
	b.Set(1, 1, Cell{Rune: 'm'})
	b.Resize(5, 5)
	if b.Get(1, 1).Rune != 'm' {
		t.Fatalf("resize should preserve overlapping cell")
	}
	if b.Get(4, 4).Rune != ' ' {
		t.Fatalf("new area should be empty")
	}
	b.Resize(1, 1)
	if b.Get(0, 0).Rune != ' ' {
		// (1,1) is now out of bounds after shrink, so original non-empty cell is gone.
		t.Fatalf("shrunk buffer should report empty default cell at origin")
	}
}

func TestDoubleBufferSwap(t *testing.T) {
	d := NewDoubleBuffer(2, 2)
	front, back := d.Front(), d.Back()
	d.Swap()
	if d.Front() != back || d.Back() != front {
		t.Fatalf("swap did not exchange front/back")
	}
}
