package weave

import (
	"bytes"
	"testing"
)

func TestDifferentialMinimalPatchSingleCell(t *testing.T) {
	front := NewScreenBuffer(10, 3)
	back := NewScreenBuffer(10, 3)
	back.Set(4, 1, Cell{Rune: 'x', FG: RGB(255, 0, 0)})

	enc := NewEncoder()
	enc.ForceLevel(SupportTrueColor)
	result := DifferentialStrategy{}.Compute(front, back, enc)

	if result.Stats.ChangedCells != 1 {
		t.Fatalf("ChangedCells = %d, want 1", result.Stats.ChangedCells)
	}
	if len(result.Patch) != 1 {
		t.Fatalf("expected exactly one coalesced block, got %d", len(result.Patch))
	}
	block := result.Patch[0]
	if !bytes.Contains(block, []byte("\x1b[2;5H")) {
		t.Fatalf("expected a cursor-positioning sequence, got %q", block)
	}
	if !bytes.ContainsRune(block, 'x') {
		t.Fatalf("expected the styled character, got %q", block)
	}
}

func TestDifferentialDeterminism(t *testing.T) {
	front := NewScreenBuffer(5, 2)
	back := NewScreenBuffer(5, 2)
	back.Set(1, 0, Cell{Rune: 'a', FG: RGB(1, 2, 3)})
	back.Set(2, 0, Cell{Rune: 'b', FG: RGB(1, 2, 3)})

	enc := NewEncoder()
	enc.ForceLevel(SupportTrueColor)
	r1 := DifferentialStrategy{}.Compute(front, back, enc)
	r2 := DifferentialStrategy{}.Compute(front, back, enc)

	if len(r1.Patch) != len(r2.Patch) {
		t.Fatalf("patch lengths differ: %d vs %d", len(r1.Patch), len(r2.Patch))
	}
	for i := range r1.Patch {
		if !bytes.Equal(r1.Patch[i], r2.Patch[i]) {
			t.Fatalf("patch block %d differs between runs", i)
		}
	}
}

func TestDifferentialCoalescesAdjacentRun(t *testing.T) {
	front := NewScreenBuffer(5, 1)
	back := NewScreenBuffer(5, 1)
	back.Set(0, 0, Cell{Rune: 'a', FG: RGB(1, 1, 1)})
	back.Set(1, 0, Cell{Rune: 'b', FG: RGB(1, 1, 1)})
	back.Set(2, 0, Cell{Rune: 'c', FG: RGB(1, 1, 1)})

	enc := NewEncoder()
	enc.ForceLevel(SupportTrueColor)
	result := DifferentialStrategy{}.Compute(front, back, enc)

	if len(result.Patch) != 1 {
		t.Fatalf("expected adjacent same-style cells to coalesce into one block, got %d", len(result.Patch))
	}
	if !bytes.Contains(result.Patch[0], []byte("abc")) {
		t.Fatalf("expected coalesced text, got %q", result.Patch[0])
	}
}

func TestSmartPicksFullAboveThreshold(t *testing.T) {
	front := NewScreenBuffer(10, 10)
	back := NewScreenBuffer(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			back.Set(x, y, Cell{Rune: 'x'})
		}
	}
	enc := NewEncoder()
	result := SmartStrategy{}.Compute(front, back, enc)
	if !result.Stats.IsFullRender {
		t.Fatalf("expected Smart to pick Full when nearly every cell changed")
	}
}

func TestSmartPicksDifferentialBelowThreshold(t *testing.T) {
	front := NewScreenBuffer(10, 10)
	back := NewScreenBuffer(10, 10)
	back.Set(0, 0, Cell{Rune: 'x'})
	enc := NewEncoder()
	result := SmartStrategy{}.Compute(front, back, enc)
	if result.Stats.IsFullRender {
		t.Fatalf("expected Smart to pick Differential when almost nothing changed")
	}
}
