package arena

import (
	"testing"

	"github.com/bogdad/citybound/internal/diagnostics"
)

var testDiag = diagnostics.New("arena-test", nil, nil)

func TestPushAssignsStableSizeClasses(t *testing.T) {
	m := NewMultiArena(16, testDiag)

	_, i1 := m.Push(8) // fits typical size -> bin 0
	_, i2 := m.Push(16)
	_, i3 := m.Push(17) // rounds up to 32 -> new bin

	if i1.BinIndex != 0 || i2.BinIndex != 0 {
		t.Fatalf("expected sizes <= typicalSize to share bin 0, got %v %v", i1, i2)
	}
	if i3.BinIndex == i1.BinIndex {
		t.Fatalf("expected a larger size class for size 17, got same bin as typical size")
	}
	if got := m.BinLen(i3.BinIndex); got != 1 {
		t.Fatalf("BinLen = %d, want 1", got)
	}
}

func TestPushWriteThroughIsLive(t *testing.T) {
	m := NewMultiArena(8, testDiag)
	b, idx := m.Push(8)
	b[0] = 0xAB

	if got := m.At(idx)[0]; got != 0xAB {
		t.Fatalf("At() did not observe write through Push's returned slice: got %#x", got)
	}
}

func TestSwapRemoveWithinBinLastSlot(t *testing.T) {
	m := NewMultiArena(8, testDiag)
	_, i0 := m.Push(8)

	moved, ok := m.SwapRemoveWithinBin(i0)
	if ok || moved != nil {
		t.Fatalf("removing the only slot should report no moved-in instance, got ok=%v moved=%v", ok, moved)
	}
	if got := m.BinLen(i0.BinIndex); got != 0 {
		t.Fatalf("BinLen after removing sole slot = %d, want 0", got)
	}
}

func TestSwapRemoveWithinBinPullsLastIntoHole(t *testing.T) {
	m := NewMultiArena(8, testDiag)
	b0, i0 := m.Push(8)
	b0[0] = 0
	b1, i1 := m.Push(8)
	b1[0] = 1
	b2, _ := m.Push(8)
	b2[0] = 2

	moved, ok := m.SwapRemoveWithinBin(i0)
	if !ok {
		t.Fatalf("expected a moved-in instance when removing a non-last slot")
	}
	if moved[0] != 2 {
		t.Fatalf("expected the former last slot's bytes (2) to be pulled into the hole, got %d", moved[0])
	}
	if got := m.BinLen(i0.BinIndex); got != 2 {
		t.Fatalf("BinLen after swap-remove = %d, want 2", got)
	}
	if got := m.At(i0)[0]; got != 2 {
		t.Fatalf("At(removed slot) after swap-remove = %d, want 2", got)
	}
	if got := m.At(i1)[0]; got != 1 {
		t.Fatalf("untouched slot corrupted: got %d, want 1", got)
	}
}

func TestPopulatedBinIndicesAndLensSnapshotsAtCallTime(t *testing.T) {
	m := NewMultiArena(8, testDiag)
	m.Push(8)
	m.Push(8)
	m.Push(40) // separate bin

	snap := m.PopulatedBinIndicesAndLens()
	if len(snap) != 2 {
		t.Fatalf("expected 2 populated bins, got %d: %+v", len(snap), snap)
	}

	m.Push(8) // grows bin 0 after the snapshot was taken

	total := 0
	for _, s := range snap {
		total += s.Len
	}
	if total != 3 {
		t.Fatalf("snapshot lens sum = %d, want 3 (frozen before the extra push)", total)
	}
	if got := m.BinLen(snap[0].BinIndex); got != 3 {
		t.Fatalf("live BinLen should reflect the post-snapshot push: got %d, want 3", got)
	}
}

func TestBinGrowsAcrossChunkBoundary(t *testing.T) {
	// With a tiny stride one chunk holds DefaultChunkBytes/stride slots;
	// pushing two more than that forces a second 16 MiB chunk.
	const stride = 8
	m := NewMultiArena(stride, testDiag)
	slotsPerChunk := DefaultChunkBytes / stride

	var last SlotIndices
	for i := 0; i < slotsPerChunk+2; i++ {
		b, idx := m.Push(stride)
		b[0] = byte(i)
		last = idx
	}

	if got := m.BinLen(last.BinIndex); got != slotsPerChunk+2 {
		t.Fatalf("BinLen = %d, want %d", got, slotsPerChunk+2)
	}
	if got := m.At(last)[0]; got != byte(slotsPerChunk+2-1) {
		t.Fatalf("last pushed slot's content lost across chunk growth: got %d", got)
	}
}
