package slotmap

import (
	"testing"

	"github.com/bogdad/citybound/internal/arena"
	"github.com/bogdad/citybound/internal/diagnostics"
)

var testDiag = diagnostics.New("slotmap-test", nil, nil)

func TestAllocateAssociateLookup(t *testing.T) {
	m := New(0, testDiag)
	id, v := m.AllocateID()
	if v != 0 {
		t.Fatalf("first allocation version = %d, want 0", v)
	}
	idx := arena.SlotIndices{BinIndex: 1, Slot: 2}
	m.Associate(id, idx)

	got, ok := m.IndicesOf(id, v)
	if !ok || got != idx {
		t.Fatalf("IndicesOf(%d,%d) = %v,%v want %v,true", id, v, got, ok, idx)
	}
}

func TestFreeRejectsStaleVersion(t *testing.T) {
	m := New(0, testDiag)
	id, v := m.AllocateID()
	m.Associate(id, arena.SlotIndices{BinIndex: 0, Slot: 0})
	m.Free(id, v)

	if _, ok := m.IndicesOf(id, v); ok {
		t.Fatalf("IndicesOf should reject a freed id at its old version")
	}
	if _, occupied := m.CurrentVersion(id); occupied {
		t.Fatalf("CurrentVersion reports occupied after Free")
	}
}

func TestAllocateIDIsLIFO(t *testing.T) {
	m := New(0, testDiag)
	a, va := m.AllocateID()
	b, vb := m.AllocateID()
	c, vc := m.AllocateID()
	m.Associate(a, arena.SlotIndices{})
	m.Associate(b, arena.SlotIndices{})
	m.Associate(c, arena.SlotIndices{})

	m.Free(a, va)
	m.Free(b, vb)
	// LIFO: b was freed last, so it must be reused first.
	reused, rv := m.AllocateID()
	if reused != b {
		t.Fatalf("AllocateID reused %d, want LIFO head %d", reused, b)
	}
	if rv != vb+1 {
		t.Fatalf("reused version = %d, want %d", rv, vb+1)
	}

	reused2, _ := m.AllocateID()
	if reused2 != a {
		t.Fatalf("AllocateID reused %d, want %d next", reused2, a)
	}
	_ = c
	_ = vc
}

func TestNewIdAfterFreeIsRejectedAtOldVersion(t *testing.T) {
	m := New(0, testDiag)
	id, v0 := m.AllocateID()
	m.Associate(id, arena.SlotIndices{BinIndex: 3, Slot: 4})
	m.Free(id, v0)

	reused, v1 := m.AllocateID()
	if reused != id {
		t.Fatalf("expected the freed id to be reused immediately, got %d want %d", reused, id)
	}
	if v1 == v0 {
		t.Fatalf("reused id must carry a bumped version, got the same version %d twice", v0)
	}
	if _, ok := m.IndicesOf(id, v0); ok {
		t.Fatalf("stale version %d must be rejected after reuse", v0)
	}
}

func TestRetirementStopsRecyclingNearWrap(t *testing.T) {
	const guard = 4
	m := New(guard, testDiag)
	id, v := m.AllocateID()
	m.Associate(id, arena.SlotIndices{})

	// Cycle the id until it gets retired instead of recycled.
	for i := 0; i < wrapModulus; i++ {
		m.Free(id, v)
		if m.RetiredCount() == 1 {
			break
		}
		id2, v2 := m.AllocateID()
		if id2 != id {
			t.Fatalf("expected the same id to keep recycling before retirement, got new id %d", id2)
		}
		id, v = id2, v2
		m.Associate(id, arena.SlotIndices{})
	}

	if m.RetiredCount() != 1 {
		t.Fatalf("expected exactly one retired id, got %d", m.RetiredCount())
	}
	// A retired id must never come back out of AllocateID.
	for i := 0; i < 8; i++ {
		newID, _ := m.AllocateID()
		if newID == id {
			t.Fatalf("retired id %d was handed out again by AllocateID", id)
		}
	}
}
