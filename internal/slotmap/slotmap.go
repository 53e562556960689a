// Package slotmap implements the swarm's versioned identity table (component
// C2): a bidirectional map between a stable instance id and its current
// physical location in the arena, with a version tag per slot that makes a
// stale RawID inert by construction.
//
// The table is a grow-only vector indexed by instance id, plus a free list
// threaded through free entries (LIFO: the last id freed is the next one
// handed out, which maximizes cache locality when churn is bursty).
//
// Open Question 1 from the spec (an 8-bit version counter can wrap and let a
// stale handle be mis-accepted after 256 reuses of the same id) is resolved
// here by keeping a full uint32 counter per entry and permanently retiring
// an id — never reallocating it again — once its counter gets within
// nearWrapGuard generations of completing a full 256-value cycle. A RawID's
// wire-compact uint8 version is always that counter's low byte, but because
// the id stops being recycled before the low byte can repeat, no stale
// RawID can ever be mistaken for a current one.
package slotmap

import (
	"github.com/bogdad/citybound/internal/arena"
	"github.com/bogdad/citybound/internal/diagnostics"
	"go.uber.org/zap"
)

// DefaultNearWrapGuard is used when a SlotMap is constructed with a
// guard of 0.
const DefaultNearWrapGuard = 16

const wrapModulus = 256

const noFree = ^uint32(0)

type entry struct {
	indices  arena.SlotIndices
	version  uint32
	nextFree uint32
	occupied bool
	retired  bool
}

// SlotMap is the versioned id -> (bin, slot) table described above. The zero
// value is not usable; construct with New.
type SlotMap struct {
	entries       []entry
	freeHead      uint32
	nearWrapGuard uint32
	retired       int
	diag          *diagnostics.Diagnostics
}

// New constructs an empty SlotMap. nearWrapGuard controls how many
// generations before a full 256-cycle an id is retired instead of recycled;
// 0 selects DefaultNearWrapGuard. diag receives the fatal log line if Free
// ever observes a corrupt entry (see Free).
func New(nearWrapGuard uint32, diag *diagnostics.Diagnostics) *SlotMap {
	if nearWrapGuard == 0 || nearWrapGuard >= wrapModulus {
		nearWrapGuard = DefaultNearWrapGuard
	}
	return &SlotMap{freeHead: noFree, nearWrapGuard: nearWrapGuard, diag: diag}
}

// AllocateID pops the free list or allocates a new entry. It returns the
// reused or new key and its current version (the wire-compact low byte of
// the internal counter). The caller must still Associate real indices once
// the instance has been written into the arena.
func (m *SlotMap) AllocateID() (id uint32, version uint8) {
	if m.freeHead != noFree {
		id = m.freeHead
		e := &m.entries[id]
		m.freeHead = e.nextFree
		e.occupied = true
		e.indices = arena.SlotIndices{}
		return id, uint8(e.version)
	}

	id = uint32(len(m.entries))
	m.entries = append(m.entries, entry{occupied: true})
	return id, 0
}

// Associate sets the occupied indices for id, preserving its current
// version. Used both at insert time and after a swap-remove relocation.
func (m *SlotMap) Associate(id uint32, indices arena.SlotIndices) {
	m.entries[id].indices = indices
}

// IndicesOf performs the strict, version-checked lookup behind dispatch's
// recipient resolution (invariant I5): it returns (indices, true) only if id
// names an occupied entry whose version matches.
func (m *SlotMap) IndicesOf(id uint32, version uint8) (arena.SlotIndices, bool) {
	if int(id) >= len(m.entries) {
		return arena.SlotIndices{}, false
	}
	e := &m.entries[id]
	if !e.occupied || uint8(e.version) != version {
		return arena.SlotIndices{}, false
	}
	return e.indices, true
}

// IndicesOfNoVersionCheck looks up id's indices without checking the
// version. It must only be used on paths that already own id unconditionally
// — the recipient of a unicast or broadcast delivery that is about to be
// resized or removed, where the version was already validated (or, for a
// freshly added instance, is intentionally not yet known to the caller).
func (m *SlotMap) IndicesOfNoVersionCheck(id uint32) arena.SlotIndices {
	return m.entries[id].indices
}

// CurrentVersion returns id's current wire-compact version and whether id is
// presently occupied. Used by diagnostics to report why a recipient was
// rejected.
func (m *SlotMap) CurrentVersion(id uint32) (version uint8, occupied bool) {
	if int(id) >= len(m.entries) {
		return 0, false
	}
	e := &m.entries[id]
	return uint8(e.version), e.occupied
}

// Free bumps id's version and, unless the id is now retired, pushes it onto
// the LIFO free list. This path is only ever reached after the caller has
// already validated ownership of id (a successful IndicesOf or an id the
// caller just allocated itself), so a non-occupied or mismatched-version
// entry here means the slot map itself is corrupt — a swarm invariant
// violation, not a bad caller input — and is fatal rather than recoverable
// (spec §7's corrupt-slot-map case).
func (m *SlotMap) Free(id uint32, version uint8) {
	e := &m.entries[id]
	if !e.occupied || uint8(e.version) != version {
		m.diag.Fatal("slotmap: corrupt slot map on free",
			zap.Uint32("instance_id", id),
			zap.Uint8("want_version", version),
			zap.Uint8("have_version", uint8(e.version)),
			zap.Bool("occupied", e.occupied),
		)
		return
	}
	e.occupied = false
	e.version++

	if !e.retired && e.version >= wrapModulus-uint32(m.nearWrapGuard) {
		e.retired = true
		m.retired++
	}
	if !e.retired {
		e.nextFree = m.freeHead
		m.freeHead = id
	}
}

// Len returns the total number of entries ever allocated (occupied + free +
// retired).
func (m *SlotMap) Len() int { return len(m.entries) }

// OccupiedCount returns the number of currently occupied entries, including
// ids reserved by AllocateID. The swarm package reports it in its debug
// snapshot and instance-count metric.
func (m *SlotMap) OccupiedCount() int {
	n := 0
	for i := range m.entries {
		if m.entries[i].occupied {
			n++
		}
	}
	return n
}

// RetiredCount returns how many ids have been permanently retired to avoid
// the version-wraparound hazard (see the package doc).
func (m *SlotMap) RetiredCount() int { return m.retired }
