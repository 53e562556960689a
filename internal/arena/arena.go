// Package arena implements the swarm's multi-bin storage (component C1):
// packed, size-classed storage of compact instances, built so that iterating
// one bin in physical order is cache-friendly and so that removal never
// leaves a hole.
//
// A MultiArena owns any number of Bins, one per size class. A size class is
// chosen so that every possible instance byte size maps to exactly one bin —
// classes are powers of two anchored at the typical-size hint supplied at
// construction (see sizeClass). Each Bin is a densely packed run of
// fixed-stride slots; append always targets the tail, and removal is
// swap-with-last, so slots [0, length) are never sparse (invariant I2/I3 in
// the swarm package are built directly on top of this guarantee).
//
// Storage for a Bin grows by appending fixed 16 MiB chunks on demand — the
// chunked-growth bookkeeping here is adapted from the teacher's
// internal/genring generation ring, but without TTL or eviction: a Swarm's
// arena only ever grows, it never rotates data out by time.
//
// MultiArena is unaware of versions, actor kinds, or messages; that is the
// job of internal/slotmap and pkg/swarm respectively.
package arena

import (
	"github.com/bogdad/citybound/internal/diagnostics"
	"github.com/bogdad/citybound/internal/unsafehelpers"
	"go.uber.org/zap"
)

// DefaultChunkBytes is the size of one storage chunk appended to a Bin when
// it runs out of room. 16 MiB matches the chunk size the original source
// used for its instance arena.
const DefaultChunkBytes = 16 << 20

// SlotIndices names a physical position inside a MultiArena: which bin, and
// which slot within that bin's packed run. It is not meaningful outside the
// arena/slotmap/swarm trio — no exported API returns it to callers.
type SlotIndices struct {
	BinIndex int
	Slot     int
}

// BinSnapshot is one entry of the vector returned by
// PopulatedBinIndicesAndLens: the bin index and how many slots it held at
// the moment of the call. It is the ground truth a broadcast walks against.
type BinSnapshot struct {
	BinIndex int
	Len      int
}

type chunk struct {
	buf []byte
}

// Bin is a contiguous, size-classed run of fixed-stride slots. Slots
// [0, length) are always populated; slot length is the next append target.
type Bin struct {
	stride        int
	slotsPerChunk int
	chunks        []chunk
	length        int
	diag          *diagnostics.Diagnostics
}

func newBin(stride int, diag *diagnostics.Diagnostics) *Bin {
	slotsPerChunk := DefaultChunkBytes / stride
	if slotsPerChunk < 1 {
		slotsPerChunk = 1
	}
	return &Bin{stride: stride, slotsPerChunk: slotsPerChunk, diag: diag}
}

// Stride returns the byte size of this bin's size class.
func (b *Bin) Stride() int { return b.stride }

// Len returns the bin's current logical length.
func (b *Bin) Len() int { return b.length }

func (b *Bin) growToHold(chunkIdx int) {
	for chunkIdx >= len(b.chunks) {
		b.chunks = append(b.chunks, b.allocChunk())
	}
}

// allocChunk appends one DefaultChunkBytes-sized chunk. Allocation exhaustion
// (make panicking under memory pressure) has no recovery path that preserves
// the bin's packing invariants, so it is fatal: the panic is caught here only
// to attach structured context before the process exits through
// Diagnostics.Fatal (spec §7's arena-exhaustion case).
func (b *Bin) allocChunk() (c chunk) {
	defer func() {
		if r := recover(); r != nil {
			b.diag.Fatal("arena: allocation exhausted growing a bin",
				zap.Int("stride", b.stride),
				zap.Int("slots_per_chunk", b.slotsPerChunk),
				zap.Int("requested_bytes", b.slotsPerChunk*b.stride),
				zap.Any("recovered", r),
			)
		}
	}()
	return chunk{buf: make([]byte, b.slotsPerChunk*b.stride)}
}

func (b *Bin) slotBytes(slot int) []byte {
	chunkIdx := slot / b.slotsPerChunk
	off := (slot % b.slotsPerChunk) * b.stride
	return b.chunks[chunkIdx].buf[off : off+b.stride]
}

// push appends an uninitialized slot at the tail and returns its local slot
// number and backing bytes.
func (b *Bin) push() (int, []byte) {
	slot := b.length
	b.growToHold(slot / b.slotsPerChunk)
	b.length++
	return slot, b.slotBytes(slot)
}

// swapRemoveWithinBin removes the slot at `slot` by moving the bin's last
// slot into its place. It returns the bytes of the moved-in slot (now living
// at `slot`), or (nil, false) if the removed slot was itself the last one.
func (b *Bin) swapRemoveWithinBin(slot int) ([]byte, bool) {
	last := b.length - 1
	if slot == last {
		b.length--
		return nil, false
	}
	dst := b.slotBytes(slot)
	src := b.slotBytes(last)
	copy(dst, src)
	b.length--
	return dst, true
}

// MultiArena maps an instance's current byte size to exactly one Bin and
// provides append/access/swap-remove/snapshot operations over it.
type MultiArena struct {
	typicalSize int
	classToBin  map[int]int
	bins        []*Bin
	diag        *diagnostics.Diagnostics
}

// NewMultiArena constructs an empty arena. typicalSize seeds the first
// (smallest) size class; it should be A.TypicalSize() for the actor kind the
// owning Swarm hosts. diag receives the fatal log line on allocation
// exhaustion (see Bin.allocChunk).
func NewMultiArena(typicalSize int, diag *diagnostics.Diagnostics) *MultiArena {
	if typicalSize < 1 {
		typicalSize = 1
	}
	return &MultiArena{
		typicalSize: typicalSize,
		classToBin:  make(map[int]int),
		diag:        diag,
	}
}

// sizeClass rounds size up to the bin's size class: typicalSize itself for
// anything that fits, otherwise the next power of two at or above size. This
// keeps the number of distinct bins small while guaranteeing every size has
// exactly one home.
func (m *MultiArena) sizeClass(size int) int {
	if size <= m.typicalSize {
		return m.typicalSize
	}
	return int(unsafehelpers.NextPowerOfTwo(uintptr(size)))
}

func (m *MultiArena) binIndexForSize(size int) int {
	class := m.sizeClass(size)
	if idx, ok := m.classToBin[class]; ok {
		return idx
	}
	idx := len(m.bins)
	m.bins = append(m.bins, newBin(class, m.diag))
	m.classToBin[class] = idx
	return idx
}

// Push selects the bin for size, appends an uninitialized slot at its tail,
// and returns the write-through bytes and the slot's position. Fails only on
// allocation exhaustion, which is fatal (see Bin.growToHold).
func (m *MultiArena) Push(size int) ([]byte, SlotIndices) {
	binIdx := m.binIndexForSize(size)
	slot, b := m.bins[binIdx].push()
	return b, SlotIndices{BinIndex: binIdx, Slot: slot}
}

// At returns the bytes at indices. The caller must only pass indices backed
// by a current slot-map entry — the arena itself does not track occupancy
// beyond bin length.
func (m *MultiArena) At(indices SlotIndices) []byte {
	return m.bins[indices.BinIndex].slotBytes(indices.Slot)
}

// AtMut is identical to At; the arena does not distinguish read vs. write
// access, mutability is a property of how the caller uses the returned
// slice.
func (m *MultiArena) AtMut(indices SlotIndices) []byte {
	return m.At(indices)
}

// SwapRemoveWithinBin removes the slot at indices by moving its bin's last
// slot into its place, returning the bytes of the moved-in instance (or
// false if the removed slot was the bin's last).
func (m *MultiArena) SwapRemoveWithinBin(indices SlotIndices) ([]byte, bool) {
	return m.bins[indices.BinIndex].swapRemoveWithinBin(indices.Slot)
}

// PopulatedBinIndicesAndLens snapshots every non-empty bin's index and
// length at the moment of the call. This snapshot is the basis of broadcast
// iteration: it freezes which instances count as "original recipients".
func (m *MultiArena) PopulatedBinIndicesAndLens() []BinSnapshot {
	out := make([]BinSnapshot, 0, len(m.bins))
	for i, b := range m.bins {
		if b.length > 0 {
			out = append(out, BinSnapshot{BinIndex: i, Len: b.length})
		}
	}
	return out
}

// BinLen returns binIndex's current length, which may differ from a
// snapshot value taken earlier in the same broadcast.
func (m *MultiArena) BinLen(binIndex int) int {
	return m.bins[binIndex].length
}

// BinCount returns the number of size-class bins created so far. Exposed for
// debug snapshots, not used by the dispatch algorithm itself.
func (m *MultiArena) BinCount() int {
	return len(m.bins)
}

// BinStride returns binIndex's size-class byte stride. Exposed for debug
// snapshots, not used by the dispatch algorithm itself.
func (m *MultiArena) BinStride(binIndex int) int {
	return m.bins[binIndex].stride
}
