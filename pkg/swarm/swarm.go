package swarm

import (
	"github.com/bogdad/citybound/internal/arena"
	"github.com/bogdad/citybound/internal/diagnostics"
	"github.com/bogdad/citybound/internal/slotmap"
	"github.com/bogdad/citybound/internal/unsafehelpers"
)

// Swarm hosts every live instance of one actor kind A (accessed through its
// pointer-receiver view PA). It owns a MultiArena for storage, a SlotMap for
// stable identity, and dispatches Packets to the Handler supplied to
// Dispatch.
//
// A Swarm is not safe for concurrent use from multiple goroutines; the
// spec's concurrency story is one Swarm owned by one goroutine, with
// multiple Swarms (one per actor kind, or sharded by machine) hosted
// concurrently, each on its own goroutine.
type Swarm[A any, PA Compact[A]] struct {
	kind      string
	typeID    uint32
	machineID uint32

	arena *arena.MultiArena
	slots *slotmap.SlotMap
	diag  *diagnostics.Diagnostics
}

// New constructs an empty Swarm for actor kind A, identified on the wire by
// typeID and on this node by kind (used only for logging and metric
// labels).
func New[A any, PA Compact[A]](kind string, typeID uint32, opts ...Option[A, PA]) (*Swarm[A, PA], error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	var sink diagnostics.Sink
	if cfg.metricsReg != nil {
		sink = diagnostics.NewPromSink(cfg.metricsReg)
	}

	var zero A
	typicalSize := PA(&zero).TypicalSize()

	diag := diagnostics.New(kind, cfg.logger, sink)

	return &Swarm[A, PA]{
		kind:      kind,
		typeID:    typeID,
		machineID: cfg.machineID,
		arena:     arena.NewMultiArena(typicalSize, diag),
		slots:     slotmap.New(cfg.nearWrapGuard, diag),
		diag:      diag,
	}, nil
}

func (s *Swarm[A, PA]) actorAt(indices arena.SlotIndices) PA {
	return PA(unsafehelpers.AsPtr[A](s.arena.AtMut(indices)))
}

// AllocateID reserves a fresh RawID without yet inserting an instance. Used
// by callers that must know an instance's id before constructing it (e.g.
// to embed a self-referential id into a message sent during construction).
// The caller must follow up with AddManuallyWithID using the same id.
func (s *Swarm[A, PA]) AllocateID() RawID {
	id, version := s.slots.AllocateID()
	return RawID{TypeID: s.typeID, Machine: s.machineID, InstanceID: id, Version: version}
}

// AddManuallyWithID inserts instance at the physical location backing id
// (previously returned by AllocateID), stamps the instance's own identity
// via SetID, and returns id unchanged for convenience.
//
// Grounded on the source's `add_manually` / `receive_instance` construction
// path in engine/kay/src/swarm.rs: the instance is written into the arena
// bin matching its current TotalSizeBytes, and the slot map is pointed at
// that physical location.
func (s *Swarm[A, PA]) AddManuallyWithID(id RawID, instance A) RawID {
	pa := PA(&instance)
	buf, indices := s.arena.Push(pa.TotalSizeBytes())
	s.slots.Associate(id.InstanceID, indices)

	dst := unsafehelpers.AsPtr[A](buf)
	pa.CompactBehind(dst)
	placed := PA(dst)
	placed.SetID(id)
	placed.SetCapacity(len(buf))

	s.diag.Sink.SetInstanceCount(s.kind, s.slots.OccupiedCount())
	return id
}

// Add allocates a fresh id and inserts instance under it in one step.
func (s *Swarm[A, PA]) Add(instance A) RawID {
	id := s.AllocateID()
	return s.AddManuallyWithID(id, instance)
}

// InstanceCount returns the number of currently live instances: the sum of
// the arena's bin lengths. An id reserved by AllocateID is not counted until
// AddManuallyWithID places its instance.
func (s *Swarm[A, PA]) InstanceCount() int {
	n := 0
	for _, b := range s.arena.PopulatedBinIndicesAndLens() {
		n += b.Len
	}
	return n
}

// resizeAtIndex is called after a handler runs when the instance no longer
// IsStillCompact(): its current bin's stride is too small for its new
// TotalSizeBytes. It pushes a fresh slot in the right-sized bin, compacts
// the instance into it, swap-removes the old slot, and re-associates the id.
//
// Grounded on swarm.rs's `Instance::compact_to_different_size` relocation
// called from within `receive_instance`/`receive_broadcast` after a handler
// returns.
func (s *Swarm[A, PA]) resizeAtIndex(id uint32, oldIndices arena.SlotIndices) arena.SlotIndices {
	old := s.actorAt(oldIndices)
	newSize := old.TotalSizeBytes()

	newBuf, newIndices := s.arena.Push(newSize)
	newDst := unsafehelpers.AsPtr[A](newBuf)
	old.CompactBehind(newDst)
	placed := PA(newDst)
	placed.SetCapacity(len(newBuf))

	s.removeAtIndex(oldIndices)
	s.slots.Associate(id, newIndices)
	s.diag.Sink.IncResized(s.kind)
	return newIndices
}

// removeAtIndex swap-removes the arena slot at indices and, if another
// instance was moved into the hole, re-associates that instance's id with
// its new physical location. It zeroes the vacated backing bytes, the Go
// analogue of the source's drop_in_place on a removed slot.
func (s *Swarm[A, PA]) removeAtIndex(indices arena.SlotIndices) {
	movedBytes, moved := s.arena.SwapRemoveWithinBin(indices)
	if moved {
		movedActor := PA(unsafehelpers.AsPtr[A](movedBytes))
		movedID := movedActor.ID().AsRaw().InstanceID
		s.slots.Associate(movedID, indices)
	}
	s.zeroVacated(indices, moved)
}

// zeroVacated clears the slot left behind once its bin's length has already
// been shrunk by swapRemoveWithinBin, i.e. the slot the bin no longer
// considers populated. It is purely hygienic — nothing ever reads past a
// bin's current length — but it ensures a stray unsafe read never observes
// a stale instance's bytes relabeled as empty.
func (s *Swarm[A, PA]) zeroVacated(indices arena.SlotIndices, moved bool) {
	vacated := indices
	if moved {
		// indices now holds the moved instance; the actual vacated bytes
		// are the old tail slot, just past the bin's shrunk length.
		vacated.Slot = s.arena.BinLen(indices.BinIndex)
	}
	buf := s.arena.At(vacated)
	for i := range buf {
		buf[i] = 0
	}
}

// RemoveByID removes id's instance outright, used by callers that need to
// kill an instance outside of a Dispatch call (e.g. administrative
// teardown). Ordinary handler-driven death goes through Dispatch's Fate.Die
// path instead.
func (s *Swarm[A, PA]) RemoveByID(id RawID) bool {
	indices, ok := s.slots.IndicesOf(id.InstanceID, id.Version)
	if !ok {
		return false
	}
	s.removeAtIndex(indices)
	s.slots.Free(id.InstanceID, id.Version)
	s.diag.Sink.IncDied(s.kind)
	s.diag.Sink.SetInstanceCount(s.kind, s.slots.OccupiedCount())
	return true
}

// Snapshot returns a point-in-time debug view of the swarm's bins and
// occupancy, consumed by cmd/swarm-inspect.
func (s *Swarm[A, PA]) Snapshot() Snapshot {
	bins := s.arena.PopulatedBinIndicesAndLens()
	out := make([]BinSnapshot, 0, len(bins))
	for _, b := range bins {
		out = append(out, BinSnapshot{
			BinIndex: b.BinIndex,
			Stride:   s.arena.BinStride(b.BinIndex),
			Len:      b.Len,
		})
	}
	return Snapshot{
		Kind:          s.kind,
		InstanceCount: s.slots.OccupiedCount(),
		RetiredKeys:   s.slots.RetiredCount(),
		Bins:          out,
	}
}
