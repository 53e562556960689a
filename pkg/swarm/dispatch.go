package swarm

import (
	"github.com/bogdad/citybound/internal/arena"
	"go.uber.org/zap"
)

// Dispatch delivers packet to handler: a unicast if packet.RecipientID's
// InstanceID is a real instance id, or a broadcast to every currently live
// instance if it equals BroadcastInstanceID. handler must not call Dispatch
// (directly or transitively) on the same Swarm — re-entrant dispatch is
// undefined behavior the spec explicitly rules out, since both paths below
// assume they are the sole mutator of s for their duration.
func (s *Swarm[A, PA]) Dispatch(packet Packet, world World, handler Handler[A, PA]) {
	if packet.RecipientID.InstanceID == BroadcastInstanceID {
		s.dispatchBroadcast(packet, world, handler)
		return
	}
	s.dispatchUnicast(packet, world, handler)
}

// dispatchUnicast resolves packet's recipient through the slot map with a
// full version check and, if live, invokes handler exactly once. A stale or
// unknown recipient is silently dropped after a diagnostic (spec §4.3.4,
// invariant I5: never deliver a message to a mismatched version).
func (s *Swarm[A, PA]) dispatchUnicast(packet Packet, world World, handler Handler[A, PA]) {
	rid := packet.RecipientID
	indices, ok := s.slots.IndicesOf(rid.InstanceID, rid.Version)
	if !ok {
		haveVersion, occupied := s.slots.CurrentVersion(rid.InstanceID)
		s.diag.DroppedStale(rid.InstanceID, rid.Version, haveVersion, occupied)
		return
	}

	fate := handler(packet.Message, s.actorAt(indices), world)
	s.diag.Sink.IncUnicastDispatched(s.kind)
	s.applyFate(rid.InstanceID, indices, fate)
}

// applyFate runs the post-handler reconciliation shared by unicast and
// broadcast delivery: remove a dead instance, or migrate a live one that
// outgrew its size class.
func (s *Swarm[A, PA]) applyFate(id uint32, indices arena.SlotIndices, fate Fate) {
	if fate == Die {
		version, _ := s.slots.CurrentVersion(id)
		s.removeAtIndex(indices)
		s.slots.Free(id, version)
		s.diag.Sink.IncDied(s.kind)
		s.diag.Sink.SetInstanceCount(s.kind, s.slots.OccupiedCount())
		return
	}

	actor := s.actorAt(indices)
	if !actor.IsStillCompact() {
		s.resizeAtIndex(id, indices)
		return
	}

	// Compact-contract debug-assert (spec §7): IsStillCompact reported the
	// instance still fits, so its TotalSizeBytes must actually be within its
	// current bin's stride. A handler that grows past the stride without
	// IsStillCompact noticing would otherwise silently corrupt the next
	// instance packed into this bin on the very next Push into it.
	if stride := s.arena.BinStride(indices.BinIndex); actor.TotalSizeBytes() > stride {
		s.diag.Fatal("swarm: compact-contract violation: instance exceeds its bin's stride after reporting IsStillCompact",
			zap.String("kind", s.kind),
			zap.Uint32("instance_id", id),
			zap.Int("total_size_bytes", actor.TotalSizeBytes()),
			zap.Int("bin_stride", stride),
		)
	}
}

// dispatchBroadcast delivers packet.Message to every instance that was live
// at the moment the broadcast started, exactly once each, even though
// handler is free to spawn new instances, kill instances (including ones
// not yet visited), or grow instances into a new size class — any of which
// mutates the very bins the broadcast is iterating.
//
// This is a direct port of engine/kay/src/swarm.rs's receive_broadcast. The
// bin/length pairs are snapshotted up front: that snapshot is the
// definition of "live at broadcast start" and is never consulted again for
// its values, only its shape (which bins, how many original recipients
// each had).
//
// Within one bin, walk a slot cursor from 0 to the bin's *snapshotted*
// length. After calling handler, inspect the bin's *current* length against
// a watermark, indexAfterLastRecipient, which starts at the snapshotted
// length and only ever decreases:
//
//   - If the bin's current length dropped below the watermark, a handler
//     invocation (this one or an earlier one in the same bin) caused a
//     swap-remove that pulled a not-yet-visited original recipient down into
//     a slot at or before our cursor. The watermark drops by exactly that
//     shrinkage, and the cursor is NOT advanced: the slot now holds that
//     pulled-down original recipient, still owed its delivery, and must be
//     visited before moving on. (If the pulled-down element lands behind
//     the cursor, i.e. at a slot we already passed, this loop never sees it
//     again — matching the source's accepted semantics that a concurrently
//     removed original recipient is not guaranteed delivery once displaced
//     behind the cursor; see spec invariant B3/B4.)
//   - Otherwise the bin's length did not shrink past the watermark, so
//     whatever now occupies the cursor slot is either the same original
//     recipient that was already delivered to, or a newcomer (a resize-in
//     from another bin, or a freshly spawned instance) that must NOT
//     receive this broadcast. Either way the cursor advances.
func (s *Swarm[A, PA]) dispatchBroadcast(packet Packet, world World, handler Handler[A, PA]) {
	snapshot := s.arena.PopulatedBinIndicesAndLens()
	delivered := 0

	for _, bs := range snapshot {
		binIndex := bs.BinIndex
		indexAfterLastRecipient := bs.Len

		slot := 0
		for slot < indexAfterLastRecipient {
			indices := arena.SlotIndices{BinIndex: binIndex, Slot: slot}
			actor := s.actorAt(indices)
			id := actor.ID().AsRaw().InstanceID

			fate := handler(packet.Message, actor, world)
			delivered++
			s.applyFate(id, indices, fate)

			currentLen := s.arena.BinLen(binIndex)
			if currentLen < indexAfterLastRecipient {
				indexAfterLastRecipient = currentLen
				// Repeat this slot: whatever now occupies it was pulled
				// down from beyond the cursor and is still owed delivery.
				continue
			}
			slot++
		}
	}

	s.diag.Sink.IncBroadcastDelivered(s.kind, delivered)
}
