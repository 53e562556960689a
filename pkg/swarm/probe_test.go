package swarm

import "unsafe"

// probeActor is the actor kind pkg/swarm's own tests exercise the
// dispatcher against. Its "size" is a synthetic int32 field rather than a
// real variable-length tail (as engine/kay's Compact-derive macro produces
// for, say, a growable Vec field). What this stands in
// for is exactly the part of the Compact contract the dispatcher's
// bookkeeping actually depends on: a reported size that can grow past the
// instance's current capacity and force a resize.
type probeActor struct {
	rawID     RawID
	capacity  int32
	sizeBytes int32
	tag       int32 // free-form payload the tests read back to confirm handler delivery
}

type probeID RawID

func (p probeID) AsRaw() RawID { return RawID(p) }

var probeHeaderSize = int(unsafe.Sizeof(probeActor{}))

func newProbeActor(tag int32) probeActor {
	return probeActor{sizeBytes: int32(probeHeaderSize), tag: tag}
}

func (p *probeActor) TypicalSize() int        { return probeHeaderSize }
func (p *probeActor) TotalSizeBytes() int     { return int(p.sizeBytes) }
func (p *probeActor) IsStillCompact() bool    { return int(p.sizeBytes) <= int(p.capacity) }
func (p *probeActor) SetCapacity(bytes int)   { p.capacity = int32(bytes) }
func (p *probeActor) CompactBehind(dst *probeActor) { *dst = *p }
func (p *probeActor) SetID(id RawID)          { p.rawID = id }
func (p *probeActor) ID() TypedID             { return probeID(p.rawID) }

// grow bumps the instance's reported size, simulating a handler that
// appended to some inline collection. Used directly by tests, which live in
// the same package and so can call it from inside a Handler.
func (p *probeActor) grow(totalSizeBytes int32) { p.sizeBytes = totalSizeBytes }
