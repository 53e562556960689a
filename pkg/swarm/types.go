// Package swarm implements the actor-swarm core described by the citybound
// runtime: compact, relocatable storage for many instances of one actor
// kind, a versioned handle that survives internal relocation, and message
// dispatch — unicast and broadcast — with well-defined semantics under
// concurrent mutation.
//
// Swarm is generic over the actor kind A and a pointer-receiver view PA of
// A that implements Compact. This mirrors the source's compile-time
// monomorphization (one Swarm type per actor kind) rather than a runtime
// vtable, while still requiring nothing more from A than the Compact
// contract — see the Design Notes in SPEC_FULL.md on type erasure.
package swarm

// RawID is the 96-bit-ish opaque handle to one instance: the actor kind it
// belongs to, the node that minted it, its slot-map key, and a version that
// rejects stale handles after the key has been freed and reused.
type RawID struct {
	TypeID     uint32
	Machine    uint32
	InstanceID uint32
	Version    uint8
}

// BroadcastInstanceID is the reserved instance id meaning "all instances of
// this Swarm".
const BroadcastInstanceID uint32 = 0xFFFF_FFFF

// TypedID is implemented by actor-kind-specific id newtypes that wrap a
// RawID (e.g. a generated `PlanningActorID`). The Compact contract's ID
// method returns one of these rather than a bare RawID so that handlers
// written against a specific actor kind get a typed id back.
type TypedID interface {
	AsRaw() RawID
}

// Fate is returned by a Handler to tell the dispatcher what happens to the
// instance that just ran.
type Fate int

const (
	// Live keeps the instance. If it grew out of its current size class the
	// dispatcher migrates it to a fresh one.
	Live Fate = iota
	// Die removes the instance once the handler returns.
	Die
)

func (f Fate) String() string {
	if f == Die {
		return "Die"
	}
	return "Live"
}

// World is the opaque context threaded through to user handlers. The swarm
// package never reads or mutates it.
type World any

// Packet is a message addressed to one instance (RecipientID.InstanceID !=
// BroadcastInstanceID) or to all instances (RecipientID.InstanceID ==
// BroadcastInstanceID). Message encoding on the wire is out of scope for
// this module; Message carries whatever value the enclosing runtime already
// decoded.
type Packet struct {
	RecipientID RawID
	Message     any
}

// Handler is invoked once per delivered message. It must not call Dispatch
// on the same Swarm (re-entrancy is forbidden, see spec §5).
type Handler[A any, PA Compact[A]] func(message any, actor PA, world World) Fate

// Compact is the contract an actor kind's pointer-receiver type must
// satisfy (component X1 in the spec): it reports its own byte footprint,
// whether that footprint still matches its current size class, and knows
// how to relocate itself — flattening any inline variable-length tail data
// behind its fixed prefix — into a fresh buffer.
//
// An implementation typically caches the capacity it was last placed into
// (set through SetCapacity) alongside its logical size, the way the
// original's Compact-derive macro keeps a dynamic_size_budget field, so
// that IsStillCompact is a cheap self-contained comparison rather than a
// callback into the swarm that placed it.
type Compact[A any] interface {
	*A

	// TypicalSize is a hint used once, at Swarm construction, to choose the
	// smallest size class.
	TypicalSize() int
	// TotalSizeBytes is the instance's current footprint, including any
	// inlined tail.
	TotalSizeBytes() int
	// IsStillCompact reports whether TotalSizeBytes() still fits the size
	// class the instance currently occupies.
	IsStillCompact() bool
	// SetCapacity records the byte capacity of the arena slot the instance
	// now occupies, called by the swarm immediately after every placement
	// (initial insert or post-resize relocation) so a later IsStillCompact
	// has something to compare TotalSizeBytes against.
	SetCapacity(bytes int)
	// CompactBehind copies the receiver into dst, flattening its tail
	// directly behind dst's fixed prefix. dst points at a freshly pushed,
	// uninitialized arena slot sized for TotalSizeBytes().
	CompactBehind(dst *A)
	// SetID installs id as the instance's own identity, read back later
	// through ID.
	SetID(RawID)
	// ID reads the instance's own identity back.
	ID() TypedID
}

// BinSnapshot describes one arena bin's state at Snapshot() time: which
// size class (by byte stride) and how many instances it currently holds.
type BinSnapshot struct {
	BinIndex int
	Stride   int
	Len      int
}

// Snapshot is a point-in-time debug view of a Swarm. Served as JSON at a
// host's /debug/swarm/snapshot endpoint, it is what cmd/swarm-inspect reads.
type Snapshot struct {
	Kind          string
	InstanceCount int
	RetiredKeys   int
	Bins          []BinSnapshot
}
