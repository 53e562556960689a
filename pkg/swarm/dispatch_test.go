package swarm

import "testing"

func TestDispatchUnicastDropsStaleVersion(t *testing.T) {
	s := newTestSwarm(t)
	id := s.Add(newProbeActor(1))
	s.RemoveByID(id) // bumps the version, frees the key

	called := false
	s.Dispatch(Packet{RecipientID: id}, nil, func(_ any, _ *probeActor, _ World) Fate {
		called = true
		return Live
	})
	if called {
		t.Fatalf("handler ran for a stale RawID")
	}
}

func TestDispatchUnicastDropsUnknownInstance(t *testing.T) {
	s := newTestSwarm(t)
	called := false
	s.Dispatch(Packet{RecipientID: RawID{TypeID: 42, InstanceID: 999}}, nil, func(_ any, _ *probeActor, _ World) Fate {
		called = true
		return Live
	})
	if called {
		t.Fatalf("handler ran for an instance id that was never allocated")
	}
}

func TestDispatchUnicastResizesOnGrowth(t *testing.T) {
	s := newTestSwarm(t)
	id := s.Add(newProbeActor(1))

	grownTo := int32(probeHeaderSize * 4)
	s.Dispatch(Packet{RecipientID: id}, nil, func(_ any, a *probeActor, _ World) Fate {
		a.grow(grownTo)
		return Live
	})

	snap := s.Snapshot()
	if len(snap.Bins) != 1 {
		t.Fatalf("after growth Snapshot has %d bins, want 1 (the instance should have migrated, not stayed in two)", len(snap.Bins))
	}
	if snap.Bins[0].Stride < int(grownTo) {
		t.Fatalf("post-resize bin stride %d is smaller than the grown instance (%d bytes)", snap.Bins[0].Stride, grownTo)
	}

	// The id must still resolve correctly after relocation.
	var sizeAfter int32
	s.Dispatch(Packet{RecipientID: id}, nil, func(_ any, a *probeActor, _ World) Fate {
		sizeAfter = a.sizeBytes
		return Live
	})
	if sizeAfter != grownTo {
		t.Fatalf("sizeBytes after relocation = %d, want %d", sizeAfter, grownTo)
	}
}

func TestDispatchUnicastDieRemovesInstance(t *testing.T) {
	s := newTestSwarm(t)
	id := s.Add(newProbeActor(1))
	s.Dispatch(Packet{RecipientID: id}, nil, func(_ any, _ *probeActor, _ World) Fate {
		return Die
	})
	if s.InstanceCount() != 0 {
		t.Fatalf("InstanceCount after Die = %d, want 0", s.InstanceCount())
	}
	called := false
	s.Dispatch(Packet{RecipientID: id}, nil, func(_ any, _ *probeActor, _ World) Fate {
		called = true
		return Live
	})
	if called {
		t.Fatalf("handler ran for an id already removed by a prior Die")
	}
}

// TestDispatchBroadcastVisitsEveryOriginalRecipientExactlyOnce is the
// central regression test for the watermark-based broadcast reconciliation
// in dispatchBroadcast. Five instances share one bin. The broadcast kills
// the second one visited, which swap-removes the bin's last instance into
// the hole; that pulled-down instance must still receive this broadcast
// exactly once, and a handler-spawned newcomer must receive it zero times.
func TestDispatchBroadcastVisitsEveryOriginalRecipientExactlyOnce(t *testing.T) {
	s := newTestSwarm(t)
	tags := []int32{1, 2, 3, 4, 5}
	for _, tag := range tags {
		s.Add(newProbeActor(tag))
	}

	visited := map[int32]int{}
	spawnedOnce := false
	s.Dispatch(
		Packet{RecipientID: RawID{TypeID: 42, InstanceID: BroadcastInstanceID}},
		nil,
		func(_ any, a *probeActor, _ World) Fate {
			visited[a.tag]++
			if a.tag == 3 && !spawnedOnce {
				spawnedOnce = true
				s.Add(newProbeActor(99)) // newcomer must not receive this broadcast
			}
			if a.tag == 2 {
				return Die
			}
			return Live
		},
	)

	for _, tag := range tags {
		if visited[tag] != 1 {
			t.Fatalf("tag %d visited %d times, want exactly 1", tag, visited[tag])
		}
	}
	if visited[99] != 0 {
		t.Fatalf("newcomer spawned mid-broadcast was visited %d times, want 0", visited[99])
	}
	if s.InstanceCount() != 5 {
		t.Fatalf("InstanceCount after broadcast = %d, want 5 (4 survivors + 1 newcomer)", s.InstanceCount())
	}
}

// TestDispatchBroadcastResizeDuringIterationStillVisitsEveryone covers a
// handler that grows an instance past its size class mid-broadcast: the
// resulting resize is itself a swap-remove in the same bin and must trigger
// the same watermark adjustment as a Die.
func TestDispatchBroadcastResizeDuringIterationStillVisitsEveryone(t *testing.T) {
	s := newTestSwarm(t)
	tags := []int32{1, 2, 3, 4}
	for _, tag := range tags {
		s.Add(newProbeActor(tag))
	}

	visited := map[int32]int{}
	s.Dispatch(
		Packet{RecipientID: RawID{TypeID: 42, InstanceID: BroadcastInstanceID}},
		nil,
		func(_ any, a *probeActor, _ World) Fate {
			visited[a.tag]++
			if a.tag == 2 {
				a.grow(int32(probeHeaderSize * 4))
			}
			return Live
		},
	)

	for _, tag := range tags {
		if visited[tag] != 1 {
			t.Fatalf("tag %d visited %d times, want exactly 1", tag, visited[tag])
		}
	}
	if s.InstanceCount() != 4 {
		t.Fatalf("InstanceCount after broadcast = %d, want 4", s.InstanceCount())
	}
}

func TestDispatchBroadcastOnEmptySwarmCallsHandlerZeroTimes(t *testing.T) {
	s := newTestSwarm(t)
	called := false
	s.Dispatch(
		Packet{RecipientID: RawID{TypeID: 42, InstanceID: BroadcastInstanceID}},
		nil,
		func(_ any, _ *probeActor, _ World) Fate {
			called = true
			return Live
		},
	)
	if called {
		t.Fatalf("handler ran against an empty swarm")
	}
}
