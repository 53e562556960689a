// workload_gen emits a deterministic, newline-delimited JSON stream of
// dispatch events for the mixed-churn stress scenario (spawn, unicast,
// broadcast, despawn, interleaved against a live instance count), for
// feeding into bench/ or a standalone harness outside `go test`.
//
// Usage:
//
//	go run ./tools/workload_gen -n 100000 -dist zipf -seed 42 -out workload.jsonl
//
// Grounded on the teacher's tools/dataset_gen: same flag shape and the same
// math/rand.Zipf generator, applied here to which live instance a unicast
// event addresses rather than to which cache key is requested.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// event mirrors one line of the workload: Kind is one of "spawn", "unicast",
// "broadcast", "despawn". Target is only meaningful for unicast/despawn and
// names a 0-based ordinal among instances spawned so far (the consumer maps
// it to a RawID using its own spawn-order bookkeeping, since workload_gen
// has no access to a live Swarm's minted ids).
type event struct {
	Kind   string `json:"kind"`
	Target int    `json:"target,omitempty"`
}

func main() {
	var (
		n       = flag.Int("n", 100_000, "number of events to generate")
		dist    = flag.String("dist", "uniform", "unicast target distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		spawnP  = flag.Float64("spawnp", 0.05, "probability an event is a spawn")
		despawnP = flag.Float64("despawnp", 0.02, "probability an event is a despawn")
		broadcastP = flag.Float64("broadcastp", 0.01, "probability an event is a broadcast")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var targetPick func(liveCount int) int
	switch *dist {
	case "uniform":
		targetPick = func(liveCount int) int {
			if liveCount == 0 {
				return 0
			}
			return rnd.Intn(liveCount)
		}
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, 1<<20)
		targetPick = func(liveCount int) int {
			if liveCount == 0 {
				return 0
			}
			return int(z.Uint64()) % liveCount
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()
	enc := json.NewEncoder(w)

	liveCount := 0
	for i := 0; i < *n; i++ {
		roll := rnd.Float64()
		var ev event
		switch {
		case liveCount == 0 || roll < *spawnP:
			ev = event{Kind: "spawn"}
			liveCount++
		case roll < *spawnP+*despawnP:
			ev = event{Kind: "despawn", Target: targetPick(liveCount)}
			liveCount--
		case roll < *spawnP+*despawnP+*broadcastP:
			ev = event{Kind: "broadcast"}
		default:
			ev = event{Kind: "unicast", Target: targetPick(liveCount)}
		}
		if err := enc.Encode(ev); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
	}
}
