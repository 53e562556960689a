// swarm-inspect polls a running host's /debug/swarm/snapshot endpoint and
// prints it as text or JSON, optionally on a repeating interval.
//
// The target process is expected to expose:
//
//	GET /debug/swarm/snapshot  - JSON swarm.Snapshot payload
//
// Grounded on the teacher's cmd/arena-cache-inspect.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

type options struct {
	target   string
	watch    bool
	interval time.Duration
	json     bool
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.target, "target", "http://localhost:8080", "base URL of the process exposing /debug/swarm/snapshot")
	flag.BoolVar(&opts.watch, "watch", false, "poll repeatedly instead of printing once")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "polling interval when -watch is set")
	flag.BoolVar(&opts.json, "json", false, "print raw JSON instead of a text summary")
	flag.Parse()
	return opts
}

// snapshotView mirrors pkg/swarm.Snapshot without importing it, so this CLI
// stays buildable against any snapshot-shaped JSON payload.
type snapshotView struct {
	Kind          string `json:"Kind"`
	InstanceCount int    `json:"InstanceCount"`
	RetiredKeys   int    `json:"RetiredKeys"`
	Bins          []struct {
		BinIndex int `json:"BinIndex"`
		Stride   int `json:"Stride"`
		Len      int `json:"Len"`
	} `json:"Bins"`
}

func main() {
	opts := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap)
}

func fetchSnapshot(ctx context.Context, base string) (*snapshotView, error) {
	url := base + "/debug/swarm/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var snap snapshotView
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func prettyPrint(snap *snapshotView) error {
	fmt.Printf("Kind:     %s\n", snap.Kind)
	fmt.Printf("Instances:%d\n", snap.InstanceCount)
	fmt.Printf("Retired:  %d\n", snap.RetiredKeys)
	var totalBytes uint64
	for _, b := range snap.Bins {
		totalBytes += uint64(b.Stride) * uint64(b.Len)
		fmt.Printf("  bin %d: stride=%s len=%d\n", b.BinIndex, humanize.Bytes(uint64(b.Stride)), b.Len)
	}
	fmt.Printf("Arena:    %s\n", humanize.Bytes(totalBytes))
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "swarm-inspect:", err)
	os.Exit(1)
}
