package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// Stats are the engine-level totals. All fields are atomics because the
// reader, the fast paths, and the API server touch them concurrently.
type Stats struct {
	TotalPackets atomic.Uint64
	TotalBytes   atomic.Uint64
	TCPPackets   atomic.Uint64
	UDPPackets   atomic.Uint64

	Forwarded  atomic.Uint64
	Dropped    atomic.Uint64
	Malformed  atomic.Uint64
	Fragmented atomic.Uint64
	NonIP      atomic.Uint64
}

// Report is the JSON stats document.
type Report struct {
	Summary struct {
		TotalPackets uint64 `json:"total_packets"`
		TotalBytes   uint64 `json:"total_bytes"`
		TCPPackets   uint64 `json:"tcp_packets"`
		UDPPackets   uint64 `json:"udp_packets"`
		Forwarded    uint64 `json:"forwarded"`
		Dropped      uint64 `json:"dropped"`
	} `json:"summary"`
	Applications map[string]uint64 `json:"applications"`
	Threads      struct {
		LoadBalancers map[string]uint64 `json:"load_balancers"`
		FastPaths     map[string]uint64 `json:"fast_paths"`
	} `json:"threads"`
}

// Report assembles the stats document from the engine totals, the
// per-packet application counts, and the per-thread counters.
func (e *Engine) Report() *Report {
	r := &Report{}
	r.Summary.TotalPackets = e.stats.TotalPackets.Load()
	r.Summary.TotalBytes = e.stats.TotalBytes.Load()
	r.Summary.TCPPackets = e.stats.TCPPackets.Load()
	r.Summary.UDPPackets = e.stats.UDPPackets.Load()
	r.Summary.Forwarded = e.stats.Forwarded.Load()
	r.Summary.Dropped = e.stats.Dropped.Load()

	r.Applications = make(map[string]uint64)
	for _, fp := range e.fps {
		for app, count := range fp.AppCounts() {
			r.Applications[app.String()] += count
		}
	}

	r.Threads.LoadBalancers = make(map[string]uint64)
	for i, lb := range e.lbs {
		r.Threads.LoadBalancers[fmt.Sprintf("lb%d", i)] = lb.Dispatched()
	}
	r.Threads.FastPaths = make(map[string]uint64)
	for i, fp := range e.fps {
		r.Threads.FastPaths[fmt.Sprintf("fp%d", i)] = fp.Processed()
	}
	return r
}

// WriteJSON writes the stats document to path, indented.
func (r *Report) WriteJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return nil
}
