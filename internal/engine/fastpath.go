package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"NetWarden/internal/inspect"
	"NetWarden/internal/metrics"
	"NetWarden/internal/model"
	"NetWarden/internal/queue"
	"NetWarden/internal/rules"
	"NetWarden/internal/track"
)

const (
	popTimeout = 100 * time.Millisecond

	// Minimum payload worth probing for a ClientHello off port 443.
	sniProbeMinPayload = 50
)

// FastPath is a second-stage worker: it owns one input queue and one
// connection tracker, classifies packets, and produces forward/drop
// verdicts. Exactly one goroutine runs its loop.
type FastPath struct {
	id      int
	in      *queue.Queue[*model.PacketJob]
	out     *queue.Queue[*model.PacketJob]
	tracker *track.Tracker
	rules   *rules.Manager
	stats   *Stats

	cleanupTimeout time.Duration
	quiet          bool

	processed atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64

	// Written by the worker goroutine, read by the stats surface.
	mu          sync.Mutex
	appCounts   map[model.AppType]uint64
	serverNames map[string]model.AppType
}

// NewFastPath wires a worker to the shared rule manager, engine stats, and
// the output queue.
func NewFastPath(id, queueSize, maxConns int, cleanupTimeout time.Duration,
	rm *rules.Manager, stats *Stats, out *queue.Queue[*model.PacketJob], quiet bool) *FastPath {
	return &FastPath{
		id:             id,
		in:             queue.New[*model.PacketJob](queueSize),
		out:            out,
		tracker:        track.New(id, maxConns),
		rules:          rm,
		stats:          stats,
		cleanupTimeout: cleanupTimeout,
		quiet:          quiet,
		appCounts:      make(map[model.AppType]uint64),
		serverNames:    make(map[string]model.AppType),
	}
}

// Queue returns the worker's input queue.
func (fp *FastPath) Queue() *queue.Queue[*model.PacketJob] { return fp.in }

// Tracker returns the worker's connection tracker. Callers must not touch
// it while the worker goroutine is running.
func (fp *FastPath) Tracker() *track.Tracker { return fp.tracker }

// Processed, Forwarded, and Dropped expose the worker counters.
func (fp *FastPath) Processed() uint64 { return fp.processed.Load() }
func (fp *FastPath) Forwarded() uint64 { return fp.forwarded.Load() }
func (fp *FastPath) Dropped() uint64   { return fp.dropped.Load() }

// AppCounts returns a copy of the per-application packet counts.
func (fp *FastPath) AppCounts() map[model.AppType]uint64 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	out := make(map[model.AppType]uint64, len(fp.appCounts))
	for app, count := range fp.appCounts {
		out[app] = count
	}
	return out
}

// ServerNames returns a copy of the observed server names and their
// applications.
func (fp *FastPath) ServerNames() map[string]model.AppType {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	out := make(map[string]model.AppType, len(fp.serverNames))
	for name, app := range fp.serverNames {
		out[name] = app
	}
	return out
}

// Run is the worker loop: pop with timeout, clean up stale flows on idle
// ticks, and exit once the input queue is shut down and drained.
func (fp *FastPath) Run() {
	for {
		job, ok := fp.in.PopTimeout(popTimeout)
		if !ok {
			if fp.in.IsShutdown() && fp.in.Len() == 0 {
				if !fp.quiet {
					log.Printf("[fp%d] stopped after %d packets", fp.id, fp.processed.Load())
				}
				return
			}
			fp.tracker.CleanupStale(fp.cleanupTimeout)
			continue
		}

		fp.processed.Add(1)
		action := fp.process(job)

		if action == model.ActionDrop {
			fp.dropped.Add(1)
			fp.stats.Dropped.Add(1)
			metrics.Packets.WithLabelValues("dropped").Inc()
			continue
		}

		fp.forwarded.Add(1)
		fp.stats.Forwarded.Add(1)
		metrics.Packets.WithLabelValues("forwarded").Inc()
		fp.out.Push(job)
	}
}

func (fp *FastPath) process(job *model.PacketJob) model.Action {
	conn := fp.tracker.GetOrCreate(job.Tuple)
	fp.tracker.Update(conn, len(job.Data), true)

	if job.Tuple.Protocol == model.ProtoTCP {
		fp.updateTCPState(job.Tuple, conn, job.TCPFlags)
	}

	if conn.State == model.StateBlocked {
		return model.ActionDrop
	}

	if conn.State != model.StateClassified && job.PayloadLen > 0 && !job.Fragmented {
		fp.inspectPayload(job, conn)
	}

	fp.record(conn)

	if reason, blocked := fp.rules.ShouldBlock(job.Tuple.SrcIP, job.Tuple.DstPort, conn.App, conn.ServerName); blocked {
		fp.tracker.Block(conn)
		metrics.RuleBlocks.Inc()
		if !fp.quiet {
			log.Printf("[fp%d] blocked %s: %s %s", fp.id, job.Tuple, reason.Kind, reason.Detail)
		}
		return model.ActionDrop
	}
	return model.ActionForward
}

func (fp *FastPath) inspectPayload(job *model.PacketJob, conn *model.Connection) {
	payload := job.Payload()
	if payload == nil {
		return
	}

	if job.Tuple.DstPort == 443 || job.PayloadLen >= sniProbeMinPayload {
		if name, ok := inspect.ExtractSNI(payload); ok {
			fp.classify(conn, inspect.ClassifyServerName(name), name)
			return
		}
	}

	if job.Tuple.DstPort == 80 {
		if host, ok := inspect.ExtractHTTPHost(payload); ok {
			fp.classify(conn, inspect.ClassifyServerName(host), host)
			return
		}
	}

	if job.Tuple.DstPort == 53 || job.Tuple.SrcPort == 53 {
		if name, ok := inspect.ExtractDNSQuery(payload); ok {
			fp.classify(conn, model.AppDNS, name)
			return
		}
	}

	if job.Tuple.Protocol == model.ProtoUDP && job.Tuple.DstPort == 443 {
		if name, ok := inspect.ExtractQUICSNI(payload); ok {
			app := inspect.ClassifyServerName(name)
			if app == model.AppUnknown {
				app = model.AppQUIC
			}
			fp.classify(conn, app, name)
			return
		}
	}

	// Port-based fallback so the flow stops re-inspecting forever.
	switch job.Tuple.DstPort {
	case 80:
		fp.classify(conn, model.AppHTTP, "")
	case 443:
		fp.classify(conn, model.AppHTTPS, "")
	}
}

func (fp *FastPath) classify(conn *model.Connection, app model.AppType, name string) {
	fp.tracker.Classify(conn, app, name)
	metrics.ClassifiedFlows.WithLabelValues(app.String()).Inc()
}

func (fp *FastPath) record(conn *model.Connection) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.appCounts[conn.App]++
	if conn.ServerName != "" {
		fp.serverNames[conn.ServerName] = conn.App
	}
}

// updateTCPState applies one packet's flags to the flow's state machine.
// BLOCKED dominates every transition; a terminal RST or FIN+ACK closes and
// removes the record.
func (fp *FastPath) updateTCPState(tuple model.FiveTuple, conn *model.Connection, flags byte) {
	if flags&model.TCPSyn != 0 {
		if flags&model.TCPAck != 0 {
			conn.SynAckSeen = true
		} else {
			conn.SynSeen = true
		}
	}

	if conn.State == model.StateNew &&
		conn.SynSeen && conn.SynAckSeen &&
		flags&model.TCPAck != 0 && flags&model.TCPSyn == 0 {
		conn.State = model.StateEstablished
	}

	if flags&model.TCPFin != 0 {
		conn.FinSeen = true
	}
	if flags&model.TCPRst != 0 {
		conn.RstSeen = true
	}

	if conn.State == model.StateBlocked {
		return
	}
	if flags&model.TCPRst != 0 || (conn.FinSeen && flags&model.TCPAck != 0) {
		fp.tracker.Close(tuple)
	}
}
