// Package engine wires the DPI pipeline: capture reader, load balancers,
// fast-path workers, and the output writer, all linked through bounded
// queues. Rules are shared read-mostly; everything else is owned by
// exactly one goroutine.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"NetWarden/internal/metrics"
	"NetWarden/internal/model"
	"NetWarden/internal/parser"
	"NetWarden/internal/queue"
	"NetWarden/internal/rules"
	"NetWarden/pkg/capture"
)

// drainGrace is how long the engine lets in-flight jobs settle between
// input exhaustion and queue shutdown.
const drainGrace = 300 * time.Millisecond

// Config sizes the pipeline.
type Config struct {
	NumLBs         int
	FPsPerLB       int
	QueueSize      int
	MaxConnsPerFP  int
	CleanupTimeout time.Duration
	Quiet          bool
}

func (c *Config) applyDefaults() {
	if c.NumLBs <= 0 {
		c.NumLBs = 2
	}
	if c.FPsPerLB <= 0 {
		c.FPsPerLB = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 10000
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = 300 * time.Second
	}
}

// Engine owns the pipeline for one run over a finite capture.
type Engine struct {
	cfg   Config
	runID string
	rules *rules.Manager
	stats *Stats

	fps  []*FastPath
	lbs  []*LoadBalancer
	outQ *queue.Queue[*model.PacketJob]

	wgFPs    sync.WaitGroup
	wgLBs    sync.WaitGroup
	wgOutput sync.WaitGroup

	stopOnce sync.Once
}

// New builds the pipeline topology. Workers are grouped under balancers
// exactly as configured: LB i serves fast paths [i*K, (i+1)*K).
func New(cfg Config, rm *rules.Manager) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:   cfg,
		runID: uuid.NewString(),
		rules: rm,
		stats: &Stats{},
		outQ:  queue.New[*model.PacketJob](cfg.QueueSize),
	}

	totalFPs := cfg.NumLBs * cfg.FPsPerLB
	for i := 0; i < totalFPs; i++ {
		e.fps = append(e.fps, NewFastPath(i, cfg.QueueSize, cfg.MaxConnsPerFP,
			cfg.CleanupTimeout, rm, e.stats, e.outQ, cfg.Quiet))
	}

	for i := 0; i < cfg.NumLBs; i++ {
		start := i * cfg.FPsPerLB
		fpQueues := make([]*queue.Queue[*model.PacketJob], 0, cfg.FPsPerLB)
		for j := 0; j < cfg.FPsPerLB; j++ {
			fpQueues = append(fpQueues, e.fps[start+j].Queue())
		}
		e.lbs = append(e.lbs, NewLoadBalancer(i, cfg.QueueSize, start, fpQueues, cfg.Quiet))
	}

	return e
}

// RunID identifies this engine instance in exports and stats.
func (e *Engine) RunID() string { return e.runID }

// Rules returns the shared rule manager.
func (e *Engine) Rules() *rules.Manager { return e.rules }

// Stats returns the engine totals.
func (e *Engine) Stats() *Stats { return e.stats }

// FastPaths returns the workers, for reports and exporters that run after
// ProcessFile returns.
func (e *Engine) FastPaths() []*FastPath { return e.fps }

// LoadBalancers returns the first-stage dispatchers.
func (e *Engine) LoadBalancers() []*LoadBalancer { return e.lbs }

// Connections snapshots every live flow record across all workers. Only
// call after ProcessFile has returned.
func (e *Engine) Connections() []model.Connection {
	var out []model.Connection
	for _, fp := range e.fps {
		out = append(out, fp.Tracker().Snapshot()...)
	}
	return out
}

// ProcessFile runs the whole pipeline over one capture file. Start order
// is output, workers, balancers, reader; stop order is the reverse. The
// call blocks until the output file is closed.
func (e *Engine) ProcessFile(input, output string) error {
	reader, err := capture.Open(input)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := capture.Create(output, reader.RawHeader(), reader.ByteOrder())
	if err != nil {
		return err
	}

	if !e.cfg.Quiet {
		hdr := reader.Header()
		log.Printf("[engine] run %s: %s -> %s (snaplen %d, linktype %d, %d lbs x %d fps)",
			e.runID, input, output, hdr.SnapLen, hdr.LinkType, e.cfg.NumLBs, e.cfg.FPsPerLB)
	}

	e.wgOutput.Add(1)
	go func() {
		defer e.wgOutput.Done()
		runOutput(e.outQ, writer, e.cfg.Quiet)
	}()

	for _, fp := range e.fps {
		e.wgFPs.Add(1)
		go func(fp *FastPath) {
			defer e.wgFPs.Done()
			fp.Run()
		}(fp)
	}

	for _, lb := range e.lbs {
		e.wgLBs.Add(1)
		go func(lb *LoadBalancer) {
			defer e.wgLBs.Done()
			lb.Run()
		}(lb)
	}

	readErr := e.readLoop(reader)

	e.stop()

	if err := writer.Close(); err != nil {
		return err
	}
	return readErr
}

// readLoop is the single producer: it parses records, builds jobs, and
// pushes each onto the balancer selected by tuple hash. Per-packet
// failures are counted, never returned; only a capture-format error stops
// the run early (and is reported once).
func (e *Engine) readLoop(reader *capture.Reader) error {
	var packetID uint64
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			if !e.cfg.Quiet {
				log.Printf("[reader] input exhausted after %d packets", packetID)
			}
			return nil
		}
		if err != nil {
			log.Printf("[reader] aborting: %v", err)
			return fmt.Errorf("capture read: %w", err)
		}

		e.stats.TotalPackets.Add(1)
		e.stats.TotalBytes.Add(uint64(len(rec.Data)))

		parsed, err := parser.Parse(rec.Data)
		if err != nil {
			e.stats.Malformed.Add(1)
			metrics.Packets.WithLabelValues("malformed").Inc()
			continue
		}

		if !parsed.HasIP || (!parsed.HasTCP && !parsed.HasUDP && !parsed.Fragmented) {
			e.stats.NonIP.Add(1)
			metrics.Packets.WithLabelValues("non_ip").Inc()
			continue
		}

		if parsed.Fragmented {
			e.stats.Fragmented.Add(1)
		}
		if parsed.HasTCP {
			e.stats.TCPPackets.Add(1)
		} else if parsed.HasUDP {
			e.stats.UDPPackets.Add(1)
		}

		job := &model.PacketJob{
			ID:              packetID,
			Tuple:           parsed.Tuple(),
			Data:            rec.Data,
			IPOffset:        parsed.IPOffset,
			TransportOffset: parsed.TransportOffset,
			PayloadOffset:   parsed.PayloadOffset,
			PayloadLen:      parsed.PayloadLen,
			TCPFlags:        parsed.TCPFlags,
			Fragmented:      parsed.Fragmented,
			TsSec:           rec.Header.TsSec,
			TsUsec:          rec.Header.TsUsec,
		}
		packetID++

		lbIdx := int(job.Tuple.Hash() % uint64(len(e.lbs)))
		if !e.lbs[lbIdx].Queue().Push(job) {
			return nil
		}
		metrics.QueueDepth.WithLabelValues(fmt.Sprintf("lb%d", lbIdx)).Set(float64(e.lbs[lbIdx].Queue().Len()))
	}
}

// stop tears the pipeline down in reverse start order and is idempotent.
// Balancers and workers drain their queues before exiting; the output
// writer drains last.
func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		time.Sleep(drainGrace)

		for _, lb := range e.lbs {
			lb.Queue().Shutdown()
		}
		e.wgLBs.Wait()

		for _, fp := range e.fps {
			fp.Queue().Shutdown()
		}
		e.wgFPs.Wait()

		for _, fp := range e.fps {
			metrics.EvictedConnections.Add(float64(fp.Tracker().EvictedCount()))
		}

		e.outQ.Shutdown()
		e.wgOutput.Wait()

		if !e.cfg.Quiet {
			log.Printf("[engine] run %s complete: %d forwarded, %d dropped",
				e.runID, e.stats.Forwarded.Load(), e.stats.Dropped.Load())
		}
	})
}
