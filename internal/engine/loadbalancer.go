package engine

import (
	"log"
	"sync/atomic"

	"NetWarden/internal/model"
	"NetWarden/internal/queue"
)

// LoadBalancer is a first-stage dispatcher: one goroutine pops its input
// queue and forwards each job to a fast-path queue chosen by tuple hash.
// The hash keeps every packet of a flow on the same worker, so trackers
// never need cross-worker synchronization.
type LoadBalancer struct {
	id      int
	fpStart int
	in      *queue.Queue[*model.PacketJob]
	fps     []*queue.Queue[*model.PacketJob]

	received   atomic.Uint64
	dispatched atomic.Uint64
	perFP      []atomic.Uint64

	quiet bool
}

// NewLoadBalancer creates a balancer over the given fast-path queues.
// fpStart is the global index of the first queue.
func NewLoadBalancer(id, queueSize, fpStart int, fps []*queue.Queue[*model.PacketJob], quiet bool) *LoadBalancer {
	return &LoadBalancer{
		id:      id,
		fpStart: fpStart,
		in:      queue.New[*model.PacketJob](queueSize),
		fps:     fps,
		perFP:   make([]atomic.Uint64, len(fps)),
		quiet:   quiet,
	}
}

// Queue returns the balancer's input queue.
func (lb *LoadBalancer) Queue() *queue.Queue[*model.PacketJob] { return lb.in }

// Received and Dispatched expose the balancer counters.
func (lb *LoadBalancer) Received() uint64   { return lb.received.Load() }
func (lb *LoadBalancer) Dispatched() uint64 { return lb.dispatched.Load() }

// PerFPCounts returns how many jobs went to each downstream queue.
func (lb *LoadBalancer) PerFPCounts() []uint64 {
	out := make([]uint64, len(lb.perFP))
	for i := range lb.perFP {
		out[i] = lb.perFP[i].Load()
	}
	return out
}

// Run is the dispatch loop. It exits when the input queue is shut down
// and drained.
func (lb *LoadBalancer) Run() {
	for {
		job, ok := lb.in.PopTimeout(popTimeout)
		if !ok {
			if lb.in.IsShutdown() && lb.in.Len() == 0 {
				if !lb.quiet {
					log.Printf("[lb%d] stopped after %d packets", lb.id, lb.dispatched.Load())
				}
				return
			}
			continue
		}

		lb.received.Add(1)
		if len(lb.fps) == 0 {
			continue
		}

		idx := int(job.Tuple.Hash() % uint64(len(lb.fps)))
		if !lb.fps[idx].Push(job) {
			continue
		}
		lb.dispatched.Add(1)
		lb.perFP[idx].Add(1)
	}
}
