// Package metrics registers the engine's Prometheus instrumentation on
// the default registry; the API server exposes it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Packets counts every packet by final disposition: forwarded,
	// dropped, malformed, non_ip.
	Packets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netwarden_packets_total",
		Help: "Packets processed by final disposition.",
	}, []string{"disposition"})

	// ClassifiedFlows counts flow classifications by application.
	ClassifiedFlows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netwarden_classified_flows_total",
		Help: "Flows classified, by application.",
	}, []string{"app"})

	// RuleBlocks counts packets dropped by a rule match.
	RuleBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_rule_blocks_total",
		Help: "Packets dropped by rule evaluation.",
	})

	// QueueDepth tracks the instantaneous depth of the load-balancer input
	// queues, sampled by the reader after each push.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netwarden_queue_depth",
		Help: "Current depth of a pipeline queue.",
	}, []string{"queue"})

	// EvictedConnections counts LRU evictions across all trackers.
	EvictedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netwarden_evicted_connections_total",
		Help: "Flow records evicted under tracker capacity pressure.",
	})
)
