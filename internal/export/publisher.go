// Package export ships flow records to the optional sinks: a NATS subject
// for per-flow verdict events and a ClickHouse table for the end-of-run
// archive. Both are disabled unless configured.
package export

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"NetWarden/internal/config"
	"NetWarden/internal/model"
)

// FlowEvent is the JSON document published per flow.
type FlowEvent struct {
	RunID      string    `json:"run_id"`
	SrcIP      string    `json:"src_ip"`
	DstIP      string    `json:"dst_ip"`
	SrcPort    uint16    `json:"src_port"`
	DstPort    uint16    `json:"dst_port"`
	Protocol   uint8     `json:"protocol"`
	App        string    `json:"app"`
	ServerName string    `json:"server_name,omitempty"`
	State      string    `json:"state"`
	Packets    uint64    `json:"packets"`
	Bytes      uint64    `json:"bytes"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher publishes flow events to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Printf("[export] connected to NATS at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// PublishFlow serializes one flow record and publishes it.
func (p *Publisher) PublishFlow(runID string, conn model.Connection) error {
	event := FlowEvent{
		RunID:      runID,
		SrcIP:      model.FormatIPv4(conn.Tuple.SrcIP),
		DstIP:      model.FormatIPv4(conn.Tuple.DstIP),
		SrcPort:    conn.Tuple.SrcPort,
		DstPort:    conn.Tuple.DstPort,
		Protocol:   conn.Tuple.Protocol,
		App:        conn.App.String(),
		ServerName: conn.ServerName,
		State:      conn.State.String(),
		Packets:    conn.PacketsIn + conn.PacketsOut,
		Bytes:      conn.BytesIn + conn.BytesOut,
		Timestamp:  time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal flow event: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("[export] NATS connection drained and closed")
	}
}
