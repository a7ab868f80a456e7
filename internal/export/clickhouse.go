package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"NetWarden/internal/config"
	"NetWarden/internal/model"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS dpi_flows (
    RunID       String,
    Timestamp   DateTime,
    SrcIP       String,
    DstIP       String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    UInt8,
    App         String,
    ServerName  String,
    State       String,
    PacketsIn   UInt64,
    PacketsOut  UInt64,
    BytesIn     UInt64,
    BytesOut    UInt64,
    FirstSeen   DateTime,
    LastSeen    DateTime
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Timestamp);
`

// ClickHouseWriter archives end-of-run flow snapshots.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and ensures the flow table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("[export] connected to ClickHouse and ensured dpi_flows exists")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// WriteSnapshot inserts the run's live flow records in one batch.
func (w *ClickHouseWriter) WriteSnapshot(runID string, conns []model.Connection) error {
	if len(conns) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO dpi_flows")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for _, conn := range conns {
		err = batch.Append(
			runID,
			now,
			model.FormatIPv4(conn.Tuple.SrcIP),
			model.FormatIPv4(conn.Tuple.DstIP),
			conn.Tuple.SrcPort,
			conn.Tuple.DstPort,
			conn.Tuple.Protocol,
			conn.App.String(),
			conn.ServerName,
			conn.State.String(),
			conn.PacketsIn,
			conn.PacketsOut,
			conn.BytesIn,
			conn.BytesOut,
			conn.FirstSeen,
			conn.LastSeen,
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("[export] wrote %d flows to ClickHouse", len(conns))
	return nil
}

// Close releases the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
