package audit

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const insertEvents = "INSERT INTO rsql.compile_audit"

// CreateTable is the schema ClickHouseWriter inserts into.
const CreateTable = `CREATE TABLE IF NOT EXISTS rsql.compile_audit (
	timestamp   DateTime64(6, 'UTC'),
	id          UUID,
	key_name    LowCardinality(String),
	filter      String,
	target      LowCardinality(String),
	outcome     LowCardinality(String),
	error       String,
	cached      Bool,
	duration_us UInt64
) ENGINE = MergeTree
ORDER BY (timestamp, key_name)`

type ClickHouseWriter struct {
	conn clickhouse.Conn
}

func NewClickHouseWriter(conn clickhouse.Conn) *ClickHouseWriter {
	return &ClickHouseWriter{conn: conn}
}

func (w *ClickHouseWriter) Write(ctx context.Context, events []Event) error {
	batch, err := w.conn.PrepareBatch(ctx, insertEvents)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		err := batch.Append(
			e.Time,
			e.ID,
			e.KeyName,
			e.Filter,
			e.Target,
			e.Outcome,
			e.Error,
			e.Cached,
			uint64(e.Duration.Microseconds()),
		)
		if err != nil {
			return fmt.Errorf("failed to append event %s: %w", e.ID, err)
		}
	}

	return batch.Send()
}
