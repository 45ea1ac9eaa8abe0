package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for crack-run telemetry.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS crack_runs (
		archive_sha256  String,
		member          LowCardinality(String),
		plain_member    LowCardinality(String),
		key_offset      Int32,
		plaintext_len   UInt32,
		seed_candidates UInt32,
		candidates      UInt32,
		attack_index    UInt32,
		found           UInt8,
		key_x           UInt32,
		key_y           UInt32,
		key_z           UInt32,
		duration_ms     UInt64,
		started_at      DateTime64(3),
		created_at      DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(started_at)
	ORDER BY (archive_sha256, started_at)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create crack_runs table: %w", err)
	}
	return nil
}

// InsertRuns batch-inserts crack-run records.
func (d *ClickHouseDB) InsertRuns(ctx context.Context, runs []CrackRun) error {
	if len(runs) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO crack_runs (archive_sha256, member, plain_member, key_offset, plaintext_len,
			seed_candidates, candidates, attack_index, found, key_x, key_y, key_z, duration_ms, started_at)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, run := range runs {
		found := uint8(0)
		if run.Found {
			found = 1
		}
		err := batch.Append(
			run.ArchiveSHA256,
			run.Member,
			run.PlainMember,
			int32(run.Offset),
			uint32(run.PlaintextLen),
			uint32(run.SeedCandidates),
			uint32(run.Candidates),
			uint32(run.Index),
			found,
			run.X,
			run.Y,
			run.Z,
			uint64(run.Duration.Milliseconds()),
			run.StartedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append run: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
