package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // SSL mode (disable, require, verify-ca, verify-full). Default: disable.
}

// PostgresDB wraps a PostgreSQL connection pool for the shared
// recovered-keys store.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	// URL-escape the password to handle special characters.
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, escapedPassword, cfg.Host, cfg.Port, cfg.Database, sslMode)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool for direct queries.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recovered_keys (
		archive_sha256  TEXT NOT NULL,
		member          TEXT NOT NULL,
		key_offset      INTEGER NOT NULL,
		key_x           BIGINT NOT NULL,
		key_y           BIGINT NOT NULL,
		key_z           BIGINT NOT NULL,
		found_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (archive_sha256, member, key_offset)
	);

	CREATE INDEX IF NOT EXISTS idx_recovered_keys_archive ON recovered_keys(archive_sha256);

	CREATE TABLE IF NOT EXISTS crack_runs (
		id              BIGSERIAL PRIMARY KEY,
		archive_sha256  TEXT NOT NULL,
		member          TEXT NOT NULL,
		plain_member    TEXT NOT NULL DEFAULT '',
		key_offset      INTEGER NOT NULL,
		plaintext_len   INTEGER NOT NULL,
		seed_candidates INTEGER NOT NULL,
		candidates      INTEGER NOT NULL,
		attack_index    INTEGER NOT NULL,
		found           BOOLEAN NOT NULL,
		key_x           BIGINT NOT NULL DEFAULT 0,
		key_y           BIGINT NOT NULL DEFAULT 0,
		key_z           BIGINT NOT NULL DEFAULT 0,
		duration_ms     BIGINT NOT NULL,
		started_at      TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crack_runs_archive ON crack_runs(archive_sha256);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertKeys stores (or refreshes) a recovered state.
func (d *PostgresDB) UpsertKeys(ctx context.Context, rk RecoveredKeys) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO recovered_keys (archive_sha256, member, key_offset, key_x, key_y, key_z, found_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (archive_sha256, member, key_offset) DO UPDATE SET
			key_x = EXCLUDED.key_x,
			key_y = EXCLUDED.key_y,
			key_z = EXCLUDED.key_z,
			found_at = EXCLUDED.found_at`,
		rk.ArchiveSHA256, rk.Member, rk.Offset,
		int64(rk.X), int64(rk.Y), int64(rk.Z), rk.FoundAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert keys: %w", err)
	}
	return nil
}

// GetKeys returns the stored state for an archive/member/offset
// combination, or ErrNotFound.
func (d *PostgresDB) GetKeys(ctx context.Context, archiveSHA256, member string, offset int) (*RecoveredKeys, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT archive_sha256, member, key_offset, key_x, key_y, key_z, found_at
		FROM recovered_keys
		WHERE archive_sha256 = $1 AND member = $2 AND key_offset = $3`,
		archiveSHA256, member, offset)

	var rk RecoveredKeys
	var x, y, z int64
	err := row.Scan(&rk.ArchiveSHA256, &rk.Member, &rk.Offset, &x, &y, &z, &rk.FoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}
	rk.X, rk.Y, rk.Z = uint32(x), uint32(y), uint32(z)
	return &rk, nil
}

// GetArchiveKeys returns every stored state for an archive hash, newest
// first.
func (d *PostgresDB) GetArchiveKeys(ctx context.Context, archiveSHA256 string) ([]RecoveredKeys, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT archive_sha256, member, key_offset, key_x, key_y, key_z, found_at
		FROM recovered_keys
		WHERE archive_sha256 = $1
		ORDER BY found_at DESC`,
		archiveSHA256)
	if err != nil {
		return nil, fmt.Errorf("get archive keys: %w", err)
	}
	defer rows.Close()

	var out []RecoveredKeys
	for rows.Next() {
		var rk RecoveredKeys
		var x, y, z int64
		if err := rows.Scan(&rk.ArchiveSHA256, &rk.Member, &rk.Offset, &x, &y, &z, &rk.FoundAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rk.X, rk.Y, rk.Z = uint32(x), uint32(y), uint32(z)
		out = append(out, rk)
	}
	return out, rows.Err()
}

// RecordRun appends one crack-run record.
func (d *PostgresDB) RecordRun(ctx context.Context, run CrackRun) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO crack_runs (archive_sha256, member, plain_member, key_offset, plaintext_len,
			seed_candidates, candidates, attack_index, found, key_x, key_y, key_z, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ArchiveSHA256, run.Member, run.PlainMember, run.Offset, run.PlaintextLen,
		run.SeedCandidates, run.Candidates, run.Index, run.Found,
		int64(run.X), int64(run.Y), int64(run.Z), run.Duration.Milliseconds(), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
