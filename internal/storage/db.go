// Package storage persists recovered keys and crack-run telemetry.
//
// Three backends with different roles: SQLite is the local cache the CLI
// consults before re-running an attack, PostgreSQL is the shared store
// the keys API serves from, and ClickHouse receives append-only run
// telemetry for fleet-wide analysis.
package storage

import "time"

// Config holds database connection settings for all backends.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns a configuration with default local development
// settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "zipcrack",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "zipcrack",
			User:     "zipcrack",
			Password: "zipcrack",
		},
	}
}

// RecoveredKeys is one recovered cipher state, keyed by the archive's
// content hash so renamed copies of the same archive still hit.
type RecoveredKeys struct {
	ArchiveSHA256 string
	Member        string
	Offset        int
	X, Y, Z       uint32
	FoundAt       time.Time
}

// CrackRun records one attack attempt for telemetry, successful or not.
type CrackRun struct {
	ArchiveSHA256  string
	Member         string
	PlainMember    string
	Offset         int
	PlaintextLen   int
	SeedCandidates int
	Candidates     int
	Index          int
	Found          bool
	X, Y, Z        uint32
	Duration       time.Duration
	StartedAt      time.Time
}
