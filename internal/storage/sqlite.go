package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("not found")

// SQLiteDB wraps a SQLite database used as the local recovered-keys
// cache. The CLI consults it before attacking and records every success.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &SQLiteDB{db: db}
	if err := d.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func (d *SQLiteDB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recovered_keys (
		archive_sha256  TEXT NOT NULL,
		member          TEXT NOT NULL,
		offset          INTEGER NOT NULL,
		key_x           INTEGER NOT NULL,
		key_y           INTEGER NOT NULL,
		key_z           INTEGER NOT NULL,
		found_at        TIMESTAMP NOT NULL,
		PRIMARY KEY (archive_sha256, member, offset)
	);`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordKeys stores (or refreshes) a recovered state.
func (d *SQLiteDB) RecordKeys(rk RecoveredKeys) error {
	_, err := d.db.Exec(`
		INSERT INTO recovered_keys (archive_sha256, member, offset, key_x, key_y, key_z, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (archive_sha256, member, offset) DO UPDATE SET
			key_x = excluded.key_x,
			key_y = excluded.key_y,
			key_z = excluded.key_z,
			found_at = excluded.found_at`,
		rk.ArchiveSHA256, rk.Member, rk.Offset,
		int64(rk.X), int64(rk.Y), int64(rk.Z), rk.FoundAt.UTC())
	if err != nil {
		return fmt.Errorf("record keys: %w", err)
	}
	return nil
}

// LookupKeys returns the cached state for an archive/member/offset
// combination, or ErrNotFound.
func (d *SQLiteDB) LookupKeys(archiveSHA256, member string, offset int) (*RecoveredKeys, error) {
	row := d.db.QueryRow(`
		SELECT archive_sha256, member, offset, key_x, key_y, key_z, found_at
		FROM recovered_keys
		WHERE archive_sha256 = ? AND member = ? AND offset = ?`,
		archiveSHA256, member, offset)

	var rk RecoveredKeys
	var x, y, z int64
	var foundAt time.Time
	err := row.Scan(&rk.ArchiveSHA256, &rk.Member, &rk.Offset, &x, &y, &z, &foundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup keys: %w", err)
	}
	rk.X, rk.Y, rk.Z = uint32(x), uint32(y), uint32(z)
	rk.FoundAt = foundAt
	return &rk, nil
}

// LookupArchive returns every cached state for an archive hash, newest
// first.
func (d *SQLiteDB) LookupArchive(archiveSHA256 string) ([]RecoveredKeys, error) {
	rows, err := d.db.Query(`
		SELECT archive_sha256, member, offset, key_x, key_y, key_z, found_at
		FROM recovered_keys
		WHERE archive_sha256 = ?
		ORDER BY found_at DESC`,
		archiveSHA256)
	if err != nil {
		return nil, fmt.Errorf("lookup archive: %w", err)
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
