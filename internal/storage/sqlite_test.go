package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "keys.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteRecordAndLookup(t *testing.T) {
	db := openTestDB(t)

	rk := RecoveredKeys{
		ArchiveSHA256: "deadbeef",
		Member:        "secret.txt",
		Offset:        0,
		X:             0x8879dfed,
		Y:             0x14335b6b,
		Z:             0x8dc58b53,
		FoundAt:       time.Now().UTC().Truncate(time.Second),
	}
	if err := db.RecordKeys(rk); err != nil {
		t.Fatalf("RecordKeys: %v", err)
	}

	got, err := db.LookupKeys("deadbeef", "secret.txt", 0)
	if err != nil {
		t.Fatalf("LookupKeys: %v", err)
	}
	if got.X != rk.X || got.Y != rk.Y || got.Z != rk.Z {
		t.Errorf("LookupKeys = (%#x, %#x, %#x), want (%#x, %#x, %#x)",
			got.X, got.Y, got.Z, rk.X, rk.Y, rk.Z)
	}
}

func TestSQLiteLookupMiss(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.LookupKeys("nope", "file", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupKeys on empty db: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	db := openTestDB(t)

	rk := RecoveredKeys{ArchiveSHA256: "abc", Member: "f", X: 1, Y: 2, Z: 3, FoundAt: time.Now()}
	if err := db.RecordKeys(rk); err != nil {
		t.Fatalf("RecordKeys: %v", err)
	}
	rk.X, rk.Y, rk.Z = 4, 5, 6
	if err := db.RecordKeys(rk); err != nil {
		t.Fatalf("RecordKeys (overwrite): %v", err)
	}

	got, err := db.LookupKeys("abc", "f", 0)
	if err != nil {
		t.Fatalf("LookupKeys: %v", err)
	}
	if got.X != 4 || got.Y != 5 || got.Z != 6 {
		t.Errorf("LookupKeys after overwrite = (%d, %d, %d), want (4, 5, 6)", got.X, got.Y, got.Z)
	}
}

func TestSQLiteLookupArchive(t *testing.T) {
	db := openTestDB(t)

	for i, member := range []string{"a", "b", "c"} {
		rk := RecoveredKeys{
			ArchiveSHA256: "abc",
			Member:        member,
			X:             uint32(i),
			FoundAt:       time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := db.RecordKeys(rk); err != nil {
			t.Fatalf("RecordKeys(%q): %v", member, err)
		}
	}

	all, err := db.LookupArchive("abc")
	if err != nil {
		t.Fatalf("LookupArchive: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("LookupArchive returned %d rows, want 3", len(all))
	}
	if all[0].Member != "c" {
		t.Errorf("newest first: got %q, want %q", all[0].Member, "c")
	}
}
