package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFileScanner(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version and checksums content", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{
			"m/010_later.sql":  {Data: []byte("CREATE TABLE b (id INTEGER);")},
			"m/002_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/README.md":      {Data: []byte("ignored")},
			"m/nested/003.sql": {Data: []byte("ignored")},
		}
		migrations, err := NewFileScanner(files).ScanMigrations("m")
		if err != nil {
			t.Fatalf("ScanMigrations failed: %v", err)
		}
		if len(migrations) != 2 || migrations[0].Version != "002" || migrations[1].Version != "010" {
			t.Fatalf("unexpected migrations: %#v", migrations)
		}
		if migrations[0].Description != "first" || len(migrations[0].Checksum) != 64 {
			t.Fatalf("unexpected metadata: %#v", migrations[0])
		}
	})

	t.Run("rejects malformed names", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}}
		_, err := NewFileScanner(files).ScanMigrations("m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("SELECT 1;")},
			"m/1_b.sql":   {Data: []byte("SELECT 1;")},
		}
		_, err := NewFileScanner(files).ScanMigrations("m")
		if err == nil {
			t.Fatal("expected duplicate version error")
		}
	})

	t.Run("rejects empty files", func(t *testing.T) {
		t.Parallel()

		files := fstest.MapFS{"m/001_empty.sql": {Data: []byte("  \n")}}
		_, err := NewFileScanner(files).ScanMigrations("m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestMigrationManager(t *testing.T) {
	t.Parallel()

	t.Run("applies pending migrations once", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{
			"m/001_create.sql": {Data: []byte("-- first\nCREATE TABLE things (id INTEGER PRIMARY KEY);")},
			"m/002_seed.sql":   {Data: []byte("INSERT INTO things (id) VALUES (1); INSERT INTO things (id) VALUES (2);")},
		}
		manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "m", nil)

		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}
		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("second RunMigrations failed: %v", err)
		}

		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM things`).Scan(&count); err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected seed to run once, got %d rows", count)
		}

		status, err := manager.GetMigrationStatus(ctx)
		if err != nil {
			t.Fatalf("GetMigrationStatus failed: %v", err)
		}
		if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
			t.Fatalf("unexpected status: %#v", status)
		}
	})

	t.Run("failed migration is rolled back and not recorded", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{
			"m/001_broken.sql": {Data: []byte("CREATE TABLE ok (id INTEGER); CREATE TABLE;")},
		}
		manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "m", nil)

		err := manager.RunMigrations(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}

		pending, err := manager.GetPendingMigrations(ctx)
		if err != nil {
			t.Fatalf("GetPendingMigrations failed: %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("expected broken migration to remain pending, got %d", len(pending))
		}
		var name string
		err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'ok'`).Scan(&name)
		if !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected partial migration to be rolled back, got %v", err)
		}
	})

	t.Run("detects modified applied migration", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{"m/001_create.sql": {Data: []byte("CREATE TABLE things (id INTEGER);")}}
		if err := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "m", nil).RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		files["m/001_create.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE things (id INTEGER, name TEXT);")}
		err := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "m", nil).RunMigrations(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("detects gaps in the sequence", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/003_c.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
		}
		err := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "m", nil).RunMigrations(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})
}
