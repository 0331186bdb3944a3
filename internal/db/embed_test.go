package db

import (
	"io/fs"
	"testing"
)

// TestEmbeddedMigrationsFS verifies the embedded migrations filesystem structure
func TestEmbeddedMigrationsFS(t *testing.T) {
	// Test with DevMode off (embedded FS)
	origDevMode := DevMode
	DevMode = false
	defer func() { DevMode = origDevMode }()

	// The embed directive roots the FS at the package directory, so the
	// migration files live under migrations/.
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("Failed to read migrations/ subdirectory: %v", err)
	}
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		t.Logf("  %s", entry.Name())
		names[entry.Name()] = true
	}

	for _, want := range []string{
		"0001_trip_schema.up.sql",
		"0001_trip_schema.down.sql",
		"0002_raw_trace_points.up.sql",
		"0002_raw_trace_points.down.sql",
	} {
		if !names[want] {
			t.Errorf("embedded migrations missing %s", want)
		}
	}

	// getMigrationsFS strips the migrations/ prefix so migrate sees the
	// files at the root.
	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}

	if _, err := fs.Stat(migFS, "0001_trip_schema.up.sql"); err != nil {
		t.Errorf("getMigrationsFS result missing 0001_trip_schema.up.sql: %v", err)
	}

	latest, err := GetLatestMigrationVersion(migFS)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest migration version = %d, want 2", latest)
	}
}
