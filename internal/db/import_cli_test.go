package db

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/waypost-data/tracklog/internal/units"
)

func TestRunImportPrintsSummary(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "cli-trip", 1000, 2000)
	createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 0, 7.1, 46.1, 500)

	var buf bytes.Buffer
	cli := NewImportCLI(db, nil, &buf)

	summary, err := cli.RunImport(context.Background(), "cli-trip", 0)
	if err != nil {
		t.Fatalf("RunImport failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "=== Trace Import Summary ===") {
		t.Errorf("output missing summary header:\n%s", out)
	}
	if !strings.Contains(out, summary.RunID) {
		t.Errorf("output missing run ID %s:\n%s", summary.RunID, out)
	}
	if !strings.Contains(out, "Points inserted:     10") {
		t.Errorf("output missing insert count:\n%s", out)
	}
	if strings.Contains(out, "Warnings:") {
		t.Errorf("output has warnings section for a clean run:\n%s", out)
	}
}

func TestRunImportPrintsWarnings(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "warn-trip", 1000, 2000)
	createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 10, 7.1, 46.1, 500)
	extra := []RawTracePoint{
		{Seq: 71, UnixTime: 1070, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
		{Seq: 72, UnixTime: 1070, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
		{Seq: 73, UnixTime: 1090, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
	}
	if err := db.InsertRawTracePoints(extra); err != nil {
		t.Fatalf("InsertRawTracePoints failed: %v", err)
	}

	var buf bytes.Buffer
	cli := NewImportCLI(db, nil, &buf)

	if _, err := cli.RunImport(context.Background(), "", trip.ID); err != nil {
		t.Fatalf("RunImport failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Warnings:") {
		t.Errorf("output missing warnings section:\n%s", out)
	}
	if !strings.Contains(out, "quarantined 1 duplicate") {
		t.Errorf("output missing quarantine warning:\n%s", out)
	}
}

func TestRunImportRequiresTripNameOrID(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	cli := NewImportCLI(db, nil, &bytes.Buffer{})
	_, err := cli.RunImport(context.Background(), "", 0)
	if err == nil || !strings.Contains(err.Error(), "trip name or a trip ID is required") {
		t.Fatalf("RunImport error = %v, want missing-trip error", err)
	}
}

func TestRunImportUnknownTripName(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	cli := NewImportCLI(db, nil, &bytes.Buffer{})
	_, err := cli.RunImport(context.Background(), "no-such-trip", 0)
	if err == nil || !strings.Contains(err.Error(), "trip not found") {
		t.Fatalf("RunImport error = %v, want trip not found", err)
	}
}

func TestShowQuarantineEmpty(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	var buf bytes.Buffer
	cli := NewImportCLI(db, nil, &buf)

	if err := cli.ShowQuarantine("", 50, units.MPS); err != nil {
		t.Fatalf("ShowQuarantine failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No quarantined points found") {
		t.Errorf("output = %q, want empty-list message", buf.String())
	}
}

func TestShowQuarantineInvalidUnit(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	cli := NewImportCLI(db, nil, &bytes.Buffer{})
	err := cli.ShowQuarantine("", 50, "furlongs")
	if err == nil || !strings.Contains(err.Error(), "invalid unit") {
		t.Fatalf("ShowQuarantine error = %v, want invalid unit", err)
	}
}

func TestShowQuarantineConvertsSpeeds(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "q-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)

	_, err := db.Exec(`
		INSERT INTO quarantined_points (
			raw_seq, step_id, unix_time, speed, elevation, hdop, lon, lat,
			run_id, quarantined_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, 42, step.ID, 1500, 10.0, 500.0, 1.0, 7.1, 46.1, "run-abc", 1700000000)
	if err != nil {
		t.Fatalf("failed to insert quarantined point: %v", err)
	}

	var buf bytes.Buffer
	cli := NewImportCLI(db, nil, &buf)

	if err := cli.ShowQuarantine("run-abc", 0, units.KMPH); err != nil {
		t.Fatalf("ShowQuarantine failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "SPEED (kmph)") {
		t.Errorf("output missing unit header:\n%s", out)
	}
	if !strings.Contains(out, "36.00") {
		t.Errorf("output missing converted speed 36.00:\n%s", out)
	}
	if !strings.Contains(out, "run-abc") {
		t.Errorf("output missing run ID:\n%s", out)
	}
	if !strings.Contains(out, "1 point(s)") {
		t.Errorf("output missing count line:\n%s", out)
	}
}
