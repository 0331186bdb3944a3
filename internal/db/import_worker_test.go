package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/waypost-data/tracklog/internal/timeutil"
)

func newTestImporter(db *DB) *TraceImporter {
	imp := NewTraceImporter(db, nil)
	imp.Clock = timeutil.NewMockClock(time.Unix(1700000000, 0))
	return imp
}

// With the default windows the first 60 observations only warm up the rolling
// state, so staging 70 points at one-second cadence stores the last 10.
func TestImportTraceStationary(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "alps-2025", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "train-to-base", "heavy-rail", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 0, 7.1, 46.1, 500)

	summary, err := newTestImporter(db).ImportTrace(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("ImportTrace failed: %v", err)
	}

	if summary.PointsInserted != 10 {
		t.Errorf("PointsInserted = %d, want 10", summary.PointsInserted)
	}
	if summary.SegmentsInBatch != 1 {
		t.Errorf("SegmentsInBatch = %d, want 1", summary.SegmentsInBatch)
	}
	if summary.SegmentsAggregated != 1 {
		t.Errorf("SegmentsAggregated = %d, want 1", summary.SegmentsAggregated)
	}
	if summary.PointsQuarantined != 0 {
		t.Errorf("PointsQuarantined = %d, want 0", summary.PointsQuarantined)
	}
	if len(summary.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", summary.Warnings)
	}
	if summary.RunID == "" {
		t.Error("RunID is empty")
	}

	points, err := db.GetPointsForStep(step.ID)
	if err != nil {
		t.Fatalf("GetPointsForStep failed: %v", err)
	}
	if len(points) != 10 {
		t.Fatalf("stored %d points, want 10", len(points))
	}
	for i, p := range points {
		if want := int64(1060 + i); p.UnixTime != want {
			t.Errorf("points[%d].UnixTime = %d, want %d", i, p.UnixTime, want)
		}
		if p.MotionState == nil || *p.MotionState != "stopped" {
			t.Errorf("points[%d].MotionState = %v, want stopped", i, p.MotionState)
		}
		if p.StepSeconds != 1 {
			t.Errorf("points[%d].StepSeconds = %d, want 1", i, p.StepSeconds)
		}
		if p.StepMeters != 0 {
			t.Errorf("points[%d].StepMeters = %v, want 0", i, p.StepMeters)
		}
		if p.RollingSpeed10 != 0 || p.RollingSpeed60 != 0 {
			t.Errorf("points[%d] rolling speeds = %v/%v, want 0/0",
				i, p.RollingSpeed10, p.RollingSpeed60)
		}
	}

	reloaded, err := db.GetTripStep(step.ID)
	if err != nil {
		t.Fatalf("GetTripStep failed: %v", err)
	}
	if reloaded.TotalSeconds == nil || *reloaded.TotalSeconds != 10 {
		t.Errorf("TotalSeconds = %v, want 10", reloaded.TotalSeconds)
	}
	if reloaded.MovingSeconds == nil || *reloaded.MovingSeconds != 0 {
		t.Errorf("MovingSeconds = %v, want 0", reloaded.MovingSeconds)
	}
	if reloaded.AvgSpeed == nil || *reloaded.AvgSpeed != 0 {
		t.Errorf("AvgSpeed = %v, want 0", reloaded.AvgSpeed)
	}
	if reloaded.MovingAvgSpeed != nil {
		t.Errorf("MovingAvgSpeed = %v, want nil when nothing moved", *reloaded.MovingAvgSpeed)
	}
	if reloaded.MinElevation == nil || *reloaded.MinElevation != 500 ||
		reloaded.MaxElevation == nil || *reloaded.MaxElevation != 500 {
		t.Errorf("elevation range = %v..%v, want 500..500", reloaded.MinElevation, reloaded.MaxElevation)
	}
	if reloaded.Trajectory == nil || !strings.HasPrefix(*reloaded.Trajectory, "LINESTRING") {
		t.Errorf("Trajectory = %v, want a LINESTRING", reloaded.Trajectory)
	}
}

func TestImportTraceQuarantinesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "dup-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 10, 7.1, 46.1, 500)

	// Two observations share t=1070. The second one sits 20s from its next
	// neighbor, so it is the ghost and gets quarantined.
	extra := []RawTracePoint{
		{Seq: 71, UnixTime: 1070, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
		{Seq: 72, UnixTime: 1070, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
		{Seq: 73, UnixTime: 1090, Speed: 10, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.1},
	}
	if err := db.InsertRawTracePoints(extra); err != nil {
		t.Fatalf("InsertRawTracePoints failed: %v", err)
	}

	imp := newTestImporter(db)
	summary, err := imp.ImportTrace(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("ImportTrace failed: %v", err)
	}

	if summary.PointsQuarantined != 1 {
		t.Errorf("PointsQuarantined = %d, want 1", summary.PointsQuarantined)
	}
	if summary.PointsInserted != 12 {
		t.Errorf("PointsInserted = %d, want 12", summary.PointsInserted)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "quarantined 1 duplicate") {
		t.Errorf("Warnings = %v, want one quarantine warning", summary.Warnings)
	}

	quarantined, err := db.ListQuarantinedPointsForRun(summary.RunID)
	if err != nil {
		t.Fatalf("ListQuarantinedPointsForRun failed: %v", err)
	}
	if len(quarantined) != 1 {
		t.Fatalf("got %d quarantined points, want 1", len(quarantined))
	}
	q := quarantined[0]
	if q.RawSeq != 72 {
		t.Errorf("RawSeq = %d, want 72", q.RawSeq)
	}
	if q.UnixTime != 1070 {
		t.Errorf("UnixTime = %d, want 1070", q.UnixTime)
	}
	if q.StepID != step.ID {
		t.Errorf("StepID = %d, want %d", q.StepID, step.ID)
	}
	if q.RunID != summary.RunID {
		t.Errorf("RunID = %q, want %q", q.RunID, summary.RunID)
	}
	if q.QuarantinedAtUnix != 1700000000 {
		t.Errorf("QuarantinedAtUnix = %d, want 1700000000", q.QuarantinedAtUnix)
	}

	// The surviving twin made it into storage.
	points, err := db.GetPointsForStep(step.ID)
	if err != nil {
		t.Fatalf("GetPointsForStep failed: %v", err)
	}
	found := false
	for _, p := range points {
		if p.UnixTime == 1070 {
			found = true
		}
	}
	if !found {
		t.Error("no stored point at t=1070; the surviving duplicate was lost")
	}
}

func TestImportTraceDropsImplausibleJump(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "jump-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 1, 7.1, 46.0, 500)

	// 0.018 degrees of latitude in one second is roughly 2km, far past the
	// step ceiling. The point is noise and is discarded, not quarantined.
	jump := []RawTracePoint{
		{Seq: 71, UnixTime: 1070, Speed: 1, Elevation: 500, HDOP: 1.0, Lon: 7.1, Lat: 46.018},
	}
	if err := db.InsertRawTracePoints(jump); err != nil {
		t.Fatalf("InsertRawTracePoints failed: %v", err)
	}

	summary, err := newTestImporter(db).ImportTrace(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("ImportTrace failed: %v", err)
	}

	if summary.PointsInserted != 10 {
		t.Errorf("PointsInserted = %d, want 10", summary.PointsInserted)
	}
	if summary.PointsQuarantined != 0 {
		t.Errorf("PointsQuarantined = %d, want 0", summary.PointsQuarantined)
	}

	points, err := db.GetPointsForStep(step.ID)
	if err != nil {
		t.Fatalf("GetPointsForStep failed: %v", err)
	}
	for _, p := range points {
		if p.UnixTime == 1070 {
			t.Error("implausible jump at t=1070 was stored")
		}
	}

	quarantined, err := db.ListQuarantinedPoints(10)
	if err != nil {
		t.Fatalf("ListQuarantinedPoints failed: %v", err)
	}
	if len(quarantined) != 0 {
		t.Errorf("got %d quarantined points, want 0; noise is discarded outright", len(quarantined))
	}
}

func TestImportTraceNoOverlappingPoints(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "empty-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)

	// All staged observations fall outside the trip window.
	stageConstantPoints(t, db, 1, 5000, 20, 1, 7.1, 46.0, 500)

	summary, err := newTestImporter(db).ImportTrace(context.Background(), trip.ID)
	if !errors.Is(err, ErrNoTracePoints) {
		t.Fatalf("ImportTrace error = %v, want ErrNoTracePoints", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil on error", summary)
	}

	count, err := db.CountPointsForTrip(trip.ID)
	if err != nil {
		t.Fatalf("CountPointsForTrip failed: %v", err)
	}
	if count != 0 {
		t.Errorf("stored %d points, want 0", count)
	}

	reloaded, err := db.GetTripStep(step.ID)
	if err != nil {
		t.Fatalf("GetTripStep failed: %v", err)
	}
	if reloaded.Trajectory != nil {
		t.Errorf("Trajectory = %q, want nil after failed import", *reloaded.Trajectory)
	}
}

func TestImportTraceTripWithoutSteps(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "stepless", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 1, 7.1, 46.0, 500)

	_, err := newTestImporter(db).ImportTrace(context.Background(), trip.ID)
	if !errors.Is(err, ErrNoTracePoints) {
		t.Fatalf("ImportTrace error = %v, want ErrNoTracePoints", err)
	}
}

func TestImportTraceTripNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	_, err := newTestImporter(db).ImportTrace(context.Background(), 999)
	if err == nil || !strings.Contains(err.Error(), "trip 999 not found") {
		t.Fatalf("ImportTrace error = %v, want trip not found", err)
	}
}

// Re-running an import is a no-op: point inserts collide on (step, timestamp)
// and the aggregate update only fires while the trajectory is still NULL.
func TestImportTraceRerunLeavesAggregatesAlone(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "rerun-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "walk", "foot", 1000, 2000)
	stageConstantPoints(t, db, 1, 1000, 70, 0, 7.1, 46.1, 500)

	imp := newTestImporter(db)
	if _, err := imp.ImportTrace(context.Background(), trip.ID); err != nil {
		t.Fatalf("first ImportTrace failed: %v", err)
	}

	before, err := db.GetTripStep(step.ID)
	if err != nil {
		t.Fatalf("GetTripStep failed: %v", err)
	}

	second, err := imp.ImportTrace(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("second ImportTrace failed: %v", err)
	}

	if second.PointsInserted != 0 {
		t.Errorf("PointsInserted = %d, want 0 on re-run", second.PointsInserted)
	}
	if second.SegmentsInBatch != 1 {
		t.Errorf("SegmentsInBatch = %d, want 1", second.SegmentsInBatch)
	}
	if second.SegmentsAggregated != 0 {
		t.Errorf("SegmentsAggregated = %d, want 0 on re-run", second.SegmentsAggregated)
	}
	if len(second.Warnings) != 1 || !strings.Contains(second.Warnings[0], "already aggregated") {
		t.Errorf("Warnings = %v, want one already-aggregated warning", second.Warnings)
	}

	after, err := db.GetTripStep(step.ID)
	if err != nil {
		t.Fatalf("GetTripStep failed: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("step changed across re-run (-before +after):\n%s", diff)
	}
}

// GNSS receivers drift a meter or so while parked. Those sub-floor step
// distances snap to zero and the points classify as stopped.
func TestImportTraceDriftSnapsToZero(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	trip := createTestTrip(t, db, "drift-trip", 1000, 2000)
	step := createTestStep(t, db, trip.ID, "outbound", "wait", "foot", 1000, 2000)

	points := make([]RawTracePoint, 0, 70)
	for i := 0; i < 70; i++ {
		points = append(points, RawTracePoint{
			Seq:       int64(i + 1),
			UnixTime:  1000 + int64(i),
			Speed:     0.5,
			Elevation: 500,
			HDOP:      1.0,
			Lon:       7.1,
			Lat:       46.1 + float64(i)*0.000005, // ~0.56m per second
		})
	}
	if err := db.InsertRawTracePoints(points); err != nil {
		t.Fatalf("InsertRawTracePoints failed: %v", err)
	}

	if _, err := newTestImporter(db).ImportTrace(context.Background(), trip.ID); err != nil {
		t.Fatalf("ImportTrace failed: %v", err)
	}

	stored, err := db.GetPointsForStep(step.ID)
	if err != nil {
		t.Fatalf("GetPointsForStep failed: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("stored %d points, want 10", len(stored))
	}
	for i, p := range stored {
		if p.StepMeters != 0 {
			t.Errorf("stored[%d].StepMeters = %v, want 0 after drift snap", i, p.StepMeters)
		}
		if p.MotionState == nil || *p.MotionState != "stopped" {
			t.Errorf("stored[%d].MotionState = %v, want stopped", i, p.MotionState)
		}
	}
}
