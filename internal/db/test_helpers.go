package db

import (
	"os"
	"testing"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	db, err := NewDB(fname)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	fname := t.Name() + ".db"
	db.Close()
	_ = os.Remove(fname)
	_ = os.Remove(fname + "-shm")
	_ = os.Remove(fname + "-wal")
}

// createTestTrip creates a trip covering [startUnix, endUnix].
func createTestTrip(t *testing.T, db *DB, name string, startUnix, endUnix int64) *Trip {
	t.Helper()

	trip, err := db.CreateTrip(&Trip{
		Name:      name,
		StartUnix: startUnix,
		EndUnix:   endUnix,
	})
	if err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	return trip
}

// createTestStep creates a step for the trip using the given travel mode
// name from the seeded lookup.
func createTestStep(t *testing.T, db *DB, tripID int64, leg, step, mode string, startUnix, endUnix int64) *TripStep {
	t.Helper()

	travelMode, err := db.GetTravelModeByName(mode)
	if err != nil {
		t.Fatalf("GetTravelModeByName(%q) failed: %v", mode, err)
	}

	created, err := db.CreateTripStep(&TripStep{
		TripID:       tripID,
		Leg:          leg,
		Step:         step,
		StartUnix:    startUnix,
		EndUnix:      endUnix,
		TravelModeID: travelMode.ID,
	})
	if err != nil {
		t.Fatalf("CreateTripStep failed: %v", err)
	}
	return created
}

// stageConstantPoints stages n observations at one-second cadence starting at
// startUnix, all sharing the same speed, location and elevation. Sequence
// numbers run from startSeq.
func stageConstantPoints(t *testing.T, db *DB, startSeq, startUnix int64, n int, speed, lon, lat, elevation float64) {
	t.Helper()

	points := make([]RawTracePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, RawTracePoint{
			Seq:       startSeq + int64(i),
			UnixTime:  startUnix + int64(i),
			Speed:     speed,
			Elevation: elevation,
			HDOP:      1.0,
			Lon:       lon,
			Lat:       lat,
		})
	}

	if err := db.InsertRawTracePoints(points); err != nil {
		t.Fatalf("InsertRawTracePoints failed: %v", err)
	}
}
