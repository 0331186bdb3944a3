package db

import (
	"fmt"
)

// TrackPoint is one cleaned, classified observation persisted for a trip
// step. MotionState is nil when the classifier could not place the point in
// any regime.
type TrackPoint struct {
	ID             int64   `json:"id"`
	StepID         int64   `json:"step_id"`
	UnixTime       int64   `json:"unix_time"`
	Speed          float64 `json:"speed"`
	RollingSpeed10 float64 `json:"rolling_speed_10"`
	RollingSpeed60 float64 `json:"rolling_speed_60"`
	Elevation      float64 `json:"elevation"`
	StepMeters     float64 `json:"step_meters"`
	StepSeconds    int64   `json:"step_seconds"`
	HDOP           float64 `json:"hdop"`
	Lon            float64 `json:"lon"`
	Lat            float64 `json:"lat"`
	MotionState    *string `json:"motion_state"`
}

// GetPointsForStep returns a step's stored points ordered by timestamp.
func (db *DB) GetPointsForStep(stepID int64) ([]TrackPoint, error) {
	rows, err := db.Query(`
		SELECT id, step_id, unix_time, speed, rolling_speed_10, rolling_speed_60,
		       elevation, step_meters, step_seconds, hdop, lon, lat, motion_state
		FROM track_points WHERE step_id = ? ORDER BY unix_time
	`, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track points: %w", err)
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(
			&p.ID, &p.StepID, &p.UnixTime, &p.Speed, &p.RollingSpeed10, &p.RollingSpeed60,
			&p.Elevation, &p.StepMeters, &p.StepSeconds, &p.HDOP, &p.Lon, &p.Lat, &p.MotionState,
		); err != nil {
			return nil, fmt.Errorf("failed to scan track point: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating track points: %w", err)
	}

	return points, nil
}

// CountPointsForTrip returns the number of stored points across all steps of
// a trip.
func (db *DB) CountPointsForTrip(tripID int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM track_points p
		JOIN trip_steps s ON s.id = p.step_id
		WHERE s.trip_id = ?
	`, tripID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count track points: %w", err)
	}

	return count, nil
}
