package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Trip is a named journey whose steps partition its time range.
type Trip struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	StartUnix   int64     `json:"start_unix"`
	EndUnix     int64     `json:"end_unix"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TripStep is the smallest scheduled unit of a trip: one travel mode over a
// time window disjoint from its siblings. The aggregate fields stay nil until
// an import run fills them in.
type TripStep struct {
	ID             int64    `json:"id"`
	TripID         int64    `json:"trip_id"`
	Leg            string   `json:"leg"`
	Step           string   `json:"step"`
	StartUnix      int64    `json:"start_unix"`
	EndUnix        int64    `json:"end_unix"`
	TravelModeID   int64    `json:"travel_mode_id"`
	TotalSeconds   *int64   `json:"total_seconds,omitempty"`
	MovingSeconds  *int64   `json:"moving_seconds,omitempty"`
	AvgSpeed       *float64 `json:"avg_speed,omitempty"`
	MovingAvgSpeed *float64 `json:"moving_avg_speed,omitempty"`
	MinElevation   *float64 `json:"min_elevation,omitempty"`
	AvgElevation   *float64 `json:"avg_elevation,omitempty"`
	MaxElevation   *float64 `json:"max_elevation,omitempty"`
	Trajectory     *string  `json:"trajectory,omitempty"`
}

// CreateTrip inserts a new trip and returns it with the assigned ID.
func (db *DB) CreateTrip(trip *Trip) (*Trip, error) {
	if trip.Name == "" {
		return nil, fmt.Errorf("trip name is required")
	}
	if trip.StartUnix >= trip.EndUnix {
		return nil, fmt.Errorf("trip start must precede trip end")
	}

	result, err := db.Exec(`
		INSERT INTO trips (name, description, start_unix, end_unix)
		VALUES (?, ?, ?, ?)
	`, trip.Name, trip.Description, trip.StartUnix, trip.EndUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get trip ID: %w", err)
	}

	return db.GetTrip(id)
}

// GetTrip retrieves a trip by ID.
func (db *DB) GetTrip(id int64) (*Trip, error) {
	var trip Trip
	var createdAt, updatedAt int64

	err := db.QueryRow(`
		SELECT id, name, description, start_unix, end_unix, created_at, updated_at
		FROM trips WHERE id = ?
	`, id).Scan(&trip.ID, &trip.Name, &trip.Description, &trip.StartUnix, &trip.EndUnix, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	trip.CreatedAt = time.Unix(createdAt, 0).UTC()
	trip.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &trip, nil
}

// GetTripByName retrieves a trip by its unique name.
func (db *DB) GetTripByName(name string) (*Trip, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM trips WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return db.GetTrip(id)
}

// GetAllTrips returns all trips ordered by start time.
func (db *DB) GetAllTrips() ([]Trip, error) {
	rows, err := db.Query(`
		SELECT id, name, description, start_unix, end_unix, created_at, updated_at
		FROM trips ORDER BY start_unix
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var trip Trip
		var createdAt, updatedAt int64
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.Description, &trip.StartUnix, &trip.EndUnix, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trip.CreatedAt = time.Unix(createdAt, 0).UTC()
		trip.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		trips = append(trips, trip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}

	return trips, nil
}

// UpdateTrip updates a trip's name, description and time range.
func (db *DB) UpdateTrip(trip *Trip) error {
	if trip.StartUnix >= trip.EndUnix {
		return fmt.Errorf("trip start must precede trip end")
	}

	result, err := db.Exec(`
		UPDATE trips
		SET name = ?, description = ?, start_unix = ?, end_unix = ?, updated_at = UNIXEPOCH()
		WHERE id = ?
	`, trip.Name, trip.Description, trip.StartUnix, trip.EndUnix, trip.ID)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("trip not found")
	}

	return nil
}

// CreateTripStep inserts a new step for a trip. The step's time range must
// not intersect any sibling step's range; ranges are treated as closed
// intervals, so even sharing a boundary second counts as overlap.
func (db *DB) CreateTripStep(step *TripStep) (*TripStep, error) {
	if step.Leg == "" || step.Step == "" {
		return nil, fmt.Errorf("step leg and name are required")
	}
	if step.StartUnix >= step.EndUnix {
		return nil, fmt.Errorf("step start must precede step end")
	}

	var overlapID int64
	err := db.QueryRow(`
		SELECT id FROM trip_steps
		WHERE trip_id = ? AND start_unix <= ? AND end_unix >= ?
		LIMIT 1
	`, step.TripID, step.EndUnix, step.StartUnix).Scan(&overlapID)
	if err == nil {
		return nil, fmt.Errorf("step time range overlaps existing step %d", overlapID)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check step overlap: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO trip_steps (trip_id, leg, step, start_unix, end_unix, travel_mode_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, step.TripID, step.Leg, step.Step, step.StartUnix, step.EndUnix, step.TravelModeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get step ID: %w", err)
	}

	return db.GetTripStep(id)
}

// GetTripStep retrieves a single step by ID.
func (db *DB) GetTripStep(id int64) (*TripStep, error) {
	var step TripStep
	err := db.QueryRow(`
		SELECT id, trip_id, leg, step, start_unix, end_unix, travel_mode_id,
		       total_seconds, moving_seconds, avg_speed, moving_avg_speed,
		       min_elevation, avg_elevation, max_elevation, trajectory
		FROM trip_steps WHERE id = ?
	`, id).Scan(
		&step.ID, &step.TripID, &step.Leg, &step.Step, &step.StartUnix, &step.EndUnix, &step.TravelModeID,
		&step.TotalSeconds, &step.MovingSeconds, &step.AvgSpeed, &step.MovingAvgSpeed,
		&step.MinElevation, &step.AvgElevation, &step.MaxElevation, &step.Trajectory,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip step not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip step: %w", err)
	}

	return &step, nil
}

// GetTripSteps returns all steps of a trip ordered by start time.
func (db *DB) GetTripSteps(tripID int64) ([]TripStep, error) {
	rows, err := db.Query(`
		SELECT id, trip_id, leg, step, start_unix, end_unix, travel_mode_id,
		       total_seconds, moving_seconds, avg_speed, moving_avg_speed,
		       min_elevation, avg_elevation, max_elevation, trajectory
		FROM trip_steps WHERE trip_id = ? ORDER BY start_unix
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip steps: %w", err)
	}
	defer rows.Close()

	var steps []TripStep
	for rows.Next() {
		var step TripStep
		if err := rows.Scan(
			&step.ID, &step.TripID, &step.Leg, &step.Step, &step.StartUnix, &step.EndUnix, &step.TravelModeID,
			&step.TotalSeconds, &step.MovingSeconds, &step.AvgSpeed, &step.MovingAvgSpeed,
			&step.MinElevation, &step.AvgElevation, &step.MaxElevation, &step.Trajectory,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trip step: %w", err)
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip steps: %w", err)
	}

	return steps, nil
}
