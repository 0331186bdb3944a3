package db

import (
	"database/sql"
	"fmt"
)

// TravelMode is one entry of the closed travel-mode lookup seeded by the
// schema migrations.
type TravelMode struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GetTravelModes returns all travel modes ordered by id.
func (db *DB) GetTravelModes() ([]TravelMode, error) {
	rows, err := db.Query(`SELECT id, name FROM travel_modes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query travel modes: %w", err)
	}
	defer rows.Close()

	var modes []TravelMode
	for rows.Next() {
		var mode TravelMode
		if err := rows.Scan(&mode.ID, &mode.Name); err != nil {
			return nil, fmt.Errorf("failed to scan travel mode: %w", err)
		}
		modes = append(modes, mode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating travel modes: %w", err)
	}

	return modes, nil
}

// GetTravelModeByName retrieves a travel mode by its name.
func (db *DB) GetTravelModeByName(name string) (*TravelMode, error) {
	var mode TravelMode
	err := db.QueryRow(`SELECT id, name FROM travel_modes WHERE name = ?`, name).
		Scan(&mode.ID, &mode.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("travel mode not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get travel mode: %w", err)
	}

	return &mode, nil
}
