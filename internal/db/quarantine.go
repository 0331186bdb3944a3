package db

import (
	"database/sql"
	"fmt"
)

// QuarantinedPoint preserves a raw observation that deduplication rejected,
// verbatim, for manual review. Rows are append-only; nothing in the pipeline
// ever updates or deletes them.
type QuarantinedPoint struct {
	ID                int64   `json:"id"`
	RawSeq            int64   `json:"raw_seq"`
	StepID            int64   `json:"step_id"`
	UnixTime          int64   `json:"unix_time"`
	Speed             float64 `json:"speed"`
	Elevation         float64 `json:"elevation"`
	HDOP              float64 `json:"hdop"`
	Lon               float64 `json:"lon"`
	Lat               float64 `json:"lat"`
	RunID             string  `json:"run_id"`
	QuarantinedAtUnix int64   `json:"quarantined_at_unix"`
}

const quarantineColumns = `id, raw_seq, step_id, unix_time, speed, elevation, hdop, lon, lat, run_id, quarantined_at_unix`

// ListQuarantinedPoints returns the most recently quarantined points, newest
// first.
func (db *DB) ListQuarantinedPoints(limit int) ([]QuarantinedPoint, error) {
	rows, err := db.Query(`
		SELECT `+quarantineColumns+`
		FROM quarantined_points ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarantined points: %w", err)
	}
	defer rows.Close()

	return scanQuarantinedPoints(rows)
}

// ListQuarantinedPointsForRun returns every point a single import run
// quarantined, in sequence order.
func (db *DB) ListQuarantinedPointsForRun(runID string) ([]QuarantinedPoint, error) {
	rows, err := db.Query(`
		SELECT `+quarantineColumns+`
		FROM quarantined_points WHERE run_id = ? ORDER BY raw_seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarantined points: %w", err)
	}
	defer rows.Close()

	return scanQuarantinedPoints(rows)
}

func scanQuarantinedPoints(rows *sql.Rows) ([]QuarantinedPoint, error) {
	var points []QuarantinedPoint
	for rows.Next() {
		var p QuarantinedPoint
		if err := rows.Scan(
			&p.ID, &p.RawSeq, &p.StepID, &p.UnixTime, &p.Speed,
			&p.Elevation, &p.HDOP, &p.Lon, &p.Lat, &p.RunID, &p.QuarantinedAtUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quarantined point: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quarantined points: %w", err)
	}

	return points, nil
}
