package db

import (
	"context"
	"database/sql"
	"fmt"
)

// RawTracePoint is one staged GNSS observation awaiting import. Seq is the
// receiver's native write sequence and is authoritative for ordering even
// when timestamps disagree.
type RawTracePoint struct {
	Seq       int64   `json:"seq"`
	UnixTime  int64   `json:"unix_time"`
	Speed     float64 `json:"speed"`
	Elevation float64 `json:"elevation"`
	HDOP      float64 `json:"hdop"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
}

// InsertRawTracePoints stages a batch of observations in one transaction.
// Points carry their device-assigned sequence numbers.
func (db *DB) InsertRawTracePoints(points []RawTracePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO raw_trace_points (seq, unix_time, speed, elevation, hdop, lon, lat)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.Seq, p.UnixTime, p.Speed, p.Elevation, p.HDOP, p.Lon, p.Lat); err != nil {
			return fmt.Errorf("failed to insert raw point seq %d: %w", p.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit raw points: %w", err)
	}

	return nil
}

// GetRawTracePointsInRange returns staged observations whose timestamps fall
// inside [startUnix, endUnix], in sequence order.
func (db *DB) GetRawTracePointsInRange(startUnix, endUnix int64) ([]RawTracePoint, error) {
	rows, err := db.Query(rawPointsInRangeSQL, startUnix, endUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw points: %w", err)
	}
	defer rows.Close()

	return scanRawTracePoints(rows)
}

const rawPointsInRangeSQL = `
	SELECT seq, unix_time, speed, elevation, hdop, lon, lat
	FROM raw_trace_points
	WHERE unix_time BETWEEN ? AND ?
	ORDER BY seq
`

// loadRawPointsTx is the transaction-scoped variant used by the import
// pipeline.
func loadRawPointsTx(ctx context.Context, tx *sql.Tx, startUnix, endUnix int64) ([]RawTracePoint, error) {
	rows, err := tx.QueryContext(ctx, rawPointsInRangeSQL, startUnix, endUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw points: %w", err)
	}
	defer rows.Close()

	return scanRawTracePoints(rows)
}

func scanRawTracePoints(rows *sql.Rows) ([]RawTracePoint, error) {
	var points []RawTracePoint
	for rows.Next() {
		var p RawTracePoint
		if err := rows.Scan(&p.Seq, &p.UnixTime, &p.Speed, &p.Elevation, &p.HDOP, &p.Lon, &p.Lat); err != nil {
			return nil, fmt.Errorf("failed to scan raw point: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw points: %w", err)
	}

	return points, nil
}
