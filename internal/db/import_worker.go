package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/waypost-data/tracklog/internal/config"
	"github.com/waypost-data/tracklog/internal/timeutil"
	"github.com/waypost-data/tracklog/internal/units"
)

// Summary reports what one import run committed.
type Summary struct {
	RunID              string   `json:"run_id"`
	PointsInserted     int      `json:"points_inserted"`
	SegmentsInBatch    int      `json:"segments_in_batch"`
	SegmentsAggregated int      `json:"segments_aggregated"`
	PointsQuarantined  int      `json:"points_quarantined"`
	Warnings           []string `json:"warnings,omitempty"`
}

// TraceImporter runs the trace import pipeline for one trip at a time:
// resolve staged observations onto steps, deduplicate, enrich, filter noise,
// classify, then load points and step aggregates in a single transaction.
//
// Concurrent imports of different trips are safe. Two simultaneous imports of
// the same trip are not coordinated; callers must serialize those.
type TraceImporter struct {
	DB       *DB
	Tuning   *config.PipelineTuning
	Resolver DuplicateResolver
	Clock    timeutil.Clock
}

// NewTraceImporter creates an importer with the default duplicate policy and
// the real clock. A nil tuning config means built-in defaults throughout.
func NewTraceImporter(database *DB, tuning *config.PipelineTuning) *TraceImporter {
	if tuning == nil {
		tuning = config.EmptyPipelineTuning()
	}
	return &TraceImporter{
		DB:       database,
		Tuning:   tuning,
		Resolver: &NeighborGapResolver{GapSeconds: tuning.GetDuplicateGapSeconds()},
		Clock:    timeutil.RealClock{},
	}
}

// ImportTrace imports every staged observation inside the trip's time range.
// All writes, including quarantine rows, commit together or not at all.
func (w *TraceImporter) ImportTrace(ctx context.Context, tripID int64) (*Summary, error) {
	runID := uuid.New().String()
	started := w.Clock.Now()
	logger := log.With().Str("run_id", runID).Int64("trip_id", tripID).Logger()

	summary := &Summary{RunID: runID}

	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Warn().Err(err).Msg("failed to rollback import transaction")
		}
	}()

	// Load the trip window and its step windows.
	var tripName string
	var tripStart, tripEnd int64
	err = tx.QueryRowContext(ctx, `
		SELECT name, start_unix, end_unix FROM trips WHERE id = ?
	`, tripID).Scan(&tripName, &tripStart, &tripEnd)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %d not found", tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	steps, err := loadStepWindowsTx(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("trip %q has no steps: %w", tripName, ErrNoTracePoints)
	}

	stepsByID := make(map[int64]stepWindow, len(steps))
	for _, s := range steps {
		stepsByID[s.ID] = s
	}

	// Stage 1: resolve raw observations onto steps.
	raw, err := loadRawPointsTx(ctx, tx, tripStart, tripEnd)
	if err != nil {
		return nil, err
	}

	working := resolveSteps(raw, steps)
	if len(working) == 0 {
		return nil, fmt.Errorf("trip %q: %w", tripName, ErrNoTracePoints)
	}
	logger.Debug().
		Int("raw_points", len(raw)).
		Int("resolved_points", len(working)).
		Msg("resolved observations onto steps")

	// Stage 2: deduplicate shared timestamps, quarantining the losers.
	marked := w.Resolver.Resolve(working)
	working, quarantined := partitionByIndex(working, marked)

	if len(quarantined) > 0 {
		if err := insertQuarantineTx(ctx, tx, quarantined, runID, w.Clock.Now().Unix()); err != nil {
			return nil, err
		}
		summary.PointsQuarantined = len(quarantined)
		warning := fmt.Sprintf("quarantined %d duplicate point(s) for review", len(quarantined))
		summary.Warnings = append(summary.Warnings, warning)
		logger.Warn().Int("quarantined", len(quarantined)).Msg("duplicate points quarantined")
	}

	if err := validateDistinctTimestamps(working); err != nil {
		return nil, fmt.Errorf("trip %q: %w", tripName, err)
	}

	// Stage 3: lag deltas and rolling windows.
	enriched := enrichKinematics(working,
		w.Tuning.GetShortWindow(),
		w.Tuning.GetLongWindow(),
		w.Tuning.GetDistanceWindow(),
	)
	logger.Debug().
		Int("working_points", len(working)).
		Int("enriched_points", len(enriched)).
		Msg("computed kinematics")

	// Stage 4: receiver-noise gates.
	kept := filterNoise(enriched,
		w.Tuning.GetMaxGapSeconds(),
		w.Tuning.GetMaxStepMeters(),
		w.Tuning.GetDriftFloorMeters(),
	)
	if dropped := len(enriched) - len(kept); dropped > 0 {
		logger.Debug().Int("dropped", dropped).Msg("noise gates dropped points")
	}

	// Stage 5: motion classification.
	params := classifierParams{
		stopSpeed:  w.Tuning.GetStopSpeed(),
		stopRadius: w.Tuning.GetStopRadiusMeters(),
		cruiseBand: w.Tuning.GetCruiseBand(),
		trendBand:  w.Tuning.GetTrendBand(),
	}
	unclassified := 0
	for i := range kept {
		kept[i].Motion = classifyMotion(&kept[i], params)
		if kept[i].Motion == MotionUnclassified {
			unclassified++
		}
	}
	if unclassified > 0 {
		logger.Warn().Int("unclassified", unclassified).Msg("points matched no motion rule")
	}

	// Stage 6: load points, then step aggregates.
	inserted, err := insertTrackPointsTx(ctx, tx, kept)
	if err != nil {
		return nil, err
	}
	summary.PointsInserted = inserted

	aggs := buildStepAggregates(kept)
	summary.SegmentsInBatch = len(aggs)

	updated, err := updateStepAggregatesTx(ctx, tx, aggs)
	if err != nil {
		return nil, err
	}
	summary.SegmentsAggregated = updated

	if skipped := len(aggs) - updated; skipped > 0 {
		warning := fmt.Sprintf("%d of %d segment(s) in batch were already aggregated and left untouched", skipped, len(aggs))
		summary.Warnings = append(summary.Warnings, warning)
		logger.Warn().Int("skipped", skipped).Int("in_batch", len(aggs)).Msg("segments already aggregated")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	for _, agg := range aggs {
		step := stepsByID[agg.StepID]
		event := logger.Info().
			Str("leg", step.Leg).
			Str("step", step.Step).
			Int("points", agg.PointCount).
			Int64("total_seconds", agg.TotalSeconds).
			Int64("moving_seconds", agg.MovingSeconds).
			Float64("avg_speed_kmph", units.ConvertSpeed(agg.AvgSpeed, units.KMPH))
		if agg.MovingAvgSpeed != nil {
			event = event.Float64("moving_avg_speed_kmph", units.ConvertSpeed(*agg.MovingAvgSpeed, units.KMPH))
		}
		event.Msg("step aggregated")
	}

	logger.Info().
		Int("points_inserted", summary.PointsInserted).
		Int("segments_in_batch", summary.SegmentsInBatch).
		Int("segments_aggregated", summary.SegmentsAggregated).
		Int("points_quarantined", summary.PointsQuarantined).
		Dur("elapsed", w.Clock.Since(started)).
		Msg("trace import complete")

	return summary, nil
}

func loadStepWindowsTx(ctx context.Context, tx *sql.Tx, tripID int64) ([]stepWindow, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, leg, step, start_unix, end_unix
		FROM trip_steps WHERE trip_id = ? ORDER BY start_unix
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip steps: %w", err)
	}
	defer rows.Close()

	var steps []stepWindow
	for rows.Next() {
		var s stepWindow
		if err := rows.Scan(&s.ID, &s.Leg, &s.Step, &s.StartUnix, &s.EndUnix); err != nil {
			return nil, fmt.Errorf("failed to scan trip step: %w", err)
		}
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip steps: %w", err)
	}

	return steps, nil
}

func insertQuarantineTx(ctx context.Context, tx *sql.Tx, points []TracePoint, runID string, quarantinedAt int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quarantined_points (
			raw_seq, step_id, unix_time, speed, elevation, hdop, lon, lat,
			run_id, quarantined_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare quarantine insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			p.Seq, p.StepID, p.UnixTime, p.Speed, p.Elevation, p.HDOP, p.Lon, p.Lat,
			runID, quarantinedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to quarantine point seq %d: %w", p.Seq, err)
		}
	}

	return nil
}

// insertTrackPointsTx loads the classified batch. Points whose (step,
// timestamp) pair already exists are left untouched; the returned count is
// rows actually inserted, not batch size.
func insertTrackPointsTx(ctx context.Context, tx *sql.Tx, points []enrichedPoint) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_points (
			step_id, unix_time, speed, rolling_speed_10, rolling_speed_60,
			elevation, step_meters, step_seconds, hdop, lon, lat, motion_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (step_id, unix_time) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		result, err := stmt.ExecContext(ctx,
			p.StepID, p.UnixTime, p.Speed, p.RollSpeedShort, p.RollSpeedLong,
			p.Elevation, p.StepMeters, p.StepSeconds, p.HDOP, p.Lon, p.Lat,
			motionStateValue(p.Motion),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert point seq %d: %w", p.Seq, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(rows)
	}

	return inserted, nil
}

// updateStepAggregatesTx writes each step's rollup, but only where no
// trajectory exists yet. Aggregates are write-once; a step that already has
// one keeps it.
func updateStepAggregatesTx(ctx context.Context, tx *sql.Tx, aggs []StepAggregate) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE trip_steps SET
			total_seconds = ?, moving_seconds = ?, avg_speed = ?, moving_avg_speed = ?,
			min_elevation = ?, avg_elevation = ?, max_elevation = ?, trajectory = ?,
			updated_at = UNIXEPOCH()
		WHERE id = ? AND trajectory IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare aggregate update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, agg := range aggs {
		result, err := stmt.ExecContext(ctx,
			agg.TotalSeconds, agg.MovingSeconds, agg.AvgSpeed, agg.MovingAvgSpeed,
			agg.MinElevation, agg.AvgElevation, agg.MaxElevation, agg.Trajectory,
			agg.StepID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update aggregates for step %d: %w", agg.StepID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		updated += int(rows)
	}

	return updated, nil
}

// motionStateValue maps MotionUnclassified to NULL for storage.
func motionStateValue(m MotionState) *string {
	if m == MotionUnclassified {
		return nil
	}
	s := string(m)
	return &s
}
