package db

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StepAggregate is the per-step rollup an import run writes back onto
// trip_steps. MovingAvgSpeed is nil when a step has no moving points.
type StepAggregate struct {
	StepID         int64
	PointCount     int
	TotalSeconds   int64
	MovingSeconds  int64
	AvgSpeed       float64
	MovingAvgSpeed *float64
	MinElevation   float64
	AvgElevation   float64
	MaxElevation   float64
	Trajectory     string
}

// buildStepAggregates rolls the classified batch up per step. Moving time and
// moving speed exclude stopped points only; an unclassified point still
// counts as movement. The trajectory is the step's points ordered by
// timestamp, serialized as WKT.
func buildStepAggregates(points []enrichedPoint) []StepAggregate {
	byStep := make(map[int64][]enrichedPoint)
	for _, p := range points {
		byStep[p.StepID] = append(byStep[p.StepID], p)
	}

	stepIDs := make([]int64, 0, len(byStep))
	for id := range byStep {
		stepIDs = append(stepIDs, id)
	}
	sort.Slice(stepIDs, func(i, j int) bool { return stepIDs[i] < stepIDs[j] })

	var aggs []StepAggregate
	for _, stepID := range stepIDs {
		pts := byStep[stepID]

		byTime := make([]enrichedPoint, len(pts))
		copy(byTime, pts)
		sort.SliceStable(byTime, func(i, j int) bool { return byTime[i].UnixTime < byTime[j].UnixTime })

		speeds := make([]float64, 0, len(pts))
		elevations := make([]float64, 0, len(pts))
		var movingSpeeds []float64
		var totalSeconds, movingSeconds int64

		for _, p := range pts {
			totalSeconds += p.StepSeconds
			if p.Motion != MotionStopped {
				movingSeconds += p.StepSeconds
				movingSpeeds = append(movingSpeeds, p.Speed)
			}
			speeds = append(speeds, p.Speed)
			elevations = append(elevations, p.Elevation)
		}

		line := make(orb.LineString, 0, len(byTime))
		for _, p := range byTime {
			line = append(line, orb.Point{p.Lon, p.Lat})
		}

		agg := StepAggregate{
			StepID:        stepID,
			PointCount:    len(pts),
			TotalSeconds:  totalSeconds,
			MovingSeconds: movingSeconds,
			AvgSpeed:      stat.Mean(speeds, nil),
			MinElevation:  floats.Min(elevations),
			AvgElevation:  stat.Mean(elevations, nil),
			MaxElevation:  floats.Max(elevations),
			Trajectory:    wkt.MarshalString(line),
		}

		if len(movingSpeeds) > 0 {
			movingAvg := stat.Mean(movingSpeeds, nil)
			agg.MovingAvgSpeed = &movingAvg
		}

		aggs = append(aggs, agg)
	}

	return aggs
}
