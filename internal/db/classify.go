package db

import (
	"math"
)

// MotionState labels a point's instantaneous motion regime.
type MotionState string

const (
	// MotionUnclassified marks a point no rule matched. It is stored as
	// NULL, never coerced into a neighboring state.
	MotionUnclassified MotionState = ""

	MotionStopped      MotionState = "stopped"
	MotionCruising     MotionState = "cruising"
	MotionBraking      MotionState = "braking"
	MotionAccelerating MotionState = "accelerating"
	MotionFluctuating  MotionState = "fluctuating"
)

// classifierParams are the thresholds the motion rules compare against.
// stopSpeed doubles as the ceiling for the stationary-drift rule and the
// floor for the cruising rule.
type classifierParams struct {
	stopSpeed  float64 // m/s
	stopRadius float64 // trailing average metres tolerated while stopped
	cruiseBand float64 // relative deviation treated as steady cruising
	trendBand  float64 // relative deviation separating braking and accelerating
}

// classifyMotion runs the first-match rule cascade over one enriched point.
//
// Rule order is part of the contract: the stationary rules win over cruising,
// cruising wins over the trend rules. Relative deviation is only defined
// against a positive rolling average, so a point moving out of a dead-stop
// window (rolling averages still zero, raw speed nonzero) matches nothing and
// stays unclassified.
func classifyMotion(p *enrichedPoint, params classifierParams) MotionState {
	if p.Speed == 0 {
		return MotionStopped
	}

	if p.RollDistShort < params.stopRadius && p.Speed < params.stopSpeed && p.RollDistFar < params.stopRadius {
		return MotionStopped
	}

	if p.Speed > params.stopSpeed && p.RollSpeedShort > 0 && p.RollSpeedLong > 0 {
		devShort := relativeDeviation(p.Speed, p.RollSpeedShort)
		devLong := relativeDeviation(p.Speed, p.RollSpeedLong)
		if math.Abs(devShort) <= params.cruiseBand && math.Abs(devLong) <= params.cruiseBand {
			return MotionCruising
		}
	}

	if p.RollSpeedShort > 0 {
		dev := relativeDeviation(p.Speed, p.RollSpeedShort)
		switch {
		case dev < -params.trendBand:
			return MotionBraking
		case dev > params.trendBand:
			return MotionAccelerating
		default:
			return MotionFluctuating
		}
	}

	return MotionUnclassified
}

// relativeDeviation is (speed - rolling) / rolling. Callers must guard
// against a zero rolling average.
func relativeDeviation(speed, rolling float64) float64 {
	return (speed - rolling) / rolling
}
