package db

// filterNoise applies the receiver-noise gates to the enriched working set,
// in order: negative elapsed (timeline inversion), elapsed beyond maxGap
// (tunnel or cold-start gap), step distance beyond maxStep (position jump),
// then snapping sub-floor drift distances to exactly zero. Points cut by one
// gate never reach the next, and only surviving points get the drift snap.
//
// Dropped points are noise, not data: they are discarded outright rather than
// quarantined.
func filterNoise(points []enrichedPoint, maxGapSeconds int64, maxStepMeters, driftFloorMeters float64) []enrichedPoint {
	var kept []enrichedPoint
	for _, p := range points {
		if p.StepSeconds < 0 {
			continue
		}
		if p.StepSeconds > maxGapSeconds {
			continue
		}
		if p.StepMeters > maxStepMeters {
			continue
		}
		if p.StepMeters > 0 && p.StepMeters < driftFloorMeters {
			p.StepMeters = 0
		}
		kept = append(kept, p)
	}
	return kept
}
