package db

// stepWindow is the time coverage of one trip step as loaded by the import
// pipeline.
type stepWindow struct {
	ID        int64
	Leg       string
	Step      string
	StartUnix int64
	EndUnix   int64
}

// TracePoint is a raw observation resolved to the trip step whose time range
// contains it. The working set stays in device sequence order through every
// pipeline stage.
type TracePoint struct {
	Seq       int64
	StepID    int64
	UnixTime  int64
	Speed     float64
	Elevation float64
	HDOP      float64
	Lon       float64
	Lat       float64
}

// resolveSteps maps each raw observation onto its owning step. Observations
// that fall outside every step window are dropped without diagnostics; gaps
// between steps are an expected property of the itinerary, not an error.
func resolveSteps(raw []RawTracePoint, steps []stepWindow) []TracePoint {
	var working []TracePoint
	for _, r := range raw {
		for i := range steps {
			s := &steps[i]
			if r.UnixTime >= s.StartUnix && r.UnixTime <= s.EndUnix {
				working = append(working, TracePoint{
					Seq:       r.Seq,
					StepID:    s.ID,
					UnixTime:  r.UnixTime,
					Speed:     r.Speed,
					Elevation: r.Elevation,
					HDOP:      r.HDOP,
					Lon:       r.Lon,
					Lat:       r.Lat,
				})
				break
			}
		}
	}
	return working
}
