package db

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// windowEntry is one observation's contribution to the trailing windows.
type windowEntry struct {
	unixTime int64
	speed    float64
	meters   float64
	lon      float64
	lat      float64
}

// rollingWindows maintains trailing averages over the working set in a single
// pass. The ring holds the last max(farWin, longWin+1) entries so the far
// distance window and the extended lag lookup never need a rescan.
type rollingWindows struct {
	shortWin int
	longWin  int
	farWin   int

	size int // ring capacity
	n    int // entries pushed so far
	ring []windowEntry

	sumSpeedShort float64
	sumSpeedLong  float64
	sumDistShort  float64
	sumDistLong   float64
	sumDistFar    float64
}

func newRollingWindows(shortWin, longWin, farWin int) *rollingWindows {
	size := farWin
	if longWin+1 > size {
		size = longWin + 1
	}
	return &rollingWindows{
		shortWin: shortWin,
		longWin:  longWin,
		farWin:   farWin,
		size:     size,
		ring:     make([]windowEntry, size),
	}
}

// push adds the next entry in sequence order. Departing entries are read out
// of the ring before the new entry overwrites its slot.
func (rw *rollingWindows) push(e windowEntry) {
	i := rw.n

	if i >= rw.shortWin {
		dep := rw.ring[(i-rw.shortWin)%rw.size]
		rw.sumSpeedShort -= dep.speed
		rw.sumDistShort -= dep.meters
	}
	if i >= rw.longWin {
		dep := rw.ring[(i-rw.longWin)%rw.size]
		rw.sumSpeedLong -= dep.speed
		rw.sumDistLong -= dep.meters
	}
	if i >= rw.farWin {
		dep := rw.ring[(i-rw.farWin)%rw.size]
		rw.sumDistFar -= dep.meters
	}

	rw.ring[i%rw.size] = e
	rw.sumSpeedShort += e.speed
	rw.sumSpeedLong += e.speed
	rw.sumDistShort += e.meters
	rw.sumDistLong += e.meters
	rw.sumDistFar += e.meters
	rw.n++
}

// at returns the entry back positions behind the most recent push.
func (rw *rollingWindows) at(back int) (windowEntry, bool) {
	if back < 0 || back >= rw.n || back >= rw.size {
		return windowEntry{}, false
	}
	return rw.ring[(rw.n-1-back)%rw.size], true
}

// Trailing averages divide by the entries actually inside the window, so a
// partially filled window averages what it has instead of padding with zeros.

func (rw *rollingWindows) avgSpeedShort() float64 {
	return rw.sumSpeedShort / float64(minInt(rw.n, rw.shortWin))
}

func (rw *rollingWindows) avgSpeedLong() float64 {
	return rw.sumSpeedLong / float64(minInt(rw.n, rw.longWin))
}

func (rw *rollingWindows) avgDistShort() float64 {
	return rw.sumDistShort / float64(minInt(rw.n, rw.shortWin))
}

func (rw *rollingWindows) avgDistLong() float64 {
	return rw.sumDistLong / float64(minInt(rw.n, rw.longWin))
}

func (rw *rollingWindows) avgDistFar() float64 {
	return rw.sumDistFar / float64(minInt(rw.n, rw.farWin))
}

// enrichedPoint carries a working point plus its lag deltas and rolling
// kinematics. Motion stays MotionUnclassified until the classifier runs.
type enrichedPoint struct {
	TracePoint

	StepSeconds int64   // elapsed since the previous point in sequence
	StepMeters  float64 // ground distance from the previous point
	LongSeconds int64   // elapsed since the point longWin positions back
	LongMeters  float64 // ground distance from that same point

	RollSpeedShort float64
	RollSpeedLong  float64
	RollDistShort  float64
	RollDistLong   float64
	RollDistFar    float64

	Motion MotionState
}

// enrichKinematics computes lag deltas and trailing averages over the whole
// working set in sequence order. Windows run across step boundaries; the step
// split happens at load time, not here.
//
// The first longWin points feed the windows but are not emitted: they have no
// extended-lag predecessor, and their young windows would skew everything
// computed from them.
func enrichKinematics(points []TracePoint, shortWin, longWin, farWin int) []enrichedPoint {
	rw := newRollingWindows(shortWin, longWin, farWin)

	var out []enrichedPoint
	for i, p := range points {
		var stepSeconds int64
		var stepMeters float64
		if i > 0 {
			prev := points[i-1]
			stepSeconds = p.UnixTime - prev.UnixTime
			stepMeters = geo.Distance(orb.Point{prev.Lon, prev.Lat}, orb.Point{p.Lon, p.Lat})
		}

		rw.push(windowEntry{
			unixTime: p.UnixTime,
			speed:    p.Speed,
			meters:   stepMeters,
			lon:      p.Lon,
			lat:      p.Lat,
		})

		lag, ok := rw.at(longWin)
		if !ok {
			continue
		}

		out = append(out, enrichedPoint{
			TracePoint:     p,
			StepSeconds:    stepSeconds,
			StepMeters:     stepMeters,
			LongSeconds:    p.UnixTime - lag.unixTime,
			LongMeters:     geo.Distance(orb.Point{lag.lon, lag.lat}, orb.Point{p.Lon, p.Lat}),
			RollSpeedShort: rw.avgSpeedShort(),
			RollSpeedLong:  rw.avgSpeedLong(),
			RollDistShort:  rw.avgDistShort(),
			RollDistLong:   rw.avgDistLong(),
			RollDistFar:    rw.avgDistFar(),
		})
	}

	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
