package db

import (
	"errors"
	"fmt"
)

// ErrNoTracePoints is returned when no staged observation resolves to any
// step of the trip. Nothing is written in that case.
var ErrNoTracePoints = errors.New("no trace points resolve to any step of the trip")

// ErrResidualDuplicates is returned when shared timestamps survive
// deduplication. The run aborts rather than loading ambiguous points.
var ErrResidualDuplicates = errors.New("duplicate timestamps remain after deduplication")

// DuplicateResolver decides which members of shared-timestamp groups get
// quarantined. Resolve returns indexes into the sequence-ordered working set;
// the pipeline removes those points and preserves them for review.
type DuplicateResolver interface {
	Resolve(points []TracePoint) []int
}

// NeighborGapResolver implements the sequence-neighbor policy: a point that
// shares its timestamp with another point is rejected when either adjacent
// point in sequence order sits more than GapSeconds away in time. The point
// whose local timeline is continuous survives.
type NeighborGapResolver struct {
	GapSeconds int64
}

func (r *NeighborGapResolver) Resolve(points []TracePoint) []int {
	counts := make(map[int64]int, len(points))
	for _, p := range points {
		counts[p.UnixTime]++
	}

	var marked []int
	for i, p := range points {
		if counts[p.UnixTime] < 2 {
			continue
		}
		if i > 0 && absInt64(p.UnixTime-points[i-1].UnixTime) > r.GapSeconds {
			marked = append(marked, i)
			continue
		}
		if i < len(points)-1 && absInt64(points[i+1].UnixTime-p.UnixTime) > r.GapSeconds {
			marked = append(marked, i)
		}
	}

	return marked
}

// partitionByIndex splits the working set into kept and dropped points. The
// drop list holds indexes into points, in any order.
func partitionByIndex(points []TracePoint, drop []int) (kept, dropped []TracePoint) {
	if len(drop) == 0 {
		return points, nil
	}

	dropSet := make(map[int]struct{}, len(drop))
	for _, i := range drop {
		dropSet[i] = struct{}{}
	}

	kept = make([]TracePoint, 0, len(points)-len(dropSet))
	for i, p := range points {
		if _, ok := dropSet[i]; ok {
			dropped = append(dropped, p)
			continue
		}
		kept = append(kept, p)
	}

	return kept, dropped
}

// validateDistinctTimestamps confirms deduplication actually resolved every
// group: the working set must hold exactly one point per timestamp.
func validateDistinctTimestamps(points []TracePoint) error {
	seen := make(map[int64]struct{}, len(points))
	for _, p := range points {
		seen[p.UnixTime] = struct{}{}
	}

	if len(seen) != len(points) {
		return fmt.Errorf("%d points but %d distinct timestamps: %w", len(points), len(seen), ErrResidualDuplicates)
	}

	return nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
