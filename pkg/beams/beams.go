// Package beams distributes a telescopic length change across the
// extending segments of a crane arm.
//
// The allocator is greedy and deterministic: an equal first share per
// segment, then repeated equal splits of the remainder among segments that
// still have room in the needed direction, until the remainder is gone,
// nothing can move, or a round makes no progress.
package beams

import (
	"math"

	"github.com/teslashibe/go-technocrane/pkg/geom"
	"github.com/teslashibe/go-technocrane/pkg/joints"
)

const (
	// Threshold is the boundary margin and convergence tolerance.
	Threshold = 0.001

	// DefaultMinLength is how far a segment may over-retract into its parent.
	DefaultMinLength = -2.0

	// maxRounds bounds the redistribution loop independently of the stall guard.
	maxRounds = 1000
)

// Segment is one telescoping beam as seen by the allocator.
// Segments are built fresh for each re-extension and discarded after
// their adjustments are applied.
type Segment struct {
	Joint joints.JointID
	Bone  int

	Current    float64
	Min        float64
	Max        float64
	Adjustment float64
}

// Adjusted returns the segment length after its adjustment.
func (s *Segment) Adjusted() float64 {
	return s.Current + s.Adjustment
}

// canExtend and canShrink report headroom past the boundary margin.
func (s *Segment) canExtend() bool { return s.Adjusted() < s.Max-Threshold }
func (s *Segment) canShrink() bool { return s.Adjusted() > s.Min+Threshold }

// take clamps a requested increment and books it on the segment.
//
// The first clamp bounds the increment by the segment's absolute length
// range [Min, Max], not by its remaining headroom. The second keeps the
// adjusted length inside [Min, Max].
func (s *Segment) take(request float64) float64 {
	inc := geom.Clamp(request, s.Min, s.Max)
	inc = geom.Clamp(inc, s.Min-s.Adjusted(), s.Max-s.Adjusted())
	s.Adjustment += inc
	return inc
}

// Outcome reports how an allocation ended.
type Outcome struct {
	// Required is targetLength - baseLength.
	Required float64

	// Residual is the part of Required no segment could absorb.
	Residual float64

	// Rounds counts redistribution passes after the first share.
	Rounds int

	// Stalled is set when a residual beyond Threshold remains.
	Stalled bool
}

// Allocated returns the total adjustment placed on the segments.
func (o Outcome) Allocated() float64 {
	return o.Required - o.Residual
}

// Allocate sets each segment's Adjustment so that together they cover
// targetLength - baseLength as closely as their ranges allow. Adjustments
// from a previous call are discarded.
func Allocate(segs []Segment, targetLength, baseLength float64) Outcome {
	required := targetLength - baseLength
	out := Outcome{Required: required}

	for i := range segs {
		segs[i].Adjustment = 0
	}

	if math.Abs(required) < geom.NearlyZero {
		return out
	}
	if len(segs) == 0 {
		out.Residual = required
		out.Stalled = math.Abs(required) > Threshold
		return out
	}

	remaining := required
	share := required / float64(len(segs))
	for i := range segs {
		remaining -= segs[i].take(share)
	}

	for math.Abs(remaining) > Threshold && out.Rounds < maxRounds {
		eligible := 0
		for i := range segs {
			if movable(&segs[i], remaining) {
				eligible++
			}
		}
		if eligible == 0 {
			break
		}

		out.Rounds++
		per := remaining / float64(eligible)
		before := remaining
		for i := range segs {
			if movable(&segs[i], before) {
				remaining -= segs[i].take(per)
			}
		}

		if math.Abs(remaining-before) < Threshold {
			break
		}
	}

	out.Residual = remaining
	out.Stalled = math.Abs(remaining) > Threshold
	return out
}

func movable(s *Segment, remaining float64) bool {
	switch {
	case remaining > 0:
		return s.canExtend()
	case remaining < 0:
		return s.canShrink()
	}
	return false
}

// TotalAdjustment sums the adjustments of segs.
func TotalAdjustment(segs []Segment) float64 {
	var sum float64
	for i := range segs {
		sum += segs[i].Adjustment
	}
	return sum
}
