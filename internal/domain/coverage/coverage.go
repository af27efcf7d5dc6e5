// Package coverage implements the per-song play-interval log: an
// append-only, union-of-intervals accumulator used to measure how much of a
// song was actually heard.
package coverage

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrInvalidInterval is returned when an interval cannot represent a valid
// span even after clamping to [0, duration].
var ErrInvalidInterval = errors.New("coverage: start after end")

// Interval is a play span expressed in seconds from the start of the song.
type Interval struct {
	Start float64
	End   float64
}

// Log accumulates Intervals for a single song. It is append-only from the
// caller's perspective and idempotent under duplicate inserts by virtue of
// its union semantics: adding the same interval twice never changes
// TotalCovered.
type Log struct {
	duration  float64
	intervals []Interval
}

// NewLog creates a Log bounded to [0, duration]. A non-positive duration
// means the upper bound is not enforced (used when the song's duration is
// unknown); negative positions are still clamped to 0.
func NewLog(duration float64) *Log {
	return &Log{duration: duration}
}

// Add appends an interval, clamping both bounds to [0, duration] first. An
// interval that becomes empty after clamping is silently dropped — it
// contributes nothing to the union, so dropping it rather than erroring
// keeps Add idempotent for the (start==end) case the spec calls out
// explicitly. Add only fails when, even after clamping, start still exceeds
// end — i.e. the caller passed an interval that was already backwards.
func (l *Log) Add(start, end float64) error {
	cs, ce := l.clamp(start), l.clamp(end)
	if cs > ce {
		return errors.Wrapf(ErrInvalidInterval, "start=%v end=%v", start, end)
	}
	if cs == ce {
		return nil
	}
	l.intervals = append(l.intervals, Interval{Start: cs, End: ce})
	return nil
}

func (l *Log) clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if l.duration > 0 && v > l.duration {
		return l.duration
	}
	return v
}

// TotalCovered returns the measure (in seconds) of the union of all
// recorded intervals: sort by start, sweep extending the current run while
// the next interval overlaps or touches it, flushing into the total
// otherwise. O(n log n) in the number of intervals, which is typically well
// under 20 per song.
func (l *Log) TotalCovered() float64 {
	if len(l.intervals) == 0 {
		return 0
	}

	sorted := make([]Interval, len(l.intervals))
	copy(sorted, l.intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var total float64
	curStart, curEnd := sorted[0].Start, sorted[0].End
	for _, iv := range sorted[1:] {
		if iv.Start <= curEnd {
			if iv.End > curEnd {
				curEnd = iv.End
			}
			continue
		}
		total += curEnd - curStart
		curStart, curEnd = iv.Start, iv.End
	}
	total += curEnd - curStart

	return total
}

// Clear discards all recorded intervals — used when a Stop event voids the
// listen.
func (l *Log) Clear() {
	l.intervals = nil
}

// Intervals returns a defensive copy of the recorded intervals as they were
// added (clamped, not merged). Callers that want the coverage measure should
// use TotalCovered.
func (l *Log) Intervals() []Interval {
	out := make([]Interval, len(l.intervals))
	copy(out, l.intervals)
	return out
}
