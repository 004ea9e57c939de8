package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Overlaps is the single overlap predicate in this repository. Intervals are
// half-open [start,end): touching intervals do not conflict.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func OverlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(iv, b) {
			return true
		}
	}
	return false
}
