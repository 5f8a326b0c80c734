// Package consignment holds the pure range arithmetic behind consignment
// number allocation. Nothing here touches the database.
package consignment

import "math"

// MaxNumber is the highest assignable consignment number. It sits one
// below the int64 limit so End+1 is always representable.
const MaxNumber int64 = math.MaxInt64 - 1

// Range is a closed interval of consignment numbers.
type Range struct {
	Start int64
	End   int64
}

// Size is the count of numbers in r (End-Start+1). Malformed ranges have size 0.
func (r Range) Size() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether n lies inside r.
func (r Range) Contains(n int64) bool {
	return n >= r.Start && n <= r.End
}

// Overlaps reports whether r and o share at least one number.
func (r Range) Overlaps(o Range) bool {
	return o.Start <= r.End && o.End >= r.Start
}

// UsedCounter reports how many distinct numbers inside r are taken.
type UsedCounter func(r Range) (int64, error)

// FirstFree returns the lowest number in r that count does not report as
// taken. It bisects on counts, so a range costs O(log Size) calls no matter
// how many of its numbers are used.
func FirstFree(r Range, count UsedCounter) (int64, bool, error) {
	if r.Size() == 0 {
		return 0, false, nil
	}
	n, err := count(r)
	if err != nil {
		return 0, false, err
	}
	if n >= r.Size() {
		return 0, false, nil
	}

	// A free number always lies in [lo, hi].
	lo, hi := r.Start, r.End
	for lo < hi {
		mid := lo + (hi-lo)/2
		n, err := count(Range{Start: lo, End: mid})
		if err != nil {
			return 0, false, err
		}
		if n >= mid-lo+1 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, true, nil
}

// UsagePercentage is round(used/assigned*100); zero when nothing is assigned.
func UsagePercentage(used, assigned int64) int64 {
	if assigned <= 0 {
		return 0
	}
	return int64(math.Round(float64(used) / float64(assigned) * 100))
}

// SuggestAfter returns a range of count numbers starting right after
// highestEnd, but never below floor. ok is false when the range would run
// past MaxNumber.
func SuggestAfter(highestEnd, floor, count int64) (Range, bool) {
	if count < 1 {
		count = 1
	}
	start := floor
	if highestEnd >= floor {
		if highestEnd >= MaxNumber {
			return Range{}, false
		}
		start = highestEnd + 1
	}
	if start > MaxNumber || count-1 > MaxNumber-start {
		return Range{}, false
	}
	return Range{Start: start, End: start + count - 1}, true
}
