package ladder

import (
	"fmt"
	"math"
)

// TierBand is one pricing band of a ladder tariff. Max == nil means the band
// is open-ended (no upper bound).
type TierBand struct {
	Name  string   `json:"name"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Price float64  `json:"price"`
}

// Capacity returns the volume the band can absorb before the next band
// starts, or +Inf for the open-ended band.
func (b TierBand) Capacity() float64 {
	if b.Max == nil {
		return math.Inf(1)
	}
	return *b.Max - b.Min
}

// Contains reports whether a cumulative usage value falls inside the band.
// The lower bound is inclusive, the upper bound exclusive.
func (b TierBand) Contains(usage float64) bool {
	if usage < b.Min {
		return false
	}
	return b.Max == nil || usage < *b.Max
}

// TierTable is an ordered list of bands, ascending by Min.
type TierTable []TierBand

// Validate checks the structural invariants of a ladder table: non-empty,
// contiguous, non-overlapping, ascending, and exactly the last band
// open-ended.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty tier table", ErrInvalidUsage)
	}
	for i, b := range t {
		last := i == len(t)-1
		if b.Max == nil && !last {
			return fmt.Errorf("tier table: band %d (%s) is open-ended but not last", i+1, b.Name)
		}
		if b.Max != nil {
			if last {
				return fmt.Errorf("tier table: last band %q must be open-ended", b.Name)
			}
			if *b.Max <= b.Min {
				return fmt.Errorf("tier table: band %d (%s) has max %.2f <= min %.2f", i+1, b.Name, *b.Max, b.Min)
			}
			if t[i+1].Min != *b.Max {
				return fmt.Errorf("tier table: gap between band %d and %d (%.2f != %.2f)", i+1, i+2, *b.Max, t[i+1].Min)
			}
		}
	}
	return nil
}

// round2 matches the provider apps' rounding of currency amounts.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LookupBand returns the 1-based index of the band containing the given
// cumulative usage. Negative usage and empty tables are input-contract
// violations, not band misses.
func LookupBand(t TierTable, usage float64) (int, TierBand, error) {
	if usage < 0 {
		return 0, TierBand{}, fmt.Errorf("%w: negative cumulative usage %.2f", ErrInvalidUsage, usage)
	}
	if len(t) == 0 {
		return 0, TierBand{}, fmt.Errorf("%w: empty tier table", ErrInvalidUsage)
	}
	for i, b := range t {
		if b.Contains(usage) {
			return i + 1, b, nil
		}
	}
	return 0, TierBand{}, fmt.Errorf("%w: usage %.2f not covered by any band", ErrUnresolvedTier, usage)
}
