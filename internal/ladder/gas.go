package ladder

// GasLadderCost computes the cost of a volume under piecewise-cumulative
// banding: usage within each crossed band is charged at that band's own
// rate, and the reported stage/price are those of the last band touched
// (the marginal rate, matching billing convention).
//
// Zero volume or an empty band table yields (stage 1, price 0, cost 0):
// providers return zero usage for brand-new accounts and that is not an
// error.
func GasLadderCost(volume float64, bands TierTable) GasLadderResult {
	if len(bands) == 0 || volume == 0 {
		return GasLadderResult{Stage: 1, UnitPrice: 0, TotalCost: 0}
	}

	remaining := volume
	var cost float64
	var stage int
	var price float64

	for i, b := range bands {
		capacity := b.Capacity()
		if remaining <= capacity {
			cost += remaining * b.Price
			stage = i + 1
			price = b.Price
			break
		}
		cost += capacity * b.Price
		remaining -= capacity
		stage = i + 1
		price = b.Price
	}

	return GasLadderResult{Stage: stage, UnitPrice: price, TotalCost: round2(cost)}
}

// GasDailyVolume is one trailing-window daily record.
type GasDailyVolume struct {
	Date   string  `json:"date"`
	Volume float64 `json:"volume"`
}

// RecentWindowCost sums a trailing window of daily volumes and prices the
// sum at the current marginal rate. The true cost would integrate the price
// across any band crossed inside the window; that is a known simplification
// and the result is flagged approximate, not corrected.
func RecentWindowCost(days []GasDailyVolume, marginalPrice float64) (volume, cost float64) {
	for _, d := range days {
		volume += d.Volume
	}
	return volume, round2(volume * marginalPrice)
}
