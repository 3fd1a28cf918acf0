package ladder

import "fmt"

// WaterRates holds the flat per-unit components of a water bill. Unlike the
// electricity and gas ladders these are not tier-banded: each rate applies
// to the whole billed usage.
type WaterRates struct {
	WaterRate  float64 `json:"water_rate"`
	SewageRate float64 `json:"sewage_rate"`
	GarbageFee float64 `json:"garbage_fee"`
}

// ResolveWaterStage looks up the ladder stage for a cumulative usage figure
// in a fixed ascending table. The walk returns the first band whose upper
// bound covers the usage; usage past every finite bound lands in the last,
// open-ended band. Never errors for usage >= 0.
func ResolveWaterStage(usage float64, table TierTable) (WaterStage, error) {
	if usage < 0 {
		return WaterStage{}, fmt.Errorf("%w: negative water usage %.2f", ErrInvalidUsage, usage)
	}
	if len(table) == 0 {
		return WaterStage{}, fmt.Errorf("%w: empty water tier table", ErrInvalidUsage)
	}
	for i, b := range table {
		if b.Max == nil || usage <= *b.Max {
			return WaterStage{Stage: i + 1, UnitPrice: b.Price}, nil
		}
	}
	last := table[len(table)-1]
	return WaterStage{Stage: len(table), UnitPrice: last.Price}, nil
}

// WaterBillBreakdown computes the fee components of one bimonthly bill.
// Each line item is rounded to 2 decimals before summing, matching the
// provider's own bill arithmetic exactly; rounding once at the end produces
// different totals and is wrong here.
func WaterBillBreakdown(billedUsage float64, rates WaterRates) (WaterBill, error) {
	if billedUsage < 0 {
		return WaterBill{}, fmt.Errorf("%w: negative billed usage %.2f", ErrInvalidUsage, billedUsage)
	}

	waterFee := round2(billedUsage * rates.WaterRate)
	sewageFee := round2(billedUsage * rates.SewageRate)
	garbageFee := rates.GarbageFee

	return WaterBill{
		BilledUsage:    billedUsage,
		WaterFee:       waterFee,
		SewageFee:      sewageFee,
		GarbageFee:     garbageFee,
		TotalCost:      round2(waterFee + sewageFee + garbageFee),
		MonthlyAverage: round2(billedUsage / 2),
	}, nil
}
