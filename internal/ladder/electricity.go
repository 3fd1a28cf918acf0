package ladder

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// TierNameEntry maps one provider tier name to a band index. The provider
// wraps names in decorations ("【居民阶梯一】"), so matching is by substring.
type TierNameEntry struct {
	Name string `json:"name"`
	Band int    `json:"band"`
}

// TierNameTable is an ordered name→band vocabulary. Order matters: the
// first matching entry wins.
type TierNameTable []TierNameEntry

// Match returns the band index for a provider tier name, or false when no
// entry matches.
func (t TierNameTable) Match(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, e := range t {
		if strings.Contains(name, e.Name) {
			return e.Band, true
		}
	}
	return 0, false
}

// AnnualTierInfo is the parsed annual tier-info response: the provider's own
// view of the current ladder state plus the full band table in effect.
type AnnualTierInfo struct {
	BusinessDate    string
	CurrentTierName string
	CumulativeUsage *float64
	Price           *float64
	Remaining       *float64
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	Table           TierTable
}

// ResolveElectricityDirect resolves the current tier from a dedicated
// tier-info response. The tier name is matched against the configured
// vocabulary first; on a miss the cumulative usage is located in the
// returned band table. If both fail the tier is unresolved - never guessed.
func ResolveElectricityDirect(info AnnualTierInfo, names TierNameTable) (*TierResolution, error) {
	band, ok := names.Match(info.CurrentTierName)
	if !ok {
		if info.CumulativeUsage == nil {
			return nil, fmt.Errorf("%w: tier name %q not in vocabulary and no cumulative usage to locate",
				ErrUnresolvedTier, info.CurrentTierName)
		}
		var err error
		band, _, err = LookupBand(info.Table, *info.CumulativeUsage)
		if err != nil {
			return nil, fmt.Errorf("tier name %q not in vocabulary: %w", info.CurrentTierName, err)
		}
	}

	b := band
	return &TierResolution{
		Band:            &b,
		Name:            info.CurrentTierName,
		Price:           info.Price,
		Remaining:       info.Remaining,
		PeriodStart:     info.PeriodStart,
		PeriodEnd:       info.PeriodEnd,
		CumulativeUsage: info.CumulativeUsage,
	}, nil
}

// ResolveElectricityDerived resolves the current tier from a cumulative
// yearly kWh figure and a reference band table. Remaining is nil in the
// open-ended top band.
func ResolveElectricityDerived(cumulative float64, table TierTable) (*TierResolution, error) {
	band, b, err := LookupBand(table, cumulative)
	if err != nil {
		return nil, err
	}

	var remaining *float64
	if b.Max != nil {
		r := *b.Max - cumulative
		remaining = &r
	}

	idx := band
	price := b.Price
	usage := cumulative
	return &TierResolution{
		Band:            &idx,
		Name:            b.Name,
		Price:           &price,
		Remaining:       remaining,
		CumulativeUsage: &usage,
	}, nil
}

// MonthDetail is the parsed day-charge response for one month. Every field
// is independently nullable; the provider frequently returns the daily list
// with the totals and ladder block missing.
type MonthDetail struct {
	TotalUsage      *float64
	TotalCost       *float64
	LadderBand      *int
	LadderStart     *time.Time
	LadderRemaining *float64
	Tariff          *float64
	Days            []DailyCharge
}

// ReconcileMonth combines a month-detail response into a
// MonthlyCostBreakdown. Per day, an explicit charge wins; otherwise the
// charge is derived from that day's usage and the month tariff. The month
// total is likewise derived when absent, which is an approximation: a tier
// change mid-month makes usage x current-tariff inexact by construction.
func ReconcileMonth(period UsagePeriod, d MonthDetail) MonthlyCostBreakdown {
	perDay := make([]DailyCharge, 0, len(d.Days))
	for _, day := range d.Days {
		cost := day.Cost
		if cost == nil && day.Usage != nil && d.Tariff != nil {
			c := round2(*day.Usage * *d.Tariff)
			cost = &c
		}
		perDay = append(perDay, DailyCharge{Date: day.Date, Usage: day.Usage, Cost: cost})
	}

	totalCost := d.TotalCost
	if totalCost == nil && d.TotalUsage != nil && d.Tariff != nil {
		c := round2(*d.TotalUsage * *d.Tariff)
		totalCost = &c
		log.Printf("ladder: month %s total cost derived from %.2f kWh x %.4f tariff (approximate, ignores mid-month tier changes)",
			period.Key(), *d.TotalUsage, *d.Tariff)
	}

	var res *TierResolution
	if d.LadderBand != nil || d.Tariff != nil || d.LadderRemaining != nil || d.LadderStart != nil {
		res = &TierResolution{
			Band:        d.LadderBand,
			Price:       d.Tariff,
			Remaining:   d.LadderRemaining,
			PeriodStart: d.LadderStart,
		}
	}

	return MonthlyCostBreakdown{
		Period:     period,
		TotalUsage: d.TotalUsage,
		TotalCost:  totalCost,
		PerDay:     perDay,
		Ladder:     res,
	}
}

// EstimateMonth builds the coarse month view used when the day-charge
// endpoint fails with a provider error. The tier comes from the yearly
// cumulative figure over the reference table; the cost is derived from the
// month usage when the yearly stats did not carry it. The result never has
// per-day records and is flagged Estimated so callers can tell it apart
// from authoritative data.
func EstimateMonth(period UsagePeriod, yearCumulative float64, monthUsage, monthCost *float64, table TierTable) (MonthlyCostBreakdown, error) {
	res, err := ResolveElectricityDerived(yearCumulative, table)
	if err != nil {
		return MonthlyCostBreakdown{}, err
	}

	totalCost := monthCost
	if totalCost == nil && monthUsage != nil && res.Price != nil {
		c := round2(*monthUsage * *res.Price)
		totalCost = &c
		log.Printf("ladder: month %s cost estimated from %.2f kWh x %.4f tariff (band %d)",
			period.Key(), *monthUsage, *res.Price, *res.Band)
	}

	return MonthlyCostBreakdown{
		Period:     period,
		TotalUsage: monthUsage,
		TotalCost:  totalCost,
		PerDay:     []DailyCharge{},
		Ladder:     res,
		Estimated:  true,
	}, nil
}
