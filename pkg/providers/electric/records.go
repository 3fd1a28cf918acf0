package electric

import (
	"fmt"
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/pkg/providers"
)

// ladderDateLayout is the timestamp format of the ladder start date field,
// e.g. "2023-05-01 00:00:00.0".
const ladderDateLayout = "2006-01-02 15:04:05.0"

// DayRecord is one day of the month-detail response. Power and charge are
// independently nullable; early in a billing cycle the provider returns
// days with usage but no charge.
type DayRecord struct {
	Date   string              `json:"date"`
	Power  providers.NullFloat `json:"power"`
	Charge providers.NullFloat `json:"charge"`
}

// MonthDetailResponse mirrors the day-charge endpoint payload.
type MonthDetailResponse struct {
	TotalPower       providers.NullFloat `json:"totalPower"`
	TotalElectricity providers.NullFloat `json:"totalElectricity"`
	LadderEle        providers.NullFloat `json:"ladderEle"`
	LadderStartDate  string              `json:"ladderEleStartDate"`
	LadderSurplus    providers.NullFloat `json:"ladderEleSurplus"`
	LadderTariff     providers.NullFloat `json:"ladderEleTariff"`
	Result           []DayRecord         `json:"result"`
}

// MonthDetail converts the raw payload into the reconciler's input record.
func (r *MonthDetailResponse) MonthDetail() (ladder.MonthDetail, error) {
	days := make([]ladder.DailyCharge, 0, len(r.Result))
	for _, d := range r.Result {
		days = append(days, ladder.DailyCharge{
			Date:  d.Date,
			Usage: d.Power.Value,
			Cost:  d.Charge.Value,
		})
	}

	var start *time.Time
	if r.LadderStartDate != "" {
		t, err := time.Parse(ladderDateLayout, r.LadderStartDate)
		if err != nil {
			return ladder.MonthDetail{}, fmt.Errorf("ladder start date %q: %w", r.LadderStartDate, err)
		}
		start = &t
	}

	return ladder.MonthDetail{
		TotalUsage:      r.TotalPower.Value,
		TotalCost:       r.TotalElectricity.Value,
		LadderBand:      r.LadderEle.Int(),
		LadderStart:     start,
		LadderRemaining: r.LadderSurplus.Value,
		Tariff:          r.LadderTariff.Value,
		Days:            days,
	}, nil
}

// TierInfoEntry is one band of the annual tier-info table. A missing or
// zero upper threshold marks the open-ended top band.
type TierInfoEntry struct {
	LadderName      string              `json:"ladderName"`
	ThresholdBottom providers.NullFloat `json:"threshholdBottom"`
	ThresholdTop    providers.NullFloat `json:"threshholdTop"`
	PriceValue      providers.NullFloat `json:"priceValue"`
}

// AnnualTierInfoResponse mirrors the annual tier-info endpoint payload.
type AnnualTierInfoResponse struct {
	BusinessDate     string              `json:"businessDate"`
	CurrentGear      string              `json:"currentGear"`
	CurrentPrice     providers.NullFloat `json:"currentElectricityPrice"`
	GearPowerLeft    providers.NullFloat `json:"gearPowerLeft"`
	StartDate        string              `json:"startDate"`
	EndDate          string              `json:"endDate"`
	TotalYearUsage   providers.NullFloat `json:"totalElectricityOfYear"`
	LadderInfoList   []TierInfoEntry     `json:"ladderInfoList"`
}

// TierInfo converts the raw payload into the direct resolver's input.
func (r *AnnualTierInfoResponse) TierInfo() ladder.AnnualTierInfo {
	table := make(ladder.TierTable, 0, len(r.LadderInfoList))
	for _, e := range r.LadderInfoList {
		band := ladder.TierBand{Name: e.LadderName}
		if e.ThresholdBottom.Value != nil {
			band.Min = *e.ThresholdBottom.Value
		}
		if e.PriceValue.Value != nil {
			band.Price = *e.PriceValue.Value
		}
		// The provider marks the top band with a missing or zero upper
		// threshold; only a real bound becomes Max.
		if e.ThresholdTop.Value != nil && *e.ThresholdTop.Value > band.Min {
			band.Max = e.ThresholdTop.Value
		}
		table = append(table, band)
	}

	return ladder.AnnualTierInfo{
		BusinessDate:    r.BusinessDate,
		CurrentTierName: r.CurrentGear,
		CumulativeUsage: r.TotalYearUsage.Value,
		Price:           r.CurrentPrice.Value,
		Remaining:       r.GearPowerLeft.Value,
		PeriodStart:     parseDay(r.StartDate),
		PeriodEnd:       parseDay(r.EndDate),
		Table:           table,
	}
}

// MonthStat is one month of the yearly stats list.
type MonthStat struct {
	YearMonth string              `json:"yearMonth"`
	Usage     providers.NullFloat `json:"billingElectricity"`
	Cost      providers.NullFloat `json:"actualTotalAmount"`
}

// YearStatsResponse mirrors the fee-analyze endpoint payload.
type YearStatsResponse struct {
	TotalYearUsage providers.NullFloat `json:"totalBillingElectricity"`
	TotalYearCost  providers.NullFloat `json:"totalActualAmount"`
	ByMonth        []MonthStat         `json:"electricAndChargeList"`
}

// Month returns the usage/cost pair for an exact "YYYY-MM" key, or nils
// when the month is not in the list.
func (r *YearStatsResponse) Month(key string) (usage, cost *float64) {
	for _, m := range r.ByMonth {
		if m.YearMonth == key {
			return m.Usage.Value, m.Cost.Value
		}
	}
	return nil, nil
}

func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", ladderDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
