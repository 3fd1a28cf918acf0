package gas

import (
	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/pkg/providers"
)

// RateItem is one band of the dynamic rate table the provider returns with
// every monthly-usage response. The table may change month to month; a
// missing end volume marks the open-ended top band.
type RateItem struct {
	Name        string              `json:"name"`
	BeginVolume providers.NullFloat `json:"beginVolume"`
	EndVolume   providers.NullFloat `json:"endVolume"`
	Price       providers.NullFloat `json:"price"`
}

// MonthRecord is one month of usage.
type MonthRecord struct {
	Month     string              `json:"month"`
	GasVolume providers.NullFloat `json:"gasVolume"`
	Reading   providers.NullFloat `json:"meterReading"`
}

// MonthlyUsageResponse mirrors the monthly-usage endpoint payload.
type MonthlyUsageResponse struct {
	RateItemInfo   []RateItem          `json:"rateItemInfo"`
	RecordsInfo    []MonthRecord       `json:"recordsInfo"`
	TotalGasVolume providers.NullFloat `json:"totalGasVolume"`
}

// RateTable converts the dynamic rate items into a ladder table.
func (r *MonthlyUsageResponse) RateTable() ladder.TierTable {
	table := make(ladder.TierTable, 0, len(r.RateItemInfo))
	for _, item := range r.RateItemInfo {
		band := ladder.TierBand{Name: item.Name}
		if item.BeginVolume.Value != nil {
			band.Min = *item.BeginVolume.Value
		}
		if item.Price.Value != nil {
			band.Price = *item.Price.Value
		}
		if item.EndVolume.Value != nil && *item.EndVolume.Value > band.Min {
			band.Max = item.EndVolume.Value
		}
		table = append(table, band)
	}
	return table
}

// DailyRecord is one day of gas usage, with the meter reading at that day.
type DailyRecord struct {
	Date      string              `json:"date"`
	GasVolume providers.NullFloat `json:"gasVolume"`
	Reading   providers.NullFloat `json:"meterReading"`
}

// Volumes converts daily records into the window summation input, treating
// absent volumes as zero contribution.
func Volumes(records []DailyRecord) []ladder.GasDailyVolume {
	out := make([]ladder.GasDailyVolume, 0, len(records))
	for _, r := range records {
		v := 0.0
		if r.GasVolume.Value != nil {
			v = *r.GasVolume.Value
		}
		out = append(out, ladder.GasDailyVolume{Date: r.Date, Volume: v})
	}
	return out
}
