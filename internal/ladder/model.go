package ladder

import (
	"fmt"
	"time"
)

// UsagePeriod identifies the billing period being queried.
type UsagePeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Key returns the period in the "YYYY-MM" form used by the yearly stats
// endpoints.
func (p UsagePeriod) Key() string {
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

// Contains reports whether the given time falls inside the period.
func (p UsagePeriod) Contains(t time.Time) bool {
	return t.Year() == p.Year && int(t.Month()) == p.Month
}

// TierResolution describes the ladder tier an account currently falls into.
// Nullable fields stay nil when the provider did not report them; they are
// never coerced to zero.
type TierResolution struct {
	Band            *int       `json:"band"`
	Name            string     `json:"name,omitempty"`
	Price           *float64   `json:"price"`
	Remaining       *float64   `json:"remaining"`
	PeriodStart     *time.Time `json:"period_start"`
	PeriodEnd       *time.Time `json:"period_end"`
	CumulativeUsage *float64   `json:"cumulative_usage"`
}

// DailyCharge is one day of usage and cost. Cost is nil when the provider
// has not billed the day yet and no tariff was available to derive it.
type DailyCharge struct {
	Date  string   `json:"date"`
	Usage *float64 `json:"usage"`
	Cost  *float64 `json:"cost"`
}

// MonthlyCostBreakdown is the reconciled month view handed to the sensor
// layer. Estimated marks results produced by the fallback path, which never
// carries per-day records.
//
// Known provider quirk: the month-detail endpoint returns daily data for the
// queried month but ladder data for the current month, so Ladder may
// describe a different period than PerDay. That is reported as-is.
type MonthlyCostBreakdown struct {
	Period     UsagePeriod     `json:"period"`
	TotalUsage *float64        `json:"total_usage"`
	TotalCost  *float64        `json:"total_cost"`
	PerDay     []DailyCharge   `json:"per_day"`
	Ladder     *TierResolution `json:"ladder"`
	Estimated  bool            `json:"estimated"`
}

// GasLadderResult is the outcome of the piecewise-cumulative gas cost
// computation. Stage and UnitPrice are those of the last band touched, i.e.
// the marginal rate.
type GasLadderResult struct {
	Stage     int     `json:"stage"`
	UnitPrice float64 `json:"unit_price"`
	TotalCost float64 `json:"total_cost"`
}

// GasSummary aggregates the gas figures derived from one monthly-usage
// response plus the trailing daily records.
type GasSummary struct {
	YearlyVolume     float64         `json:"yearly_volume"`
	Yearly           GasLadderResult `json:"yearly"`
	CurrentMonth     GasLadderResult `json:"current_month"`
	CurrentMonthVol  float64         `json:"current_month_volume"`
	LastMonth        GasLadderResult `json:"last_month"`
	LastMonthVol     float64         `json:"last_month_volume"`
	RecentWindowDays int             `json:"recent_window_days"`
	RecentVolume     float64         `json:"recent_volume"`
	RecentCost       float64         `json:"recent_cost"`
	// RecentCost multiplies the window volume by the current marginal
	// price; it does not integrate across band crossings inside the window.
	Approximate bool `json:"approximate"`
}

// WaterStage is the looked-up water tier for a cumulative usage figure.
type WaterStage struct {
	Stage     int     `json:"stage"`
	UnitPrice float64 `json:"unit_price"`
}

// WaterBill is the fixed+variable fee breakdown of one bimonthly water bill.
// MonthlyAverage is a display convenience (billed usage / 2), not a metered
// value.
type WaterBill struct {
	BilledUsage    float64 `json:"billed_usage"`
	WaterFee       float64 `json:"water_fee"`
	SewageFee      float64 `json:"sewage_fee"`
	GarbageFee     float64 `json:"garbage_fee"`
	TotalCost      float64 `json:"total_cost"`
	MonthlyAverage float64 `json:"monthly_average"`
}
