package rates

import (
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
)

// ElectricityMonth is the API-facing month view for one account.
type ElectricityMonth struct {
	Account   string                      `json:"account"`
	Breakdown ladder.MonthlyCostBreakdown `json:"breakdown"`
	Source    string                      `json:"source"` // "provider", "fallback", "cache"
	FetchedAt time.Time                   `json:"fetched_at"`
}

// TierStatus is the API-facing current-tier view for one account. Derived
// marks a resolution computed from the yearly cumulative figure over the
// reference table rather than the provider's own tier-info response.
type TierStatus struct {
	Account    string                `json:"account"`
	Resolution ladder.TierResolution `json:"resolution"`
	Derived    bool                  `json:"derived"`
	FetchedAt  time.Time             `json:"fetched_at"`
}

// GasReport is the API-facing gas summary for one account.
type GasReport struct {
	Account   string            `json:"account"`
	Summary   ladder.GasSummary `json:"summary"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// WaterReport is the API-facing water bill view for one account.
type WaterReport struct {
	Account   string            `json:"account"`
	UserName  string            `json:"user_name,omitempty"`
	Address   string            `json:"address,omitempty"`
	BillNo    string            `json:"bill_no"`
	BillDate  *time.Time        `json:"bill_date"`
	Stage     ladder.WaterStage `json:"stage"`
	Bill      ladder.WaterBill  `json:"bill"`
	FetchedAt time.Time         `json:"fetched_at"`
}
