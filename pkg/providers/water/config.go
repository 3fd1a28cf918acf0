// Package water models the water provider's data surface. There is no live
// polling endpoint: the bill list is captured once at configuration time and
// the core works from that static snapshot.
package water

import (
	"fmt"
	"time"

	"github.com/mubeyout/ladderd/pkg/providers"
)

// BillRecord is one entry of the captured bill list. BillNo encodes the
// billing period as YYYYMM; Amount is the billed usage in cubic meters.
type BillRecord struct {
	BillNo string              `json:"billNo"`
	Amount providers.NullFloat `json:"amount"`
}

// BillDate parses the billing period out of the bill number. Meter reads
// land on the 10th of the billing month.
func (b BillRecord) BillDate() (time.Time, error) {
	if len(b.BillNo) < 6 {
		return time.Time{}, fmt.Errorf("bill number %q too short to carry a period", b.BillNo)
	}
	t, err := time.Parse("200601", b.BillNo[:6])
	if err != nil {
		return time.Time{}, fmt.Errorf("bill number %q: %w", b.BillNo, err)
	}
	return time.Date(t.Year(), t.Month(), 10, 0, 0, 0, 0, time.UTC), nil
}

// AccountConfig is the static account snapshot captured at setup.
type AccountConfig struct {
	UserCode string       `json:"userCode"`
	UserName string       `json:"userName"`
	Address  string       `json:"address"`
	Caliber  string       `json:"caliber"`
	Cycle    string       `json:"cycle"`
	Bills    []BillRecord `json:"bills"`
}

// LatestBill returns the most recent bill record, or false when the
// captured list is empty.
func (c AccountConfig) LatestBill() (BillRecord, bool) {
	if len(c.Bills) == 0 {
		return BillRecord{}, false
	}
	return c.Bills[0], true
}
