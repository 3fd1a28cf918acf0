package gas

import (
	"context"

	"github.com/mubeyout/ladderd/pkg/providers"
)

// Client is the raw-API surface the core needs from a gas provider.
type Client interface {
	providers.Provider

	// MonthlyUsage returns the per-month records, the dynamic rate table,
	// and the cumulative yearly volume the ladder accounts against.
	MonthlyUsage(ctx context.Context, account string, months int) (*MonthlyUsageResponse, error)

	// DailyUsage returns the trailing daily volume records, newest first.
	DailyUsage(ctx context.Context, account string, days int) ([]DailyRecord, error)
}
