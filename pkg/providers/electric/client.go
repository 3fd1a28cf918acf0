package electric

import (
	"context"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/pkg/providers"
)

// Client is the raw-API surface the core needs from an electricity
// provider. Session handling, crypto handshakes, and retries live behind
// this interface; the core only sees the response records.
//
// Error contract: transport-level failures come back as
// *ladder.UpstreamError and always propagate. Provider-level failures come
// back as *ladder.ProviderError; for MonthDetail that is the one trigger
// for the fallback estimator.
type Client interface {
	providers.Provider

	// MonthDetail returns daily cost records for the month plus the
	// current ladder block. Known provider quirk: the daily records are
	// for the queried month, the ladder block for the current month.
	MonthDetail(ctx context.Context, account string, period ladder.UsagePeriod) (*MonthDetailResponse, error)

	// AnnualTierInfo returns the provider's own view of the current tier
	// plus the full tier table in effect.
	AnnualTierInfo(ctx context.Context, account string, period ladder.UsagePeriod) (*AnnualTierInfoResponse, error)

	// YearStats returns year totals plus per-month usage/cost, the source
	// for the fallback estimator.
	YearStats(ctx context.Context, account string, year int) (*YearStatsResponse, error)

	// MonthUsage returns the usage-only kWh figure for a month. Used by
	// the fallback when the month is missing from the yearly stats.
	MonthUsage(ctx context.Context, account string, period ladder.UsagePeriod) (*float64, error)
}
