package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers/electric"
)

const kindElectricityMonth = "electricity-month"

// Config controls how the electricity service resolves tiers.
type Config struct {
	// ReferenceTable is the static band table used by the derived resolver
	// and the fallback estimator.
	ReferenceTable ladder.TierTable
	// TierNames is the provider tier-name vocabulary for the direct path.
	TierNames ladder.TierNameTable
	// RateSheetPath optionally points at a published rate-sheet PDF. When
	// set and parseable it overrides ReferenceTable.
	RateSheetPath string
}

// Service coordinates fetching, resolving, and caching of electricity
// ladder data.
type Service struct {
	cfg   Config
	store storage.Storage // may be nil for uncached mode
}

// NewService returns a Service without storage caching.
func NewService(cfg Config) *Service {
	return &Service{cfg: resolveReferenceTable(cfg)}
}

// NewServiceWithStorage returns a Service that uses the provided storage
// backend to cache closed-month breakdowns.
func NewServiceWithStorage(cfg Config, st storage.Storage) *Service {
	return &Service{cfg: resolveReferenceTable(cfg), store: st}
}

// resolveReferenceTable swaps in a rate-sheet table when one is configured
// and parseable. A broken sheet is logged and ignored, never fatal.
func resolveReferenceTable(cfg Config) Config {
	if cfg.RateSheetPath == "" {
		return cfg
	}
	table, err := ParseTariffPDF("ratesheet", cfg.RateSheetPath)
	if err != nil {
		log.Printf("rates: rate sheet %s unusable, keeping configured table: %v", cfg.RateSheetPath, err)
		return cfg
	}
	cfg.ReferenceTable = table
	return cfg
}

// MonthBreakdown returns the reconciled month view for an account. Closed
// months are immutable and served from the snapshot cache when present; the
// current month is always fetched live.
//
// When the day-charge endpoint fails with a provider-level error the month
// is rebuilt from the yearly stats instead and flagged Estimated. Transport
// errors propagate untouched.
func (s *Service) MonthBreakdown(ctx context.Context, providerKey, account string, period ladder.UsagePeriod, now time.Time) (*ElectricityMonth, error) {
	closed := !period.Contains(now)
	if closed && s.store != nil {
		if snap, err := s.store.GetResolutionSnapshot(ctx, account, kindElectricityMonth, period.Key()); err == nil && snap != nil && len(snap.Payload) > 0 {
			var out ElectricityMonth
			if err := json.Unmarshal(snap.Payload, &out); err == nil {
				out.Source = "cache"
				return &out, nil
			}
			// Undecodable snapshot: fall through and refetch.
		}
	}

	out, err := s.fetchMonth(ctx, providerKey, account, period, now)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.store.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
				Account:   account,
				Kind:      kindElectricityMonth,
				Period:    period.Key(),
				Payload:   payload,
				Estimated: out.Breakdown.Estimated,
				FetchedAt: out.FetchedAt,
			})
		}
	}
	return out, nil
}

// ForceRefresh bypasses the snapshot cache and fetches the month live,
// writing the result back.
func (s *Service) ForceRefresh(ctx context.Context, providerKey, account string, period ladder.UsagePeriod, now time.Time) (*ElectricityMonth, error) {
	out, err := s.fetchMonth(ctx, providerKey, account, period, now)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.store.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
				Account:   account,
				Kind:      kindElectricityMonth,
				Period:    period.Key(),
				Payload:   payload,
				Estimated: out.Breakdown.Estimated,
				FetchedAt: out.FetchedAt,
			})
		}
	}
	return out, nil
}

func (s *Service) fetchMonth(ctx context.Context, providerKey, account string, period ladder.UsagePeriod, now time.Time) (*ElectricityMonth, error) {
	client, ok := electric.Get(providerKey)
	if !ok {
		return nil, fmt.Errorf("unknown electricity provider: %s", providerKey)
	}

	resp, err := client.MonthDetail(ctx, account, period)
	if err != nil {
		var pe *ladder.ProviderError
		if !errors.As(err, &pe) {
			return nil, err
		}
		log.Printf("rates: month detail for %s %s failed at provider, estimating from yearly stats: %v",
			account, period.Key(), pe)
		breakdown, err := s.estimateMonth(ctx, client, account, period, now)
		if err != nil {
			return nil, err
		}
		return &ElectricityMonth{
			Account:   account,
			Breakdown: breakdown,
			Source:    "fallback",
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	detail, err := resp.MonthDetail()
	if err != nil {
		return nil, fmt.Errorf("month detail for %s %s: %w", account, period.Key(), err)
	}
	return &ElectricityMonth{
		Account:   account,
		Breakdown: ladder.ReconcileMonth(period, detail),
		Source:    "provider",
		FetchedAt: time.Now().UTC(),
	}, nil
}

// estimateMonth rebuilds a coarse month view from the yearly stats. The
// usage-only endpoint is consulted only when the month is missing from the
// stats and is the current month; anything else stays absent rather than
// being guessed.
func (s *Service) estimateMonth(ctx context.Context, client electric.Client, account string, period ladder.UsagePeriod, now time.Time) (ladder.MonthlyCostBreakdown, error) {
	stats, err := client.YearStats(ctx, account, period.Year)
	if err != nil {
		return ladder.MonthlyCostBreakdown{}, err
	}

	usage, cost := stats.Month(period.Key())
	if usage == nil && period.Contains(now) {
		u, err := client.MonthUsage(ctx, account, period)
		if err != nil {
			log.Printf("rates: month usage for %s %s unavailable: %v", account, period.Key(), err)
		} else {
			usage = u
		}
	}

	if stats.TotalYearUsage.Value == nil {
		return ladder.MonthlyCostBreakdown{}, fmt.Errorf("%w: yearly stats for %s carry no cumulative usage",
			ladder.ErrUnresolvedTier, account)
	}

	return ladder.EstimateMonth(period, *stats.TotalYearUsage.Value, usage, cost, s.cfg.ReferenceTable)
}

// TierStatus resolves the account's current ladder tier. The provider's
// tier-info endpoint is authoritative; when it fails at the provider level
// the tier is derived from the yearly cumulative figure over the reference
// table. Transport errors propagate.
func (s *Service) TierStatus(ctx context.Context, providerKey, account string, period ladder.UsagePeriod) (*TierStatus, error) {
	client, ok := electric.Get(providerKey)
	if !ok {
		return nil, fmt.Errorf("unknown electricity provider: %s", providerKey)
	}

	resp, err := client.AnnualTierInfo(ctx, account, period)
	if err != nil {
		var pe *ladder.ProviderError
		if !errors.As(err, &pe) {
			return nil, err
		}
		log.Printf("rates: tier info for %s failed at provider, deriving from yearly stats: %v", account, pe)
		return s.derivedTierStatus(ctx, client, account, period)
	}

	info := resp.TierInfo()
	if len(info.Table) == 0 {
		info.Table = s.cfg.ReferenceTable
	}
	res, err := ladder.ResolveElectricityDirect(info, s.cfg.TierNames)
	if err != nil {
		return nil, err
	}
	return &TierStatus{
		Account:    account,
		Resolution: *res,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (s *Service) derivedTierStatus(ctx context.Context, client electric.Client, account string, period ladder.UsagePeriod) (*TierStatus, error) {
	stats, err := client.YearStats(ctx, account, period.Year)
	if err != nil {
		return nil, err
	}
	if stats.TotalYearUsage.Value == nil {
		return nil, fmt.Errorf("%w: yearly stats for %s carry no cumulative usage",
			ladder.ErrUnresolvedTier, account)
	}
	res, err := ladder.ResolveElectricityDerived(*stats.TotalYearUsage.Value, s.cfg.ReferenceTable)
	if err != nil {
		return nil, err
	}
	return &TierStatus{
		Account:    account,
		Resolution: *res,
		Derived:    true,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
