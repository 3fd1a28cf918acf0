package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers/water"
)

const kindWaterBill = "water-bill"

// WaterAccountLoader fetches the static account snapshot captured at
// configuration time.
type WaterAccountLoader func(ctx context.Context, account string) (*water.AccountConfig, error)

// FileWaterAccountLoader reads account snapshots from
// <base>/<account>/water.json.
func FileWaterAccountLoader(base string) WaterAccountLoader {
	return func(ctx context.Context, account string) (*water.AccountConfig, error) {
		path := filepath.Join(base, account, "water.json")
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, &ladder.ProviderError{Op: "water.json", Code: "NO_DATA", Msg: "no captured snapshot for " + path}
		}
		if err != nil {
			return nil, &ladder.UpstreamError{Op: "water.json", Err: err}
		}
		var cfg water.AccountConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return &cfg, nil
	}
}

// WaterService computes the bill breakdown and ladder stage from a static
// account snapshot. There is no live polling: the bill list is captured once
// at setup.
type WaterService struct {
	rates ladder.WaterRates
	table ladder.TierTable
	load  WaterAccountLoader
	store storage.Storage // may be nil for uncached mode
}

// NewWaterService creates a water service without storage.
func NewWaterService(rates ladder.WaterRates, table ladder.TierTable, load WaterAccountLoader) *WaterService {
	return &WaterService{rates: rates, table: table, load: load}
}

// NewWaterServiceWithStorage creates a water service with a storage backend.
func NewWaterServiceWithStorage(rates ladder.WaterRates, table ladder.TierTable, load WaterAccountLoader, st storage.Storage) *WaterService {
	svc := NewWaterService(rates, table, load)
	svc.store = st
	return svc
}

// Report returns the latest-bill view for an account, serving a cached
// snapshot when one exists.
func (s *WaterService) Report(ctx context.Context, account string) (*WaterReport, error) {
	if s.store != nil {
		if snap, err := s.store.GetResolutionSnapshot(ctx, account, kindWaterBill, ""); err == nil && snap != nil && len(snap.Payload) > 0 {
			var out WaterReport
			if err := json.Unmarshal(snap.Payload, &out); err == nil {
				return &out, nil
			}
		}
	}
	return s.ForceRefresh(ctx, account)
}

// ForceRefresh bypasses the cache, recomputes the report, and writes it
// back.
func (s *WaterService) ForceRefresh(ctx context.Context, account string) (*WaterReport, error) {
	out, err := s.fetch(ctx, account)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.store.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
				Account:   account,
				Kind:      kindWaterBill,
				Payload:   payload,
				FetchedAt: out.FetchedAt,
			})
		}
	}
	return out, nil
}

func (s *WaterService) fetch(ctx context.Context, account string) (*WaterReport, error) {
	cfg, err := s.load(ctx, account)
	if err != nil {
		return nil, err
	}

	bill, ok := cfg.LatestBill()
	if !ok {
		return nil, fmt.Errorf("water account %s has no captured bills", account)
	}
	// A bill with no amount stays unresolved; zero would be a fabricated
	// reading.
	if bill.Amount.Value == nil {
		return nil, fmt.Errorf("water bill %s carries no usage amount", bill.BillNo)
	}
	usage := *bill.Amount.Value

	breakdown, err := ladder.WaterBillBreakdown(usage, s.rates)
	if err != nil {
		return nil, err
	}

	var billDate *time.Time
	if d, err := bill.BillDate(); err == nil {
		billDate = &d
	} else {
		log.Printf("rates: water bill %s has no parseable period: %v", bill.BillNo, err)
	}

	// The ladder bands are per month; the bill covers two. The stage is
	// resolved against the monthly average.
	stage, err := ladder.ResolveWaterStage(breakdown.MonthlyAverage, s.table)
	if err != nil {
		return nil, err
	}

	return &WaterReport{
		Account:   account,
		UserName:  cfg.UserName,
		Address:   cfg.Address,
		BillNo:    bill.BillNo,
		BillDate:  billDate,
		Stage:     stage,
		Bill:      breakdown,
		FetchedAt: time.Now().UTC(),
	}, nil
}
