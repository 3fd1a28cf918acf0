package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers/gas"
)

const kindGasSummary = "gas-summary"

// GasService coordinates fetching and caching of gas ladder summaries.
type GasService struct {
	windowDays int
	store      storage.Storage // may be nil for uncached mode
}

// NewGasService creates a gas service without storage.
func NewGasService(windowDays int) *GasService {
	if windowDays <= 0 {
		windowDays = 31
	}
	return &GasService{windowDays: windowDays}
}

// NewGasServiceWithStorage creates a gas service with a storage backend.
func NewGasServiceWithStorage(windowDays int, st storage.Storage) *GasService {
	svc := NewGasService(windowDays)
	svc.store = st
	return svc
}

// Report returns the gas summary for an account, serving a cached snapshot
// when one exists. The worker refreshes snapshots on its schedule.
func (s *GasService) Report(ctx context.Context, providerKey, account string) (*GasReport, error) {
	if s.store != nil {
		if snap, err := s.store.GetResolutionSnapshot(ctx, account, kindGasSummary, ""); err == nil && snap != nil && len(snap.Payload) > 0 {
			var out GasReport
			if err := json.Unmarshal(snap.Payload, &out); err == nil {
				return &out, nil
			}
		}
	}
	return s.ForceRefresh(ctx, providerKey, account)
}

// ForceRefresh bypasses the cache, recomputes the summary, and writes it
// back.
func (s *GasService) ForceRefresh(ctx context.Context, providerKey, account string) (*GasReport, error) {
	out, err := s.fetch(ctx, providerKey, account)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.store.SaveResolutionSnapshot(ctx, storage.ResolutionSnapshot{
				Account:   account,
				Kind:      kindGasSummary,
				Payload:   payload,
				FetchedAt: out.FetchedAt,
			})
		}
	}
	return out, nil
}

func (s *GasService) fetch(ctx context.Context, providerKey, account string) (*GasReport, error) {
	client, ok := gas.Get(providerKey)
	if !ok {
		return nil, fmt.Errorf("unknown gas provider: %s", providerKey)
	}

	resp, err := client.MonthlyUsage(ctx, account, 12)
	if err != nil {
		return nil, err
	}

	table := resp.RateTable()

	var yearlyVol float64
	if resp.TotalGasVolume.Value != nil {
		yearlyVol = *resp.TotalGasVolume.Value
	} else {
		for _, m := range resp.RecordsInfo {
			if m.GasVolume.Value != nil {
				yearlyVol += *m.GasVolume.Value
			}
		}
	}

	// Records come oldest first; the last entry is the running month. A
	// brand-new account may have one record or none, which is zero usage,
	// not an error.
	var currentVol, lastVol float64
	n := len(resp.RecordsInfo)
	if n >= 1 && resp.RecordsInfo[n-1].GasVolume.Value != nil {
		currentVol = *resp.RecordsInfo[n-1].GasVolume.Value
	}
	if n >= 2 && resp.RecordsInfo[n-2].GasVolume.Value != nil {
		lastVol = *resp.RecordsInfo[n-2].GasVolume.Value
	}

	yearly := ladder.GasLadderCost(yearlyVol, table)
	summary := ladder.GasSummary{
		YearlyVolume:     yearlyVol,
		Yearly:           yearly,
		CurrentMonth:     ladder.GasLadderCost(currentVol, table),
		CurrentMonthVol:  currentVol,
		LastMonth:        ladder.GasLadderCost(lastVol, table),
		LastMonthVol:     lastVol,
		RecentWindowDays: s.windowDays,
	}

	days, err := client.DailyUsage(ctx, account, s.windowDays)
	if err != nil {
		// The trailing window is supplementary; a failed daily fetch
		// degrades the summary instead of failing it.
		log.Printf("rates: daily gas usage for %s unavailable: %v", account, err)
	} else if len(days) > 0 {
		vol, cost := ladder.RecentWindowCost(gas.Volumes(days), yearly.UnitPrice)
		summary.RecentVolume = vol
		summary.RecentCost = cost
		summary.Approximate = true
	}

	return &GasReport{
		Account:   account,
		Summary:   summary,
		FetchedAt: time.Now().UTC(),
	}, nil
}
