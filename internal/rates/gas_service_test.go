package rates

import (
	"context"
	"testing"

	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers"
	"github.com/mubeyout/ladderd/pkg/providers/gas"
)

type fakeGas struct {
	key      string
	monthly  *gas.MonthlyUsageResponse
	monthErr error
	daily    []gas.DailyRecord
	dailyErr error
}

func (f *fakeGas) Key() string                 { return f.key }
func (f *fakeGas) Name() string                { return "Fake " + f.key }
func (f *fakeGas) Type() providers.UtilityType { return providers.UtilityGas }

func (f *fakeGas) MonthlyUsage(ctx context.Context, account string, months int) (*gas.MonthlyUsageResponse, error) {
	return f.monthly, f.monthErr
}

func (f *fakeGas) DailyUsage(ctx context.Context, account string, days int) ([]gas.DailyRecord, error) {
	return f.daily, f.dailyErr
}

func gasRateItems() []gas.RateItem {
	return []gas.RateItem{
		{Name: "第一档", BeginVolume: nf(0), EndVolume: nf(360), Price: nf(2.97)},
		{Name: "第二档", BeginVolume: nf(360), EndVolume: nf(540), Price: nf(3.56)},
		{Name: "第三档", BeginVolume: nf(540), Price: nf(4.46)},
	}
}

func init() {
	gas.Register(&fakeGas{
		key: "fake-gas",
		monthly: &gas.MonthlyUsageResponse{
			RateItemInfo:   gasRateItems(),
			TotalGasVolume: nf(400),
			RecordsInfo: []gas.MonthRecord{
				{Month: "2026-06", GasVolume: nf(30)},
				{Month: "2026-07", GasVolume: nf(25)},
				{Month: "2026-08", GasVolume: nf(10)},
			},
		},
		daily: []gas.DailyRecord{
			{Date: "2026-08-28", GasVolume: nf(2.5)},
			{Date: "2026-08-27", GasVolume: nf(1.5)},
		},
	})
	gas.Register(&fakeGas{
		key:     "fake-gas-new",
		monthly: &gas.MonthlyUsageResponse{RateItemInfo: gasRateItems()},
	})
}

func TestGasReport(t *testing.T) {
	svc := NewGasService(31)

	out, err := svc.Report(context.Background(), "fake-gas", "acct")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	s := out.Summary

	if s.YearlyVolume != 400 {
		t.Errorf("YearlyVolume = %v, want 400", s.YearlyVolume)
	}
	// 360 x 2.97 + 40 x 3.56.
	if s.Yearly.Stage != 2 || s.Yearly.UnitPrice != 3.56 || s.Yearly.TotalCost != 1211.60 {
		t.Errorf("Yearly = %+v, want stage 2 price 3.56 cost 1211.60", s.Yearly)
	}
	if s.CurrentMonthVol != 10 || s.LastMonthVol != 25 {
		t.Errorf("month volumes = %v/%v, want 10/25", s.CurrentMonthVol, s.LastMonthVol)
	}
	if s.CurrentMonth.TotalCost != 29.70 {
		t.Errorf("CurrentMonth cost = %v, want 29.70", s.CurrentMonth.TotalCost)
	}
	if s.LastMonth.TotalCost != 74.25 {
		t.Errorf("LastMonth cost = %v, want 74.25", s.LastMonth.TotalCost)
	}
	// 4.0 m3 at the marginal price of the yearly position.
	if s.RecentVolume != 4.0 || s.RecentCost != 14.24 {
		t.Errorf("recent window = %v m3 / %v, want 4.0 / 14.24", s.RecentVolume, s.RecentCost)
	}
	if !s.Approximate {
		t.Error("window cost must be flagged approximate")
	}
}

func TestGasReportBrandNewAccount(t *testing.T) {
	svc := NewGasService(31)

	out, err := svc.Report(context.Background(), "fake-gas-new", "acct")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	s := out.Summary

	if s.YearlyVolume != 0 {
		t.Errorf("YearlyVolume = %v, want 0", s.YearlyVolume)
	}
	// Zero usage resolves to stage 1 at zero cost, never an error.
	for name, r := range map[string]struct {
		stage int
		cost  float64
	}{
		"yearly":  {s.Yearly.Stage, s.Yearly.TotalCost},
		"current": {s.CurrentMonth.Stage, s.CurrentMonth.TotalCost},
		"last":    {s.LastMonth.Stage, s.LastMonth.TotalCost},
	} {
		if r.stage != 1 || r.cost != 0 {
			t.Errorf("%s = stage %d cost %v, want stage 1 cost 0", name, r.stage, r.cost)
		}
	}
	if s.Approximate {
		t.Error("no window data, must not be flagged approximate")
	}
}

func TestGasReportCached(t *testing.T) {
	st := storage.NewMemory()
	svc := NewGasServiceWithStorage(31, st)

	first, err := svc.Report(context.Background(), "fake-gas", "acct")
	if err != nil {
		t.Fatalf("first Report: %v", err)
	}
	second, err := svc.Report(context.Background(), "fake-gas", "acct")
	if err != nil {
		t.Fatalf("second Report: %v", err)
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Error("second report should be served from the snapshot cache")
	}
}

func TestGasReportUnknownProvider(t *testing.T) {
	svc := NewGasService(31)
	if _, err := svc.Report(context.Background(), "nope", "acct"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
