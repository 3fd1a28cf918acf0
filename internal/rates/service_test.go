package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers"
	"github.com/mubeyout/ladderd/pkg/providers/electric"
)

func fp(v float64) *float64 { return &v }

func nf(v float64) providers.NullFloat { return providers.NullFloat{Value: &v} }

func referenceTable() ladder.TierTable {
	return ladder.TierTable{
		{Name: "tier 1", Min: 0, Max: fp(1000), Price: 0.30},
		{Name: "tier 2", Min: 1000, Max: fp(2000), Price: 0.40},
		{Name: "tier 3", Min: 2000, Max: fp(3000), Price: 0.50},
		{Name: "tier 4", Min: 3000, Price: 0.60},
	}
}

func tierNames() ladder.TierNameTable {
	return ladder.TierNameTable{
		{Name: "电能替代", Band: 1},
		{Name: "居民阶梯一", Band: 2},
		{Name: "居民阶梯二", Band: 3},
		{Name: "居民阶梯三", Band: 4},
	}
}

// fakeElectric is a scriptable electricity client.
type fakeElectric struct {
	key           string
	detail        *electric.MonthDetailResponse
	detailErr     error
	tier          *electric.AnnualTierInfoResponse
	tierErr       error
	stats         *electric.YearStatsResponse
	statsErr      error
	monthUsage    *float64
	monthUsageErr error
}

func (f *fakeElectric) Key() string                 { return f.key }
func (f *fakeElectric) Name() string                { return "Fake " + f.key }
func (f *fakeElectric) Type() providers.UtilityType { return providers.UtilityElectric }

func (f *fakeElectric) MonthDetail(ctx context.Context, account string, period ladder.UsagePeriod) (*electric.MonthDetailResponse, error) {
	return f.detail, f.detailErr
}

func (f *fakeElectric) AnnualTierInfo(ctx context.Context, account string, period ladder.UsagePeriod) (*electric.AnnualTierInfoResponse, error) {
	return f.tier, f.tierErr
}

func (f *fakeElectric) YearStats(ctx context.Context, account string, year int) (*electric.YearStatsResponse, error) {
	return f.stats, f.statsErr
}

func (f *fakeElectric) MonthUsage(ctx context.Context, account string, period ladder.UsagePeriod) (*float64, error) {
	return f.monthUsage, f.monthUsageErr
}

var (
	fakeOK = &fakeElectric{
		key: "fake-ok",
		detail: &electric.MonthDetailResponse{
			TotalPower:   nf(100),
			LadderEle:    nf(2),
			LadderTariff: nf(0.40),
			Result: []electric.DayRecord{
				{Date: "2026-07-01", Power: nf(12), Charge: nf(3.10)},
				{Date: "2026-07-02", Power: nf(12)},
			},
		},
		tier: &electric.AnnualTierInfoResponse{
			CurrentGear:    "当前为【居民阶梯二】",
			CurrentPrice:   nf(0.50),
			GearPowerLeft:  nf(500),
			TotalYearUsage: nf(2500),
		},
	}

	fakeFallback = &fakeElectric{
		key:       "fake-fallback",
		detailErr: &ladder.ProviderError{Op: "monthdetail", Code: "010002", Msg: "no data"},
		tierErr:   &ladder.ProviderError{Op: "tierinfo", Code: "010002", Msg: "no data"},
		stats: &electric.YearStatsResponse{
			TotalYearUsage: nf(2500),
			ByMonth: []electric.MonthStat{
				{YearMonth: "2026-06", Usage: nf(180), Cost: nf(90.00)},
			},
		},
		monthUsage: fp(42),
	}

	fakeDown = &fakeElectric{
		key:       "fake-down",
		detailErr: &ladder.UpstreamError{Op: "monthdetail", Err: errors.New("connection refused")},
		tierErr:   &ladder.UpstreamError{Op: "tierinfo", Err: errors.New("connection refused")},
	}
)

func init() {
	electric.Register(fakeOK)
	electric.Register(fakeFallback)
	electric.Register(fakeDown)
}

func testConfig() Config {
	return Config{ReferenceTable: referenceTable(), TierNames: tierNames()}
}

func TestMonthBreakdownProviderPath(t *testing.T) {
	svc := NewService(testConfig())
	period := ladder.UsagePeriod{Year: 2026, Month: 7}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	out, err := svc.MonthBreakdown(context.Background(), "fake-ok", "acct", period, now)
	if err != nil {
		t.Fatalf("MonthBreakdown: %v", err)
	}
	if out.Source != "provider" {
		t.Errorf("Source = %q, want provider", out.Source)
	}
	if out.Breakdown.Estimated {
		t.Error("provider path must not be flagged estimated")
	}
	if len(out.Breakdown.PerDay) != 2 {
		t.Fatalf("PerDay len = %d, want 2", len(out.Breakdown.PerDay))
	}
	// Explicit charge wins; missing charge derived from usage x tariff.
	if got := *out.Breakdown.PerDay[0].Cost; got != 3.10 {
		t.Errorf("day 1 cost = %v, want 3.10", got)
	}
	if got := *out.Breakdown.PerDay[1].Cost; got != 4.80 {
		t.Errorf("day 2 cost = %v, want 4.80", got)
	}
	// Month total derived from 100 kWh x 0.40.
	if got := *out.Breakdown.TotalCost; got != 40.00 {
		t.Errorf("TotalCost = %v, want 40.00", got)
	}
}

func TestMonthBreakdownClosedMonthCached(t *testing.T) {
	st := storage.NewMemory()
	svc := NewServiceWithStorage(testConfig(), st)
	period := ladder.UsagePeriod{Year: 2026, Month: 7}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	first, err := svc.MonthBreakdown(context.Background(), "fake-ok", "acct", period, now)
	if err != nil {
		t.Fatalf("first MonthBreakdown: %v", err)
	}
	if first.Source != "provider" {
		t.Fatalf("first Source = %q, want provider", first.Source)
	}

	second, err := svc.MonthBreakdown(context.Background(), "fake-ok", "acct", period, now)
	if err != nil {
		t.Fatalf("second MonthBreakdown: %v", err)
	}
	if second.Source != "cache" {
		t.Errorf("second Source = %q, want cache", second.Source)
	}
	if *second.Breakdown.TotalCost != *first.Breakdown.TotalCost {
		t.Errorf("cached TotalCost = %v, want %v", *second.Breakdown.TotalCost, *first.Breakdown.TotalCost)
	}
}

func TestMonthBreakdownCurrentMonthNotCached(t *testing.T) {
	st := storage.NewMemory()
	svc := NewServiceWithStorage(testConfig(), st)
	period := ladder.UsagePeriod{Year: 2026, Month: 8}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		out, err := svc.MonthBreakdown(context.Background(), "fake-ok", "acct", period, now)
		if err != nil {
			t.Fatalf("MonthBreakdown #%d: %v", i+1, err)
		}
		if out.Source != "provider" {
			t.Errorf("call %d Source = %q, want provider (running month is always live)", i+1, out.Source)
		}
	}
}

func TestMonthBreakdownFallback(t *testing.T) {
	svc := NewService(testConfig())
	period := ladder.UsagePeriod{Year: 2026, Month: 6}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	out, err := svc.MonthBreakdown(context.Background(), "fake-fallback", "acct", period, now)
	if err != nil {
		t.Fatalf("MonthBreakdown: %v", err)
	}
	if out.Source != "fallback" {
		t.Errorf("Source = %q, want fallback", out.Source)
	}
	if !out.Breakdown.Estimated {
		t.Error("fallback result must be flagged estimated")
	}
	if len(out.Breakdown.PerDay) != 0 {
		t.Errorf("fallback PerDay len = %d, want 0", len(out.Breakdown.PerDay))
	}
	if got := *out.Breakdown.TotalCost; got != 90.00 {
		t.Errorf("TotalCost = %v, want 90.00 from yearly stats", got)
	}
	// 2500 kWh cumulative lands in band 3.
	if got := *out.Breakdown.Ladder.Band; got != 3 {
		t.Errorf("band = %d, want 3", got)
	}
}

func TestMonthBreakdownFallbackCurrentMonthUsage(t *testing.T) {
	svc := NewService(testConfig())
	// August is missing from the stats and is the running month, so the
	// usage-only endpoint fills it in.
	period := ladder.UsagePeriod{Year: 2026, Month: 8}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	out, err := svc.MonthBreakdown(context.Background(), "fake-fallback", "acct", period, now)
	if err != nil {
		t.Fatalf("MonthBreakdown: %v", err)
	}
	if got := *out.Breakdown.TotalUsage; got != 42 {
		t.Errorf("TotalUsage = %v, want 42 from usage endpoint", got)
	}
	// 42 kWh x band-3 tariff 0.50.
	if got := *out.Breakdown.TotalCost; got != 21.00 {
		t.Errorf("TotalCost = %v, want 21.00", got)
	}
}

func TestMonthBreakdownFallbackClosedMonthStaysAbsent(t *testing.T) {
	svc := NewService(testConfig())
	// May is missing from the stats and closed: the usage endpoint must not
	// be consulted and the totals stay nil.
	period := ladder.UsagePeriod{Year: 2026, Month: 5}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	out, err := svc.MonthBreakdown(context.Background(), "fake-fallback", "acct", period, now)
	if err != nil {
		t.Fatalf("MonthBreakdown: %v", err)
	}
	if out.Breakdown.TotalUsage != nil {
		t.Errorf("TotalUsage = %v, want nil", *out.Breakdown.TotalUsage)
	}
	if out.Breakdown.TotalCost != nil {
		t.Errorf("TotalCost = %v, want nil", *out.Breakdown.TotalCost)
	}
	if out.Breakdown.Ladder == nil || *out.Breakdown.Ladder.Band != 3 {
		t.Error("ladder resolution from yearly cumulative still expected")
	}
}

func TestMonthBreakdownUpstreamErrorPropagates(t *testing.T) {
	svc := NewService(testConfig())
	period := ladder.UsagePeriod{Year: 2026, Month: 7}
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.MonthBreakdown(context.Background(), "fake-down", "acct", period, now)
	var ue *ladder.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *ladder.UpstreamError", err)
	}
}

func TestMonthBreakdownUnknownProvider(t *testing.T) {
	svc := NewService(testConfig())
	_, err := svc.MonthBreakdown(context.Background(), "nope", "acct",
		ladder.UsagePeriod{Year: 2026, Month: 7}, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestTierStatusDirect(t *testing.T) {
	svc := NewService(testConfig())

	out, err := svc.TierStatus(context.Background(), "fake-ok", "acct", ladder.UsagePeriod{Year: 2026, Month: 8})
	if err != nil {
		t.Fatalf("TierStatus: %v", err)
	}
	if out.Derived {
		t.Error("direct path must not be flagged derived")
	}
	if got := *out.Resolution.Band; got != 3 {
		t.Errorf("band = %d, want 3 from name 居民阶梯二", got)
	}
	if got := *out.Resolution.Price; got != 0.50 {
		t.Errorf("price = %v, want 0.50", got)
	}
}

func TestTierStatusDerivedOnProviderError(t *testing.T) {
	svc := NewService(testConfig())

	out, err := svc.TierStatus(context.Background(), "fake-fallback", "acct", ladder.UsagePeriod{Year: 2026, Month: 8})
	if err != nil {
		t.Fatalf("TierStatus: %v", err)
	}
	if !out.Derived {
		t.Error("fallback resolution must be flagged derived")
	}
	if got := *out.Resolution.Band; got != 3 {
		t.Errorf("band = %d, want 3 from 2500 kWh cumulative", got)
	}
	if got := *out.Resolution.Remaining; got != 500 {
		t.Errorf("remaining = %v, want 500", got)
	}
}

func TestTierStatusUpstreamErrorPropagates(t *testing.T) {
	svc := NewService(testConfig())

	_, err := svc.TierStatus(context.Background(), "fake-down", "acct", ladder.UsagePeriod{Year: 2026, Month: 8})
	var ue *ladder.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *ladder.UpstreamError", err)
	}
}
