package ladder

import (
	"errors"
	"testing"
	"time"
)

func tierNames() TierNameTable {
	return TierNameTable{
		{Name: "电能替代", Band: 1},
		{Name: "居民阶梯一", Band: 2},
		{Name: "居民阶梯二", Band: 3},
		{Name: "居民阶梯三", Band: 4},
	}
}

func TestResolveElectricityDerived_Scenario(t *testing.T) {
	// 4-band table, 2500 kWh cumulative: band 3 at 0.50 with 500 remaining.
	res, err := ResolveElectricityDerived(2500, referenceTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Band == nil || *res.Band != 3 {
		t.Fatalf("band: got %v, want 3", res.Band)
	}
	if res.Price == nil || *res.Price != 0.50 {
		t.Fatalf("price: got %v, want 0.50", res.Price)
	}
	if res.Remaining == nil || *res.Remaining != 500 {
		t.Fatalf("remaining: got %v, want 500", res.Remaining)
	}
}

func TestResolveElectricityDerived_TopBandOpenEnded(t *testing.T) {
	res, err := ResolveElectricityDerived(5000, referenceTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *res.Band != 4 {
		t.Fatalf("band: got %d, want 4", *res.Band)
	}
	if res.Remaining != nil {
		t.Fatalf("remaining in open-ended band must be nil, got %v", *res.Remaining)
	}
}

func TestResolveElectricityDerived_NegativeUsage(t *testing.T) {
	if _, err := ResolveElectricityDerived(-10, referenceTable()); !errors.Is(err, ErrInvalidUsage) {
		t.Fatalf("got %v, want ErrInvalidUsage", err)
	}
}

func TestResolveElectricityDirect_NameMatch(t *testing.T) {
	info := AnnualTierInfo{
		CurrentTierName: "【居民阶梯二】",
		Price:           fp(0.55),
		Remaining:       fp(321.5),
		CumulativeUsage: fp(2100),
	}
	res, err := ResolveElectricityDirect(info, tierNames())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *res.Band != 3 {
		t.Fatalf("band: got %d, want 3", *res.Band)
	}
	if *res.Price != 0.55 || *res.Remaining != 321.5 {
		t.Fatalf("price/remaining not passed through: %v %v", *res.Price, *res.Remaining)
	}
}

func TestResolveElectricityDirect_BandFallback(t *testing.T) {
	// Unknown name: the cumulative usage is located in the returned table.
	info := AnnualTierInfo{
		CurrentTierName: "【未知阶梯】",
		CumulativeUsage: fp(1500),
		Table:           referenceTable(),
	}
	res, err := ResolveElectricityDirect(info, tierNames())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *res.Band != 2 {
		t.Fatalf("band: got %d, want 2", *res.Band)
	}
}

func TestResolveElectricityDirect_Unresolved(t *testing.T) {
	// No name match, no usable cumulative usage: hard error, never tier 1.
	info := AnnualTierInfo{CurrentTierName: "something else"}
	if _, err := ResolveElectricityDirect(info, tierNames()); !errors.Is(err, ErrUnresolvedTier) {
		t.Fatalf("got %v, want ErrUnresolvedTier", err)
	}

	// Name miss plus a table that cannot locate the usage either.
	info = AnnualTierInfo{CurrentTierName: "something else", CumulativeUsage: fp(100)}
	if _, err := ResolveElectricityDirect(info, tierNames()); err == nil {
		t.Fatal("expected error with empty band table")
	}
}

func TestReconcileMonth_DerivesDailyCharges(t *testing.T) {
	band := 1
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	d := MonthDetail{
		TotalUsage:      fp(90),
		TotalCost:       fp(27.5),
		LadderBand:      &band,
		LadderStart:     &start,
		LadderRemaining: fp(910),
		Tariff:          fp(0.30),
		Days: []DailyCharge{
			{Date: "2025-05-01", Usage: fp(10), Cost: fp(3.10)},
			{Date: "2025-05-02", Usage: fp(12)},
			{Date: "2025-05-03"},
		},
	}
	out := ReconcileMonth(UsagePeriod{2025, 5}, d)

	if len(out.PerDay) != 3 {
		t.Fatalf("per-day count: got %d, want 3", len(out.PerDay))
	}
	// Explicit charge wins.
	if *out.PerDay[0].Cost != 3.10 {
		t.Errorf("day 1 cost: got %v, want 3.10", *out.PerDay[0].Cost)
	}
	// Missing charge derived from usage and tariff.
	if out.PerDay[1].Cost == nil || *out.PerDay[1].Cost != 3.60 {
		t.Errorf("day 2 cost: got %v, want 3.60", out.PerDay[1].Cost)
	}
	// Neither usage nor charge: stays unknown, never zero.
	if out.PerDay[2].Cost != nil {
		t.Errorf("day 3 cost: got %v, want nil", *out.PerDay[2].Cost)
	}
	if *out.TotalCost != 27.5 {
		t.Errorf("total cost: got %v, want API value 27.5", *out.TotalCost)
	}
	if out.Estimated {
		t.Error("non-fallback result must not be flagged estimated")
	}
	if out.Ladder == nil || *out.Ladder.Band != 1 || *out.Ladder.Remaining != 910 {
		t.Errorf("ladder block not carried through: %+v", out.Ladder)
	}
}

func TestReconcileMonth_DerivesMonthTotal(t *testing.T) {
	d := MonthDetail{
		TotalUsage: fp(100),
		Tariff:     fp(0.40),
		Days:       []DailyCharge{{Date: "2025-05-01", Usage: fp(100)}},
	}
	out := ReconcileMonth(UsagePeriod{2025, 5}, d)
	if out.TotalCost == nil || *out.TotalCost != 40.00 {
		t.Fatalf("derived total cost: got %v, want 40.00", out.TotalCost)
	}
}

func TestReconcileMonth_NullsPropagate(t *testing.T) {
	// Totals and ladder absent: everything stays unknown.
	d := MonthDetail{Days: []DailyCharge{{Date: "2025-05-01", Usage: fp(5)}}}
	out := ReconcileMonth(UsagePeriod{2025, 5}, d)
	if out.TotalUsage != nil || out.TotalCost != nil {
		t.Fatalf("totals must stay nil: %+v", out)
	}
	if out.Ladder != nil {
		t.Fatalf("ladder must stay nil when the provider omitted it: %+v", out.Ladder)
	}
}

func TestEstimateMonth_NeverHasPerDay(t *testing.T) {
	out, err := EstimateMonth(UsagePeriod{2025, 5}, 2500, fp(180), nil, referenceTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.PerDay) != 0 {
		t.Fatalf("fallback must not produce per-day records, got %d", len(out.PerDay))
	}
	if !out.Estimated {
		t.Fatal("fallback result must be flagged estimated")
	}
	if *out.Ladder.Band != 3 {
		t.Fatalf("band: got %d, want 3", *out.Ladder.Band)
	}
	// 180 kWh at the band-3 rate.
	if out.TotalCost == nil || *out.TotalCost != 90.00 {
		t.Fatalf("estimated cost: got %v, want 90.00", out.TotalCost)
	}
}

func TestEstimateMonth_KeepsKnownCost(t *testing.T) {
	out, err := EstimateMonth(UsagePeriod{2025, 3}, 800, fp(150), fp(47.25), referenceTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *out.TotalCost != 47.25 {
		t.Fatalf("cost from yearly stats must win: got %v", *out.TotalCost)
	}
}

func TestEstimateMonth_UnknownUsageStaysUnknown(t *testing.T) {
	out, err := EstimateMonth(UsagePeriod{2025, 5}, 500, nil, nil, referenceTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TotalUsage != nil || out.TotalCost != nil {
		t.Fatalf("unknown month figures must stay nil: %+v", out)
	}
	if *out.Ladder.Band != 1 {
		t.Fatalf("band from yearly cumulative: got %d, want 1", *out.Ladder.Band)
	}
}
