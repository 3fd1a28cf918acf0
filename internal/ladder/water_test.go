package ladder

import (
	"errors"
	"testing"
)

func waterTable() TierTable {
	return TierTable{
		{Min: 0, Max: fp(12.5), Price: 4.20},
		{Min: 12.5, Max: fp(17.5), Price: 5.80},
		{Min: 17.5, Price: 10.60},
	}
}

func TestResolveWaterStage(t *testing.T) {
	cases := []struct {
		usage float64
		stage int
		price float64
	}{
		{0, 1, 4.20},
		{10, 1, 4.20},
		{12.5, 1, 4.20},
		{15, 2, 5.80},
		{17.5, 2, 5.80},
		{18, 3, 10.60},
		{1000, 3, 10.60},
	}
	for _, tc := range cases {
		got, err := ResolveWaterStage(tc.usage, waterTable())
		if err != nil {
			t.Fatalf("usage %.1f: unexpected error: %v", tc.usage, err)
		}
		if got.Stage != tc.stage || got.UnitPrice != tc.price {
			t.Errorf("usage %.1f: got stage %d @ %v, want %d @ %v",
				tc.usage, got.Stage, got.UnitPrice, tc.stage, tc.price)
		}
	}
}

func TestResolveWaterStage_NegativeUsage(t *testing.T) {
	if _, err := ResolveWaterStage(-1, waterTable()); !errors.Is(err, ErrInvalidUsage) {
		t.Fatalf("got %v, want ErrInvalidUsage", err)
	}
}

func TestWaterBillBreakdown_Scenario(t *testing.T) {
	rates := WaterRates{WaterRate: 3.20, SewageRate: 1.00, GarbageFee: 20.00}
	bill, err := WaterBillBreakdown(15, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bill.WaterFee != 48.00 {
		t.Errorf("water fee: got %v, want 48.00", bill.WaterFee)
	}
	if bill.SewageFee != 15.00 {
		t.Errorf("sewage fee: got %v, want 15.00", bill.SewageFee)
	}
	if bill.GarbageFee != 20.00 {
		t.Errorf("garbage fee: got %v, want 20.00", bill.GarbageFee)
	}
	if bill.TotalCost != 83.00 {
		t.Errorf("total: got %v, want 83.00", bill.TotalCost)
	}
	if bill.MonthlyAverage != 7.5 {
		t.Errorf("monthly average: got %v, want 7.5", bill.MonthlyAverage)
	}
}

func TestWaterBillBreakdown_RoundingOrder(t *testing.T) {
	// The contract is round-per-line-item, then sum. With usage 3.33 the
	// per-item rounding differs from rounding once at the end.
	rates := WaterRates{WaterRate: 3.204, SewageRate: 1.004, GarbageFee: 20.00}
	bill, err := WaterBillBreakdown(3.33, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantWater := round2(3.33 * 3.204)
	wantSewage := round2(3.33 * 1.004)
	if bill.WaterFee != wantWater || bill.SewageFee != wantSewage {
		t.Fatalf("line items not rounded independently: %v %v", bill.WaterFee, bill.SewageFee)
	}
	if want := round2(wantWater + wantSewage + 20.00); bill.TotalCost != want {
		t.Fatalf("total: got %v, want %v", bill.TotalCost, want)
	}
}

func TestWaterBillBreakdown_NegativeUsage(t *testing.T) {
	if _, err := WaterBillBreakdown(-5, WaterRates{}); !errors.Is(err, ErrInvalidUsage) {
		t.Fatalf("got %v, want ErrInvalidUsage", err)
	}
}
