package ladder

import (
	"errors"
	"testing"
)

func fp(v float64) *float64 { return &v }

func referenceTable() TierTable {
	return TierTable{
		{Name: "tier 1", Min: 0, Max: fp(1000), Price: 0.30},
		{Name: "tier 2", Min: 1000, Max: fp(2000), Price: 0.40},
		{Name: "tier 3", Min: 2000, Max: fp(3000), Price: 0.50},
		{Name: "tier 4", Min: 3000, Price: 0.60},
	}
}

func TestTierTable_Validate(t *testing.T) {
	if err := referenceTable().Validate(); err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}

	bad := []struct {
		name  string
		table TierTable
	}{
		{"empty", TierTable{}},
		{"last band bounded", TierTable{
			{Min: 0, Max: fp(100), Price: 1},
			{Min: 100, Max: fp(200), Price: 2},
		}},
		{"gap between bands", TierTable{
			{Min: 0, Max: fp(100), Price: 1},
			{Min: 150, Price: 2},
		}},
		{"open-ended band not last", TierTable{
			{Min: 0, Price: 1},
			{Min: 100, Price: 2},
		}},
		{"inverted bounds", TierTable{
			{Min: 100, Max: fp(50), Price: 1},
			{Min: 50, Price: 2},
		}},
	}
	for _, tc := range bad {
		if err := tc.table.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLookupBand_ExactlyOneBand(t *testing.T) {
	table := referenceTable()

	// Every non-negative usage must land in exactly one band satisfying
	// min <= usage and (usage < max or max open).
	for _, usage := range []float64{0, 1, 999.99, 1000, 1500, 2000, 2999.9, 3000, 100000} {
		idx, band, err := LookupBand(table, usage)
		if err != nil {
			t.Fatalf("usage %.2f: unexpected error: %v", usage, err)
		}
		if band.Min > usage {
			t.Errorf("usage %.2f: band %d min %.2f above usage", usage, idx, band.Min)
		}
		if band.Max != nil && usage >= *band.Max {
			t.Errorf("usage %.2f: band %d max %.2f not above usage", usage, idx, *band.Max)
		}
		matches := 0
		for _, b := range table {
			if b.Contains(usage) {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("usage %.2f: contained in %d bands, want 1", usage, matches)
		}
	}
}

func TestLookupBand_InvalidInputs(t *testing.T) {
	if _, _, err := LookupBand(referenceTable(), -1); !errors.Is(err, ErrInvalidUsage) {
		t.Fatalf("negative usage: got %v, want ErrInvalidUsage", err)
	}
	if _, _, err := LookupBand(TierTable{}, 10); !errors.Is(err, ErrInvalidUsage) {
		t.Fatalf("empty table: got %v, want ErrInvalidUsage", err)
	}
}
