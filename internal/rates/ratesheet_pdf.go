package rates

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"

	pdf "github.com/ledongthuc/pdf"

	"github.com/mubeyout/ladderd/internal/ladder"
)

func init() {
	RegisterTariffParser(TariffParser{
		Key:       "ratesheet",
		Name:      "Published residential ladder rate sheet",
		ParsePDF:  ParseRateSheetPDF,
		ParseText: ParseRateSheetText,
	})
}

// ParseRateSheetPDF opens a published rate-sheet PDF, extracts text, and
// delegates to ParseRateSheetText.
func ParseRateSheetPDF(path string) (ladder.TierTable, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return ParseRateSheetText(buf.String())
}

// Sheets list one band per line:
//
//	Tier 1: 0 - 1000 kWh @ 0.30
//	Tier 4: above 3000 kWh @ 0.60
var (
	boundedRowRe = regexp.MustCompile(`Tier\s+(\d+)\s*[:：]?\s*(\d+(?:\.\d+)?)\s*[-–]\s*(\d+(?:\.\d+)?)\s*kWh\s*@\s*(\d+(?:\.\d+)?)`)
	openRowRe    = regexp.MustCompile(`Tier\s+(\d+)\s*[:：]?\s*(?:above|over)\s*(\d+(?:\.\d+)?)\s*kWh\s*@\s*(\d+(?:\.\d+)?)`)
)

// ParseRateSheetText extracts the band table from a plain-text rate sheet.
// The result is validated: a sheet that does not yield a contiguous table
// with one open-ended top band is rejected rather than patched up.
func ParseRateSheetText(text string) (ladder.TierTable, error) {
	rows := make(map[int]ladder.TierBand)
	var maxTier int

	for _, m := range boundedRowRe.FindAllStringSubmatch(text, -1) {
		tier, _ := strconv.Atoi(m[1])
		min, _ := strconv.ParseFloat(m[2], 64)
		max, _ := strconv.ParseFloat(m[3], 64)
		price, _ := strconv.ParseFloat(m[4], 64)
		rows[tier] = ladder.TierBand{
			Name:  fmt.Sprintf("tier %d", tier),
			Min:   min,
			Max:   &max,
			Price: price,
		}
		if tier > maxTier {
			maxTier = tier
		}
	}
	for _, m := range openRowRe.FindAllStringSubmatch(text, -1) {
		tier, _ := strconv.Atoi(m[1])
		min, _ := strconv.ParseFloat(m[2], 64)
		price, _ := strconv.ParseFloat(m[3], 64)
		rows[tier] = ladder.TierBand{
			Name:  fmt.Sprintf("tier %d", tier),
			Min:   min,
			Price: price,
		}
		if tier > maxTier {
			maxTier = tier
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no tier rows found in rate sheet")
	}

	table := make(ladder.TierTable, 0, len(rows))
	for i := 1; i <= maxTier; i++ {
		band, ok := rows[i]
		if !ok {
			return nil, fmt.Errorf("rate sheet is missing tier %d", i)
		}
		table = append(table, band)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("rate sheet table invalid: %w", err)
	}
	return table, nil
}
