package electric

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/pkg/providers"
)

// FixtureClient serves captured provider payloads from a directory tree:
//
//	<base>/<account>/monthdetail_YYYY-MM.json
//	<base>/<account>/tierinfo.json
//	<base>/<account>/yearstats_YYYY.json
//	<base>/<account>/monthusage_YYYY-MM.json
//
// A missing file is a provider-level failure (*ladder.ProviderError), the
// same class of error the live API reports when it has no data; any other
// filesystem error is treated as a transport failure. This is the client
// used by tests and the demo deployment.
type FixtureClient struct {
	base string
}

// NewFixtureClient returns a fixture client rooted at the given directory.
func NewFixtureClient(base string) *FixtureClient {
	return &FixtureClient{base: base}
}

func (c *FixtureClient) Key() string                  { return "fixture" }
func (c *FixtureClient) Name() string                 { return "Fixture Electricity Provider" }
func (c *FixtureClient) Type() providers.UtilityType  { return providers.UtilityElectric }

func (c *FixtureClient) MonthDetail(ctx context.Context, account string, period ladder.UsagePeriod) (*MonthDetailResponse, error) {
	var resp MonthDetailResponse
	if err := c.load(account, fmt.Sprintf("monthdetail_%s.json", period.Key()), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FixtureClient) AnnualTierInfo(ctx context.Context, account string, period ladder.UsagePeriod) (*AnnualTierInfoResponse, error) {
	var resp AnnualTierInfoResponse
	if err := c.load(account, "tierinfo.json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FixtureClient) YearStats(ctx context.Context, account string, year int) (*YearStatsResponse, error) {
	var resp YearStatsResponse
	if err := c.load(account, fmt.Sprintf("yearstats_%d.json", year), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FixtureClient) MonthUsage(ctx context.Context, account string, period ladder.UsagePeriod) (*float64, error) {
	var resp struct {
		TotalPower providers.NullFloat `json:"totalPower"`
	}
	if err := c.load(account, fmt.Sprintf("monthusage_%s.json", period.Key()), &resp); err != nil {
		return nil, err
	}
	return resp.TotalPower.Value, nil
}

func (c *FixtureClient) load(account, name string, out any) error {
	path := filepath.Join(c.base, account, name)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ladder.ProviderError{Op: name, Code: "NO_DATA", Msg: "no captured payload for " + path}
	}
	if err != nil {
		return &ladder.UpstreamError{Op: name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
