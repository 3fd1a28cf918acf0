package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/pkg/providers"
)

// FixtureClient serves captured gas payloads from a directory tree:
//
//	<base>/<account>/monthly.json
//	<base>/<account>/daily.json
//
// Error mapping matches the electricity fixture: missing file means
// provider-level failure, any other filesystem error a transport failure.
type FixtureClient struct {
	base string
}

// NewFixtureClient returns a fixture client rooted at the given directory.
func NewFixtureClient(base string) *FixtureClient {
	return &FixtureClient{base: base}
}

func (c *FixtureClient) Key() string                 { return "fixture" }
func (c *FixtureClient) Name() string                { return "Fixture Gas Provider" }
func (c *FixtureClient) Type() providers.UtilityType { return providers.UtilityGas }

func (c *FixtureClient) MonthlyUsage(ctx context.Context, account string, months int) (*MonthlyUsageResponse, error) {
	var resp MonthlyUsageResponse
	if err := c.load(account, "monthly.json", &resp); err != nil {
		return nil, err
	}
	if months > 0 && len(resp.RecordsInfo) > months {
		resp.RecordsInfo = resp.RecordsInfo[len(resp.RecordsInfo)-months:]
	}
	return &resp, nil
}

func (c *FixtureClient) DailyUsage(ctx context.Context, account string, days int) ([]DailyRecord, error) {
	var records []DailyRecord
	if err := c.load(account, "daily.json", &records); err != nil {
		return nil, err
	}
	if days > 0 && len(records) > days {
		records = records[:days]
	}
	return records, nil
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
