package config

import (
	"encoding/json"
	"os"

	"github.com/mubeyout/ladderd/internal/ladder"
)

// Config holds the process-level settings read from the environment.
type Config struct {
	// Port is the HTTP listen port for the serve command.
	Port string
	// DBDriver selects the storage backend: memory, sqlite, postgres,
	// postgrespool.
	DBDriver string
	// DBDSN is the backend-specific connection string.
	DBDSN string
	// FixtureDir is the base directory for fixture provider payloads.
	FixtureDir string
	// RateSheetPath is an optional filesystem path to a published ladder
	// rate-sheet PDF used as the electricity reference table source.
	RateSheetPath string
	// RecentWindowDays is the trailing window for the gas recent-usage
	// figures.
	RecentWindowDays int
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		Port:             os.Getenv("PORT"),
		DBDriver:         os.Getenv("LADDERD_DB_DRIVER"),
		DBDSN:            os.Getenv("LADDERD_DB_DSN"),
		FixtureDir:       os.Getenv("LADDERD_FIXTURE_DIR"),
		RateSheetPath:    os.Getenv("LADDERD_RATESHEET_PATH"),
		RecentWindowDays: 31,
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.FixtureDir == "" {
		cfg.FixtureDir = "/data/fixtures"
	}
	return cfg
}

const (
	electricTiersEnv = "LADDERD_ELECTRIC_TIERS_JSON"
	tierNamesEnv     = "LADDERD_TIER_NAMES_JSON"
	waterTiersEnv    = "LADDERD_WATER_TIERS_JSON"
	waterRatesEnv    = "LADDERD_WATER_RATES_JSON"
	accountsEnv      = "LADDERD_ACCOUNTS_JSON"
)

func f(v float64) *float64 { return &v }

// ElectricityTierTable returns the static 4-band reference table used by
// the derived resolver and the fallback estimator. The boundaries and
// prices vary by region, so they are configuration, not literals baked into
// the resolver.
func ElectricityTierTable() ladder.TierTable {
	if t, ok := tableFromEnv(electricTiersEnv); ok {
		return t
	}
	return ladder.TierTable{
		{Name: "tier 1", Min: 0, Max: f(1000), Price: 0.30},
		{Name: "tier 2", Min: 1000, Max: f(2000), Price: 0.40},
		{Name: "tier 3", Min: 2000, Max: f(3000), Price: 0.50},
		{Name: "tier 4", Min: 3000, Price: 0.60},
	}
}

// TierNames returns the provider tier-name vocabulary for the direct
// electricity resolver. Order matters: first match wins.
func TierNames() ladder.TierNameTable {
	if raw := os.Getenv(tierNamesEnv); raw != "" {
		var out ladder.TierNameTable
		if err := json.Unmarshal([]byte(raw), &out); err == nil && len(out) > 0 {
			return out
		}
	}
	return ladder.TierNameTable{
		{Name: "电能替代", Band: 1},
		{Name: "居民阶梯一", Band: 2},
		{Name: "居民阶梯二", Band: 3},
		{Name: "居民阶梯三", Band: 4},
	}
}

// WaterTierTable returns the fixed 3-band water ladder.
func WaterTierTable() ladder.TierTable {
	if t, ok := tableFromEnv(waterTiersEnv); ok {
		return t
	}
	return ladder.TierTable{
		{Name: "stage 1", Min: 0, Max: f(12.5), Price: 4.20},
		{Name: "stage 2", Min: 12.5, Max: f(17.5), Price: 5.80},
		{Name: "stage 3", Min: 17.5, Price: 10.60},
	}
}

// WaterRates returns the flat per-unit water bill components.
func WaterRates() ladder.WaterRates {
	if raw := os.Getenv(waterRatesEnv); raw != "" {
		var out ladder.WaterRates
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	return ladder.WaterRates{WaterRate: 3.20, SewageRate: 1.00, GarbageFee: 20.00}
}

// Account describes one monitored utility account.
type Account struct {
	Key           string `json:"key"`
	Utility       string `json:"utility"`
	Provider      string `json:"provider"`
	AccountNumber string `json:"accountNumber"`
	Notes         string `json:"notes,omitempty"`
}

func defaultAccounts() []Account {
	return []Account{
		{Key: "demo-electric", Utility: "electric", Provider: "fixture", AccountNumber: "0001", Notes: "demo electricity account"},
		{Key: "demo-gas", Utility: "gas", Provider: "fixture", AccountNumber: "0002", Notes: "demo gas account"},
		{Key: "demo-water", Utility: "water", Provider: "fixture", AccountNumber: "0003", Notes: "demo water account"},
	}
}

// Accounts returns the monitored accounts, overridable as a JSON blob in
// the environment.
func Accounts() []Account {
	raw := os.Getenv(accountsEnv)
	if raw == "" {
		return defaultAccounts()
	}
	var out []Account
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return defaultAccounts()
	}
	return out
}

// GetAccount returns the account with the given key.
func GetAccount(key string) (Account, bool) {
	for _, a := range Accounts() {
		if a.Key == key {
			return a, true
		}
	}
	return Account{}, false
}

func tableFromEnv(env string) (ladder.TierTable, bool) {
	raw := os.Getenv(env)
	if raw == "" {
		return nil, false
	}
	var out ladder.TierTable
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil, false
	}
	if err := out.Validate(); err != nil {
		return nil, false
	}
	return out, true
}
