package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/rates"
	"github.com/mubeyout/ladderd/pkg/providers"
	"github.com/mubeyout/ladderd/pkg/providers/electric"
	"github.com/mubeyout/ladderd/pkg/providers/water"
)

func fp(v float64) *float64 { return &v }

func nf(v float64) providers.NullFloat { return providers.NullFloat{Value: &v} }

// stubElectric is a scriptable electricity client for handler tests.
type stubElectric struct {
	detail    *electric.MonthDetailResponse
	detailErr error
	tier      *electric.AnnualTierInfoResponse
	tierErr   error
}

func (c *stubElectric) Key() string                 { return "api-electric" }
func (c *stubElectric) Name() string                { return "API Test Electric" }
func (c *stubElectric) Type() providers.UtilityType { return providers.UtilityElectric }

func (c *stubElectric) MonthDetail(ctx context.Context, account string, period ladder.UsagePeriod) (*electric.MonthDetailResponse, error) {
	return c.detail, c.detailErr
}

func (c *stubElectric) AnnualTierInfo(ctx context.Context, account string, period ladder.UsagePeriod) (*electric.AnnualTierInfoResponse, error) {
	return c.tier, c.tierErr
}

func (c *stubElectric) YearStats(ctx context.Context, account string, year int) (*electric.YearStatsResponse, error) {
	return &electric.YearStatsResponse{}, nil
}

func (c *stubElectric) MonthUsage(ctx context.Context, account string, period ladder.UsagePeriod) (*float64, error) {
	return nil, nil
}

var stub = &stubElectric{}

func init() {
	electric.Register(stub)
}

func referenceTable() ladder.TierTable {
	return ladder.TierTable{
		{Name: "tier 1", Min: 0, Max: fp(1000), Price: 0.30},
		{Name: "tier 2", Min: 1000, Max: fp(2000), Price: 0.40},
		{Name: "tier 3", Min: 2000, Max: fp(3000), Price: 0.50},
		{Name: "tier 4", Min: 3000, Price: 0.60},
	}
}

func waterTable() ladder.TierTable {
	return ladder.TierTable{
		{Name: "stage 1", Min: 0, Max: fp(12.5), Price: 4.20},
		{Name: "stage 2", Min: 12.5, Max: fp(17.5), Price: 5.80},
		{Name: "stage 3", Min: 17.5, Price: 10.60},
	}
}

func testHandlers(t *testing.T) *handlers {
	t.Helper()
	loader := func(ctx context.Context, account string) (*water.AccountConfig, error) {
		return &water.AccountConfig{
			UserCode: account,
			UserName: "Test User",
			Bills:    []water.BillRecord{{BillNo: "20260701", Amount: nf(15)}},
		}, nil
	}
	return &handlers{
		electric: rates.NewService(rates.Config{ReferenceTable: referenceTable()}),
		gas:      rates.NewGasService(31),
		water: rates.NewWaterService(
			ladder.WaterRates{WaterRate: 3.20, SewageRate: 1.00, GarbageFee: 20.00},
			waterTable(),
			loader,
		),
	}
}

func setAccounts(t *testing.T) {
	t.Helper()
	t.Setenv("LADDERD_ACCOUNTS_JSON", `[
		{"key":"home-electric","utility":"electric","provider":"api-electric","accountNumber":"1001"},
		{"key":"home-water","utility":"water","provider":"static","accountNumber":"3001"}
	]`)
}

func TestHandleLadderMonth(t *testing.T) {
	setAccounts(t)
	stub.detail = &electric.MonthDetailResponse{
		TotalPower:       nf(120),
		TotalElectricity: nf(48),
		LadderEle:        nf(2),
		LadderTariff:     nf(0.40),
		Result: []electric.DayRecord{
			{Date: "2026-08-01", Power: nf(12), Charge: nf(4.80)},
		},
	}
	stub.detailErr = nil

	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/home-electric/month?year=2026&month=7", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp rates.ElectricityMonth
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Source != "provider" {
		t.Errorf("Source = %q, want provider", resp.Source)
	}
	if resp.Breakdown.TotalUsage == nil || *resp.Breakdown.TotalUsage != 120 {
		t.Errorf("TotalUsage = %v, want 120", resp.Breakdown.TotalUsage)
	}
}

func TestHandleLadderUnknownAccount(t *testing.T) {
	setAccounts(t)
	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/nobody/month", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleLadderTierOnWaterAccount(t *testing.T) {
	setAccounts(t)
	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/home-water/tier", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleLadderUpstreamFailure(t *testing.T) {
	setAccounts(t)
	stub.detail = nil
	stub.detailErr = &ladder.UpstreamError{Op: "monthDetail", Err: context.DeadlineExceeded}
	defer func() { stub.detailErr = nil }()

	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/home-electric/month", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleLadderBadMonthQuery(t *testing.T) {
	setAccounts(t)
	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/home-electric/month?month=13", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleLadderMethodNotAllowed(t *testing.T) {
	setAccounts(t)
	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodPost, "/ladder/home-electric/month", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleLadderWaterSummary(t *testing.T) {
	setAccounts(t)
	h := testHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/ladder/home-water/summary", nil)
	rec := httptest.NewRecorder()
	handleLadder(h)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp rates.WaterReport
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Bill.TotalCost != 83.00 {
		t.Errorf("Bill.TotalCost = %v, want 83.00", resp.Bill.TotalCost)
	}
	if resp.Stage.Stage != 1 {
		t.Errorf("Stage.Stage = %d, want 1 (stage resolved on the monthly average)", resp.Stage.Stage)
	}
}

func TestAccountsHandler(t *testing.T) {
	setAccounts(t)
	mux := http.NewServeMux()
	RegisterAccountsHandler(mux)

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Accounts []AccountDTO `json:"accounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(resp.Accounts))
	}
}

func TestRefreshHandlerRequiresPost(t *testing.T) {
	setAccounts(t)
	mux := http.NewServeMux()
	RegisterRefreshHandler(mux, testHandlers(t))

	req := httptest.NewRequest(http.MethodGet, "/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
