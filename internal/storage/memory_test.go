package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemorySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.GetResolutionSnapshot(ctx, "home", "electricity-month", "2026-07")
	if err != nil {
		t.Fatalf("GetResolutionSnapshot: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot before save, got %+v", got)
	}

	snap := ResolutionSnapshot{
		Account:   "home",
		Kind:      "electricity-month",
		Period:    "2026-07",
		Payload:   []byte(`{"total":40}`),
		Estimated: true,
	}
	if err := m.SaveResolutionSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveResolutionSnapshot: %v", err)
	}

	got, err = m.GetResolutionSnapshot(ctx, "home", "electricity-month", "2026-07")
	if err != nil {
		t.Fatalf("GetResolutionSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot after save")
	}
	if string(got.Payload) != `{"total":40}` {
		t.Errorf("Payload = %s", got.Payload)
	}
	if !got.Estimated {
		t.Error("Estimated flag lost on round trip")
	}
	if got.FetchedAt.IsZero() {
		t.Error("FetchedAt not defaulted on save")
	}

	// A different period must not collide.
	other, err := m.GetResolutionSnapshot(ctx, "home", "electricity-month", "2026-06")
	if err != nil {
		t.Fatalf("GetResolutionSnapshot: %v", err)
	}
	if other != nil {
		t.Errorf("period 2026-06 unexpectedly resolved to %+v", other)
	}
}

func TestMemorySnapshotKeyIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// Account and kind strings that would collide under naive
	// concatenation must stay distinct.
	a := ResolutionSnapshot{Account: "ab", Kind: "c", Period: "p", Payload: []byte("1")}
	b := ResolutionSnapshot{Account: "a", Kind: "bc", Period: "p", Payload: []byte("2")}
	if err := m.SaveResolutionSnapshot(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := m.SaveResolutionSnapshot(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, _ := m.GetResolutionSnapshot(ctx, "ab", "c", "p")
	if got == nil || string(got.Payload) != "1" {
		t.Errorf("snapshot for (ab,c) = %+v, want payload 1", got)
	}
	got, _ = m.GetResolutionSnapshot(ctx, "a", "bc", "p")
	if got == nil || string(got.Payload) != "2" {
		t.Errorf("snapshot for (a,bc) = %+v, want payload 2", got)
	}
}

func TestMemoryAccounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithAccounts([]Account{
		{Key: "home-electric", Utility: "electric", Provider: "fixture", AccountNumber: "1001"},
	})

	a, err := m.GetAccount(ctx, "home-electric")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if a == nil || a.AccountNumber != "1001" {
		t.Fatalf("GetAccount = %+v, want account 1001", a)
	}

	missing, err := m.GetAccount(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown key resolved to %+v", missing)
	}

	if err := m.UpsertAccount(ctx, Account{Key: "home-gas", Utility: "gas"}); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	list, err := m.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(accounts) = %d, want 2", len(list))
	}
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	v, err := m.GetSetting(ctx, "refresh_interval_seconds")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "" {
		t.Errorf("unset setting = %q, want empty", v)
	}

	if err := m.SetSetting(ctx, "refresh_interval_seconds", "600"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, _ = m.GetSetting(ctx, "refresh_interval_seconds")
	if v != "600" {
		t.Errorf("setting = %q, want 600", v)
	}
}

func TestMemoryBatchProgress(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, p := range []BatchProgress{
		{BatchID: "b1", Account: "home-electric", Status: "done"},
		{BatchID: "b1", Account: "home-gas", Status: "pending"},
		{BatchID: "b1", Account: "home-water", Status: "failed", Error: "no snapshot"},
		{BatchID: "b2", Account: "home-gas", Status: "pending"},
	} {
		if err := m.SaveBatchProgress(ctx, p); err != nil {
			t.Fatalf("SaveBatchProgress: %v", err)
		}
	}

	got, err := m.GetBatchProgress(ctx, "b1", "home-water")
	if err != nil {
		t.Fatalf("GetBatchProgress: %v", err)
	}
	if got == nil || got.Status != "failed" || got.Error != "no snapshot" {
		t.Fatalf("GetBatchProgress = %+v", got)
	}

	pending, err := m.GetPendingBatchAccounts(ctx, "b1")
	if err != nil {
		t.Fatalf("GetPendingBatchAccounts: %v", err)
	}
	// pending plus failed accounts are both retryable
	if len(pending) != 2 {
		t.Errorf("pending for b1 = %v, want 2 entries", pending)
	}
}

func TestMemoryScheduledJob(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	started := time.Now().Add(-2 * time.Second)
	if err := m.UpdateScheduledJob(ctx, "refresh_accounts", started, 1500*time.Millisecond, false, "boom"); err != nil {
		t.Fatalf("UpdateScheduledJob: %v", err)
	}

	m.mu.RLock()
	job := m.jobs["refresh_accounts"]
	m.mu.RUnlock()
	if job.LastDurationMs != 1500 {
		t.Errorf("LastDurationMs = %d, want 1500", job.LastDurationMs)
	}
	if job.LastSuccess != 0 {
		t.Errorf("LastSuccess = %d, want 0", job.LastSuccess)
	}
	if job.LastError != "boom" {
		t.Errorf("LastError = %q", job.LastError)
	}
}

func TestMemoryTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateToken(ctx, Token{ID: "t1", UserID: "u1", TokenHash: "abc"}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	got, err := m.GetTokenByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("GetTokenByHash: %v", err)
	}
	if got == nil || got.ID != "t1" {
		t.Fatalf("GetTokenByHash = %+v", got)
	}

	if err := m.UpdateTokenLastUsed(ctx, "t1"); err != nil {
		t.Fatalf("UpdateTokenLastUsed: %v", err)
	}
	got, _ = m.GetToken(ctx, "t1")
	if got.LastUsedAt == nil {
		t.Error("LastUsedAt not set")
	}

	if err := m.DeleteToken(ctx, "t1"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	got, _ = m.GetToken(ctx, "t1")
	if got != nil {
		t.Errorf("token survived delete: %+v", got)
	}
}
