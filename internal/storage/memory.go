package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is a non-persistent Storage backend used for tests and
// zero-dependency deployments.
type MemoryStorage struct {
	mu        sync.RWMutex
	accounts  map[string]Account
	snapshots map[string]ResolutionSnapshot
	settings  map[string]string
	jobs      map[string]ScheduledJob
	batches   map[string]BatchProgress
	users     map[string]User
	tokens    map[string]Token
	rules     []CasbinRule
	email     *EmailConfig
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		accounts:  make(map[string]Account),
		snapshots: make(map[string]ResolutionSnapshot),
		settings:  make(map[string]string),
		jobs:      make(map[string]ScheduledJob),
		batches:   make(map[string]BatchProgress),
		users:     make(map[string]User),
		tokens:    make(map[string]Token),
	}
}

// NewMemoryWithAccounts returns an in-memory backend preloaded with accounts.
func NewMemoryWithAccounts(accounts []Account) *MemoryStorage {
	m := NewMemory()
	for _, a := range accounts {
		m.accounts[a.Key] = a
	}
	return m
}

func snapKey(account, kind, period string) string {
	return account + "\x00" + kind + "\x00" + period
}

func batchKey(batchID, account string) string {
	return batchID + "\x00" + account
}

func (m *MemoryStorage) ListAccounts(ctx context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStorage) GetAccount(ctx context.Context, key string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[key]; ok {
		cp := a
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) UpsertAccount(ctx context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.Key] = a
	return nil
}

func (m *MemoryStorage) GetResolutionSnapshot(ctx context.Context, account, kind, period string) (*ResolutionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.snapshots[snapKey(account, kind, period)]; ok {
		cp := s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapKey(snap.Account, snap.Kind, snap.Period)] = snap
	return nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) SaveBatchProgress(ctx context.Context, progress BatchProgress) error {
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batchKey(progress.BatchID, progress.Account)] = progress
	return nil
}

func (m *MemoryStorage) GetBatchProgress(ctx context.Context, batchID, account string) (*BatchProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.batches[batchKey(batchID, account)]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) GetPendingBatchAccounts(ctx context.Context, batchID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, p := range m.batches {
		if p.BatchID == batchID && (p.Status == "pending" || p.Status == "failed") {
			out = append(out, p.Account)
		}
	}
	return out, nil
}

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tokens[id]; ok {
		cp := t
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rules[:0]
	for _, r := range m.rules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 && r.V2 == rule.V2 {
			continue
		}
		kept = append(kept, r)
	}
	m.rules = kept
	return nil
}

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.email == nil {
		return nil, nil
	}
	cp := *m.email
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = &config
	return nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }
