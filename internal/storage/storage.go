package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for accounts, resolution snapshots, and the
// operational tables shared by the API and the worker.
type Storage interface {
	// Accounts
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, key string) (*Account, error)
	UpsertAccount(ctx context.Context, a Account) error

	// Resolution snapshots. Get returns the latest snapshot for the
	// (account, kind, period) triple, or nil when none exists.
	GetResolutionSnapshot(ctx context.Context, account, kind, period string) (*ResolutionSnapshot, error)
	SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	// Batch progress
	SaveBatchProgress(ctx context.Context, progress BatchProgress) error
	GetBatchProgress(ctx context.Context, batchID, account string) (*BatchProgress, error)
	GetPendingBatchAccounts(ctx context.Context, batchID string) ([]string, error)

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
