package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage is a pgxpool-backed Storage used by the worker, where
// PostgreSQL advisory locks coordinate multi-instance deployments.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/ladderd?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			key TEXT PRIMARY KEY,
			name TEXT,
			utility TEXT,
			provider TEXT,
			account_number TEXT,
			notes TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS resolution_snapshots (
			id SERIAL PRIMARY KEY,
			account TEXT NOT NULL,
			kind TEXT NOT NULL,
			period TEXT NOT NULL DEFAULT '',
			payload BYTEA NOT NULL,
			estimated BOOLEAN NOT NULL DEFAULT FALSE,
			fetched_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success INT,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS batch_progress (
			batch_id TEXT NOT NULL,
			account TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			updated_at TIMESTAMPTZ,
			PRIMARY KEY (batch_id, account)
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			email_verified BOOLEAN DEFAULT FALSE,
			skip_email_verification BOOLEAN DEFAULT FALSE,
			onboarding_completed BOOLEAN DEFAULT FALSE,
			password_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT,
			token_hash TEXT,
			role TEXT,
			created_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS casbin_rules (
			id SERIAL PRIMARY KEY,
			ptype TEXT, v0 TEXT, v1 TEXT, v2 TEXT, v3 TEXT, v4 TEXT, v5 TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INT,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			encryption TEXT,
			enabled BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Accounts

func (s *PostgresPoolStorage) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, name, utility, provider, account_number, notes FROM accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Key, &a.Name, &a.Utility, &a.Provider, &a.AccountNumber, &a.Notes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetAccount(ctx context.Context, key string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT key, name, utility, provider, account_number, notes FROM accounts WHERE key=$1`, key)
	var a Account
	if err := row.Scan(&a.Key, &a.Name, &a.Utility, &a.Provider, &a.AccountNumber, &a.Notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *PostgresPoolStorage) UpsertAccount(ctx context.Context, a Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (key, name, utility, provider, account_number, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET
			name=EXCLUDED.name,
			utility=EXCLUDED.utility,
			provider=EXCLUDED.provider,
			account_number=EXCLUDED.account_number,
			notes=EXCLUDED.notes
	`, a.Key, a.Name, a.Utility, a.Provider, a.AccountNumber, a.Notes)
	return err
}

// Resolution snapshots

func (s *PostgresPoolStorage) GetResolutionSnapshot(ctx context.Context, account, kind, period string) (*ResolutionSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload, estimated, fetched_at
		FROM resolution_snapshots
		WHERE account=$1 AND kind=$2 AND period=$3
		ORDER BY id DESC
		LIMIT 1
	`, account, kind, period)

	snap := ResolutionSnapshot{Account: account, Kind: kind, Period: period}
	if err := row.Scan(&snap.Payload, &snap.Estimated, &snap.FetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresPoolStorage) SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resolution_snapshots (account, kind, period, payload, estimated, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, snap.Account, snap.Kind, snap.Period, snap.Payload, snap.Estimated, snap.FetchedAt)
	return err
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Scheduled jobs & locking

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}

// Batch progress

func (s *PostgresPoolStorage) SaveBatchProgress(ctx context.Context, progress BatchProgress) error {
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batch_progress (batch_id, account, status, error, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (batch_id, account) DO UPDATE SET
			status=EXCLUDED.status,
			error=EXCLUDED.error,
			updated_at=EXCLUDED.updated_at
	`, progress.BatchID, progress.Account, progress.Status, progress.Error, progress.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) GetBatchProgress(ctx context.Context, batchID, account string) (*BatchProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT status, error, updated_at FROM batch_progress WHERE batch_id=$1 AND account=$2
	`, batchID, account)
	prog := BatchProgress{BatchID: batchID, Account: account}
	if err := row.Scan(&prog.Status, &prog.Error, &prog.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &prog, nil
}

func (s *PostgresPoolStorage) GetPendingBatchAccounts(ctx context.Context, batchID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account FROM batch_progress WHERE batch_id=$1 AND status IN ('pending','failed')
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Users

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email, email_verified,
			skip_email_verification, onboarding_completed, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, u.ID, u.Username, u.FirstName, u.LastName, u.Email, u.EmailVerified,
		u.SkipEmailVerification, u.OnboardingCompleted, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.EmailVerified,
		&u.SkipEmailVerification, &u.OnboardingCompleted, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, username, first_name, last_name, email, email_verified,
	skip_email_verification, onboarding_completed, password_hash, role, created_at, updated_at`

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (s *PostgresPoolStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET username=$2, first_name=$3, last_name=$4, email=$5, email_verified=$6,
			skip_email_verification=$7, onboarding_completed=$8, password_hash=$9, role=$10, updated_at=$11
		WHERE id=$1
	`, u.ID, u.Username, u.FirstName, u.LastName, u.Email, u.EmailVerified,
		u.SkipEmailVerification, u.OnboardingCompleted, u.PasswordHash, u.Role, time.Now())
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.EmailVerified,
			&u.SkipEmailVerification, &u.OnboardingCompleted, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

const tokenColumns = `id, user_id, name, token_hash, role, created_at, expires_at, last_used_at`

func (s *PostgresPoolStorage) scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, t Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, t.ID, t.UserID, t.Name, t.TokenHash, t.Role, t.CreatedAt, t.ExpiresAt, t.LastUsedAt)
	return err
}

func (s *PostgresPoolStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash=$1`, hash))
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=$2 WHERE id=$1`, id, time.Now())
	return err
}

// Casbin rules

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.ID, &r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, r CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, r.PType, r.V0, r.V1, r.V2, r.V3, r.V4, r.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, r CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM casbin_rules WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4
	`, r.PType, r.V0, r.V1, r.V2)
	return err
}

// Email config

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name,
			api_key, encryption, enabled, created_at, updated_at
		FROM email_configs LIMIT 1
	`)
	var c EmailConfig
	err := row.Scan(&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password,
		&c.FromAddress, &c.FromName, &c.APIKey, &c.Encryption, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, c EmailConfig) error {
	if c.ID == "" {
		c.ID = "default"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password, from_address,
			from_name, api_key, encryption, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider, host=EXCLUDED.host, port=EXCLUDED.port,
			username=EXCLUDED.username, password=EXCLUDED.password,
			from_address=EXCLUDED.from_address, from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key, encryption=EXCLUDED.encryption,
			enabled=EXCLUDED.enabled, updated_at=EXCLUDED.updated_at
	`, c.ID, c.Provider, c.Host, c.Port, c.Username, c.Password, c.FromAddress,
		c.FromName, c.APIKey, c.Encryption, c.Enabled, c.CreatedAt, time.Now())
	return err
}
