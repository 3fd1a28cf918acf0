package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/metrics"
	"github.com/mubeyout/ladderd/internal/notification"
	"github.com/mubeyout/ladderd/internal/rates"
	"github.com/mubeyout/ladderd/internal/storage"
)

// services bundles the per-utility resolvers the worker refreshes through.
type services struct {
	electric *rates.Service
	gas      *rates.GasService
	water    *rates.WaterService
}

func buildServices(cfg config.Config, st storage.Storage) services {
	return services{
		electric: rates.NewServiceWithStorage(rates.Config{
			ReferenceTable: config.ElectricityTierTable(),
			TierNames:      config.TierNames(),
			RateSheetPath:  cfg.RateSheetPath,
		}, st),
		gas: rates.NewGasServiceWithStorage(cfg.RecentWindowDays, st),
		water: rates.NewWaterServiceWithStorage(
			config.WaterRates(),
			config.WaterTierTable(),
			rates.FileWaterAccountLoader(cfg.FixtureDir),
			st,
		),
	}
}

// refreshAccount refreshes one account. For electricity accounts it also
// returns the resolved band and marginal price, feeding the tier-change
// notification.
func refreshAccount(ctx context.Context, svcs services, acct config.Account, now time.Time) (band *int, price *float64, err error) {
	switch acct.Utility {
	case "electric":
		period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
		status, err := svcs.electric.TierStatus(ctx, acct.Provider, acct.AccountNumber, period)
		if err != nil {
			return nil, nil, err
		}
		if _, err := svcs.electric.ForceRefresh(ctx, acct.Provider, acct.AccountNumber, period, now); err != nil {
			return status.Resolution.Band, status.Resolution.Price, err
		}
		return status.Resolution.Band, status.Resolution.Price, nil
	case "gas":
		_, err := svcs.gas.ForceRefresh(ctx, acct.Provider, acct.AccountNumber)
		return nil, nil, err
	case "water":
		_, err := svcs.water.ForceRefresh(ctx, acct.AccountNumber)
		return nil, nil, err
	default:
		return nil, nil, fmt.Errorf("account %s has unknown utility %q", acct.Key, acct.Utility)
	}
}

// Run starts a cron worker that periodically refreshes every configured
// account using a Postgres pgxpool backend and PostgreSQL advisory locks so
// that in a multi-instance deployment only one worker executes the job.
func Run(ctx context.Context, driver, dsn string) error {
	if driver == "" {
		driver = "postgrespool"
	}
	if driver != "postgrespool" {
		return fmt.Errorf("cron worker requires LADDERD_DB_DRIVER=postgrespool (got %q)", driver)
	}

	stGeneric, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stGeneric.Close()

	pg, ok := stGeneric.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("storage driver %q is not PostgresPoolStorage", driver)
	}

	appCfg := config.FromEnv()
	svcs := buildServices(appCfg, stGeneric)
	notifier := notification.NewService(stGeneric)
	notifyTo := os.Getenv("LADDERD_NOTIFY_EMAIL")

	// Initial interval from env or default. Can be integer seconds or a
	// cron expression.
	intervalSetting := "300"
	if raw := os.Getenv("LADDERD_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}
	if val, err := stGeneric.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(5 * time.Minute)
	}

	nextRun := time.Now()

	jobName := "refresh_accounts"
	const lockKey int64 = 42

	// Last seen electricity band per account, for the change notification.
	lastBands := make(map[string]int)

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := stGeneric.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := pg.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := pg.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()

				now := time.Now()
				for _, acct := range config.Accounts() {
					band, price, err := refreshAccount(ctx, svcs, acct, now)
					if err != nil {
						log.Printf("cron: refresh account %s failed: %v", acct.Key, err)
						if runErr == nil {
							runErr = err
						}
						continue
					}
					if band == nil {
						continue
					}
					if prev, seen := lastBands[acct.Key]; seen && prev != *band && notifyTo != "" {
						if err := notifier.SendTierChangeAlert(ctx, notifyTo, acct.Key, prev, *band, price); err != nil {
							log.Printf("cron: tier change notification for %s failed: %v", acct.Key, err)
						}
					}
					lastBands[acct.Key] = *band
				}
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			success := runErr == nil
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := pg.UpdateScheduledJob(ctx, jobName, started, dur, success, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}
