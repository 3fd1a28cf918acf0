package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mubeyout/ladderd/internal/alerting"
	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/metrics"
	"github.com/mubeyout/ladderd/internal/storage"
)

// RunBatch periodically refreshes every configured account under an
// advisory lock so that multiple replicas do not run the batch
// simultaneously. Per-account progress is persisted, and failures above the
// alerting threshold go to the configured webhook.
func RunBatch(ctx context.Context, driver, dsn string) error {
	if driver != "postgrespool" {
		return fmt.Errorf("batch worker requires LADDERD_DB_DRIVER=postgrespool (got %q)", driver)
	}

	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("batch: open storage: %w", err)
	}
	defer st.Close()

	pg, ok := st.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("batch: storage is not PostgresPoolStorage")
	}

	svcs := buildServices(config.FromEnv(), st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())

	intervalSec := 3600
	if raw := os.Getenv("LADDERD_BATCH_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			intervalSec = v
		}
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	jobName := "batch_refresh"
	const advisoryKey int64 = 13371337

	log.Printf("batch worker starting: interval=%ds driver=postgrespool", intervalSec)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			started := time.Now()

			gotLock, err := pg.AcquireAdvisoryLock(ctx, advisoryKey)
			if err != nil {
				log.Printf("batch: lock acquire error: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				continue
			}
			if !gotLock {
				log.Printf("batch: lock held by another node, skipping this cycle")
				continue
			}

			accounts := config.Accounts()
			batchID := uuid.New().String()
			var failures []alerting.AccountFailure
			var runErr error

			func() {
				defer func() {
					if _, err := pg.ReleaseAdvisoryLock(ctx, advisoryKey); err != nil {
						log.Printf("batch: lock release error: %v", err)
					}
				}()

				now := time.Now()
				for _, acct := range accounts {
					_ = st.SaveBatchProgress(ctx, storage.BatchProgress{
						BatchID: batchID,
						Account: acct.Key,
						Status:  "pending",
					})

					_, _, err := refreshAccount(ctx, svcs, acct, now)
					if err != nil {
						log.Printf("batch: account %s refresh failed: %v", acct.Key, err)
						failures = append(failures, alerting.AccountFailure{
							Account:  acct.Key,
							Error:    err.Error(),
							Attempts: 1,
						})
						_ = st.SaveBatchProgress(ctx, storage.BatchProgress{
							BatchID: batchID,
							Account: acct.Key,
							Status:  "failed",
							Error:   err.Error(),
						})
						if runErr == nil {
							runErr = err
						}
						continue
					}
					_ = st.SaveBatchProgress(ctx, storage.BatchProgress{
						BatchID: batchID,
						Account: acct.Key,
						Status:  "done",
					})
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
				log.Printf("batch: update scheduled_jobs failed: %v", err)
			}

			if len(failures) > 0 {
				alert := alerting.BatchAlert{
					JobName:       jobName,
					TotalCount:    len(accounts),
					SuccessCount:  len(accounts) - len(failures),
					FailedCount:   len(failures),
					Duration:      dur,
					FailedDetails: failures,
					Timestamp:     time.Now(),
				}
				if err := alerter.SendBatchAlert(ctx, alert); err != nil {
					log.Printf("batch: alert send failed: %v", err)
				}
			}

			if runErr != nil {
				log.Printf("batch: run completed with error: %v", runErr)
			} else {
				log.Printf("batch: run completed successfully")
			}
		}
	}
}
