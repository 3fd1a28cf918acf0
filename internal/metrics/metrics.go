package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_requests_total",
			Help: "Total number of requests per utility",
		},
		[]string{"utility"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ladderd_request_duration_seconds",
			Help:    "Request duration in seconds per utility and path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"utility", "path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_request_errors_total",
			Help: "Total number of error responses per utility and path",
		},
		[]string{"utility", "path", "code"},
	)

	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_resolutions_total",
			Help: "Total number of ladder resolutions per utility and source",
		},
		[]string{"utility", "source"},
	)

	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_fallback_total",
			Help: "Total number of estimator fallbacks per utility",
		},
		[]string{"utility"},
	)

	UnresolvedTiersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_unresolved_tiers_total",
			Help: "Total number of resolutions that ended unresolved per utility",
		},
		[]string{"utility"},
	)

	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladderd_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladderd_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladderd_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_db_pool_acquires_total",
			Help: "Total number of connection acquires per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64, acquires uint64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
	DBPoolAcquiresTotal.WithLabelValues(driver).Add(float64(acquires))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladderd_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladderd_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladderd_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
