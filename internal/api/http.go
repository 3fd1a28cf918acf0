package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mubeyout/ladderd/internal/api/swagger"
	"github.com/mubeyout/ladderd/internal/auth"
	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/metrics"
	migrate "github.com/mubeyout/ladderd/internal/migrate"
	"github.com/mubeyout/ladderd/internal/notification"
	"github.com/mubeyout/ladderd/internal/rates"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/internal/ui"
)

// handlers bundles the per-utility resolver services behind the HTTP layer.
type handlers struct {
	electric *rates.Service
	gas      *rates.GasService
	water    *rates.WaterService
}

// NewMux constructs the HTTP mux, wiring in the resolver services, metrics,
// auth, and health endpoints.
func NewMux() *http.ServeMux {
	cfg := config.FromEnv()

	// Optional auto-migration: run `goose up` on startup when enabled.
	autoMig := strings.ToLower(os.Getenv("LADDERD_AUTO_MIGRATE"))
	if autoMig == "1" || autoMig == "true" || autoMig == "yes" {
		driver := cfg.DBDriver
		dsn := cfg.DBDSN
		if driver == "" {
			driver = "sqlite"
		}
		if dsn == "" {
			dsn = "ladderd.db"
		}
		if err := migrate.Up(context.Background(), driver, dsn); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	// Open storage; the in-memory backend is preloaded with the configured
	// accounts so the UI and v2 routes can list them.
	var acctSeed []storage.Account
	for _, a := range config.Accounts() {
		acctSeed = append(acctSeed, storage.Account{
			Key:           a.Key,
			Utility:       a.Utility,
			Provider:      a.Provider,
			AccountNumber: a.AccountNumber,
			Notes:         a.Notes,
		})
	}
	st, err := storage.Open(context.Background(), storage.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		Accounts: acctSeed,
	})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s): %v; running without snapshot cache", cfg.DBDriver, err)
		st = nil
	}

	svcCfg := rates.Config{
		ReferenceTable: config.ElectricityTierTable(),
		TierNames:      config.TierNames(),
		RateSheetPath:  cfg.RateSheetPath,
	}
	waterLoader := rates.FileWaterAccountLoader(cfg.FixtureDir)

	var h *handlers
	if st != nil {
		h = &handlers{
			electric: rates.NewServiceWithStorage(svcCfg, st),
			gas:      rates.NewGasServiceWithStorage(cfg.RecentWindowDays, st),
			water:    rates.NewWaterServiceWithStorage(config.WaterRates(), config.WaterTierTable(), waterLoader, st),
		}
	} else {
		h = &handlers{
			electric: rates.NewService(svcCfg),
			gas:      rates.NewGasService(cfg.RecentWindowDays),
			water:    rates.NewWaterService(config.WaterRates(), config.WaterTierTable(), waterLoader),
		}
	}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: storage ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Ladder API.
	mux.HandleFunc("/ladder/", handleLadder(h))

	// Internal refresh endpoint for CronJobs / manual refresh.
	RegisterRefreshHandler(mux, h)
	RegisterAccountsHandler(mux)

	// Authenticated v2 API plus the email settings routes. Both need a real
	// storage backend for users, tokens, and policies.
	if st != nil {
		authSvc, err := auth.NewService(st)
		if err != nil {
			log.Printf("auth service init failed: %v; v2 routes disabled", err)
		} else {
			RegisterV2Routes(mux, h, st, authSvc)
			registerAuthRoutes(mux, authSvc, st)
			registerNotificationRoutes(mux, authSvc, notification.NewService(st))
		}
	}

	// API docs.
	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))

	// Web UI
	mux.Handle("/ui/", http.StripPrefix("/ui/", ui.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return mux
}

// handleLadder serves /ladder/{account}/summary, /ladder/{account}/month,
// and /ladder/{account}/tier using the resolver services.
func handleLadder(h *handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		path := strings.TrimPrefix(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) != 3 || parts[0] != "ladder" {
			metrics.RequestErrorsTotal.WithLabelValues("unknown", r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		acct, ok := config.GetAccount(parts[1])
		if !ok {
			metrics.RequestErrorsTotal.WithLabelValues("unknown", r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}
		endpoint := parts[2]
		labelsPath := "/ladder/" + endpoint

		defer func() {
			dur := time.Since(start).Seconds()
			metrics.RequestDurationSeconds.WithLabelValues(acct.Utility, labelsPath).Observe(dur)
		}()
		metrics.RequestsTotal.WithLabelValues(acct.Utility).Inc()

		if r.Method != http.MethodGet {
			metrics.RequestErrorsTotal.WithLabelValues(acct.Utility, labelsPath, "405").Inc()
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp, err := resolveEndpoint(r, h, acct, endpoint)
		if err != nil {
			writeServiceError(w, acct.Utility, labelsPath, err)
			return
		}
		if resp == nil {
			metrics.RequestErrorsTotal.WithLabelValues(acct.Utility, labelsPath, "404").Inc()
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode response failed: %v", err)
		}
	}
}

// resolveEndpoint dispatches one read-only ladder request. A nil, nil return
// means the endpoint does not exist for the account's utility.
func resolveEndpoint(r *http.Request, h *handlers, acct config.Account, endpoint string) (any, error) {
	ctx := r.Context()
	now := time.Now()

	switch endpoint {
	case "summary":
		switch acct.Utility {
		case "electric":
			period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
			resp, err := h.electric.MonthBreakdown(ctx, acct.Provider, acct.AccountNumber, period, now)
			recordElectricResolution(resp, err)
			return respOrNil(resp, err)
		case "gas":
			resp, err := h.gas.Report(ctx, acct.Provider, acct.AccountNumber)
			recordResolution("gas", err)
			return respOrNil(resp, err)
		case "water":
			resp, err := h.water.Report(ctx, acct.AccountNumber)
			recordResolution("water", err)
			return respOrNil(resp, err)
		}
		return nil, nil

	case "month":
		if acct.Utility != "electric" {
			return nil, nil
		}
		period, err := periodFromQuery(r, now)
		if err != nil {
			return nil, err
		}
		resp, err := h.electric.MonthBreakdown(ctx, acct.Provider, acct.AccountNumber, period, now)
		recordElectricResolution(resp, err)
		return respOrNil(resp, err)

	case "tier":
		if acct.Utility != "electric" {
			return nil, nil
		}
		period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
		resp, err := h.electric.TierStatus(ctx, acct.Provider, acct.AccountNumber, period)
		recordResolution("electric", err)
		return respOrNil(resp, err)
	}
	return nil, nil
}

func respOrNil(resp any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func recordElectricResolution(resp *rates.ElectricityMonth, err error) {
	recordResolution("electric", err)
	if err != nil || resp == nil {
		return
	}
	metrics.ResolutionsTotal.WithLabelValues("electric", resp.Source).Inc()
	if resp.Source == "fallback" {
		metrics.FallbackTotal.WithLabelValues("electric").Inc()
	}
}

func recordResolution(utility string, err error) {
	if errors.Is(err, ladder.ErrUnresolvedTier) {
		metrics.UnresolvedTiersTotal.WithLabelValues(utility).Inc()
	}
}

// periodFromQuery reads ?year= and ?month=, defaulting to the current month.
func periodFromQuery(r *http.Request, now time.Time) (ladder.UsagePeriod, error) {
	period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 2000 || y > 2200 {
			return period, errBadRequest("invalid year")
		}
		period.Year = y
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			return period, errBadRequest("invalid month")
		}
		period.Month = m
	}
	return period, nil
}

type badRequestError string

func errBadRequest(msg string) error { return badRequestError(msg) }

func (e badRequestError) Error() string { return string(e) }

// writeServiceError maps resolver errors onto HTTP statuses. Upstream and
// provider failures are gateway errors; unresolved tiers and invalid usage
// are unprocessable rather than silently coerced.
func writeServiceError(w http.ResponseWriter, utility, path string, err error) {
	var br badRequestError
	var ue *ladder.UpstreamError
	var pe *ladder.ProviderError

	code := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.As(err, &br):
		code = http.StatusBadRequest
		msg = br.Error()
	case errors.As(err, &ue):
		code = http.StatusBadGateway
		msg = "upstream provider unavailable"
	case errors.As(err, &pe):
		code = http.StatusBadGateway
		msg = "provider reported an error"
	case errors.Is(err, ladder.ErrUnresolvedTier), errors.Is(err, ladder.ErrInvalidUsage):
		code = http.StatusUnprocessableEntity
		msg = err.Error()
	}

	log.Printf("ladder request failed (utility=%s path=%s): %v", utility, path, err)
	metrics.RequestErrorsTotal.WithLabelValues(utility, path, strconv.Itoa(code)).Inc()
	http.Error(w, msg, code)
}
