package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/ladder"
)

// RefreshResponse reports the outcome of refreshing one account.
type RefreshResponse struct {
	Account string `json:"account"`
	Utility string `json:"utility"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// RegisterRefreshHandler wires the internal refresh endpoint used by
// CronJobs and manual operations. It refreshes every configured account and
// reports per-account outcomes.
func RegisterRefreshHandler(mux *http.ServeMux, h *handlers) {
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		now := time.Now()
		var results []RefreshResponse
		for _, acct := range config.Accounts() {
			res := RefreshResponse{Account: acct.Key, Utility: acct.Utility, Status: "ok"}

			var err error
			switch acct.Utility {
			case "electric":
				period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
				_, err = h.electric.ForceRefresh(ctx, acct.Provider, acct.AccountNumber, period, now)
			case "gas":
				_, err = h.gas.ForceRefresh(ctx, acct.Provider, acct.AccountNumber)
			case "water":
				_, err = h.water.ForceRefresh(ctx, acct.AccountNumber)
			}
			if err != nil {
				log.Printf("refresh: account %s failed: %v", acct.Key, err)
				res.Status = "error"
				res.Error = err.Error()
			}
			results = append(results, res)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Results []RefreshResponse `json:"results"`
		}{Results: results})
	})
}
