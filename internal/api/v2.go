package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mubeyout/ladderd/internal/auth"
	"github.com/mubeyout/ladderd/internal/config"
	"github.com/mubeyout/ladderd/internal/ladder"
	"github.com/mubeyout/ladderd/internal/storage"
	"github.com/mubeyout/ladderd/pkg/providers/electric"
	"github.com/mubeyout/ladderd/pkg/providers/gas"
)

// AccountDTO represents a configured utility account in the API.
type AccountDTO struct {
	Key     string `json:"key"`
	Utility string `json:"utility"`
	Notes   string `json:"notes,omitempty"`
}

// ProviderDTO represents a registered provider client in the API.
type ProviderDTO struct {
	Key     string `json:"key"`
	Utility string `json:"utility"`
}

type V2Handler struct {
	h       *handlers
	st      storage.Storage
	authSvc *auth.Service
}

func RegisterV2Routes(mux *http.ServeMux, h *handlers, st storage.Storage, authSvc *auth.Service) {
	v2 := &V2Handler{h: h, st: st, authSvc: authSvc}

	// Helper to wrap a handler with auth middleware if authSvc is present
	withAuth := func(handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(handler)
	}

	mux.Handle("/api/v2/accounts", withAuth(v2.ListAccounts))
	mux.Handle("/api/v2/providers", withAuth(v2.ListProviders))
	mux.Handle("/api/v2/ladders/", withAuth(v2.HandleLadders))
}

func (v *V2Handler) allowed(r *http.Request, obj, act string) bool {
	if v.authSvc == nil {
		return true
	}
	ok, err := v.authSvc.Enforce(getUserID(r), obj, act)
	return err == nil && ok
}

// ListAccounts lists all configured accounts
// @Summary List accounts
// @Description Get a list of all configured utility accounts
// @Tags accounts
// @Produce json
// @Success 200 {array} AccountDTO
// @Router /api/v2/accounts [get]
func (v *V2Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !v.allowed(r, "accounts", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var list []AccountDTO
	for _, a := range config.Accounts() {
		list = append(list, AccountDTO{Key: a.Key, Utility: a.Utility, Notes: a.Notes})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// ListProviders lists all registered provider clients
// @Summary List providers
// @Description Get a list of all registered electricity and gas provider clients
// @Tags accounts
// @Produce json
// @Success 200 {array} ProviderDTO
// @Router /api/v2/providers [get]
func (v *V2Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !v.allowed(r, "accounts", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var list []ProviderDTO
	for _, key := range electric.List() {
		list = append(list, ProviderDTO{Key: key, Utility: "electric"})
	}
	for _, key := range gas.List() {
		list = append(list, ProviderDTO{Key: key, Utility: "gas"})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// HandleLadders handles ladder resolution requests
// @Summary Resolve or refresh a ladder
// @Description Get the ladder summary, monthly breakdown, tier status, or force a refresh for an account
// @Tags ladders
// @Produce json
// @Param accountKey path string true "Account Key"
// @Param action path string true "Action (summary, month, tier, refresh)"
// @Router /api/v2/ladders/{accountKey}/{action} [get]
func (v *V2Handler) HandleLadders(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/ladders/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	acct, ok := config.GetAccount(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	endpoint := parts[1]

	if endpoint == "refresh" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !v.allowed(r, "ladders", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		resp, err := v.refresh(r, acct)
		if err != nil {
			writeServiceError(w, acct.Utility, "/api/v2/ladders/refresh", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !v.allowed(r, "ladders", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	resp, err := resolveEndpoint(r, v.h, acct, endpoint)
	if err != nil {
		writeServiceError(w, acct.Utility, "/api/v2/ladders/"+endpoint, err)
		return
	}
	if resp == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (v *V2Handler) refresh(r *http.Request, acct config.Account) (any, error) {
	ctx := r.Context()
	now := time.Now()
	switch acct.Utility {
	case "electric":
		period := ladder.UsagePeriod{Year: now.Year(), Month: int(now.Month())}
		return v.h.electric.ForceRefresh(ctx, acct.Provider, acct.AccountNumber, period, now)
	case "gas":
		return v.h.gas.ForceRefresh(ctx, acct.Provider, acct.AccountNumber)
	case "water":
		return v.h.water.ForceRefresh(ctx, acct.AccountNumber)
	}
	return nil, errBadRequest("account has no refreshable utility")
}

func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}
