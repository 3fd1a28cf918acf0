package api

import (
	"encoding/json"
	"net/http"

	"github.com/mubeyout/ladderd/internal/config"
)

func RegisterAccountsHandler(mux *http.ServeMux) {
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var list []AccountDTO
		for _, a := range config.Accounts() {
			list = append(list, AccountDTO{Key: a.Key, Utility: a.Utility, Notes: a.Notes})
		}

		response := struct {
			Accounts []AccountDTO `json:"accounts"`
		}{Accounts: list}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
}
