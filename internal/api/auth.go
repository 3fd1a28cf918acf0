package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/mubeyout/ladderd/internal/auth"
	"github.com/mubeyout/ladderd/internal/storage"
)

// TokenDTO is the API view of an issued token. The hash never leaves the
// server; the raw token is returned exactly once, at creation.
type TokenDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

func tokenDTO(t storage.Token) TokenDTO {
	dto := TokenDTO{
		ID:        t.ID,
		Name:      t.Name,
		Role:      t.Role,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.ExpiresAt != nil {
		dto.ExpiresAt = t.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if t.LastUsedAt != nil {
		dto.LastUsedAt = t.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// bootstrapAdmin creates the initial admin user from the environment when no
// users exist yet.
func bootstrapAdmin(authSvc *auth.Service, st storage.Storage) {
	username := os.Getenv("LADDERD_ADMIN_USER")
	password := os.Getenv("LADDERD_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}
	ctx := context.Background()
	users, err := st.ListUsers(ctx)
	if err != nil {
		log.Printf("auth bootstrap: list users failed: %v", err)
		return
	}
	if len(users) > 0 {
		return
	}
	if _, err := authSvc.Register(ctx, username, password, "admin"); err != nil {
		log.Printf("auth bootstrap: create admin %q failed: %v", username, err)
		return
	}
	log.Printf("auth bootstrap: created admin user %q", username)
}

func registerAuthRoutes(mux *http.ServeMux, authSvc *auth.Service, st storage.Storage) {
	bootstrapAdmin(authSvc, st)

	// Login is the one unauthenticated route: it exchanges credentials for
	// a bearer token.
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			ExpiresIn string `json:"expires_in"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		u, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		t, raw, err := authSvc.CreateToken(r.Context(), u.ID, "login", u.Role, expiresAt)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string   `json:"token"`
			Info  TokenDTO `json:"info"`
		}{Token: raw, Info: tokenDTO(*t)})
	})

	mux.Handle("/api/v2/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			tokens, err := st.ListTokens(r.Context(), token.UserID)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			list := make([]TokenDTO, 0, len(tokens))
			for _, t := range tokens {
				list = append(list, tokenDTO(t))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(list)

		case http.MethodPost:
			var req struct {
				Name      string `json:"name"`
				ExpiresIn string `json:"expires_in"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if req.Name == "" {
				http.Error(w, "Token name is required", http.StatusBadRequest)
				return
			}

			expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			t, raw, err := authSvc.CreateToken(r.Context(), token.UserID, req.Name, token.Role, expiresAt)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(struct {
				Token string   `json:"token"`
				Info  TokenDTO `json:"info"`
			}{Token: raw, Info: tokenDTO(*t)})

		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "Token id is required", http.StatusBadRequest)
				return
			}
			t, err := st.GetToken(r.Context(), id)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if t == nil || t.UserID != token.UserID {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			if err := st.DeleteToken(r.Context(), id); err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
}
