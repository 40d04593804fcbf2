package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LucsL0pes/mini-gymatch/internal/repository"
	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserID returns the authenticated profile id stored by Auth, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Auth resolves the opaque x-auth-token header to a profile id and stores it
// in the request context. Handlers pull it out and pass it down explicitly.
func Auth(profiles repository.ProfileRepository, logger *utils.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("x-auth-token")
			if token == "" {
				respondUnauthorized(w, "missing token")
				return
			}

			userID, err := profiles.FindIDByAuthToken(r.Context(), token)
			if err != nil {
				logger.Error("Failed to resolve auth token", "error", err)
				respondUnauthorized(w, "invalid token")
				return
			}
			if userID == "" {
				respondUnauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
