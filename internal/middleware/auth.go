package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/store"
)

// LoadAuth decodes the session and group grant cookies into an AuthContext.
// It never rejects a request; invalid cookies are treated as absent.
func LoadAuth(sessions *store.SessionStore, users *store.UserStore, granter *auth.Granter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ac auth.AuthContext

			if cookie, err := r.Cookie(auth.SessionCookie); err == nil && cookie.Value != "" {
				sess, err := sessions.GetByToken(cookie.Value)
				if err != nil {
					logger.Error("load session", "error", err)
				}
				if sess != nil {
					user, err := users.GetByID(sess.UserID)
					if err != nil {
						logger.Error("load session user", "error", err)
					}
					if user != nil {
						ac.UserID = user.ID
						ac.Email = user.Email
						ac.SessionID = sess.ID
					}
				}
			}

			if cookie, err := r.Cookie(auth.GrantCookie); err == nil && cookie.Value != "" {
				groups, err := granter.Parse(cookie.Value)
				if err != nil {
					logger.Debug("ignore group grant", "error", err)
				} else {
					ac.VerifiedGroups = groups
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireSession rejects requests without a valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, _ := auth.FromContext(r.Context())
		if !ac.HasSession() {
			writeError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
