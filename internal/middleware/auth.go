package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/auth"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	SessionContextKey contextKey = "session"
)

// AuthMiddleware requires a valid session cookie or bearer token
type AuthMiddleware struct {
	sessions *auth.SessionManager
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions *auth.SessionManager) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
	}
}

// Authenticate checks the Authorization header first and falls back to the
// session cookie. Requests without a usable session get a 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			session *models.SessionData
			ok      bool
		)

		if header := r.Header.Get("Authorization"); header != "" {
			token, err := auth.ExtractTokenFromHeader(header)
			if err == nil {
				session, err = m.sessions.ParseToken(token)
			}
			if err != nil {
				log.WithError(err).Debug("Rejected bearer token")
			}
			ok = err == nil
		} else {
			session, ok = m.sessions.GetSession(w, r)
		}

		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

// ContextWithSession stores session in ctx
func ContextWithSession(ctx context.Context, session *models.SessionData) context.Context {
	return context.WithValue(ctx, SessionContextKey, session)
}

// GetSessionFromContext extracts the session stored by Authenticate
func GetSessionFromContext(ctx context.Context) (*models.SessionData, bool) {
	session, ok := ctx.Value(SessionContextKey).(*models.SessionData)
	return session, ok && session != nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
