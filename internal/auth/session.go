package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

const (
	SessionCookieName = "vehicle_app_session"
	DefaultSessionTTL = 24 * time.Hour
)

// sessionClaims is the signed cookie payload. ExpiresAt mirrors
// RegisteredClaims.ExpiresAt at millisecond precision and is the value
// checked on read.
type sessionClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ExpiresAt int64  `json:"expiresAt"`
	jwt.RegisteredClaims
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// SessionManager issues and reads the signed session cookie.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a session manager signing with secret. A zero ttl
// means DefaultSessionTTL. secure sets the cookie Secure flag.
func NewSessionManager(secret []byte, ttl time.Duration, secure bool, opts ...SessionOption) *SessionManager {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionManager{
		secret: secret,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// IssueToken signs a session for the given identity expiring ttl from now.
func (m *SessionManager) IssueToken(userID, email, name string) (string, *models.SessionData, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	data := &models.SessionData{
		UserID:    userID,
		Email:     email,
		Name:      name,
		ExpiresAt: expires.UnixMilli(),
	}

	claims := sessionClaims{
		UserID:    data.UserID,
		Email:     data.Email,
		Name:      data.Name,
		ExpiresAt: data.ExpiresAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return token, data, nil
}

// ParseToken verifies a session token and returns its data. The result is
// ErrSessionMalformed for anything that does not verify, ErrSessionExpired
// once expiresAt has passed.
func (m *SessionManager) ParseToken(token string) (*models.SessionData, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
	}
	if claims.UserID == "" || claims.ExpiresAt == 0 {
		return nil, ErrSessionMalformed
	}

	data := &models.SessionData{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt,
	}
	if data.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	return data, nil
}

// SetSession writes a fresh session cookie for user and returns the signed
// token so it can also be used as a bearer token.
func (m *SessionManager) SetSession(w http.ResponseWriter, user *models.User) (string, *models.SessionData, error) {
	token, data, err := m.IssueToken(user.ID, user.Email, user.Name)
	if err != nil {
		return "", nil, err
	}
	m.writeCookie(w, token)
	return token, data, nil
}

// ReadSession reads the session cookie from r without touching the response.
func (m *SessionManager) ReadSession(r *http.Request) (*models.SessionData, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return m.ParseToken(c.Value)
}

// GetSession returns the current session. A malformed or expired cookie is
// cleared and reported as no session.
func (m *SessionManager) GetSession(w http.ResponseWriter, r *http.Request) (*models.SessionData, bool) {
	data, err := m.ReadSession(r)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			log.WithError(err).Debug("Discarding session cookie")
			m.ClearSession(w)
		}
		return nil, false
	}
	return data, true
}

// ClearSession expires the session cookie.
func (m *SessionManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UpdateSessionUser merges update into the current session and restarts its
// lifetime. It does nothing when there is no valid session.
func (m *SessionManager) UpdateSessionUser(w http.ResponseWriter, r *http.Request, update models.SessionUpdate) (*models.SessionData, bool) {
	current, ok := m.GetSession(w, r)
	if !ok {
		return nil, false
	}

	email := current.Email
	if update.Email != "" {
		email = update.Email
	}
	name := current.Name
	if update.Name != "" {
		name = update.Name
	}

	token, data, err := m.IssueToken(current.UserID, email, name)
	if err != nil {
		log.WithError(err).Error("Failed to refresh session")
		return nil, false
	}
	m.writeCookie(w, token)
	return data, true
}

func (m *SessionManager) writeCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
