package handlers

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/auth"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/metrics"
	"github.com/ukydev/fleet-dashboard/internal/middleware"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	users    db.UserRepository
	hasher   auth.PasswordHasher
	sessions *auth.SessionManager
	metrics  metrics.Recorder
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(users db.UserRepository, hasher auth.PasswordHasher, sessions *auth.SessionManager, rec metrics.Recorder) *AuthHandler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthHandler{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		metrics:  rec,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(r, &loginReq); err != nil {
		writeServiceError(w, r, err, "Invalid request")
		return
	}

	// Validate input
	if loginReq.Email == "" || loginReq.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), loginReq.Email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			h.metrics.RecordLogin("invalid")
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.metrics.RecordLogin("error")
		writeServiceError(w, r, err, "Login failed")
		return
	}

	// Verify password
	if !h.hasher.Verify(loginReq.Password, user.PasswordHash) {
		h.metrics.RecordLogin("invalid")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, _, err := h.sessions.SetSession(w, user)
	if err != nil {
		h.metrics.RecordLogin("error")
		writeServiceError(w, r, err, "Failed to create session")
		return
	}

	h.metrics.RecordLogin("success")
	log.WithField("user_id", user.ID).Info("User logged in")
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(r, &registerReq); err != nil {
		writeServiceError(w, r, err, "Invalid request")
		return
	}
	registerReq.Email = strings.TrimSpace(registerReq.Email)

	// Validate input
	for _, err := range []error{
		auth.ValidateEmail(registerReq.Email),
		auth.ValidatePassword(registerReq.Password),
		auth.ValidateName(registerReq.Name),
	} {
		if err != nil {
			writeServiceError(w, r, err, "Invalid request")
			return
		}
	}

	// Check if email already exists
	_, err := h.users.FindUserByEmail(r.Context(), registerReq.Email)
	if err == nil {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}

	user, err := h.users.CreateUser(r.Context(), registerReq.Email, registerReq.Password, strings.TrimSpace(registerReq.Name))
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}

	token, _, err := h.sessions.SetSession(w, user)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create session")
		return
	}

	log.WithField("user_id", user.ID).Info("User registered")
	writeJSON(w, http.StatusCreated, models.LoginResponse{Token: token, User: *user})
}

// Logout clears the session cookie. Bearer clients just drop their token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Verify returns the current session
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ResetPassword changes the current user's password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, "Invalid request")
		return
	}
	if err := auth.ValidatePasswordChange(req); err != nil {
		writeServiceError(w, r, err, "Invalid request")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to reset password")
		return
	}

	// Verify current password
	if !h.hasher.Verify(req.Old(), user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Old password is incorrect")
		return
	}

	newHash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err, "Failed to reset password")
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, newHash); err != nil {
		writeServiceError(w, r, err, "Failed to reset password")
		return
	}

	log.WithField("user_id", user.ID).Info("Password changed")
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Password reset successfully"})
}

// UpdateProfile updates the current user's email and name and refreshes the
// session to match.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var updateReq models.ProfileUpdateRequest
	if err := decodeJSON(r, &updateReq); err != nil {
		writeServiceError(w, r, err, "Invalid request")
		return
	}
	updateReq.Email = strings.TrimSpace(updateReq.Email)
	updateReq.Name = strings.TrimSpace(updateReq.Name)

	user, err := h.users.FindUserByID(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update profile")
		return
	}

	// Update fields if provided
	if updateReq.Name != "" {
		if err := auth.ValidateName(updateReq.Name); err != nil {
			writeServiceError(w, r, err, "Invalid request")
			return
		}
		user.Name = updateReq.Name
	}
	if updateReq.Email != "" && updateReq.Email != user.Email {
		if err := auth.ValidateEmail(updateReq.Email); err != nil {
			writeServiceError(w, r, err, "Invalid request")
			return
		}
		// Check if email is already taken by another user
		existing, err := h.users.FindUserByEmail(r.Context(), updateReq.Email)
		if err == nil && existing.ID != user.ID {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		if err != nil && !errors.Is(err, db.ErrUserNotFound) {
			writeServiceError(w, r, err, "Failed to update profile")
			return
		}
		user.Email = updateReq.Email
	}

	if err := h.users.UpdateProfile(r.Context(), user.ID, user.Email, user.Name); err != nil {
		writeServiceError(w, r, err, "Failed to update profile")
		return
	}

	// Reissue from the authenticated user; the request cookie may belong to
	// someone else when a bearer token is also present.
	if _, _, err := h.sessions.SetSession(w, user); err != nil {
		writeServiceError(w, r, err, "Failed to refresh session")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
