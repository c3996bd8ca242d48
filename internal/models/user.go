package models

import (
	"time"
)

// User represents an account that can sign in to the dashboard
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Name         string    `bson:"name" json:"name"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ResetPasswordRequest represents a password change from the settings page.
// CurrentPassword is accepted as an alias of OldPassword.
type ResetPasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Old returns whichever of the two old-password fields was supplied.
func (r ResetPasswordRequest) Old() string {
	if r.OldPassword != "" {
		return r.OldPassword
	}
	return r.CurrentPassword
}

// ProfileUpdateRequest represents an account settings update
type ProfileUpdateRequest struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SessionData is the identity carried by the session cookie.
type SessionData struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

// Expired reports whether the session has passed its expiry at now.
func (s SessionData) Expired(now time.Time) bool {
	return s.ExpiresAt < now.UnixMilli()
}

// SessionUpdate carries the user fields that may be refreshed in a session.
// Empty fields keep the current value.
type SessionUpdate struct {
	Email string
	Name  string
}
