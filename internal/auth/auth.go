package auth

import (
	"errors"
	"strings"

	"github.com/ukydev/fleet-dashboard/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no session")
	ErrSessionMalformed   = errors.New("session malformed")
	ErrSessionExpired     = errors.New("session expired")
)

// MinPasswordLength is the shortest password accepted on register and reset.
const MinPasswordLength = 6

// ValidatePassword validates password strength
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return models.NewValidationError("Password must be at least 6 characters")
	}
	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return models.NewValidationError("invalid email format")
	}
	return nil
}

// ValidateName validates a display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.NewValidationError("name is required")
	}
	if len(name) > 100 {
		return models.NewValidationError("name must be less than 100 characters")
	}
	return nil
}

// ValidatePasswordChange checks the settings-page password form.
func ValidatePasswordChange(req models.ResetPasswordRequest) error {
	if req.Old() == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return models.NewValidationError("All fields are required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return models.NewValidationError("New passwords do not match")
	}
	if len(req.NewPassword) < MinPasswordLength {
		return models.NewValidationError("New password must be at least 6 characters")
	}
	return nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrNoSession
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrSessionMalformed
	}

	return strings.TrimSpace(parts[1]), nil
}
