package db

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-dashboard/internal/models"
)

var (
	ErrVehicleNotFound = fmt.Errorf("vehicle %w", models.ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", models.ErrNotFound)
)

// PasswordHasher hashes a plain password for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// UserRepository defines the credential store operations
type UserRepository interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	// CreateUser hashes password and stores a new user. Email uniqueness is
	// left to the caller.
	CreateUser(ctx context.Context, email, password, name string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, email, name string) error
}

// VehicleRepository defines the vehicle store operations. Ids are assigned
// by the repository.
type VehicleRepository interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
	CreateVehicle(ctx context.Context, input models.VehicleInput) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) (bool, error)
}
