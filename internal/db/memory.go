package db

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ukydev/fleet-dashboard/internal/models"
)

// SeedVehicles returns the demo fleet, with times relative to now.
func SeedVehicles(now time.Time) []models.Vehicle {
	day := 24 * time.Hour
	return []models.Vehicle{
		{
			ID:           "1",
			VIN:          "WBADT43452G730905",
			Address:      "123 Fleet St, New York, NY",
			ExpiryTime:   now.Add(30 * day),
			Image:        "/vehicle1.jpg",
			Title:        "BMW 5 Series",
			FuelLevel:    75,
			EngineStatus: true,
			LastUpdate:   now.Add(-2 * time.Hour),
			Location:     "40.7128,-74.0060",
		},
		{
			ID:           "2",
			VIN:          "2HGEJ6A35DH520876",
			Address:      "456 Auto Ave, Los Angeles, CA",
			ExpiryTime:   now.Add(45 * day),
			Image:        "/vehicle2.jpg",
			Title:        "Honda Civic",
			FuelLevel:    45,
			EngineStatus: true,
			LastUpdate:   now.Add(-4 * time.Hour),
			Location:     "34.0522,-118.2437",
		},
		{
			ID:           "3",
			VIN:          "5TDJKRFH8LS123456",
			Address:      "789 Drive Way, Chicago, IL",
			ExpiryTime:   now.Add(60 * day),
			Image:        "/vehicle3.jpg",
			Title:        "Toyota Highlander",
			FuelLevel:    85,
			EngineStatus: false,
			LastUpdate:   now,
			Location:     "41.8781,-87.6298",
		},
	}
}

// MemoryVehicleRepository keeps vehicles in process memory.
type MemoryVehicleRepository struct {
	mu       sync.RWMutex
	vehicles []models.Vehicle
	lastID   int64
}

// NewMemoryVehicleRepository creates a store holding seed. New ids continue
// from the largest numeric seed id.
func NewMemoryVehicleRepository(seed ...models.Vehicle) *MemoryVehicleRepository {
	r := &MemoryVehicleRepository{
		vehicles: make([]models.Vehicle, len(seed)),
	}
	copy(r.vehicles, seed)
	for _, v := range seed {
		if n, err := strconv.ParseInt(v.ID, 10, 64); err == nil && n > r.lastID {
			r.lastID = n
		}
	}
	return r
}

// ListVehicles returns all vehicles in insertion order.
func (r *MemoryVehicleRepository) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Vehicle, len(r.vehicles))
	copy(out, r.vehicles)
	return out, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (r *MemoryVehicleRepository) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		v := r.vehicles[i]
		return &v, nil
	}
	return nil, ErrVehicleNotFound
}

// FindVehicleByVIN finds a vehicle by its VIN.
func (r *MemoryVehicleRepository) FindVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.vehicles {
		if v.VIN == vin {
			return &v, nil
		}
	}
	return nil, ErrVehicleNotFound
}

// CreateVehicle stores a new vehicle under the next id.
func (r *MemoryVehicleRepository) CreateVehicle(ctx context.Context, input models.VehicleInput) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	v := input.ToVehicle(strconv.FormatInt(r.lastID, 10))
	r.vehicles = append(r.vehicles, v)
	return &v, nil
}

// UpdateVehicle merges patch into the vehicle with the given id.
func (r *MemoryVehicleRepository) UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrVehicleNotFound
	}
	patch.Apply(&r.vehicles[i])
	v := r.vehicles[i]
	return &v, nil
}

// DeleteVehicle removes the vehicle with the given id and reports whether
// one was removed.
func (r *MemoryVehicleRepository) DeleteVehicle(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.vehicles = append(r.vehicles[:i], r.vehicles[i+1:]...)
	return true, nil
}

// indexOf must be called with mu held.
func (r *MemoryVehicleRepository) indexOf(id string) int {
	for i := range r.vehicles {
		if r.vehicles[i].ID == id {
			return i
		}
	}
	return -1
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	hasher PasswordHasher

	mu     sync.RWMutex
	users  []models.User
	lastID int64
}

// NewMemoryUserRepository creates an empty user store.
func NewMemoryUserRepository(hasher PasswordHasher) *MemoryUserRepository {
	return &MemoryUserRepository{hasher: hasher}
}

// NewSeededUserRepository creates a user store holding the demo account.
func NewSeededUserRepository(ctx context.Context, hasher PasswordHasher) (*MemoryUserRepository, error) {
	r := NewMemoryUserRepository(hasher)
	if _, err := r.CreateUser(ctx, "demo@example.com", "demo123", "Demo User"); err != nil {
		return nil, fmt.Errorf("seed demo user: %w", err)
	}
	return r, nil
}

// FindUserByEmail finds a user by exact email match.
func (r *MemoryUserRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// FindUserByID finds a user by their ID
func (r *MemoryUserRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		u := r.users[i]
		return &u, nil
	}
	return nil, ErrUserNotFound
}

// CreateUser hashes password and appends a new user with the next id.
func (r *MemoryUserRepository) CreateUser(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.lastID++
	u := models.User{
		ID:           strconv.FormatInt(r.lastID, 10),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users = append(r.users, u)
	return &u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrUserNotFound
	}
	r.users[i].PasswordHash = passwordHash
	r.users[i].UpdatedAt = time.Now()
	return nil
}

// UpdateProfile replaces email and name. Empty values keep the current ones.
func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id, email, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrUserNotFound
	}
	if email != "" {
		r.users[i].Email = email
	}
	if name != "" {
		r.users[i].Name = name
	}
	r.users[i].UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) indexOf(id string) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}
