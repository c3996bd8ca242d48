package models

import (
	"time"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID           string    `bson:"_id" json:"id"`
	VIN          string    `bson:"vin" json:"vin"`
	Address      string    `bson:"address" json:"address"`
	ExpiryTime   time.Time `bson:"expiry_time" json:"expiryTime"`
	Image        string    `bson:"image" json:"image"`
	Title        string    `bson:"title" json:"title"`
	FuelLevel    int       `bson:"fuel_level" json:"fuelLevel"` // percent, 0-100
	EngineStatus bool      `bson:"engine_status" json:"engineStatus"`
	LastUpdate   time.Time `bson:"last_update" json:"lastUpdate"`
	Location     string    `bson:"location" json:"location"` // "lat,lng"
}

// VehicleInput holds the fields a client supplies when creating a vehicle.
type VehicleInput struct {
	VIN          string    `json:"vin"`
	Address      string    `json:"address"`
	ExpiryTime   time.Time `json:"expiryTime"`
	Image        string    `json:"image"`
	Title        string    `json:"title"`
	FuelLevel    int       `json:"fuelLevel"`
	EngineStatus bool      `json:"engineStatus"`
	LastUpdate   time.Time `json:"lastUpdate"`
	Location     string    `json:"location"`
}

// ToVehicle builds a vehicle with the given id from the input.
func (in VehicleInput) ToVehicle(id string) Vehicle {
	return Vehicle{
		ID:           id,
		VIN:          in.VIN,
		Address:      in.Address,
		ExpiryTime:   in.ExpiryTime,
		Image:        in.Image,
		Title:        in.Title,
		FuelLevel:    in.FuelLevel,
		EngineStatus: in.EngineStatus,
		LastUpdate:   in.LastUpdate,
		Location:     in.Location,
	}
}

// VehiclePatch is a partial vehicle update. Nil fields are left untouched.
type VehiclePatch struct {
	VIN          *string    `json:"vin,omitempty"`
	Address      *string    `json:"address,omitempty"`
	ExpiryTime   *time.Time `json:"expiryTime,omitempty"`
	Image        *string    `json:"image,omitempty"`
	Title        *string    `json:"title,omitempty"`
	FuelLevel    *int       `json:"fuelLevel,omitempty"`
	EngineStatus *bool      `json:"engineStatus,omitempty"`
	LastUpdate   *time.Time `json:"lastUpdate,omitempty"`
	Location     *string    `json:"location,omitempty"`
}

// Apply merges the patch into v.
func (p VehiclePatch) Apply(v *Vehicle) {
	if p.VIN != nil {
		v.VIN = *p.VIN
	}
	if p.Address != nil {
		v.Address = *p.Address
	}
	if p.ExpiryTime != nil {
		v.ExpiryTime = *p.ExpiryTime
	}
	if p.Image != nil {
		v.Image = *p.Image
	}
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.FuelLevel != nil {
		v.FuelLevel = *p.FuelLevel
	}
	if p.EngineStatus != nil {
		v.EngineStatus = *p.EngineStatus
	}
	if p.LastUpdate != nil {
		v.LastUpdate = *p.LastUpdate
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p VehiclePatch) IsEmpty() bool {
	return p == VehiclePatch{}
}
