package models

import (
	"time"
)

// VehicleTelemetry is a status message published by a vehicle (or the
// simulator) on the MQTT status topic.
type VehicleTelemetry struct {
	VehicleID    string     `json:"vehicleId,omitempty"`
	FuelLevel    *int       `json:"fuelLevel,omitempty"`
	EngineStatus *bool      `json:"engineStatus,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// Patch converts the message into a vehicle patch. lastUpdate is the message
// timestamp, or now when the message carries none.
func (t VehicleTelemetry) Patch(now time.Time) VehiclePatch {
	ts := now
	if t.Timestamp != nil && !t.Timestamp.IsZero() {
		ts = *t.Timestamp
	}
	return VehiclePatch{
		FuelLevel:    t.FuelLevel,
		EngineStatus: t.EngineStatus,
		Location:     t.Location,
		LastUpdate:   &ts,
	}
}
