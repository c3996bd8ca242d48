package models

import (
	"math"
	"time"
)

// FleetStats summarizes the fleet for the dashboard.
type FleetStats struct {
	TotalVehicles    int        `json:"totalVehicles"`
	EngineRunning    int        `json:"engineRunning"`
	AverageFuelLevel int        `json:"averageFuelLevel"`
	LastUpdate       *time.Time `json:"lastUpdate"`
}

// ComputeFleetStats aggregates the given vehicles. An empty fleet has a zero
// average and no last update.
func ComputeFleetStats(vehicles []Vehicle) FleetStats {
	stats := FleetStats{TotalVehicles: len(vehicles)}
	if len(vehicles) == 0 {
		return stats
	}

	fuel := 0
	var latest time.Time
	for _, v := range vehicles {
		if v.EngineStatus {
			stats.EngineRunning++
		}
		fuel += v.FuelLevel
		if v.LastUpdate.After(latest) {
			latest = v.LastUpdate
		}
	}
	stats.AverageFuelLevel = int(math.Round(float64(fuel) / float64(len(vehicles))))
	if !latest.IsZero() {
		stats.LastUpdate = &latest
	}
	return stats
}
