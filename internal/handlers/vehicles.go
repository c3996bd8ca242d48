package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/models"
	"github.com/ukydev/fleet-dashboard/internal/share"
)

// VehicleHandler serves the vehicle endpoints
type VehicleHandler struct {
	vehicles db.VehicleRepository
	links    *share.Store
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicles db.VehicleRepository, links *share.Store) *VehicleHandler {
	return &VehicleHandler{
		vehicles: vehicles,
		links:    links,
	}
}

// List returns every vehicle
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.ListVehicles(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch vehicles")
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// Create adds a vehicle; the store assigns its id
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.VehicleInput
	if err := decodeJSON(r, &input); err != nil {
		writeServiceError(w, r, err, "Failed to create vehicle")
		return
	}

	vehicle, err := h.vehicles.CreateVehicle(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create vehicle")
		return
	}

	log.WithField("vehicle_id", vehicle.ID).Info("Vehicle created")
	writeJSON(w, http.StatusCreated, vehicle)
}

// Get returns one vehicle by id
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// GetByVIN returns one vehicle by VIN for the machine view
func (h *VehicleHandler) GetByVIN(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByVIN(r.Context(), chi.URLParam(r, "vin"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// Update applies a partial update. Fields missing from the body are kept.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.VehiclePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, err, "Failed to update vehicle")
		return
	}

	vehicle, err := h.vehicles.UpdateVehicle(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// Delete removes a vehicle and revokes its share links
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.vehicles.DeleteVehicle(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete vehicle")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Vehicle not found")
		return
	}

	if n := h.links.Revoke(id); n > 0 {
		log.WithFields(log.Fields{"vehicle_id": id, "links": n}).Info("Revoked share links")
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Stats returns the dashboard summary
func (h *VehicleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.ListVehicles(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, models.ComputeFleetStats(vehicles))
}

type shareRequest struct {
	VehicleID string `json:"vehicleId"`
}

// Share issues a read-only link for a vehicle
func (h *VehicleHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, "Failed to share vehicle")
		return
	}
	if req.VehicleID == "" {
		writeError(w, http.StatusBadRequest, "vehicleId is required")
		return
	}

	if _, err := h.vehicles.FindVehicleByID(r.Context(), req.VehicleID); err != nil {
		writeServiceError(w, r, err, "Failed to share vehicle")
		return
	}

	writeJSON(w, http.StatusCreated, h.links.Create(req.VehicleID))
}

// Shared resolves a share token without a session
func (h *VehicleHandler) Shared(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := h.links.Resolve(chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, share.ErrLinkExpired) {
			writeError(w, http.StatusNotFound, "Share link expired")
			return
		}
		writeError(w, http.StatusNotFound, "Share link not found")
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}
