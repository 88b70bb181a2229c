package handler

import (
	"net/http"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/logger"
)

type VehicleHandler struct {
	vehicles *service.VehicleService
	logger   logger.Logger
}

func NewVehicleHandler(vehicles *service.VehicleService, logger logger.Logger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, logger: logger}
}

type RegisterVehicleRequest struct {
	Brand    string     `json:"brand"`
	Model    string     `json:"model"`
	Plate    string     `json:"plate"`
	Capacity flexNumber `json:"capacity"`
	Color    string     `json:"color"`
	Photo    string     `json:"photo"`
}

// RegisterVehicle handles POST /vehicles
func (h *VehicleHandler) RegisterVehicle(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, log, "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}

	var req RegisterVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}
	// zero fails the 1..4 range check with the right field name
	capacity, _ := req.Capacity.Int()

	vehicle, err := h.vehicles.Register(r.Context(), service.RegisterVehicleCommand{
		OwnerID:  claims.UserID,
		Brand:    req.Brand,
		Model:    req.Model,
		Plate:    req.Plate,
		Capacity: capacity,
		Color:    req.Color,
		Photo:    req.Photo,
	})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": claims.UserID}), "register_vehicle_failed", err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{
		"message": "Vehicle registered successfully",
		"vehicle": vehicle,
	})
}

// GetVehicle handles GET /vehicles/{vehicleId}
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, log, "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}
	vehicle, err := h.vehicles.Get(r.Context(), claims.UserID, r.PathValue("vehicleId"))
	if err != nil {
		writeError(w, log, "get_vehicle_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"vehicle": vehicle})
}
