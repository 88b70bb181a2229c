package handler

import (
	"net/http"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/logger"
)

// RideHandler serves the seat ledger and the ride directory.
type RideHandler struct {
	createRide        *service.CreateRideUseCase
	requestRide       *service.RequestRideUseCase
	cancelRideRequest *service.CancelRideRequestUseCase
	cancelRide        *service.CancelRideUseCase
	finalizeRide      *service.FinalizeRideUseCase
	directory         *service.RideDirectory
	logger            logger.Logger
}

func NewRideHandler(
	createRide *service.CreateRideUseCase,
	requestRide *service.RequestRideUseCase,
	cancelRideRequest *service.CancelRideRequestUseCase,
	cancelRide *service.CancelRideUseCase,
	finalizeRide *service.FinalizeRideUseCase,
	directory *service.RideDirectory,
	logger logger.Logger,
) *RideHandler {
	return &RideHandler{
		createRide:        createRide,
		requestRide:       requestRide,
		cancelRideRequest: cancelRideRequest,
		cancelRide:        cancelRide,
		finalizeRide:      finalizeRide,
		directory:         directory,
		logger:            logger,
	}
}

type CreateRideRequest struct {
	DeparturePoint   string     `json:"departurePoint"`
	DestinationPoint string     `json:"destinationPoint"`
	Route            string     `json:"route"`
	DepartureTime    string     `json:"departureTime"`
	Capacity         flexNumber `json:"capacity"`
	PricePassenger   flexNumber `json:"pricePassenger"`
}

type RequestRideRequest struct {
	Tickets         flexNumber `json:"tickets"`
	PassengerPoints []string   `json:"passengerPoints"`
}

// callerID returns the authenticated user, or writes 401.
func (h *RideHandler) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, requestLogger(h.logger, r), "missing_claims", domain.Unauthenticated("authentication required"))
		return "", false
	}
	return claims.UserID, true
}

// CreateRide handles POST /rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req CreateRideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}

	ride, err := h.createRide.Execute(r.Context(), service.CreateRideCommand{
		DriverID:         userID,
		DeparturePoint:   req.DeparturePoint,
		DestinationPoint: req.DestinationPoint,
		Route:            req.Route,
		DepartureTime:    req.DepartureTime,
		Capacity:         string(req.Capacity),
		PricePassenger:   string(req.PricePassenger),
	})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": userID}), "create_ride_failed", err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{
		"message": "Ride created successfully",
		"ride":    ride,
	})
}

// ListRides handles GET /rides
func (h *RideHandler) ListRides(w http.ResponseWriter, r *http.Request) {
	var callerID string
	if claims, ok := auth.GetClaims(r.Context()); ok {
		callerID = claims.UserID
	}
	rides, err := h.directory.ListActiveRides(r.Context(), callerID)
	if err != nil {
		writeError(w, requestLogger(h.logger, r), "list_rides_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"rides": rides})
}

// ListDriverRides handles GET /rides/driver
func (h *RideHandler) ListDriverRides(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	rides, err := h.directory.ListDriverRides(r.Context(), userID)
	if err != nil {
		writeError(w, requestLogger(h.logger, r), "list_driver_rides_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"rides": rides})
}

// ListUserRequests handles GET /rides/requests
func (h *RideHandler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	requests, err := h.directory.ListUserRequests(r.Context(), userID)
	if err != nil {
		writeError(w, requestLogger(h.logger, r), "list_user_requests_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"requests": requests})
}

// RequestRide handles POST /rides/{rideId}/request
func (h *RideHandler) RequestRide(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("rideId")
	log := requestLogger(h.logger, r).WithFields(logger.LogFields{"ride_id": rideID})
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req RequestRideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}
	tickets := 0
	if req.Tickets != "" {
		n, ok := req.Tickets.Int()
		if !ok {
			writeError(w, log, "parse_request_failed", domain.Invalid(domain.FieldErrors{"tickets": "must be a whole number"}))
			return
		}
		tickets = n
	}

	ride, err := h.requestRide.Execute(r.Context(), service.RequestRideCommand{
		RideID:  rideID,
		UserID:  userID,
		Tickets: tickets,
		Points:  req.PassengerPoints,
	})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": userID}), "request_ride_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Ride requested successfully",
		"ride": envelope{
			"id":             ride.ID,
			"availableSeats": ride.AvailableSeats,
			"passengers":     ride.Passengers,
		},
	})
}

// CancelRideRequest handles DELETE /rides/{rideId}/request
func (h *RideHandler) CancelRideRequest(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("rideId")
	log := requestLogger(h.logger, r).WithFields(logger.LogFields{"ride_id": rideID})
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	ride, err := h.cancelRideRequest.Execute(r.Context(), service.CancelRideRequestCommand{RideID: rideID, UserID: userID})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": userID}), "cancel_ride_request_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Reservation cancelled successfully",
		"ride": envelope{
			"id":             ride.ID,
			"availableSeats": ride.AvailableSeats,
		},
	})
}

// CancelRide handles DELETE /rides/{rideId}
func (h *RideHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("rideId")
	log := requestLogger(h.logger, r).WithFields(logger.LogFields{"ride_id": rideID})
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	if _, err := h.cancelRide.Execute(r.Context(), service.CancelRideCommand{RideID: rideID, DriverID: userID}); err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": userID}), "cancel_ride_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Ride cancelled successfully"})
}

// FinalizeRide handles POST /rides/finalize
func (h *RideHandler) FinalizeRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	ride, err := h.finalizeRide.Execute(r.Context(), service.FinalizeRideCommand{DriverID: userID})
	if err != nil {
		writeError(w, requestLogger(h.logger, r).WithFields(logger.LogFields{"user_id": userID}), "finalize_ride_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Ride finished successfully",
		"ride": envelope{
			"id":     ride.ID,
			"status": ride.Status,
		},
	})
}
