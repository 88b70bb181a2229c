package handler

import (
	"net/http"

	"ride-share/pkg/auth"
)

// RegisterRideRoutes mounts the ride-service API on mux.
func RegisterRideRoutes(mux *http.ServeMux, jwt *auth.JWTManager, rides *RideHandler, vehicles *VehicleHandler, health *HealthHandler) {
	protected := func(h http.HandlerFunc) http.Handler { return jwt.AuthMiddleware(h) }

	mux.HandleFunc("GET /health", health.Health)

	mux.Handle("GET /rides", jwt.OptionalAuthMiddleware(http.HandlerFunc(rides.ListRides)))
	mux.Handle("POST /rides", protected(rides.CreateRide))
	mux.Handle("GET /rides/driver", protected(rides.ListDriverRides))
	mux.Handle("GET /rides/requests", protected(rides.ListUserRequests))
	mux.Handle("POST /rides/finalize", protected(rides.FinalizeRide))
	mux.Handle("POST /rides/{rideId}/request", protected(rides.RequestRide))
	mux.Handle("DELETE /rides/{rideId}/request", protected(rides.CancelRideRequest))
	mux.Handle("DELETE /rides/{rideId}", protected(rides.CancelRide))

	mux.Handle("POST /vehicles", protected(vehicles.RegisterVehicle))
	mux.Handle("GET /vehicles/{vehicleId}", protected(vehicles.GetVehicle))
}

// RegisterAuthRoutes mounts the auth-service API on mux.
func RegisterAuthRoutes(mux *http.ServeMux, jwt *auth.JWTManager, accounts *AccountHandler, health *HealthHandler) {
	mux.HandleFunc("GET /health", health.Health)

	mux.HandleFunc("POST /auth/register", accounts.Register)
	mux.HandleFunc("POST /auth/login", accounts.Login)
	mux.Handle("POST /auth/logout", jwt.OptionalAuthMiddleware(http.HandlerFunc(accounts.Logout)))
	mux.Handle("GET /auth/verify", jwt.AuthMiddleware(http.HandlerFunc(accounts.Verify)))
	mux.Handle("GET /users/{userId}", jwt.AuthMiddleware(http.HandlerFunc(accounts.GetUser)))
	mux.Handle("PATCH /users/me", jwt.AuthMiddleware(http.HandlerFunc(accounts.UpdateProfile)))
	mux.Handle("PATCH /users/me/role", jwt.AuthMiddleware(http.HandlerFunc(accounts.UpdateCurrentRole)))
	mux.Handle("PATCH /users/me/password", jwt.AuthMiddleware(http.HandlerFunc(accounts.UpdatePassword)))
}
