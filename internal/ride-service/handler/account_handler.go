package handler

import (
	"net/http"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/logger"
)

// AccountHandler serves the auth-service endpoints.
type AccountHandler struct {
	accounts *service.AccountService
	logger   logger.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger logger.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type RegisterRequest struct {
	Name          string     `json:"name"`
	LastName      string     `json:"lastName"`
	UniversityID  flexNumber `json:"universityId"`
	Email         string     `json:"email"`
	ContactNumber flexNumber `json:"contactNumber"`
	Password      string     `json:"password"`
	Photo         string     `json:"photo"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateRoleRequest struct {
	CurrentRole string `json:"currentRole"`
}

type UpdateProfileRequest struct {
	Name          string     `json:"name"`
	LastName      string     `json:"lastName"`
	ContactNumber flexNumber `json:"contactNumber"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Register handles POST /auth/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "signup_decode_error", err)
		return
	}
	user, err := h.accounts.Register(r.Context(), service.RegisterCommand{
		Name:          req.Name,
		LastName:      req.LastName,
		UniversityID:  string(req.UniversityID),
		Email:         req.Email,
		ContactNumber: string(req.ContactNumber),
		Password:      req.Password,
		Photo:         req.Photo,
	})
	if err != nil {
		writeError(w, log, "signup_failed", err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{
		"message": "User registered successfully",
		"userId":  user.ID,
		"user":    user,
	})
}

// Login handles POST /auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "login_decode_error", err)
		return
	}
	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, log, "login_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message":   "Login successful",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user":      res.User,
	})
}

// Logout handles POST /auth/logout. It always answers 200.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())
	if err := h.accounts.Logout(r.Context(), claims); err != nil {
		requestLogger(h.logger, r).Error("logout_failed", err)
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "User logged out successfully"})
}

// Verify handles GET /auth/verify
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, requestLogger(h.logger, r), "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Token is valid",
		"user": envelope{
			"userId": claims.UserID,
			"email":  claims.Email,
			"roles":  claims.Roles,
		},
	})
}

// GetUser handles GET /users/{userId}
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, requestLogger(h.logger, r), "get_user_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"user": user})
}

// UpdateCurrentRole handles PATCH /users/me/role
func (h *AccountHandler) UpdateCurrentRole(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, log, "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}
	var req UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}
	user, err := h.accounts.UpdateCurrentRole(r.Context(), claims.UserID, req.CurrentRole)
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": claims.UserID}), "update_role_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Current role updated to " + string(user.CurrentRole),
		"user": envelope{
			"id":          user.ID,
			"currentRole": user.CurrentRole,
			"roles":       user.Roles,
		},
	})
}

// UpdateProfile handles PATCH /users/me
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, log, "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}
	user, err := h.accounts.UpdateProfile(r.Context(), claims.UserID, domain.ProfileUpdate{
		Name:          req.Name,
		LastName:      req.LastName,
		ContactNumber: string(req.ContactNumber),
	})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": claims.UserID}), "update_profile_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// UpdatePassword handles PATCH /users/me/password
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeError(w, log, "missing_claims", domain.Unauthenticated("authentication required"))
		return
	}
	var req UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, log, "parse_request_failed", err)
		return
	}
	err := h.accounts.UpdatePassword(r.Context(), claims.UserID, domain.PasswordChange{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, log.WithFields(logger.LogFields{"user_id": claims.UserID}), "update_password_failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "Password updated successfully"})
}
