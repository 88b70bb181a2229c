package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/auth"
	"ride-share/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 12

type RegisterCommand struct {
	Name          string
	LastName      string
	UniversityID  string
	Email         string
	ContactNumber string
	Password      string
	Photo         string
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// AccountService handles registration, sessions and profiles.
type AccountService struct {
	store       domain.Store
	jwt         *auth.JWTManager
	emailDomain string
	hashCost    int
	logger      logger.Logger
	now         Clock
}

func NewAccountService(store domain.Store, jwt *auth.JWTManager, emailDomain string, logger logger.Logger, now Clock) *AccountService {
	return &AccountService{
		store:       store,
		jwt:         jwt,
		emailDomain: emailDomain,
		hashCost:    passwordCost,
		logger:      logger,
		now:         now,
	}
}

func emailTaken() error {
	return domain.Invalid(domain.FieldErrors{"email": "is already registered"})
}

func (s *AccountService) Register(ctx context.Context, cmd RegisterCommand) (*domain.User, error) {
	err := domain.Check(domain.ValidateRegistration, domain.Registration{
		Name:          cmd.Name,
		LastName:      cmd.LastName,
		UniversityID:  cmd.UniversityID,
		Email:         cmd.Email,
		ContactNumber: cmd.ContactNumber,
		Password:      cmd.Password,
		Photo:         cmd.Photo,
		EmailDomain:   s.emailDomain,
	})
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return nil, emailTaken()
	} else if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	universityID, _ := strconv.Atoi(strings.TrimSpace(cmd.UniversityID))
	now := s.now()
	user := &domain.User{
		Name:          strings.TrimSpace(cmd.Name),
		LastName:      strings.TrimSpace(cmd.LastName),
		UniversityID:  universityID,
		Email:         email,
		ContactNumber: strings.TrimSpace(cmd.ContactNumber),
		PasswordHash:  string(hash),
		Photo:         cmd.Photo,
		Roles:         []domain.Role{domain.RolePassenger},
		CurrentRole:   domain.RolePassenger,
		Rides:         []string{},
		Requests:      []string{},
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, emailTaken()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": user.ID}).Info("user_registered", "User registered")
	return user, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	fields := domain.FieldErrors{}
	if strings.TrimSpace(email) == "" {
		fields["email"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return nil, domain.Invalid(fields)
	}

	user, err := s.store.Users().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithFields(logger.LogFields{"user_id": user.ID}).Warn("login_failed", "Password mismatch")
		return nil, domain.Unauthenticated("invalid email or password")
	}

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	token, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Email, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": user.ID}).Info("user_logged_in", "Token issued")
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the caller's token. Anonymous calls are a no-op.
func (s *AccountService) Logout(ctx context.Context, claims *auth.AppClaims) error {
	if claims == nil {
		return nil
	}
	if err := s.jwt.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": claims.UserID}).Info("user_logged_out", "Token revoked")
	return nil
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	return user, nil
}

// UpdateCurrentRole switches the active role to one the user holds.
func (s *AccountService) UpdateCurrentRole(ctx context.Context, userID, role string) (*domain.User, error) {
	r := domain.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.IsValid() {
		return nil, domain.Invalid(domain.FieldErrors{"role": "must be passenger or driver"})
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	if !user.HasRole(r) {
		return nil, domain.Invalid(domain.FieldErrors{"role": fmt.Sprintf("you do not have the %s role", r)})
	}
	user.CurrentRole = r
	user.UpdatedAt = s.now()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": user.ID, "role": r}).Info("current_role_updated", "Current role updated")
	return user, nil
}

// UpdateProfile changes the provided name, last name and contact number.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, domain.Invalid(domain.FieldErrors{"general": "provide at least one field to update"})
	}
	if err := domain.Check(domain.ValidateProfileUpdate, update); err != nil {
		return nil, err
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}

	if v := strings.TrimSpace(update.Name); v != "" {
		user.Name = v
	}
	if v := strings.TrimSpace(update.LastName); v != "" {
		user.LastName = v
	}
	if v := strings.TrimSpace(update.ContactNumber); v != "" {
		user.ContactNumber = v
	}
	user.UpdatedAt = s.now()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": user.ID}).Info("profile_updated", "Profile updated")
	return user, nil
}

// UpdatePassword replaces the password after checking the current one.
func (s *AccountService) UpdatePassword(ctx context.Context, userID string, change domain.PasswordChange) error {
	if err := domain.Check(domain.ValidatePasswordChange, change); err != nil {
		return err
	}
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return notFoundAs(err, "user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(change.CurrentPassword)); err != nil {
		return domain.Invalid(domain.FieldErrors{"currentPassword": "is incorrect"})
	}
	if change.NewPassword == change.CurrentPassword {
		return domain.Invalid(domain.FieldErrors{"newPassword": "must differ from the current password"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(change.NewPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, string(hash), s.now()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.logger.WithFields(logger.LogFields{"user_id": user.ID}).Info("password_updated", "Password updated")
	return nil
}
