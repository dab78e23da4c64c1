package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"
	"go-warehouse-ws/pkg/jwt"
	"go-warehouse-ws/pkg/logger"
)

const authModule = "auth_service"

var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	ErrUserNotFound       = apperror.NotFound("user not found")
	ErrUserInactive       = apperror.Unauthorized("user account is inactive")
	ErrWrongPassword      = apperror.Validation("current password is incorrect")
	ErrSessionTimeout     = apperror.Unauthorized("session expired due to inactivity")
	ErrSessionReplaced    = apperror.Unauthorized("session expired (logged in on another device)")
)

const DefaultIdleTimeout = 5 * time.Minute

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Logout(ctx context.Context, scope session.Scope) error
	// Authenticate checks a bearer token and returns the request scope of its ready session.
	Authenticate(ctx context.Context, token string) (session.Scope, error)
	ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	SelectWarehouse(ctx context.Context, scope session.Scope, warehouseID uuid.UUID) (*TokenValidationResponse, error)
	UpdateProfile(ctx context.Context, scope session.Scope, req *ProfileRequest) (*TokenValidationResponse, error)
	ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error
}

type LoginResponse struct {
	Token string `json:"token"`
	TokenValidationResponse
}

type TokenValidationResponse struct {
	User              model.UserResponse `json:"user"`
	Role              *model.Role        `json:"role"`
	Privileges        []string           `json:"privileges"`
	Warehouse         *session.Warehouse `json:"warehouse"`
	WarehouseSelected bool               `json:"warehouse_selected"`
}

type ProfileRequest struct {
	FullName    string `json:"full_name" validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,in_phone"`
	Designation string `json:"designation" validate:"omitempty,max=100"`
}

type authService struct {
	users       repository.UserRepository
	warehouses  repository.WarehouseRepository
	registry    *session.Registry
	tokens      *jwt.Manager
	notifier    Notifier
	idleTimeout time.Duration
	now         func() time.Time
}

func NewAuthService(users repository.UserRepository, warehouses repository.WarehouseRepository, registry *session.Registry, tokens *jwt.Manager, notifier Notifier, idleTimeout time.Duration) AuthService {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &authService{
		users:       users,
		warehouses:  warehouses,
		registry:    registry,
		tokens:      tokens,
		notifier:    notifier,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	roleCode := ""
	if user.Role != nil {
		roleCode = user.Role.Code
	}

	// Single session: a new version invalidates every older token.
	version := uuid.New().String()
	if err := s.users.StartSession(ctx, user.ID, version); err != nil {
		logger.LogError(logger.Get(), authModule, "Login", "failed to start session", user.ID, err)
		return nil, apperror.Wrap(apperror.KindInternal, "failed to update session", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.FullName, roleCode, user.GetPrivilegeCodes(), version)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to generate token", err)
	}

	ev := session.Event{
		Type:     session.EventSignedIn,
		Identity: session.Identity{UserID: user.ID, Email: user.Email, TokenVersion: version},
		Token:    token,
	}
	if err := s.registry.Publish(ctx, ev); err != nil {
		return nil, err
	}
	scope, err := s.registry.Get(user.ID).Scope()
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, TokenValidationResponse: validationResponse(user, scope)}, nil
}

// Logout rotates the token version so the bearer token stops working, then
// clears the in-memory session.
func (s *authService) Logout(ctx context.Context, scope session.Scope) error {
	if err := s.users.UpdateTokenVersion(ctx, scope.UserID, uuid.New().String()); err != nil {
		return apperror.FromDB(err, "failed to end session")
	}
	s.registry.SignOut(scope.UserID)
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (session.Scope, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return session.Scope{}, apperror.Wrap(apperror.KindUnauthorized, "invalid or expired token", err)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return session.Scope{}, apperror.Unauthorized("user not found")
	}
	if !user.IsActive {
		return session.Scope{}, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return session.Scope{}, ErrSessionReplaced
	}
	if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > s.idleTimeout {
		s.registry.SignOut(user.ID)
		return session.Scope{}, ErrSessionTimeout
	}

	id := session.Identity{UserID: user.ID, Email: user.Email, TokenVersion: claims.TokenVersion}
	sess, err := s.registry.Ensure(ctx, id, token)
	if err != nil {
		return session.Scope{}, err
	}
	return sess.Scope()
}

func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error) {
	scope, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, scope.UserID)
}

func (s *authService) describe(ctx context.Context, userID uuid.UUID) (*TokenValidationResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	scope, err := s.registry.Get(userID).Scope()
	if err != nil {
		return nil, err
	}
	resp := validationResponse(user, scope)
	return &resp, nil
}

func validationResponse(user *model.User, scope session.Scope) TokenValidationResponse {
	return TokenValidationResponse{
		User:              user.ToResponse(),
		Role:              user.Role,
		Privileges:        user.GetPrivilegeCodes(),
		Warehouse:         scope.Warehouse,
		WarehouseSelected: scope.Warehouse != nil,
	}
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.UpdateLastSeen(ctx, userID); err != nil {
		return apperror.FromDB(err, "failed to update last seen")
	}
	if s.notifier != nil {
		s.notifier.Publish("user_status_update", uuid.Nil, map[string]any{
			"type":         "user_status_update",
			"user_id":      userID.String(),
			"status":       "online",
			"last_seen_at": s.now(),
		})
	}
	return nil
}

// SelectWarehouse stores the choice on the profile and re-resolves the session.
func (s *authService) SelectWarehouse(ctx context.Context, scope session.Scope, warehouseID uuid.UUID) (*TokenValidationResponse, error) {
	if _, err := s.warehouses.FindByID(ctx, warehouseID); err != nil {
		if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
			return nil, ErrWarehouseNotFound
		}
		return nil, apperror.FromDB(err, "failed to load warehouse")
	}
	if err := s.users.SelectWarehouse(ctx, scope.UserID, &warehouseID); err != nil {
		return nil, apperror.FromDB(err, "failed to select warehouse")
	}
	if err := s.republish(ctx, scope, session.EventWarehouseSelected); err != nil {
		return nil, err
	}
	return s.describe(ctx, scope.UserID)
}

func (s *authService) UpdateProfile(ctx context.Context, scope session.Scope, req *ProfileRequest) (*TokenValidationResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, scope.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	user.Designation = req.Designation
	user.UpdatedBy = scope.Actor()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperror.FromDB(err, "failed to update profile")
	}
	if err := s.republish(ctx, scope, session.EventProfileUpdated); err != nil {
		return nil, err
	}
	return s.describe(ctx, scope.UserID)
}

func (s *authService) republish(ctx context.Context, scope session.Scope, event session.EventType) error {
	user, err := s.users.FindByID(ctx, scope.UserID)
	if err != nil {
		return ErrUserNotFound
	}
	sess := s.registry.Get(scope.UserID)
	return s.registry.Publish(ctx, session.Event{
		Type:     event,
		Identity: session.Identity{UserID: user.ID, Email: user.Email, TokenVersion: user.TokenVersion},
		Token:    sess.Token(),
	})
}

// ResetPassword changes the password and ends every session of the user.
func (s *authService) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperror.Validation("Validation failed: Field 'NewPassword' failed on tag 'min'")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to hash new password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return apperror.FromDB(err, "failed to update password")
	}
	if err := s.users.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
		return apperror.FromDB(err, "failed to end sessions")
	}
	s.registry.SignOut(user.ID)
	return nil
}

// ProfileResolver loads session profiles and warehouses from the database.
type ProfileResolver struct {
	Users      repository.UserRepository
	Warehouses repository.WarehouseRepository
}

func (r ProfileResolver) ResolveProfile(ctx context.Context, userID uuid.UUID) (*session.Profile, error) {
	user, err := r.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperror.FromDB(err, "profile not found")
	}
	p := &session.Profile{
		UserID:      user.ID,
		FullName:    user.FullName,
		Email:       user.Email,
		Privileges:  user.GetPrivilegeCodes(),
		WarehouseID: user.WarehouseID,
	}
	if user.Role != nil {
		p.RoleCode = user.Role.Code
	}
	return p, nil
}

// ResolveWarehouse returns nil when the profile has no warehouse or the one it
// points at no longer exists.
func (r ProfileResolver) ResolveWarehouse(ctx context.Context, profile *session.Profile) (*session.Warehouse, error) {
	if profile.WarehouseID == nil {
		return nil, nil
	}
	w, err := r.Warehouses.FindByID(ctx, *profile.WarehouseID)
	if err != nil {
		if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
			return nil, nil
		}
		return nil, apperror.FromDB(err, "failed to load warehouse")
	}
	return &session.Warehouse{ID: w.ID, Name: w.WarehouseName, Code: w.WarehouseCode}, nil
}
