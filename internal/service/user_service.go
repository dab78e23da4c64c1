package service

import (
	"context"
	"strings"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
)

var (
	ErrEmailExists  = apperror.Conflict("email already exists")
	ErrRoleNotFound = apperror.Validation("role not found")
)

type UserService interface {
	CreateUser(ctx context.Context, scope session.Scope, req *CreateUserRequest) (*model.User, error)
	UpdateUser(ctx context.Context, scope session.Scope, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, scope session.Scope, userID uuid.UUID) error
	UpdateUserPrivileges(ctx context.Context, scope session.Scope, userID uuid.UUID, privilegeCodes []string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=6"`
	FullName    string     `json:"full_name" validate:"required"`
	PhoneNumber string     `json:"phone_number" validate:"omitempty,in_phone"`
	Designation string     `json:"designation" validate:"omitempty,max=100"`
	WarehouseID *uuid.UUID `json:"warehouse_id"`
	RoleID      uint       `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"omitempty,in_phone"`
	Designation string  `json:"designation" validate:"omitempty,max=100"`
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
	registry      *session.Registry
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository, registry *session.Registry) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
		registry:      registry,
	}
}

func (s *userService) CreateUser(ctx context.Context, scope session.Scope, req *CreateUserRequest) (*model.User, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, _ := s.userRepo.FindByEmail(ctx, email); existing != nil {
		return nil, ErrEmailExists
	}

	role, err := s.roleRepo.FindByID(ctx, req.RoleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	user := &model.User{
		Email:       email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Designation: req.Designation,
		WarehouseID: req.WarehouseID,
		RoleID:      &req.RoleID,
		IsActive:    true,
	}
	user.CreatedBy = scope.Actor()
	user.UpdatedBy = scope.Actor()

	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to hash password", err)
	}

	// Privileges start as the role's set and can be tuned per user afterwards.
	user.Privileges = role.Privileges

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.FromDB(err, "failed to create user")
	}
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, scope session.Scope, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	role, err := s.roleRepo.FindByID(ctx, req.RoleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	roleChanged := user.RoleID == nil || *user.RoleID != req.RoleID

	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	user.Designation = req.Designation
	user.RoleID = &req.RoleID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = scope.Actor()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperror.FromDB(err, "failed to update user")
	}

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "failed to hash password", err)
		}
		if err := s.userRepo.UpdatePassword(ctx, userID, user.Password); err != nil {
			return nil, apperror.FromDB(err, "failed to update password")
		}
	}

	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, userID, role.Privileges); err != nil {
			return nil, apperror.FromDB(err, "failed to update privileges")
		}
	}

	// The next request re-resolves the profile with the new role and privileges.
	s.registry.SignOut(userID)
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) DeleteUser(ctx context.Context, scope session.Scope, userID uuid.UUID) error {
	if userID == scope.UserID {
		return apperror.Validation("you cannot delete your own account")
	}
	ok, err := s.userRepo.Delete(ctx, userID, scope.Actor())
	if err != nil {
		return apperror.FromDB(err, "failed to delete user")
	}
	if !ok {
		return ErrUserNotFound
	}
	s.registry.SignOut(userID)
	return nil
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, scope session.Scope, userID uuid.UUID, privilegeCodes []string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, apperror.FromDB(err, "failed to find privileges")
	}
	if len(privileges) != len(privilegeCodes) {
		return nil, apperror.Validation("unknown privilege code")
	}

	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		return nil, apperror.FromDB(err, "failed to update privileges")
	}

	user.UpdatedBy = scope.Actor()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperror.FromDB(err, "failed to update user")
	}

	s.registry.SignOut(userID)
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, apperror.FromDB(err, "failed to fetch users")
	}

	responses := make([]model.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	response := user.ToResponse()
	return &response, nil
}
