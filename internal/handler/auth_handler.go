package handler

import (
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest represents the reset password request body
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Email and password are required"})
	}

	response, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(response)
}

// Logout ends the caller's session
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.authService.Logout(c.UserContext(), scope); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// ResetPassword handles password change
// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if req.Email == "" || req.OldPassword == "" || req.NewPassword == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Email, old_password, and new_password are required"})
	}

	if len(req.NewPassword) < 6 {
		return c.Status(400).JSON(fiber.Map{"error": "New password must be at least 6 characters"})
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

func (h *AuthHandler) Heartbeat(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.authService.Heartbeat(c.UserContext(), scope.UserID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to update heartbeat"})
	}

	return c.JSON(fiber.Map{"message": "Heartbeat received", "status": "online"})
}

// ValidateTokenRequest represents the validate token request body
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateToken handles JWT token validation
// POST /api/v1/auth/validate-token
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	var req ValidateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if req.Token == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Token is required"})
	}

	response, err := h.authService.ValidateToken(c.UserContext(), req.Token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(response)
}

// Session returns the resolved session of the caller
// GET /api/v1/session
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id":            scope.UserID,
		"email":              scope.Email,
		"full_name":          scope.FullName,
		"role_code":          scope.RoleCode,
		"privileges":         scope.Privileges,
		"warehouse":          scope.Warehouse,
		"warehouse_selected": scope.Warehouse != nil,
	})
}

// SelectWarehouse switches the caller's working warehouse
// PUT /api/v1/session/warehouse
func (h *AuthHandler) SelectWarehouse(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		WarehouseID uuid.UUID `json:"warehouse_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.WarehouseID == uuid.Nil {
		return c.Status(400).JSON(fiber.Map{"error": "warehouse_id is required"})
	}
	response, err := h.authService.SelectWarehouse(c.UserContext(), scope, req.WarehouseID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(response)
}

// UpdateProfile edits the caller's own name, phone and designation
// PUT /api/v1/session/profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	response, err := h.authService.UpdateProfile(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(response)
}
