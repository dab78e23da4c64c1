package middleware

import (
	"strings"

	"go-warehouse-ws/internal/service"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

const ScopeKey = "session_scope"

// RequireAuth validates the bearer token, resolves the user's session and
// stores its Scope in the request context.
func RequireAuth(auth service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := BearerToken(c)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}

		scope, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return c.Status(apperror.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}

		c.Locals(ScopeKey, scope)
		c.Locals("user_id", scope.UserID.String())
		c.Locals("user_email", scope.Email)
		c.Locals("user_name", scope.FullName)
		c.Locals("user_privileges", scope.Privileges)

		return c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>", or
// from the token query parameter for websocket upgrades.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, nil
		}
		return "", apperror.Unauthorized("Missing authorization token")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", apperror.Unauthorized("Invalid authorization format. Use: Bearer <token>")
	}
	return parts[1], nil
}

// Scope returns the session scope set by RequireAuth.
func Scope(c *fiber.Ctx) (session.Scope, bool) {
	scope, ok := c.Locals(ScopeKey).(session.Scope)
	return scope, ok
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, ok := Scope(c)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}

		if scope.HasPrivilege(requiredPrivilege) {
			return c.Next()
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires '" + requiredPrivilege + "' privilege",
		})
	}
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, ok := Scope(c)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}

		for _, reqPriv := range requiredPrivileges {
			if scope.HasPrivilege(reqPriv) {
				return c.Next()
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(requiredPrivileges, ", ") + " privileges",
		})
	}
}
