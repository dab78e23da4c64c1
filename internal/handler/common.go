package handler

import (
	"time"

	"go-warehouse-ws/internal/middleware"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// fail renders a service error with the status of its kind.
func fail(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error(), "kind": apperror.KindOf(err)}
	if session.IsNoWarehouse(err) {
		body["warehouse_selected"] = false
	}
	return c.Status(apperror.HTTPStatus(err)).JSON(body)
}

// list renders a collection. No selected warehouse is a normal empty state.
func list(c *fiber.Ctx, data any, err error) error {
	if session.IsNoWarehouse(err) {
		return c.JSON(fiber.Map{"data": []any{}, "warehouse_selected": false})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": data, "warehouse_selected": true})
}

func scopeOf(c *fiber.Ctx) (session.Scope, error) {
	scope, ok := middleware.Scope(c)
	if !ok {
		return session.Scope{}, session.ErrNotReady
	}
	return scope, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validationf("Invalid %s", name)
	}
	return id, nil
}

// queryDate parses an optional YYYY-MM-DD or RFC 3339 query value.
func queryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apperror.Validationf("invalid %s, use YYYY-MM-DD", name)
	}
	return &t, nil
}
