package handler

import (
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type WarehouseHandler struct {
	warehouseService service.WarehouseService
}

func NewWarehouseHandler(warehouseService service.WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{warehouseService: warehouseService}
}

// GET /api/v1/warehouses
func (h *WarehouseHandler) GetWarehouses(c *fiber.Ctx) error {
	warehouses, err := h.warehouseService.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(warehouses)
}

// GET /api/v1/warehouses/default
func (h *WarehouseHandler) GetDefault(c *fiber.Ctx) error {
	w, err := h.warehouseService.Default(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(w)
}

// GET /api/v1/warehouses/:id
func (h *WarehouseHandler) GetWarehouse(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	w, err := h.warehouseService.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(w)
}

// POST /api/v1/warehouses
func (h *WarehouseHandler) CreateWarehouse(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.WarehouseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	w, err := h.warehouseService.Create(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Warehouse created", "data": w})
}

// PUT /api/v1/warehouses/:id
func (h *WarehouseHandler) UpdateWarehouse(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.WarehouseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	w, err := h.warehouseService.Update(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Warehouse updated", "data": w})
}

// DELETE /api/v1/warehouses/:id
func (h *WarehouseHandler) DeleteWarehouse(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.warehouseService.Delete(c.UserContext(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Warehouse deleted"})
}
