package handler

import (
	"bytes"

	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type StorageHandler struct {
	storageService service.StorageService
}

func NewStorageHandler(storageService service.StorageService) *StorageHandler {
	return &StorageHandler{storageService: storageService}
}

// GET /api/v1/storage-lots
func (h *StorageHandler) GetLots(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	lots, err := h.storageService.List(c.UserContext(), scope)
	return list(c, lots, err)
}

// GetAvailable lists active lots with at least ?required=<qty> free.
// GET /api/v1/storage-lots/available
func (h *StorageHandler) GetAvailable(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	required := decimal.Zero
	if v := c.Query("required"); v != "" {
		if required, err = decimal.NewFromString(v); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "required must be a number"})
		}
	}
	lots, err := h.storageService.Available(c.UserContext(), scope, required)
	return list(c, lots, err)
}

// GET /api/v1/storage-lots/utilization
func (h *StorageHandler) GetUtilization(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.storageService.Utilization(c.UserContext(), scope)
	return list(c, rows, err)
}

// GET /api/v1/storage-lots/:id
func (h *StorageHandler) GetLot(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	lot, err := h.storageService.Get(c.UserContext(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(lot)
}

// CreateLots accepts a single lot or an array of lots.
// POST /api/v1/storage-lots
func (h *StorageHandler) CreateLots(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	if bytes.HasPrefix(bytes.TrimSpace(c.Body()), []byte("[")) {
		var reqs []service.LotRequest
		if err := c.BodyParser(&reqs); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
		}
		lots, err := h.storageService.CreateMany(c.UserContext(), scope, reqs)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"message": "Storage lots created", "data": lots})
	}

	var req service.LotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	lot, err := h.storageService.Create(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Storage lot created", "data": lot})
}

// PUT /api/v1/storage-lots/:id
func (h *StorageHandler) UpdateLot(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.LotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	lot, err := h.storageService.Update(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Storage lot updated", "data": lot})
}

// AdjustOccupancy applies a signed delta to a lot's occupancy.
// POST /api/v1/storage-lots/:id/occupancy
func (h *StorageHandler) AdjustOccupancy(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		Delta decimal.Decimal `json:"delta"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	lot, err := h.storageService.UpdateLotOccupancy(c.UserContext(), scope, id, req.Delta)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Occupancy updated", "data": lot})
}

// DELETE /api/v1/storage-lots/:id
func (h *StorageHandler) DeleteLot(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.storageService.Delete(c.UserContext(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Storage lot deleted"})
}
