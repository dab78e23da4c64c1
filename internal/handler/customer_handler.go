package handler

import (
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CustomerHandler struct {
	customerService service.CustomerService
}

func NewCustomerHandler(customerService service.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// GetCustomers lists customers of the selected warehouse.
// Optional filters: ?q=<name/phone>, ?status=<status>, ?outstanding=true
// GET /api/v1/customers
func (h *CustomerHandler) GetCustomers(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx := c.UserContext()

	var customers []model.Customer
	switch {
	case c.Query("q") != "":
		customers, err = h.customerService.Search(ctx, scope, c.Query("q"))
	case c.Query("status") != "":
		customers, err = h.customerService.ListByStatus(ctx, scope, c.Query("status"))
	case c.QueryBool("outstanding"):
		customers, err = h.customerService.ListOutstanding(ctx, scope)
	default:
		customers, err = h.customerService.List(ctx, scope)
	}
	return list(c, customers, err)
}

// GET /api/v1/customers/:id
func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	customer, err := h.customerService.Get(c.UserContext(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(customer)
}

// POST /api/v1/customers
func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	customer, err := h.customerService.Create(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Customer created", "data": customer})
}

// PUT /api/v1/customers/:id
func (h *CustomerHandler) UpdateCustomer(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	customer, err := h.customerService.Update(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Customer updated", "data": customer})
}

// DELETE /api/v1/customers/:id
func (h *CustomerHandler) DeleteCustomer(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.customerService.Delete(c.UserContext(), scope, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Customer deleted"})
}
