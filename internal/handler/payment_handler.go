package handler

import (
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// GET /api/v1/payments
func (h *PaymentHandler) GetPayments(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	payments, err := h.paymentService.List(c.UserContext(), scope)
	return list(c, payments, err)
}

// GET /api/v1/payments/today
func (h *PaymentHandler) GetToday(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	payments, err := h.paymentService.ListToday(c.UserContext(), scope)
	return list(c, payments, err)
}

// GET /api/v1/payments/outstanding
func (h *PaymentHandler) GetOutstanding(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx := c.UserContext()
	total, err := h.paymentService.TotalOutstanding(ctx, scope)
	if err != nil {
		return list(c, nil, err)
	}
	customers, err := h.paymentService.OutstandingCustomers(ctx, scope)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"total": total, "data": customers, "warehouse_selected": true})
}

// GET /api/v1/customers/:id/payments
func (h *PaymentHandler) GetCustomerPayments(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	customerID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	payments, err := h.paymentService.ListByCustomer(c.UserContext(), scope, customerID)
	return list(c, payments, err)
}

// GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	p, err := h.paymentService.Get(c.UserContext(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.PaymentInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	p, err := h.paymentService.Create(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Payment recorded", "data": p})
}

// PUT /api/v1/payments/:id/status
func (h *PaymentHandler) UpdateStatus(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.StatusInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	p, err := h.paymentService.UpdateStatus(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment updated", "data": p})
}
