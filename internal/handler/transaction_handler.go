package handler

import (
	"go-warehouse-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	transactionService service.TransactionService
}

func NewTransactionHandler(transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// GET /api/v1/transactions
func (h *TransactionHandler) GetTransactions(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	transactions, err := h.transactionService.List(c.UserContext(), scope)
	return list(c, transactions, err)
}

// GetActiveInflows lists inflows that still hold stock, with drawn and remaining quantities.
// GET /api/v1/transactions/active-inflows
func (h *TransactionHandler) GetActiveInflows(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	inflows, err := h.transactionService.ListActiveInflows(c.UserContext(), scope)
	return list(c, inflows, err)
}

// GET /api/v1/customers/:id/transactions
func (h *TransactionHandler) GetCustomerTransactions(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	customerID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	transactions, err := h.transactionService.ListByCustomer(c.UserContext(), scope, customerID)
	return list(c, transactions, err)
}

// GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	t, err := h.transactionService.Get(c.UserContext(), scope, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

// CreateInflow records stock entering a lot.
// POST /api/v1/transactions/inflow
func (h *TransactionHandler) CreateInflow(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.InflowInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	t, err := h.transactionService.CreateInflow(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Inflow recorded", "data": t})
}

// CreateOutflow records stock leaving a lot, drawn against a parent inflow.
// POST /api/v1/transactions/outflow
func (h *TransactionHandler) CreateOutflow(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req service.OutflowInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	t, err := h.transactionService.CreateOutflow(c.UserContext(), scope, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Outflow recorded", "data": t})
}

// PUT /api/v1/transactions/:id/status
func (h *TransactionHandler) UpdateStatus(c *fiber.Ctx) error {
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
	t, err := h.transactionService.UpdateStatus(c.UserContext(), scope, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction updated", "data": t})
}

// RecomputeOutstanding compares a customer's stored balance with their ledger.
// ?repair=true writes the recomputed value back.
// POST /api/v1/customers/:id/recompute-outstanding
func (h *TransactionHandler) RecomputeOutstanding(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	warehouseID, err := scope.RequireWarehouse()
	if err != nil {
		return fail(c, err)
	}
	customerID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	report, err := h.transactionService.RecomputeOutstanding(c.UserContext(), warehouseID, customerID, c.QueryBool("repair"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}
