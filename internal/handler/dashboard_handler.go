package handler

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"go-warehouse-ws/internal/service"
	"go-warehouse-ws/internal/session"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// GetMovement returns daily inflow/outflow quantities for charts
// Query params: days (default 7)
func (h *DashboardHandler) GetMovement(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	data, err := h.service.GetMovement(c.UserContext(), scope, days)
	if err != nil {
		return list(c, nil, err)
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}

// GetDashboardStats returns overview statistics
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	stats, err := h.service.GetStats(c.UserContext(), scope)
	if session.IsNoWarehouse(err) {
		return c.JSON(fiber.Map{"warehouse_selected": false})
	}
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(stats)
}

// GetReport returns revenue figures for ?from= and ?to= (both optional)
func (h *DashboardHandler) GetReport(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return fail(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return fail(c, err)
	}
	report, err := h.service.GetReport(c.UserContext(), scope, from, to)
	if session.IsNoWarehouse(err) {
		return c.JSON(fiber.Map{"warehouse_selected": false})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// ExportTransactions streams an xlsx workbook of the period's transactions.
// Defaults to the last 30 days.
func (h *DashboardHandler) ExportTransactions(c *fiber.Ctx) error {
	scope, err := scopeOf(c)
	if err != nil {
		return fail(c, err)
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if f, err := queryDate(c, "from"); err != nil {
		return fail(c, err)
	} else if f != nil {
		from = *f
	}
	if t, err := queryDate(c, "to"); err != nil {
		return fail(c, err)
	} else if t != nil {
		to = *t
	}

	var buf bytes.Buffer
	if err := h.service.ExportTransactions(c.UserContext(), scope, from, to, &buf); err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="transactions-%s-%s.xlsx"`, from.Format("20060102"), to.Format("20060102")))
	return c.Send(buf.Bytes())
}
