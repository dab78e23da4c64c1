package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/format"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const dashboardModule = "dashboard_service"

const recentTransactions = 5

type DashboardStats struct {
	TotalInflow         decimal.Decimal     `json:"total_inflow"`
	TotalOutflow        decimal.Decimal     `json:"total_outflow"`
	Revenue             decimal.Decimal     `json:"revenue"`
	ActiveInventory     decimal.Decimal     `json:"active_inventory"`
	TotalCapacity       decimal.Decimal     `json:"total_capacity"`
	FillPercentage      float64             `json:"fill_percentage"`
	PendingTransactions int64               `json:"pending_transactions"`
	TotalOutstanding    decimal.Decimal     `json:"total_outstanding"`
	Recent              []model.Transaction `json:"recent_transactions"`
}

type Report struct {
	From              *time.Time      `json:"from,omitempty"`
	To                *time.Time      `json:"to,omitempty"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalOrders       int64           `json:"total_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// MovementPoint is one day of goods movement.
type MovementPoint struct {
	Date          string          `json:"date"`
	InflowQty     decimal.Decimal `json:"inflow_quantity"`
	OutflowQty    decimal.Decimal `json:"outflow_quantity"`
	InflowAmount  decimal.Decimal `json:"inflow_amount"`
	OutflowAmount decimal.Decimal `json:"outflow_amount"`
}

type DashboardService interface {
	GetStats(ctx context.Context, scope session.Scope) (*DashboardStats, error)
	GetReport(ctx context.Context, scope session.Scope, from, to *time.Time) (*Report, error)
	GetMovement(ctx context.Context, scope session.Scope, days int) ([]MovementPoint, error)
	ExportTransactions(ctx context.Context, scope session.Scope, from, to time.Time, w io.Writer) error
}

type dashboardService struct {
	deps
	transactions repository.TransactionRepository
	lots         repository.StorageLotRepository
	customers    repository.CustomerRepository
	warehouses   repository.WarehouseRepository
}

func NewDashboardService(
	transactions repository.TransactionRepository,
	lots repository.StorageLotRepository,
	customers repository.CustomerRepository,
	warehouses repository.WarehouseRepository,
	db *gorm.DB, c *cache.Cache, opts Options,
) DashboardService {
	return &dashboardService{
		deps:         newDeps(db, c, nil, nil, opts),
		transactions: transactions,
		lots:         lots,
		customers:    customers,
		warehouses:   warehouses,
	}
}

func (s *dashboardService) GetStats(ctx context.Context, scope session.Scope) (*DashboardStats, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	stats, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Dashboard, wh, cache.ViewStats), func(ctx context.Context) (*DashboardStats, error) {
		st := &DashboardStats{}
		var err error
		if st.TotalInflow, _, err = s.transactions.SumTotal(ctx, wh, model.TxInflow, nil, nil); err != nil {
			return nil, err
		}
		if st.TotalOutflow, _, err = s.transactions.SumTotal(ctx, wh, model.TxOutflow, nil, nil); err != nil {
			return nil, err
		}
		st.Revenue = st.TotalOutflow
		if st.ActiveInventory, err = s.lots.TotalOccupancy(ctx, wh); err != nil {
			return nil, err
		}
		w, err := s.warehouses.FindByID(ctx, wh)
		if err != nil {
			return nil, err
		}
		st.TotalCapacity = w.WarehouseCapacity.TotalCapacity
		if st.TotalCapacity.IsPositive() {
			st.FillPercentage = st.ActiveInventory.Div(st.TotalCapacity).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		if st.PendingTransactions, err = s.transactions.CountByStatus(ctx, wh, model.TxStatusActive); err != nil {
			return nil, err
		}
		if st.TotalOutstanding, err = s.customers.TotalOutstanding(ctx, wh); err != nil {
			return nil, err
		}
		if st.Recent, err = s.transactions.FindRecent(ctx, wh, recentTransactions); err != nil {
			return nil, err
		}
		return st, nil
	})
	return stats, s.storeErr(ctx, dashboardModule, "GetStats", err, "failed to fetch dashboard stats")
}

// GetReport summarises outflows, which are the revenue-earning orders.
func (s *dashboardService) GetReport(ctx context.Context, scope session.Scope, from, to *time.Time) (*Report, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(cache.Dashboard, wh, cache.ViewReport, rangePart(from), rangePart(to))
	report, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) (*Report, error) {
		revenue, orders, err := s.transactions.SumTotal(ctx, wh, model.TxOutflow, from, to)
		if err != nil {
			return nil, err
		}
		r := &Report{From: from, To: to, TotalRevenue: revenue, TotalOrders: orders, AverageOrderValue: decimal.Zero}
		if orders > 0 {
			r.AverageOrderValue = revenue.Div(decimal.NewFromInt(orders)).Round(2)
		}
		return r, nil
	})
	return report, s.storeErr(ctx, dashboardModule, "GetReport", err, "failed to build report")
}

func rangePart(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *dashboardService) GetMovement(ctx context.Context, scope session.Scope, days int) ([]MovementPoint, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	now := s.opts.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)
	txs, err := s.transactions.FindBetween(ctx, wh, start, end)
	if err != nil {
		return nil, s.storeErr(ctx, dashboardModule, "GetMovement", err, "failed to fetch stock movement")
	}

	points := make([]MovementPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		points[i] = MovementPoint{Date: d}
		index[d] = i
	}
	for _, t := range txs {
		if t.Status == model.TxStatusCancelled {
			continue
		}
		i, ok := index[t.TransactionDate.In(now.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		p := &points[i]
		if t.Type == model.TxInflow {
			p.InflowQty = p.InflowQty.Add(t.ItemQuantity)
			p.InflowAmount = p.InflowAmount.Add(t.TotalAmount)
		} else {
			p.OutflowQty = p.OutflowQty.Add(t.ItemQuantity)
			p.OutflowAmount = p.OutflowAmount.Add(t.TotalAmount)
		}
	}
	return points, nil
}

var exportHeadings = []string{
	"Receipt", "Date", "Type", "Customer", "Product", "Lot", "Quantity",
	"Base", "Tax", "Discount", "Handling", "Labor", "Total", "Paid", "Outstanding", "Status", "Payment",
}

// ExportTransactions writes the transactions in [from, to) as an xlsx workbook.
func (s *dashboardService) ExportTransactions(ctx context.Context, scope session.Scope, from, to time.Time, w io.Writer) error {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return err
	}
	txs, err := s.transactions.FindBetween(ctx, wh, from, to)
	if err != nil {
		return s.storeErr(ctx, dashboardModule, "ExportTransactions", err, "failed to fetch transactions")
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Transactions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, h := range exportHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, t := range txs {
		row := []any{
			t.ReceiptNumber,
			t.TransactionDate.Format("2006-01-02"),
			string(t.Type),
			customerName(t.Customer),
			productName(t.Product),
			lotName(t.StorageLot),
			t.ItemQuantity.InexactFloat64(),
			t.BaseAmount.InexactFloat64(),
			t.TaxAmount.InexactFloat64(),
			t.DiscountAmount.InexactFloat64(),
			t.HandlingCharges.InexactFloat64(),
			t.TotalLaborCharges.InexactFloat64(),
			t.TotalAmount.InexactFloat64(),
			t.StoragePaidAmount.InexactFloat64(),
			t.StorageOutstanding.InexactFloat64(),
			t.Status,
			string(t.PaymentStatus),
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	summary := len(txs) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summary), "Generated")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summary), s.opts.Now().Format(time.RFC3339))
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summary+1), "Outflow total")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summary+1), format.FormatCurrency(sumOutflows(txs)))

	if _, err := f.WriteTo(w); err != nil {
		return s.storeErr(ctx, dashboardModule, "ExportTransactions", err, "failed to write workbook")
	}
	return nil
}

func sumOutflows(txs []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == model.TxOutflow && t.Status != model.TxStatusCancelled {
			total = total.Add(t.TotalAmount)
		}
	}
	return total
}

func customerName(c *model.Customer) string {
	if c == nil {
		return ""
	}
	return c.CustomerName
}

func productName(p *model.Product) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func lotName(l *model.StorageLot) string {
	if l == nil {
		return ""
	}
	return l.LotName
}
