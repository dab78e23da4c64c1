package ledger

import (
	"errors"
	"testing"
	"time"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLot(capacity, occupancy string) *model.StorageLot {
	return &model.StorageLot{
		LotName:          "A1",
		Capacity:         d(capacity),
		CurrentOccupancy: d(occupancy),
		LotStatus:        model.LotActive,
		IsActive:         true,
	}
}

func TestCapacityScenario(t *testing.T) {
	lot := newLot("100", "90")

	err := CheckCapacity(lot, d("20"))
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for 20 into 10 free, got %v", err)
	}
	if !lot.CurrentOccupancy.Equal(d("90")) {
		t.Fatalf("rejected inflow must not change occupancy, got %s", lot.CurrentOccupancy)
	}

	if err := CheckCapacity(lot, d("10")); err != nil {
		t.Fatalf("expected 10 to fit, got %v", err)
	}
	if err := ApplyOccupancy(lot, d("10"), 0.9); err != nil {
		t.Fatalf("ApplyOccupancy: %v", err)
	}
	if !lot.CurrentOccupancy.Equal(d("100")) || lot.LotStatus != model.LotFull {
		t.Fatalf("expected 100/full, got %s/%s", lot.CurrentOccupancy, lot.LotStatus)
	}
	if err := CheckCapacity(lot, d("1")); err == nil {
		t.Fatalf("expected full lot to reject further stock")
	}
}

func TestApplyOccupancyBounds(t *testing.T) {
	cases := []struct {
		name       string
		occupancy  string
		status     model.LotStatus
		delta      string
		wantErr    error
		wantOcc    string
		wantStatus model.LotStatus
	}{
		{"below zero", "5", model.LotActive, "-6", ErrOccupancyNegative, "5", model.LotActive},
		{"over capacity", "95", model.LotActive, "6", ErrOccupancyOverflow, "95", model.LotActive},
		{"reaches capacity", "95", model.LotActive, "5", nil, "100", model.LotFull},
		{"full stays full above threshold", "100", model.LotFull, "-5", nil, "95", model.LotFull},
		{"full reopens below threshold", "100", model.LotFull, "-20", nil, "80", model.LotActive},
		{"maintenance keeps status", "10", model.LotMaintenance, "-10", nil, "0", model.LotMaintenance},
		{"drain to zero", "40", model.LotActive, "-40", nil, "0", model.LotActive},
	}
	for _, tc := range cases {
		lot := newLot("100", tc.occupancy)
		lot.LotStatus = tc.status
		err := ApplyOccupancy(lot, d(tc.delta), 0.9)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected error %v, got %v", tc.name, tc.wantErr, err)
		}
		if !lot.CurrentOccupancy.Equal(d(tc.wantOcc)) {
			t.Fatalf("%s: expected occupancy %s, got %s", tc.name, tc.wantOcc, lot.CurrentOccupancy)
		}
		if lot.LotStatus != tc.wantStatus {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.wantStatus, lot.LotStatus)
		}
	}
}

func TestCheckCapacityRejectsUnavailableLots(t *testing.T) {
	for _, status := range []model.LotStatus{model.LotMaintenance, model.LotInactive} {
		lot := newLot("100", "0")
		lot.LotStatus = status
		if err := CheckCapacity(lot, d("1")); !errors.Is(err, ErrLotUnavailable) {
			t.Fatalf("%s: expected ErrLotUnavailable, got %v", status, err)
		}
	}
	lot := newLot("100", "50")
	lot.ReservedCapacity = d("45")
	if err := CheckCapacity(lot, d("6")); err == nil {
		t.Fatalf("expected reserved capacity to count against available")
	}
}

func TestDrawdownScenario(t *testing.T) {
	wh, cust := uuid.New(), uuid.New()
	parent := &model.Transaction{
		WarehouseID:  wh,
		CustomerID:   cust,
		Type:         model.TxInflow,
		ItemQuantity: d("50"),
		Status:       model.TxStatusActive,
		IsActive:     true,
	}

	if err := CheckDrawdown(parent, wh, cust, decimal.Zero, d("60")); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected 60 out of 50 to be rejected, got %v", err)
	}
	if err := CheckDrawdown(parent, wh, cust, decimal.Zero, d("50")); err != nil {
		t.Fatalf("expected 50 out of 50 to pass, got %v", err)
	}
	if err := CheckDrawdown(parent, wh, cust, d("50"), d("1")); err == nil {
		t.Fatalf("expected fully drawn inflow to reject more")
	}
	if err := CheckDrawdown(parent, wh, cust, d("20"), d("30")); err != nil {
		t.Fatalf("expected cumulative 50 to pass, got %v", err)
	}
}

func TestDrawdownParentChecks(t *testing.T) {
	wh, cust := uuid.New(), uuid.New()
	base := model.Transaction{WarehouseID: wh, CustomerID: cust, Type: model.TxInflow, ItemQuantity: d("10"), Status: model.TxStatusActive, IsActive: true}

	outflow := base
	outflow.Type = model.TxOutflow
	if err := CheckDrawdown(&outflow, wh, cust, decimal.Zero, d("1")); !errors.Is(err, ErrParentNotInflow) {
		t.Fatalf("expected ErrParentNotInflow, got %v", err)
	}
	if err := CheckDrawdown(&base, wh, uuid.New(), decimal.Zero, d("1")); !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
	completed := base
	completed.Status = model.TxStatusCompleted
	if err := CheckDrawdown(&completed, wh, cust, decimal.Zero, d("1")); !errors.Is(err, ErrParentNotActive) {
		t.Fatalf("expected ErrParentNotActive, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	c, total, err := InflowTotals(Charges{BaseAmount: d("1000"), HandlingCharges: d("50"), LaborChargePerBag: d("2.5")}, d("40"))
	if err != nil {
		t.Fatalf("InflowTotals: %v", err)
	}
	if !c.TotalLaborCharges.Equal(d("100")) || !total.Equal(d("1150")) {
		t.Fatalf("expected labor 100 total 1150, got %s / %s", c.TotalLaborCharges, total)
	}

	c, total, _ = InflowTotals(Charges{BaseAmount: d("10"), LaborChargePerBag: d("2"), TotalLaborCharges: d("7")}, d("40"))
	if !c.TotalLaborCharges.Equal(d("7")) || !total.Equal(d("17")) {
		t.Fatalf("explicit labor must win, got %s / %s", c.TotalLaborCharges, total)
	}

	out, _ := OutflowTotal(Charges{BaseAmount: d("500"), TaxAmount: d("90"), DiscountAmount: d("40")})
	if !out.Equal(d("550")) {
		t.Fatalf("expected 550, got %s", out)
	}
	out, _ = OutflowTotal(Charges{BaseAmount: d("10"), DiscountAmount: d("40")})
	if !out.IsZero() {
		t.Fatalf("expected discount to floor at zero, got %s", out)
	}
	if _, err := OutflowTotal(Charges{BaseAmount: d("-1")}); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestSettlement(t *testing.T) {
	tx := &model.Transaction{TotalAmount: d("1000")}
	unpaid, err := OpenSettlement(tx, d("300"))
	if err != nil || !unpaid.Equal(d("700")) || tx.StoragePaymentStatus != model.PaymentPartial {
		t.Fatalf("unexpected settlement %s %s %v", unpaid, tx.StoragePaymentStatus, err)
	}
	if err := ApplyPayment(tx, d("800")); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if err := ApplyPayment(tx, d("700")); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if !tx.StorageOutstanding.IsZero() || tx.PaymentStatus != model.PaymentPaid || !tx.StoragePaidAmount.Equal(d("1000")) {
		t.Fatalf("expected fully paid, got %s %s %s", tx.StorageOutstanding, tx.PaymentStatus, tx.StoragePaidAmount)
	}
	if err := ApplyPayment(tx, decimal.Zero); !errors.Is(err, ErrNonPositivePayment) {
		t.Fatalf("expected ErrNonPositivePayment, got %v", err)
	}

	zero := &model.Transaction{}
	if _, err := OpenSettlement(zero, decimal.Zero); err != nil || zero.PaymentStatus != model.PaymentPaid {
		t.Fatalf("zero total must settle as paid, got %s %v", zero.PaymentStatus, err)
	}
}

func TestReversePayment(t *testing.T) {
	tx := &model.Transaction{TotalAmount: d("100")}
	if _, err := OpenSettlement(tx, d("40")); err != nil {
		t.Fatalf("OpenSettlement: %v", err)
	}
	if err := ReversePayment(tx, d("41")); !errors.Is(err, ErrReversalExceedsPaid) {
		t.Fatalf("expected ErrReversalExceedsPaid, got %v", err)
	}
	if err := ReversePayment(tx, d("40")); err != nil {
		t.Fatalf("ReversePayment: %v", err)
	}
	if !tx.StorageOutstanding.Equal(d("100")) || !tx.StoragePaidAmount.IsZero() || tx.PaymentStatus != model.PaymentPending {
		t.Fatalf("expected settlement back to pending, got %s %s %s", tx.StorageOutstanding, tx.StoragePaidAmount, tx.PaymentStatus)
	}
}

func TestAllocateOldestFirst(t *testing.T) {
	open := func(total, paid string) model.Transaction {
		tx := model.Transaction{TotalAmount: d(total), Status: model.TxStatusActive, IsActive: true}
		if _, err := OpenSettlement(&tx, d(paid)); err != nil {
			t.Fatalf("OpenSettlement: %v", err)
		}
		return tx
	}
	txs := []model.Transaction{
		open("100", "100"),
		open("100", "30"),
		{TotalAmount: d("500"), StorageOutstanding: d("500"), Status: model.TxStatusCancelled, IsActive: true},
		open("200", "0"),
	}

	touched, rest := Allocate(txs, d("120"))
	if len(touched) != 2 || !rest.IsZero() {
		t.Fatalf("expected two transactions settled and nothing left, got %d rest=%s", len(touched), rest)
	}
	if txs[1].PaymentStatus != model.PaymentPaid || !txs[3].StorageOutstanding.Equal(d("150")) {
		t.Fatalf("unexpected allocation %s %s", txs[1].PaymentStatus, txs[3].StorageOutstanding)
	}
	if !txs[2].StorageOutstanding.Equal(d("500")) {
		t.Fatalf("cancelled transactions must not take payments")
	}

	if _, rest := Allocate(txs, d("151")); !rest.Equal(d("1")) {
		t.Fatalf("expected 1 left unplaced, got %s", rest)
	}

	// the up-front payments were made directly and stay put
	for i := range txs {
		txs[i].ID = uuid.New()
	}
	direct := map[uuid.UUID]decimal.Decimal{txs[0].ID: d("100"), txs[1].ID: d("30")}
	touched, rest = Unallocate(txs, direct, d("260"))
	if !rest.IsZero() || len(touched) != 2 {
		t.Fatalf("expected reversal from two transactions, got %d rest=%s", len(touched), rest)
	}
	if !txs[3].StoragePaidAmount.IsZero() || !txs[1].StoragePaidAmount.Equal(d("40")) {
		t.Fatalf("expected latest first reversal, got %s %s", txs[3].StoragePaidAmount, txs[1].StoragePaidAmount)
	}
	if _, rest := Unallocate(txs, direct, d("11")); !rest.Equal(d("1")) {
		t.Fatalf("direct payments must not be reversed, got rest=%s", rest)
	}
}

func TestRefreshStatusAfterCapacityChange(t *testing.T) {
	lot := newLot("100", "100")
	lot.LotStatus = model.LotFull
	lot.Capacity = d("105")
	RefreshStatus(lot, 0.9)
	if lot.LotStatus != model.LotFull {
		t.Fatalf("expected lot above the near-full threshold to stay full, got %s", lot.LotStatus)
	}
	lot.Capacity = d("200")
	RefreshStatus(lot, 0.9)
	if lot.LotStatus != model.LotActive {
		t.Fatalf("expected active after capacity doubled, got %s", lot.LotStatus)
	}
	lot.Capacity = d("100")
	RefreshStatus(lot, 0.9)
	if lot.LotStatus != model.LotFull {
		t.Fatalf("expected full at capacity, got %s", lot.LotStatus)
	}
	lot.LotStatus = model.LotMaintenance
	lot.Capacity = d("500")
	RefreshStatus(lot, 0.9)
	if lot.LotStatus != model.LotMaintenance {
		t.Fatalf("maintenance must be left alone, got %s", lot.LotStatus)
	}
}

func TestOutstandingRecompute(t *testing.T) {
	txs := []model.Transaction{
		{TotalAmount: d("1000"), Status: model.TxStatusActive, IsActive: true},
		{TotalAmount: d("500"), Status: model.TxStatusCompleted, IsActive: true},
		{TotalAmount: d("300"), Status: model.TxStatusCancelled, IsActive: true},
		{TotalAmount: d("200"), Status: model.TxStatusActive, IsActive: false},
	}
	payments := []model.Payment{
		{PaymentAmount: d("400"), PaymentStatus: model.PaymentStatusCompleted},
		{PaymentAmount: d("100"), PaymentStatus: model.PaymentStatusFailed},
	}
	if got := Outstanding(txs, payments); !got.Equal(d("1100")) {
		t.Fatalf("expected 1100, got %s", got)
	}
}

func TestReceiptNumber(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ReceiptNumber("RCP", now); got != "RCP-1700000000123" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestUtilization(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	soon := today.AddDate(0, 0, 5)
	later := today.AddDate(0, 0, 30)

	cases := []struct {
		name      string
		occupancy string
		status    model.LotStatus
		next      *time.Time
		want      UtilizationStatus
		pct       string
	}{
		{"normal", "33", model.LotActive, &later, UtilNormal, "33"},
		{"near full", "90", model.LotActive, &soon, UtilNearFull, "90"},
		{"full wins", "100", model.LotFull, &soon, UtilFull, "100"},
		{"maintenance due", "10", model.LotActive, &soon, UtilMaintenanceDue, "10"},
		{"no date", "0", model.LotActive, nil, UtilNormal, "0"},
	}
	for _, tc := range cases {
		lot := *newLot("100", tc.occupancy)
		lot.LotStatus = tc.status
		lot.NextMaintenanceDate = tc.next
		u := Utilization(lot, today, 0.9, 7)
		if u.Status != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, u.Status)
		}
		if !u.UtilizationPercentage.Equal(d(tc.pct)) {
			t.Fatalf("%s: expected %s%%, got %s", tc.name, tc.pct, u.UtilizationPercentage)
		}
	}

	u := Utilization(*newLot("3", "1"), today, 0.9, 7)
	if !u.UtilizationPercentage.Equal(d("33.33")) {
		t.Fatalf("expected rounding to 2 places, got %s", u.UtilizationPercentage)
	}
}
