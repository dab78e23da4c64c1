package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go-warehouse-ws/internal/ledger"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestInflowCapacityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Ramesh Traders")
	lot := f.addLot(t, "A-1", 100, 90)

	_, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{
		CustomerID:   customer.ID,
		StorageLotID: &lot.ID,
		ItemQuantity: decimal.NewFromInt(20),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for 20 into 10 free, got %v", err)
	}
	if !strings.Contains(err.Error(), "10") {
		t.Fatalf("expected the available capacity in the message, got %q", err.Error())
	}
	assertDecimal(t, "occupancy after rejected inflow", f.lot(t, lot.ID).CurrentOccupancy, dec("90"))
	txs, _ := f.transactionRepo.FindAll(ctx, f.warehouse.ID)
	if len(txs) != 0 {
		t.Fatalf("rejected inflow must not write, found %d transactions", len(txs))
	}

	f.inflow(t, customer.ID, lot.ID, 10, 500)
	after := f.lot(t, lot.ID)
	assertDecimal(t, "occupancy", after.CurrentOccupancy, dec("100"))
	if after.LotStatus != model.LotFull {
		t.Fatalf("expected lot to be full, got %s", after.LotStatus)
	}
	assertDecimal(t, "customer outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("500"))
}

func TestOutflowDrawdownScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Suresh Agro")
	lot := f.addLot(t, "B-1", 100, 0)
	parent := f.inflow(t, customer.ID, lot.ID, 50, 1000)

	outflow := func(qty int64) (*model.Transaction, error) {
		return f.transactions.CreateOutflow(ctx, f.scope, &OutflowInput{
			CustomerID:          customer.ID,
			ParentTransactionID: &parent.ID,
			ItemQuantity:        decimal.NewFromInt(qty),
			BaseAmount:          decimal.NewFromInt(200),
		})
	}

	if _, err := outflow(60); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error drawing 60 of 50, got %v", err)
	}

	out, err := outflow(50)
	if err != nil {
		t.Fatalf("outflow of 50: %v", err)
	}
	if out.StorageLotID == nil || *out.StorageLotID != lot.ID {
		t.Fatalf("outflow should inherit the parent's lot")
	}
	if got := f.transaction(t, parent.ID).Status; got != model.TxStatusCompleted {
		t.Fatalf("expected parent completed once fully drawn, got %s", got)
	}
	assertDecimal(t, "occupancy", f.lot(t, lot.ID).CurrentOccupancy, decimal.Zero)

	if _, err := outflow(1); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected further outflow against a drawn parent to be rejected, got %v", err)
	}
	drawn, err := f.transactionRepo.SumDrawn(f.db, parent.ID)
	if err != nil {
		t.Fatalf("SumDrawn: %v", err)
	}
	assertDecimal(t, "drawn", drawn, dec("50"))
}

func TestOutflowRejectsParentOfAnotherCustomer(t *testing.T) {
	f := newFixture(t)
	owner := f.addCustomer(t, "Owner")
	other := f.addCustomer(t, "Other")
	lot := f.addLot(t, "C-1", 100, 0)
	parent := f.inflow(t, owner.ID, lot.ID, 30, 100)

	_, err := f.transactions.CreateOutflow(context.Background(), f.scope, &OutflowInput{
		CustomerID:          other.ID,
		ParentTransactionID: &parent.ID,
		ItemQuantity:        decimal.NewFromInt(10),
	})
	if err != ledger.ErrParentMismatch {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
}

func TestInflowTotalsAndLaborPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Lakshmi Cold Store")
	lot := f.addLot(t, "D-1", 500, 0)

	tx, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{
		CustomerID:        customer.ID,
		StorageLotID:      &lot.ID,
		ItemQuantity:      decimal.NewFromInt(10),
		BaseAmount:        decimal.NewFromInt(1000),
		HandlingCharges:   decimal.NewFromInt(100),
		LaborChargePerBag: decimal.NewFromInt(5),
		LaborPaidAmount:   decimal.NewFromInt(150),
		PaymentMode:       "upi",
	})
	if err != nil {
		t.Fatalf("CreateInflow: %v", err)
	}
	assertDecimal(t, "total labor", tx.TotalLaborCharges, dec("50"))
	assertDecimal(t, "total", tx.TotalAmount, dec("1150"))
	assertDecimal(t, "storage outstanding", tx.StorageOutstanding, dec("1000"))
	if tx.PaymentStatus != model.PaymentPartial {
		t.Fatalf("expected partial payment status, got %s", tx.PaymentStatus)
	}
	if !strings.HasPrefix(tx.ReceiptNumber, "RCP-") {
		t.Fatalf("expected RCP receipt, got %s", tx.ReceiptNumber)
	}

	payments, err := f.paymentRepo.FindByTransaction(ctx, f.warehouse.ID, tx.ID)
	if err != nil {
		t.Fatalf("FindByTransaction: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected one labor payment, got %d", len(payments))
	}
	p := payments[0]
	if p.PaymentType != model.PaymentTypeLabor || p.PaymentMode != "upi" || !strings.HasPrefix(p.ReceiptNumber, "PAY-") {
		t.Fatalf("unexpected labor payment %+v", p)
	}
	assertDecimal(t, "customer outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("1000"))
}

func TestInflowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Valid")
	lot := f.addLot(t, "E-1", 100, 0)

	elsewhere := f.addWarehouse(t, "Second", "WH2")
	foreign := &model.Customer{WarehouseID: elsewhere.ID, CustomerName: "Foreign", CustomerPhone: "+919876500000", IsActive: true}
	if err := f.customerRepo.Create(ctx, foreign); err != nil {
		t.Fatalf("create foreign customer: %v", err)
	}

	cases := []struct {
		name string
		in   InflowInput
		want error
	}{
		{"zero quantity", InflowInput{CustomerID: customer.ID, StorageLotID: &lot.ID}, ledger.ErrNonPositiveQuantity},
		{"negative base", InflowInput{CustomerID: customer.ID, ItemQuantity: dec("1"), BaseAmount: dec("-1")}, ledger.ErrNegativeAmount},
		{"foreign customer", InflowInput{CustomerID: foreign.ID, ItemQuantity: dec("1")}, ErrCustomerNotInScope},
		{"bad payment mode", InflowInput{CustomerID: customer.ID, ItemQuantity: dec("1"), PaymentMode: "barter"}, ErrInvalidPaymentMode},
		{"overpaid labor", InflowInput{CustomerID: customer.ID, ItemQuantity: dec("1"), BaseAmount: dec("10"), LaborPaidAmount: dec("11")}, ledger.ErrOverpayment},
	}
	for _, tc := range cases {
		in := tc.in
		if _, err := f.transactions.CreateInflow(ctx, f.scope, &in); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	unknownLot := uuid.New()
	if _, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{CustomerID: customer.ID, StorageLotID: &unknownLot, ItemQuantity: dec("1")}); err != ErrLotNotInScope {
		t.Fatalf("expected ErrLotNotInScope, got %v", err)
	}

	noWarehouse := f.scope
	noWarehouse.Warehouse = nil
	if _, err := f.transactions.CreateInflow(ctx, noWarehouse, &InflowInput{CustomerID: customer.ID, ItemQuantity: dec("1")}); !session.IsNoWarehouse(err) {
		t.Fatalf("expected no-warehouse error, got %v", err)
	}
}

func TestReceiptNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Receipts")
	lot := f.addLot(t, "F-1", 100, 0)

	first := f.inflow(t, customer.ID, lot.ID, 1, 10)
	second := f.inflow(t, customer.ID, lot.ID, 1, 10)
	base := ledger.ReceiptNumber("RCP", testNow)
	if first.ReceiptNumber != base || second.ReceiptNumber != base+"-2" {
		t.Fatalf("expected %s and %s-2, got %s and %s", base, base, first.ReceiptNumber, second.ReceiptNumber)
	}

	_, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{
		CustomerID:    customer.ID,
		ItemQuantity:  dec("1"),
		ReceiptNumber: base,
	})
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("expected conflict on a duplicate supplied receipt, got %v", err)
	}
}

func TestConcurrentInflowsNeverOverfillLot(t *testing.T) {
	f := newFixture(t)
	lot := f.addLot(t, "G-1", 100, 0)
	customers := make([]*model.Customer, 15)
	for i := range customers {
		customers[i] = f.addCustomer(t, "Concurrent "+string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := range customers {
		wg.Add(1)
		go func(c *model.Customer) {
			defer wg.Done()
			_, err := f.transactions.CreateInflow(context.Background(), f.scope, &InflowInput{
				CustomerID:   c.ID,
				StorageLotID: &lot.ID,
				ItemQuantity: decimal.NewFromInt(10),
			})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case apperror.IsKind(err, apperror.KindValidation), apperror.IsKind(err, apperror.KindConflict):
			default:
				t.Errorf("unexpected error kind: %v", err)
			}
		}(customers[i])
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 inflows to fit, got %d", succeeded)
	}
	after := f.lot(t, lot.ID)
	assertDecimal(t, "occupancy", after.CurrentOccupancy, dec("100"))
	if after.LotStatus != model.LotFull {
		t.Fatalf("expected lot full, got %s", after.LotStatus)
	}
}

func TestConcurrentOutflowsRespectParentQuantity(t *testing.T) {
	f := newFixture(t)
	customer := f.addCustomer(t, "Drawer")
	lot := f.addLot(t, "H-1", 100, 0)
	parent := f.inflow(t, customer.ID, lot.ID, 40, 100)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.transactions.CreateOutflow(context.Background(), f.scope, &OutflowInput{
				CustomerID:          customer.ID,
				ParentTransactionID: &parent.ID,
				ItemQuantity:        decimal.NewFromInt(15),
			})
		}()
	}
	wg.Wait()

	drawn, err := f.transactionRepo.SumDrawn(f.db, parent.ID)
	if err != nil {
		t.Fatalf("SumDrawn: %v", err)
	}
	assertDecimal(t, "drawn", drawn, dec("30"))
	assertDecimal(t, "occupancy", f.lot(t, lot.ID).CurrentOccupancy, dec("10"))
}

func TestWriteTimeoutIsReportedDistinctly(t *testing.T) {
	f := newFixture(t)
	f.opts.WriteTimeout = 50 * time.Millisecond
	f.build()
	customer := f.addCustomer(t, "Slow")

	release, err := f.locker.Acquire(context.Background(), lock.CustomerKey(customer.ID))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = f.transactions.CreateInflow(context.Background(), f.scope, &InflowInput{
		CustomerID:   customer.ID,
		ItemQuantity: dec("5"),
		BaseAmount:   dec("100"),
	})
	if !apperror.IsKind(err, apperror.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	txs, _ := f.transactionRepo.FindAll(context.Background(), f.warehouse.ID)
	if len(txs) != 0 {
		t.Fatalf("timed out write must not commit, found %d transactions", len(txs))
	}
}

func TestActiveInflowsReportRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Active")
	lot := f.addLot(t, "I-1", 100, 0)
	parent := f.inflow(t, customer.ID, lot.ID, 50, 100)
	if _, err := f.transactions.CreateOutflow(ctx, f.scope, &OutflowInput{
		CustomerID:          customer.ID,
		ParentTransactionID: &parent.ID,
		ItemQuantity:        dec("20"),
	}); err != nil {
		t.Fatalf("CreateOutflow: %v", err)
	}

	inflows, err := f.transactions.ListActiveInflows(ctx, f.scope)
	if err != nil {
		t.Fatalf("ListActiveInflows: %v", err)
	}
	if len(inflows) != 1 {
		t.Fatalf("expected one active inflow, got %d", len(inflows))
	}
	got := inflows[0]
	assertDecimal(t, "drawn", got.Drawn, dec("20"))
	assertDecimal(t, "remaining", got.Remaining, dec("30"))
	if got.LotName != "I-1" {
		t.Fatalf("expected lot name I-1, got %q", got.LotName)
	}
}

func TestCancelInflowReversesStockAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Status")
	lot := f.addLot(t, "J-1", 100, 0)
	keep := f.inflow(t, customer.ID, lot.ID, 20, 500)
	tx := f.inflow(t, customer.ID, lot.ID, 10, 300)

	verifier := "Auditor"
	verified, err := f.transactions.UpdateStatus(ctx, f.scope, keep.ID, &StatusInput{VerifiedBy: &verifier})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != model.TxStatusActive || verified.VerifiedBy == nil || *verified.VerifiedBy != verifier {
		t.Fatalf("unexpected verification update %+v", verified)
	}
	f.assertBalanced(t, customer.ID, "800")

	updated, err := f.transactions.UpdateStatus(ctx, f.scope, tx.ID, &StatusInput{Status: model.TxStatusCancelled})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != model.TxStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	assertDecimal(t, "total unchanged", updated.TotalAmount, dec("300"))
	assertDecimal(t, "occupancy", f.lot(t, lot.ID).CurrentOccupancy, dec("20"))
	f.assertBalanced(t, customer.ID, "500")

	// cancelling twice changes nothing further
	if _, err := f.transactions.UpdateStatus(ctx, f.scope, tx.ID, &StatusInput{Status: model.TxStatusCancelled}); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	assertDecimal(t, "occupancy after repeat", f.lot(t, lot.ID).CurrentOccupancy, dec("20"))
	f.assertBalanced(t, customer.ID, "500")

	if _, err := f.transactions.UpdateStatus(ctx, f.scope, tx.ID, &StatusInput{Status: model.TxStatusActive}); err != ErrReopenCancelled {
		t.Fatalf("expected ErrReopenCancelled, got %v", err)
	}
	if _, err := f.transactions.UpdateStatus(ctx, f.scope, tx.ID, &StatusInput{Status: "archived"}); err != ErrInvalidTxStatus {
		t.Fatalf("expected ErrInvalidTxStatus, got %v", err)
	}
}

func TestCancelledOutflowCannotBeDrawnTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	neighbour := f.addCustomer(t, "Neighbour")
	customer := f.addCustomer(t, "Redraw")
	lot := f.addLot(t, "J-2", 100, 0)
	f.inflow(t, neighbour.ID, lot.ID, 40, 400)
	parent := f.inflow(t, customer.ID, lot.ID, 50, 500)

	out := f.outflow(t, customer.ID, parent.ID, 30)
	assertDecimal(t, "occupancy after outflow", f.lot(t, lot.ID).CurrentOccupancy, dec("60"))
	if _, err := f.transactions.UpdateStatus(ctx, f.scope, out.ID, &StatusInput{Status: model.TxStatusCancelled}); err != nil {
		t.Fatalf("cancel outflow: %v", err)
	}
	assertDecimal(t, "occupancy after cancel", f.lot(t, lot.ID).CurrentOccupancy, dec("90"))

	full := f.outflow(t, customer.ID, parent.ID, 50)
	assertDecimal(t, "occupancy after redraw", f.lot(t, lot.ID).CurrentOccupancy, dec("40"))
	if got := f.transaction(t, parent.ID); got.Status != model.TxStatusCompleted {
		t.Fatalf("expected parent completed, got %s", got.Status)
	}
	_, err := f.transactions.CreateOutflow(ctx, f.scope, &OutflowInput{CustomerID: customer.ID, ParentTransactionID: &parent.ID, ItemQuantity: dec("1")})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected the drawn inflow to refuse more, got %v", err)
	}

	// cancelling the closing outflow reopens the parent
	if _, err := f.transactions.UpdateStatus(ctx, f.scope, full.ID, &StatusInput{Status: model.TxStatusCancelled}); err != nil {
		t.Fatalf("cancel closing outflow: %v", err)
	}
	if got := f.transaction(t, parent.ID); got.Status != model.TxStatusActive || got.ActualOutflowDate != nil {
		t.Fatalf("expected parent reopened, got %s", got.Status)
	}
	assertDecimal(t, "occupancy after second cancel", f.lot(t, lot.ID).CurrentOccupancy, dec("90"))
	f.assertBalanced(t, customer.ID, "500")
	f.assertBalanced(t, neighbour.ID, "400")
}

func TestCancelRefusesPaidOrDrawnTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Refused")
	lot := f.addLot(t, "J-3", 100, 0)
	drawn := f.inflow(t, customer.ID, lot.ID, 10, 100)
	f.outflow(t, customer.ID, drawn.ID, 4)
	paid := f.inflow(t, customer.ID, lot.ID, 10, 100)
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &paid.ID, PaymentAmount: dec("10")}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	if _, err := f.transactions.UpdateStatus(ctx, f.scope, drawn.ID, &StatusInput{Status: model.TxStatusCancelled}); err != ErrCancelDrawn {
		t.Fatalf("expected ErrCancelDrawn, got %v", err)
	}
	if _, err := f.transactions.UpdateStatus(ctx, f.scope, paid.ID, &StatusInput{Status: model.TxStatusCancelled}); err != ErrCancelPaid {
		t.Fatalf("expected ErrCancelPaid, got %v", err)
	}
	assertDecimal(t, "occupancy untouched", f.lot(t, lot.ID).CurrentOccupancy, dec("16"))
	f.assertBalanced(t, customer.ID, "190")
}

func TestRecomputeOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Drift")
	lot := f.addLot(t, "K-1", 100, 0)
	parent := f.inflow(t, customer.ID, lot.ID, 20, 800)
	if _, err := f.transactions.CreateOutflow(ctx, f.scope, &OutflowInput{
		CustomerID:          customer.ID,
		ParentTransactionID: &parent.ID,
		ItemQuantity:        dec("5"),
		BaseAmount:          dec("200"),
		TaxAmount:           dec("36"),
		DiscountAmount:      dec("6"),
		AmountPaid:          dec("100"),
	}); err != nil {
		t.Fatalf("CreateOutflow: %v", err)
	}

	report, err := f.transactions.RecomputeOutstanding(ctx, f.warehouse.ID, customer.ID, false)
	if err != nil {
		t.Fatalf("RecomputeOutstanding: %v", err)
	}
	assertDecimal(t, "stored", report.Stored, dec("930"))
	assertDecimal(t, "computed", report.Computed, dec("930"))
	if !report.Drift.IsZero() || report.Repaired {
		t.Fatalf("expected no drift, got %+v", report)
	}

	// corrupt the stored balance and repair it
	if err := f.customerRepo.SetOutstanding(f.db, customer.ID, dec("5"), nil, "test"); err != nil {
		t.Fatalf("SetOutstanding: %v", err)
	}
	reports, err := f.transactions.RecomputeWarehouse(ctx, f.warehouse.ID, true)
	if err != nil {
		t.Fatalf("RecomputeWarehouse: %v", err)
	}
	if len(reports) != 1 || !reports[0].Repaired {
		t.Fatalf("expected one repaired report, got %+v", reports)
	}
	assertDecimal(t, "drift", reports[0].Drift, dec("-925"))
	assertDecimal(t, "repaired outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("930"))
}

func TestWritesInvalidateCachedReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Cached")
	lot := f.addLot(t, "L-1", 100, 0)

	before, err := f.transactions.List(ctx, f.scope)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	lots, err := f.storage.List(ctx, f.scope)
	if err != nil {
		t.Fatalf("storage List: %v", err)
	}
	assertDecimal(t, "cached occupancy", lots[0].CurrentOccupancy, decimal.Zero)

	f.inflow(t, customer.ID, lot.ID, 25, 100)

	after, err := f.transactions.List(ctx, f.scope)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected the new inflow to be listed, got %d then %d", len(before), len(after))
	}
	lots, err = f.storage.List(ctx, f.scope)
	if err != nil {
		t.Fatalf("storage List: %v", err)
	}
	assertDecimal(t, "refreshed occupancy", lots[0].CurrentOccupancy, dec("25"))

	found := false
	for _, name := range f.notifier.names() {
		if name == "inflow_created" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected inflow_created to be published, got %v", f.notifier.names())
	}
}
