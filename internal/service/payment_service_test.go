package service

import (
	"context"
	"strings"
	"testing"

	"go-warehouse-ws/internal/ledger"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
)

func TestOnAccountPaymentCreatesPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "On Account")
	lot := f.addLot(t, "P-1", 100, 0)
	f.inflow(t, customer.ID, lot.ID, 10, 2000)

	before, _ := f.transactionRepo.FindAll(ctx, f.warehouse.ID)

	p, err := f.payments.Create(ctx, f.scope, &PaymentInput{
		CustomerID:    customer.ID,
		PaymentAmount: dec("500"),
		PaymentMode:   "cash",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.PaymentType != model.PaymentTypeOnAccount {
		t.Fatalf("expected on_account payment, got %s", p.PaymentType)
	}
	if !strings.HasPrefix(p.ReceiptNumber, "RCP-") {
		t.Fatalf("expected RCP receipt on the payment, got %s", p.ReceiptNumber)
	}

	after, _ := f.transactionRepo.FindAll(ctx, f.warehouse.ID)
	if len(after) != len(before)+1 {
		t.Fatalf("expected exactly one placeholder transaction, had %d now %d", len(before), len(after))
	}
	placeholder := f.transaction(t, p.TransactionID)
	if placeholder.Type != model.TxInflow || placeholder.Status != model.TxStatusCompleted {
		t.Fatalf("unexpected placeholder %+v", placeholder)
	}
	if !placeholder.ItemQuantity.IsZero() || !placeholder.TotalAmount.IsZero() {
		t.Fatalf("placeholder must carry no stock or value")
	}
	if !strings.HasPrefix(placeholder.ReceiptNumber, "PAY-") {
		t.Fatalf("expected PAY receipt on the placeholder, got %s", placeholder.ReceiptNumber)
	}
	assertDecimal(t, "customer outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("1500"))

	payments, err := f.paymentRepo.FindByCustomer(ctx, f.warehouse.ID, customer.ID)
	if err != nil {
		t.Fatalf("FindByCustomer: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(payments))
	}
}

func TestOnAccountPaymentCannotExceedOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Prepaid")
	lot := f.addLot(t, "P-2", 100, 0)
	f.inflow(t, customer.ID, lot.ID, 5, 300)

	_, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("300.01")})
	if err != ledger.ErrOverpayment {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	txs, _ := f.transactionRepo.FindAll(ctx, f.warehouse.ID)
	if len(txs) != 1 {
		t.Fatalf("rejected payment must not leave a placeholder, found %d transactions", len(txs))
	}
}

func TestPaymentAgainstTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Settler")
	lot := f.addLot(t, "P-3", 100, 0)
	tx := f.inflow(t, customer.ID, lot.ID, 10, 1000)

	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("400"), PaymentMode: "upi"}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	got := f.transaction(t, tx.ID)
	if got.PaymentStatus != model.PaymentPartial {
		t.Fatalf("expected partial, got %s", got.PaymentStatus)
	}
	assertDecimal(t, "transaction outstanding", got.StorageOutstanding, dec("600"))
	assertDecimal(t, "customer outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("600"))

	p, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("600")})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if p.PaymentType != model.PaymentTypeStorage || p.TransactionID != tx.ID {
		t.Fatalf("unexpected payment %+v", p)
	}
	got = f.transaction(t, tx.ID)
	if got.PaymentStatus != model.PaymentPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	assertDecimal(t, "customer outstanding", f.customer(t, customer.ID).CurrentOutstanding, dec("0"))

	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("1")}); err != ledger.ErrOverpayment {
		t.Fatalf("expected ErrOverpayment on a settled transaction, got %v", err)
	}
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Checks")
	other := f.addCustomer(t, "Someone Else")
	lot := f.addLot(t, "P-4", 100, 0)
	tx := f.inflow(t, other.ID, lot.ID, 1, 100)
	missing := uuid.New()

	cases := []struct {
		name string
		in   PaymentInput
		want error
	}{
		{"zero amount", PaymentInput{CustomerID: customer.ID}, ledger.ErrNonPositivePayment},
		{"bad mode", PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("1"), PaymentMode: "gold"}, ErrInvalidPaymentMode},
		{"bad type", PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("1"), PaymentType: "tip"}, ErrInvalidPaymentType},
		{"unknown customer", PaymentInput{CustomerID: missing, PaymentAmount: dec("1")}, ErrCustomerNotInScope},
		{"unknown transaction", PaymentInput{CustomerID: customer.ID, TransactionID: &missing, PaymentAmount: dec("1")}, ErrTransactionNotFound},
		{"someone else's transaction", PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("1")}, ErrTransactionNotInScope},
	}
	for _, tc := range cases {
		in := tc.in
		if _, err := f.payments.Create(ctx, f.scope, &in); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPaymentsTodayAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addCustomer(t, "Alpha")
	b := f.addCustomer(t, "Beta")
	lot := f.addLot(t, "P-5", 100, 0)
	f.inflow(t, a.ID, lot.ID, 10, 700)
	f.inflow(t, b.ID, lot.ID, 10, 300)

	total, err := f.payments.TotalOutstanding(ctx, f.scope)
	if err != nil {
		t.Fatalf("TotalOutstanding: %v", err)
	}
	assertDecimal(t, "total outstanding", total, dec("1000"))

	yesterday := testNow.AddDate(0, 0, -1)
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: a.ID, PaymentAmount: dec("100"), PaymentDate: &yesterday}); err != nil {
		t.Fatalf("back-dated payment: %v", err)
	}
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: b.ID, PaymentAmount: dec("300")}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	today, err := f.payments.ListToday(ctx, f.scope)
	if err != nil {
		t.Fatalf("ListToday: %v", err)
	}
	if len(today) != 1 || today[0].CustomerID != b.ID {
		t.Fatalf("expected only today's payment from Beta, got %+v", today)
	}

	total, err = f.payments.TotalOutstanding(ctx, f.scope)
	if err != nil {
		t.Fatalf("TotalOutstanding: %v", err)
	}
	assertDecimal(t, "total outstanding after payments", total, dec("600"))

	owing, err := f.payments.OutstandingCustomers(ctx, f.scope)
	if err != nil {
		t.Fatalf("OutstandingCustomers: %v", err)
	}
	if len(owing) != 1 || owing[0].ID != a.ID {
		t.Fatalf("expected only Alpha to owe, got %d customers", len(owing))
	}
}

func TestStoredOutstandingMatchesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Ledger")
	lot := f.addLot(t, "P-6", 200, 0)

	first, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{
		CustomerID:        customer.ID,
		StorageLotID:      &lot.ID,
		ItemQuantity:      dec("40"),
		BaseAmount:        dec("2000"),
		HandlingCharges:   dec("250"),
		LaborChargePerBag: dec("7.5"),
		LaborPaidAmount:   dec("300"),
	})
	if err != nil {
		t.Fatalf("CreateInflow: %v", err)
	}
	if _, err := f.transactions.CreateOutflow(ctx, f.scope, &OutflowInput{
		CustomerID:          customer.ID,
		ParentTransactionID: &first.ID,
		ItemQuantity:        dec("15"),
		BaseAmount:          dec("400"),
		TaxAmount:           dec("72"),
		AmountPaid:          dec("72"),
	}); err != nil {
		t.Fatalf("CreateOutflow: %v", err)
	}
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &first.ID, PaymentAmount: dec("1000")}); err != nil {
		t.Fatalf("payment against inflow: %v", err)
	}
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("250")}); err != nil {
		t.Fatalf("on-account payment: %v", err)
	}

	txs, err := f.transactionRepo.FindForCustomer(f.db, customer.ID)
	if err != nil {
		t.Fatalf("FindForCustomer: %v", err)
	}
	payments, err := f.paymentRepo.FindForCustomer(f.db, customer.ID)
	if err != nil {
		t.Fatalf("FindForCustomer payments: %v", err)
	}
	// 2000+250+300 + 472 - (300 + 72 + 1000 + 250)
	want := dec("1400")
	assertDecimal(t, "ledger outstanding", ledger.Outstanding(txs, payments), want)
	assertDecimal(t, "stored outstanding", f.customer(t, customer.ID).CurrentOutstanding, want)
}

func TestPaymentStatusUpdateResettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Reconcile")
	lot := f.addLot(t, "P-7", 100, 0)
	tx := f.inflow(t, customer.ID, lot.ID, 1, 100)
	p, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("40")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.assertBalanced(t, customer.ID, "60")

	updated, err := f.payments.UpdateStatus(ctx, f.scope, p.ID, &StatusInput{Status: model.PaymentStatusFailed})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.PaymentStatus != model.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", updated.PaymentStatus)
	}
	got := f.transaction(t, tx.ID)
	assertDecimal(t, "paid after failure", got.StoragePaidAmount, dec("0"))
	assertDecimal(t, "transaction outstanding after failure", got.StorageOutstanding, dec("100"))
	if got.PaymentStatus != model.PaymentPending {
		t.Fatalf("expected pending settlement, got %s", got.PaymentStatus)
	}
	f.assertBalanced(t, customer.ID, "100")

	// failed to pending moves nothing
	if _, err := f.payments.UpdateStatus(ctx, f.scope, p.ID, &StatusInput{Status: model.PaymentStatusPending}); err != nil {
		t.Fatalf("pending: %v", err)
	}
	f.assertBalanced(t, customer.ID, "100")

	if _, err := f.payments.UpdateStatus(ctx, f.scope, p.ID, &StatusInput{Status: model.PaymentStatusCompleted}); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	assertDecimal(t, "transaction outstanding after completion", f.transaction(t, tx.ID).StorageOutstanding, dec("60"))
	f.assertBalanced(t, customer.ID, "60")

	if _, err := f.payments.UpdateStatus(ctx, f.scope, p.ID, &StatusInput{Status: "refunded"}); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOnAccountPaymentSettlesOpenTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Advance")
	lot := f.addLot(t, "P-8", 100, 0)
	older := f.inflow(t, customer.ID, lot.ID, 1, 100)
	newer := f.inflow(t, customer.ID, lot.ID, 1, 50)

	p, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("120")})
	if err != nil {
		t.Fatalf("on-account payment: %v", err)
	}
	if got := f.transaction(t, older.ID); got.PaymentStatus != model.PaymentPaid || !got.StorageOutstanding.IsZero() {
		t.Fatalf("expected the older inflow settled first, got %s %s", got.PaymentStatus, got.StorageOutstanding)
	}
	assertDecimal(t, "newer outstanding", f.transaction(t, newer.ID).StorageOutstanding, dec("30"))
	f.assertBalanced(t, customer.ID, "30")

	// the settled inflow cannot be paid a second time
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &older.ID, PaymentAmount: dec("100")}); err != ledger.ErrOverpayment {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &newer.ID, PaymentAmount: dec("30")}); err != nil {
		t.Fatalf("settle newer: %v", err)
	}
	f.assertBalanced(t, customer.ID, "0")

	if _, err := f.payments.UpdateStatus(ctx, f.scope, p.ID, &StatusInput{Status: model.PaymentStatusFailed}); err != nil {
		t.Fatalf("fail on-account payment: %v", err)
	}
	f.assertBalanced(t, customer.ID, "120")
	assertDecimal(t, "older outstanding after reversal", f.transaction(t, older.ID).StorageOutstanding, dec("100"))
	assertDecimal(t, "newer keeps its direct payment", f.transaction(t, newer.ID).StorageOutstanding, dec("20"))
}

func TestPaymentTypeMustMatchTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.addCustomer(t, "Typed")
	lot := f.addLot(t, "P-9", 100, 0)
	tx := f.inflow(t, customer.ID, lot.ID, 1, 100)

	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, TransactionID: &tx.ID, PaymentAmount: dec("1"), PaymentType: model.PaymentTypeOnAccount}); err != ErrInvalidPaymentType {
		t.Fatalf("expected ErrInvalidPaymentType for on_account against a transaction, got %v", err)
	}
	if _, err := f.payments.Create(ctx, f.scope, &PaymentInput{CustomerID: customer.ID, PaymentAmount: dec("1"), PaymentType: model.PaymentTypeLabor}); err != ErrInvalidPaymentType {
		t.Fatalf("expected ErrInvalidPaymentType for labor without a transaction, got %v", err)
	}
}
