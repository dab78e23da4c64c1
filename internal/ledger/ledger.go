// Package ledger holds the storage accounting rules: lot occupancy, outflow
// drawdown against an inflow, derived charges, payment settlement and the
// outstanding balance. Everything here is pure; the service package applies
// these rules to rows it has locked inside a database transaction.
package ledger

import (
	"fmt"
	"time"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultNearFullThreshold = 0.9

var (
	ErrNonPositiveQuantity = apperror.Validation("quantity must be greater than zero")
	ErrNegativeAmount      = apperror.Validation("amounts cannot be negative")
	ErrNonPositivePayment  = apperror.Validation("payment amount must be greater than zero")
	ErrOccupancyNegative   = apperror.Validation("lot occupancy cannot go below zero")
	ErrOccupancyOverflow   = apperror.Validation("lot occupancy cannot exceed capacity")
	ErrLotUnavailable      = apperror.Validation("storage lot is not accepting stock")
	ErrParentNotInflow     = apperror.Validation("parent transaction is not an inflow")
	ErrParentNotActive     = apperror.Validation("parent inflow is not active")
	ErrParentMismatch      = apperror.Validation("parent inflow belongs to a different warehouse or customer")
	ErrOverpayment         = apperror.Validation("payment exceeds the amount outstanding")
	ErrReversalExceedsPaid = apperror.Validation("payment exceeds the amount paid on the transaction")
)

// InsufficientCapacityError reports how much room a lot had left.
func InsufficientCapacityError(available, requested decimal.Decimal) error {
	return apperror.Validationf("insufficient lot capacity: available=%s, requested=%s", available.String(), requested.String())
}

// DrawdownExceededError reports how much of an inflow was still undrawn.
func DrawdownExceededError(remaining, requested decimal.Decimal) error {
	return apperror.Validationf("outflow exceeds remaining inflow quantity: remaining=%s, requested=%s", remaining.String(), requested.String())
}

// RequirePositive rejects zero and negative quantities.
func RequirePositive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrNonPositiveQuantity
	}
	return nil
}

// CheckCapacity validates that a lot can take qty more units right now.
func CheckCapacity(lot *model.StorageLot, qty decimal.Decimal) error {
	if lot.LotStatus == model.LotMaintenance || lot.LotStatus == model.LotInactive || !lot.IsActive {
		return ErrLotUnavailable
	}
	if available := lot.Available(); available.LessThan(qty) {
		return InsufficientCapacityError(available, qty)
	}
	return nil
}

// ApplyOccupancy is the single rule for changing a lot's occupancy. It rejects
// results outside [0, capacity], marks the lot full when it reaches capacity,
// and returns a full lot to active once a decrement takes it below the
// near-full threshold.
func ApplyOccupancy(lot *model.StorageLot, delta decimal.Decimal, nearFull float64) error {
	next := lot.CurrentOccupancy.Add(delta)
	if next.IsNegative() {
		return ErrOccupancyNegative
	}
	if next.GreaterThan(lot.Capacity) {
		return ErrOccupancyOverflow
	}
	if nearFull <= 0 || nearFull > 1 {
		nearFull = DefaultNearFullThreshold
	}

	lot.CurrentOccupancy = next
	switch {
	case lot.Capacity.IsPositive() && next.Equal(lot.Capacity):
		if lot.LotStatus == model.LotActive {
			lot.LotStatus = model.LotFull
		}
	case delta.IsNegative() && lot.LotStatus == model.LotFull:
		threshold := lot.Capacity.Mul(decimal.NewFromFloat(nearFull))
		if next.LessThan(threshold) {
			lot.LotStatus = model.LotActive
		}
	}
	return nil
}

// RefreshStatus re-derives full and active after the lot's capacity changed,
// with the same near-full threshold ApplyOccupancy uses.
func RefreshStatus(lot *model.StorageLot, nearFull float64) {
	if nearFull <= 0 || nearFull > 1 {
		nearFull = DefaultNearFullThreshold
	}
	switch lot.LotStatus {
	case model.LotActive:
		if lot.Capacity.IsPositive() && !lot.CurrentOccupancy.LessThan(lot.Capacity) {
			lot.LotStatus = model.LotFull
		}
	case model.LotFull:
		if lot.CurrentOccupancy.LessThan(lot.Capacity.Mul(decimal.NewFromFloat(nearFull))) {
			lot.LotStatus = model.LotActive
		}
	}
}

// CheckDrawdown validates an outflow of qty against its parent inflow, given
// the quantity already drawn by earlier outflows.
func CheckDrawdown(parent *model.Transaction, warehouseID, customerID uuid.UUID, drawn, qty decimal.Decimal) error {
	if parent.Type != model.TxInflow {
		return ErrParentNotInflow
	}
	if parent.WarehouseID != warehouseID || parent.CustomerID != customerID {
		return ErrParentMismatch
	}
	if parent.Status != model.TxStatusActive || !parent.IsActive {
		return ErrParentNotActive
	}
	remaining := parent.ItemQuantity.Sub(drawn)
	if remaining.LessThan(qty) {
		return DrawdownExceededError(remaining, qty)
	}
	return nil
}

// Charges is the monetary input of an inflow or outflow before derivation.
type Charges struct {
	BaseAmount        decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	HandlingCharges   decimal.Decimal
	LaborChargePerBag decimal.Decimal
	TotalLaborCharges decimal.Decimal
}

func (c Charges) validate() error {
	for _, v := range []decimal.Decimal{c.BaseAmount, c.TaxAmount, c.DiscountAmount, c.HandlingCharges, c.LaborChargePerBag, c.TotalLaborCharges} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

// InflowTotals derives labor and total: labor = per-bag × qty unless given,
// total = base + handling + labor.
func InflowTotals(c Charges, qty decimal.Decimal) (Charges, decimal.Decimal, error) {
	if err := c.validate(); err != nil {
		return c, decimal.Zero, err
	}
	if c.TotalLaborCharges.IsZero() && c.LaborChargePerBag.IsPositive() {
		c.TotalLaborCharges = c.LaborChargePerBag.Mul(qty).Round(2)
	}
	total := c.BaseAmount.Add(c.HandlingCharges).Add(c.TotalLaborCharges).Round(2)
	return c, total, nil
}

// OutflowTotal derives total = base + tax − discount, floored at zero.
func OutflowTotal(c Charges) (decimal.Decimal, error) {
	if err := c.validate(); err != nil {
		return decimal.Zero, err
	}
	total := c.BaseAmount.Add(c.TaxAmount).Sub(c.DiscountAmount).Round(2)
	if total.IsNegative() {
		return decimal.Zero, nil
	}
	return total, nil
}

// StateFor classifies how much of total has been paid.
func StateFor(total, paid decimal.Decimal) model.PaymentState {
	switch {
	case !paid.LessThan(total):
		return model.PaymentPaid
	case paid.IsPositive():
		return model.PaymentPartial
	default:
		return model.PaymentPending
	}
}

// OpenSettlement initialises the payment fields of a new transaction given the
// amount paid up front. The returned value is the unpaid remainder.
func OpenSettlement(tx *model.Transaction, paid decimal.Decimal) (decimal.Decimal, error) {
	if paid.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if paid.GreaterThan(tx.TotalAmount) {
		return decimal.Zero, ErrOverpayment
	}
	unpaid := tx.TotalAmount.Sub(paid)
	tx.StoragePaidAmount = paid
	tx.StorageOutstanding = unpaid
	tx.StoragePaymentStatus = StateFor(tx.TotalAmount, paid)
	tx.PaymentStatus = tx.StoragePaymentStatus
	return unpaid, nil
}

// ApplyPayment settles amount against an existing transaction.
func ApplyPayment(tx *model.Transaction, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositivePayment
	}
	if amount.GreaterThan(tx.StorageOutstanding) {
		return ErrOverpayment
	}
	tx.StoragePaidAmount = tx.StoragePaidAmount.Add(amount)
	tx.StorageOutstanding = tx.StorageOutstanding.Sub(amount)
	tx.StoragePaymentStatus = StateFor(tx.TotalAmount, tx.StoragePaidAmount)
	tx.PaymentStatus = tx.StoragePaymentStatus
	return nil
}

// ReversePayment takes back amount previously settled against tx.
func ReversePayment(tx *model.Transaction, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositivePayment
	}
	if amount.GreaterThan(tx.StoragePaidAmount) {
		return ErrReversalExceedsPaid
	}
	tx.StoragePaidAmount = tx.StoragePaidAmount.Sub(amount)
	tx.StorageOutstanding = tx.StorageOutstanding.Add(amount)
	tx.StoragePaymentStatus = StateFor(tx.TotalAmount, tx.StoragePaidAmount)
	tx.PaymentStatus = tx.StoragePaymentStatus
	return nil
}

// Allocate settles amount against txs in order, each up to its outstanding.
// It returns the transactions it changed and the part it could not place.
func Allocate(txs []model.Transaction, amount decimal.Decimal) ([]*model.Transaction, decimal.Decimal) {
	var touched []*model.Transaction
	rest := amount
	for i := range txs {
		if !rest.IsPositive() {
			break
		}
		t := &txs[i]
		if !Counts(t) || !t.StorageOutstanding.IsPositive() {
			continue
		}
		part := decimal.Min(rest, t.StorageOutstanding)
		if err := ApplyPayment(t, part); err != nil {
			continue
		}
		rest = rest.Sub(part)
		touched = append(touched, t)
	}
	return touched, rest
}

// Unallocate reverses amount from txs, latest first. direct holds what payments
// made against each transaction account for, so only credit spread onto it
// from the customer's account is taken back.
func Unallocate(txs []model.Transaction, direct map[uuid.UUID]decimal.Decimal, amount decimal.Decimal) ([]*model.Transaction, decimal.Decimal) {
	var touched []*model.Transaction
	rest := amount
	for i := len(txs) - 1; i >= 0; i-- {
		if !rest.IsPositive() {
			break
		}
		t := &txs[i]
		if !Counts(t) {
			continue
		}
		credit := t.StoragePaidAmount.Sub(direct[t.ID])
		if !credit.IsPositive() {
			continue
		}
		part := decimal.Min(rest, credit)
		if err := ReversePayment(t, part); err != nil {
			continue
		}
		rest = rest.Sub(part)
		touched = append(touched, t)
	}
	return touched, rest
}

// Counts reports whether a transaction contributes to the customer's balance.
func Counts(tx *model.Transaction) bool {
	return tx.IsActive && tx.Status != model.TxStatusCancelled && !tx.DeletedAt.Valid
}

// Outstanding recomputes a customer's balance from scratch: the totals of their
// counting transactions minus their completed payments.
func Outstanding(transactions []model.Transaction, payments []model.Payment) decimal.Decimal {
	total := decimal.Zero
	for i := range transactions {
		if Counts(&transactions[i]) {
			total = total.Add(transactions[i].TotalAmount)
		}
	}
	for _, p := range payments {
		if p.PaymentStatus == model.PaymentStatusCompleted {
			total = total.Sub(p.PaymentAmount)
		}
	}
	return total
}

// ReceiptNumber builds PREFIX-<epoch millis>.
func ReceiptNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
}
