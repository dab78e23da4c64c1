package service

import (
	"context"
	"fmt"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/ledger"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const transactionModule = "transaction_service"

const (
	receiptPrefix = "RCP"
	payPrefix     = "PAY"
)

var (
	ErrTransactionNotFound = apperror.NotFound("transaction not found")
	ErrCustomerNotInScope  = apperror.Validation("customer does not belong to the selected warehouse")
	ErrProductNotInScope   = apperror.Validation("product is not available in the selected warehouse")
	ErrLotNotInScope       = apperror.Validation("storage lot does not belong to the selected warehouse")
	ErrParentNotFound      = apperror.Validation("parent transaction not found")
	ErrInvalidTxStatus     = apperror.Validation("invalid transaction status")
	ErrInvalidPaymentMode  = apperror.Validation("invalid payment mode")
	ErrReopenCancelled     = apperror.Validation("a cancelled transaction cannot be reopened")
	ErrCancelPaid          = apperror.Validation("transaction has completed payments; mark them failed before cancelling")
	ErrCancelDrawn         = apperror.Validation("inflow has outflows; cancel them first")
)

type InflowInput struct {
	CustomerID          uuid.UUID           `json:"customer_id" validate:"uuid_required"`
	ProductID           *uuid.UUID          `json:"product_id"`
	StorageLotID        *uuid.UUID          `json:"storage_lot_id"`
	TransactionDate     *time.Time          `json:"transaction_date"`
	ItemQuantity        decimal.Decimal     `json:"item_quantity"`
	ItemUnit            string              `json:"item_unit" validate:"omitempty,max=20"`
	ItemWeight          decimal.NullDecimal `json:"item_weight"`
	StorageDate         *time.Time          `json:"storage_date"`
	ExpectedOutflowDate *time.Time          `json:"expected_outflow_date"`
	StorageRate         decimal.NullDecimal `json:"storage_rate"`
	BaseAmount          decimal.Decimal     `json:"base_amount"`
	HandlingCharges     decimal.Decimal     `json:"handling_charges"`
	LaborChargePerBag   decimal.Decimal     `json:"labor_charge_per_bag"`
	TotalLaborCharges   decimal.Decimal     `json:"total_labor_charges"`
	LaborPaidAmount     decimal.Decimal     `json:"labor_paid_amount"`
	PaymentMode         string              `json:"payment_mode"`
	ReceiptNumber       string              `json:"receipt_number" validate:"omitempty,max=50"`
	Notes               *string             `json:"notes"`
}

type OutflowInput struct {
	CustomerID          uuid.UUID       `json:"customer_id" validate:"uuid_required"`
	ParentTransactionID *uuid.UUID      `json:"parent_transaction_id"`
	ProductID           *uuid.UUID      `json:"product_id"`
	StorageLotID        *uuid.UUID      `json:"storage_lot_id"`
	TransactionDate     *time.Time      `json:"transaction_date"`
	ItemQuantity        decimal.Decimal `json:"item_quantity"`
	ItemUnit            string          `json:"item_unit" validate:"omitempty,max=20"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	PaymentMode         string          `json:"payment_mode"`
	ReceiptNumber       string          `json:"receipt_number" validate:"omitempty,max=50"`
	Notes               *string         `json:"notes"`
}

type StatusInput struct {
	Status           string     `json:"status"`
	VerifiedBy       *string    `json:"verified_by"`
	VerificationDate *time.Time `json:"verification_date"`
	Notes            *string    `json:"notes"`
}

// OutstandingReport compares a customer's stored balance with the one
// recomputed from their ledger.
type OutstandingReport struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Drift      decimal.Decimal `json:"drift"`
	Repaired   bool            `json:"repaired"`
}

type TransactionService interface {
	List(ctx context.Context, scope session.Scope) ([]model.Transaction, error)
	Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Transaction, error)
	ListByCustomer(ctx context.Context, scope session.Scope, customerID uuid.UUID) ([]model.Transaction, error)
	ListActiveInflows(ctx context.Context, scope session.Scope) ([]model.ActiveInflow, error)
	CreateInflow(ctx context.Context, scope session.Scope, in *InflowInput) (*model.Transaction, error)
	CreateOutflow(ctx context.Context, scope session.Scope, in *OutflowInput) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, scope session.Scope, id uuid.UUID, in *StatusInput) (*model.Transaction, error)
	RecomputeOutstanding(ctx context.Context, warehouseID, customerID uuid.UUID, repair bool) (*OutstandingReport, error)
	RecomputeWarehouse(ctx context.Context, warehouseID uuid.UUID, repair bool) ([]OutstandingReport, error)
}

type transactionService struct {
	deps
	transactions repository.TransactionRepository
	payments     repository.PaymentRepository
	customers    repository.CustomerRepository
	products     repository.ProductRepository
	lots         repository.StorageLotRepository
	occupancy    occupancyWriter
	balances     balances
}

func NewTransactionService(
	transactions repository.TransactionRepository,
	payments repository.PaymentRepository,
	customers repository.CustomerRepository,
	products repository.ProductRepository,
	lots repository.StorageLotRepository,
	db *gorm.DB, c *cache.Cache, locker lock.Locker, notifier Notifier, opts Options,
) TransactionService {
	d := newDeps(db, c, locker, notifier, opts)
	return &transactionService{
		deps:         d,
		transactions: transactions,
		payments:     payments,
		customers:    customers,
		products:     products,
		lots:         lots,
		occupancy:    occupancyWriter{lots: lots, nearFull: d.opts.NearFullThreshold},
		balances:     balances{transactions: transactions, payments: payments, customers: customers},
	}
}

func (s *transactionService) List(ctx context.Context, scope session.Scope) ([]model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	txs, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Transactions, wh, cache.ViewList), func(ctx context.Context) ([]model.Transaction, error) {
		return s.transactions.FindAll(ctx, wh)
	})
	return txs, s.storeErr(ctx, transactionModule, "List", err, "failed to fetch transactions")
}

func (s *transactionService) Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	t, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Transactions, wh, cache.ViewDetail, id.String()), func(ctx context.Context) (*model.Transaction, error) {
		return s.transactions.FindByID(ctx, wh, id)
	})
	return t, s.storeErr(ctx, transactionModule, "Get", err, "transaction not found")
}

func (s *transactionService) ListByCustomer(ctx context.Context, scope session.Scope, customerID uuid.UUID) ([]model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(cache.Transactions, wh, cache.ViewByCustomer, customerID.String())
	txs, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]model.Transaction, error) {
		return s.transactions.FindByCustomer(ctx, wh, customerID)
	})
	return txs, s.storeErr(ctx, transactionModule, "ListByCustomer", err, "failed to fetch customer transactions")
}

func (s *transactionService) ListActiveInflows(ctx context.Context, scope session.Scope) ([]model.ActiveInflow, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(cache.Transactions, wh, cache.ViewActiveInflows)
	out, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]model.ActiveInflow, error) {
		inflows, err := s.transactions.FindActiveInflows(ctx, wh)
		if err != nil {
			return nil, err
		}
		views := make([]model.ActiveInflow, len(inflows))
		for i, t := range inflows {
			drawn := decimal.Zero
			for _, o := range t.Outflows {
				drawn = drawn.Add(o.ItemQuantity)
			}
			views[i] = model.ActiveInflow{Transaction: t, Drawn: drawn, Remaining: t.ItemQuantity.Sub(drawn)}
			if t.StorageLot != nil {
				views[i].LotName = t.StorageLot.LotName
			}
		}
		return views, nil
	})
	return out, s.storeErr(ctx, transactionModule, "ListActiveInflows", err, "failed to fetch active inflows")
}

func checkPaymentMode(mode string) (string, error) {
	if mode == "" {
		return "cash", nil
	}
	for _, m := range model.PaymentModes {
		if m == mode {
			return mode, nil
		}
	}
	return "", ErrInvalidPaymentMode
}

// concurrent marks a check that passed before the locks were taken but
// failed once they were held.
func concurrent(what string, err error) error {
	return apperror.Wrap(apperror.KindConflict, what+" changed concurrently", err)
}

func (s *transactionService) checkCustomer(ctx context.Context, wh, id uuid.UUID) (*model.Customer, error) {
	c, err := s.customers.FindByID(ctx, wh, id)
	if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
		return nil, ErrCustomerNotInScope
	}
	return c, err
}

func (s *transactionService) checkProduct(ctx context.Context, wh uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	p, err := s.products.FindByID(ctx, *id)
	if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
		return ErrProductNotInScope
	}
	if err != nil {
		return err
	}
	if p.WarehouseID != nil && *p.WarehouseID != wh {
		return ErrProductNotInScope
	}
	return nil
}

func (s *transactionService) checkLot(ctx context.Context, wh uuid.UUID, id uuid.UUID) (*model.StorageLot, error) {
	lot, err := s.lots.FindByID(ctx, wh, id)
	if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
		return nil, ErrLotNotInScope
	}
	return lot, err
}

func (s *transactionService) CreateInflow(ctx context.Context, scope session.Scope, in *InflowInput) (*model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	qty := in.ItemQuantity
	if err := ledger.RequirePositive(qty); err != nil {
		return nil, err
	}
	mode, err := checkPaymentMode(in.PaymentMode)
	if err != nil {
		return nil, err
	}
	charges, total, err := ledger.InflowTotals(ledger.Charges{
		BaseAmount:        in.BaseAmount,
		HandlingCharges:   in.HandlingCharges,
		LaborChargePerBag: in.LaborChargePerBag,
		TotalLaborCharges: in.TotalLaborCharges,
	}, qty)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	if _, err := s.checkCustomer(ctx, wh, in.CustomerID); err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateInflow", err, "failed to load customer")
	}
	if err := s.checkProduct(ctx, wh, in.ProductID); err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateInflow", err, "failed to load product")
	}
	keys := []string{lock.CustomerKey(in.CustomerID)}
	if in.StorageLotID != nil {
		lot, err := s.checkLot(ctx, wh, *in.StorageLotID)
		if err != nil {
			return nil, s.storeErr(ctx, transactionModule, "CreateInflow", err, "failed to load storage lot")
		}
		if err := ledger.CheckCapacity(lot, qty); err != nil {
			return nil, err
		}
		keys = append(keys, lock.LotKey(lot.ID))
	}

	now := s.opts.Now()
	txDate := now
	if in.TransactionDate != nil {
		txDate = *in.TransactionDate
	}
	storageDate := txDate
	if in.StorageDate != nil {
		storageDate = *in.StorageDate
	}
	unit := in.ItemUnit
	if unit == "" {
		unit = "bags"
	}
	actor := scope.Actor()
	t := &model.Transaction{
		WarehouseID:         wh,
		CustomerID:          in.CustomerID,
		ProductID:           in.ProductID,
		StorageLotID:        in.StorageLotID,
		Type:                model.TxInflow,
		TransactionDate:     txDate,
		ItemQuantity:        qty,
		ItemUnit:            unit,
		ItemWeight:          in.ItemWeight,
		StorageDate:         storageDate,
		ExpectedOutflowDate: in.ExpectedOutflowDate,
		StorageRate:         in.StorageRate,
		BaseAmount:          charges.BaseAmount,
		HandlingCharges:     charges.HandlingCharges,
		LaborChargePerBag:   charges.LaborChargePerBag,
		TotalLaborCharges:   charges.TotalLaborCharges,
		TotalAmount:         total,
		Status:              model.TxStatusActive,
		Notes:               in.Notes,
		IsActive:            true,
	}
	t.CreatedBy = actor
	t.UpdatedBy = actor
	unpaid, err := ledger.OpenSettlement(t, in.LaborPaidAmount)
	if err != nil {
		return nil, err
	}
	t.LaborPaymentStatus = ledger.StateFor(t.TotalLaborCharges, in.LaborPaidAmount)

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var payment *model.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.LockByID(tx, wh, in.CustomerID)
		if err != nil {
			return concurrent("customer", err)
		}
		receipt, err := uniqueReceipt(tx, in.ReceiptNumber, receiptPrefix, now, s.transactions.ReceiptExists)
		if err != nil {
			return err
		}
		t.ReceiptNumber = receipt
		if err := s.transactions.Create(tx, t); err != nil {
			return err
		}

		if in.StorageLotID != nil {
			guard := func(lot *model.StorageLot) error {
				if err := ledger.CheckCapacity(lot, qty); err != nil {
					return concurrent("storage lot", err)
				}
				return nil
			}
			if _, err := s.occupancy.apply(tx, wh, *in.StorageLotID, qty, actor, guard); err != nil {
				return err
			}
		}

		if in.LaborPaidAmount.IsPositive() {
			payment, err = s.recordPayment(tx, t, in.LaborPaidAmount, model.PaymentTypeLabor, mode, actor, now)
			if err != nil {
				return err
			}
		}

		outstanding := customer.CurrentOutstanding.Add(unpaid)
		return s.customers.SetOutstanding(tx, customer.ID, outstanding, &txDate, actor)
	})
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateInflow", err, "failed to record inflow")
	}

	s.cache.Invalidate(ctx, cache.OpInflowCreated, wh)
	s.publishTransaction("inflow_created", scope, t, payment)
	return t, nil
}

func (s *transactionService) CreateOutflow(ctx context.Context, scope session.Scope, in *OutflowInput) (*model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	qty := in.ItemQuantity
	if err := ledger.RequirePositive(qty); err != nil {
		return nil, err
	}
	mode, err := checkPaymentMode(in.PaymentMode)
	if err != nil {
		return nil, err
	}
	charges := ledger.Charges{BaseAmount: in.BaseAmount, TaxAmount: in.TaxAmount, DiscountAmount: in.DiscountAmount}
	total, err := ledger.OutflowTotal(charges)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	if _, err := s.checkCustomer(ctx, wh, in.CustomerID); err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to load customer")
	}

	productID, lotID := in.ProductID, in.StorageLotID
	if in.ParentTransactionID != nil {
		parent, err := s.transactions.FindByID(ctx, wh, *in.ParentTransactionID)
		if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to load parent transaction")
		}
		drawn, err := s.transactions.SumDrawn(s.db.WithContext(ctx), parent.ID)
		if err != nil {
			return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to load parent drawdown")
		}
		if err := ledger.CheckDrawdown(parent, wh, in.CustomerID, drawn, qty); err != nil {
			return nil, err
		}
		if productID == nil {
			productID = parent.ProductID
		}
		if lotID == nil {
			lotID = parent.StorageLotID
		}
	} else if err := s.checkProduct(ctx, wh, productID); err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to load product")
	}

	keys := []string{lock.CustomerKey(in.CustomerID)}
	if lotID != nil {
		lot, err := s.checkLot(ctx, wh, *lotID)
		if err != nil {
			return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to load storage lot")
		}
		if lot.CurrentOccupancy.LessThan(qty) {
			return nil, ledger.ErrOccupancyNegative
		}
		keys = append(keys, lock.LotKey(lot.ID))
	}

	now := s.opts.Now()
	txDate := now
	if in.TransactionDate != nil {
		txDate = *in.TransactionDate
	}
	unit := in.ItemUnit
	if unit == "" {
		unit = "bags"
	}
	actor := scope.Actor()
	t := &model.Transaction{
		WarehouseID:         wh,
		CustomerID:          in.CustomerID,
		ProductID:           productID,
		StorageLotID:        lotID,
		Type:                model.TxOutflow,
		TransactionDate:     txDate,
		ItemQuantity:        qty,
		ItemUnit:            unit,
		StorageDate:         txDate,
		BaseAmount:          charges.BaseAmount,
		TaxAmount:           charges.TaxAmount,
		DiscountAmount:      charges.DiscountAmount,
		TotalAmount:         total,
		ParentTransactionID: in.ParentTransactionID,
		Status:              model.TxStatusActive,
		LaborPaymentStatus:  model.PaymentPaid,
		Notes:               in.Notes,
		IsActive:            true,
	}
	t.CreatedBy = actor
	t.UpdatedBy = actor
	unpaid, err := ledger.OpenSettlement(t, in.AmountPaid)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var payment *model.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.LockByID(tx, wh, in.CustomerID)
		if err != nil {
			return concurrent("customer", err)
		}

		var parent *model.Transaction
		var drawn decimal.Decimal
		if in.ParentTransactionID != nil {
			parent, err = s.transactions.LockByID(tx, wh, *in.ParentTransactionID)
			if err != nil {
				return concurrent("parent transaction", err)
			}
			drawn, err = s.transactions.SumDrawn(tx, parent.ID)
			if err != nil {
				return err
			}
			if err := ledger.CheckDrawdown(parent, wh, in.CustomerID, drawn, qty); err != nil {
				return concurrent("parent transaction", err)
			}
		}

		receipt, err := uniqueReceipt(tx, in.ReceiptNumber, receiptPrefix, now, s.transactions.ReceiptExists)
		if err != nil {
			return err
		}
		t.ReceiptNumber = receipt
		if err := s.transactions.Create(tx, t); err != nil {
			return err
		}

		if lotID != nil {
			guard := func(lot *model.StorageLot) error {
				if lot.CurrentOccupancy.LessThan(qty) {
					return concurrent("storage lot", ledger.ErrOccupancyNegative)
				}
				return nil
			}
			if _, err := s.occupancy.apply(tx, wh, *lotID, qty.Neg(), actor, guard); err != nil {
				return err
			}
		}

		if parent != nil && drawn.Add(qty).Equal(parent.ItemQuantity) {
			if err := s.transactions.MarkCompleted(tx, parent.ID, txDate, actor); err != nil {
				return err
			}
		}

		if in.AmountPaid.IsPositive() {
			payment, err = s.recordPayment(tx, t, in.AmountPaid, model.PaymentTypeStorage, mode, actor, now)
			if err != nil {
				return err
			}
		}

		outstanding := customer.CurrentOutstanding.Add(unpaid)
		return s.customers.SetOutstanding(tx, customer.ID, outstanding, &txDate, actor)
	})
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "CreateOutflow", err, "failed to record outflow")
	}

	s.cache.Invalidate(ctx, cache.OpOutflowCreated, wh)
	s.publishTransaction("outflow_created", scope, t, payment)
	return t, nil
}

// recordPayment inserts the payment taken together with a new transaction.
// The transaction's settlement fields already include the amount.
func (s *transactionService) recordPayment(tx *gorm.DB, t *model.Transaction, amount decimal.Decimal, paymentType, mode, actor string, now time.Time) (*model.Payment, error) {
	receipt, err := uniqueReceipt(tx, "", payPrefix, now, s.payments.ReceiptExists)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{
		WarehouseID:          t.WarehouseID,
		CustomerID:           t.CustomerID,
		TransactionID:        t.ID,
		PaymentAmount:        amount,
		PaymentDate:          t.TransactionDate,
		PaymentType:          paymentType,
		PaymentMode:          mode,
		PaymentStatus:        model.PaymentStatusCompleted,
		ReceiptNumber:        receipt,
		ReceivedBy:           actor,
		ReconciliationStatus: "pending",
	}
	p.CreatedBy = actor
	p.UpdatedBy = actor
	if err := s.payments.Create(tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *transactionService) publishTransaction(action string, scope session.Scope, t *model.Transaction, p *model.Payment) {
	payload := map[string]any{
		"type":   "transaction_update",
		"action": action,
		"transaction": map[string]any{
			"id":               t.ID,
			"receipt_number":   t.ReceiptNumber,
			"transaction_type": t.Type,
			"customer_id":      t.CustomerID,
			"storage_lot_id":   t.StorageLotID,
			"item_quantity":    t.ItemQuantity,
			"total_amount":     t.TotalAmount,
			"payment_status":   t.PaymentStatus,
		},
		"user": map[string]any{
			"id":    scope.UserID,
			"name":  scope.FullName,
			"email": scope.Email,
		},
		"message": fmt.Sprintf("%s recorded %s %s", scope.Actor(), t.Type, t.ReceiptNumber),
	}
	if p != nil {
		payload["payment"] = map[string]any{"id": p.ID, "receipt_number": p.ReceiptNumber, "payment_amount": p.PaymentAmount}
	}
	s.publish(action, t.WarehouseID, payload)
}

// UpdateStatus changes a transaction's status and verification fields.
// Cancelling undoes the transaction's effect on stock and on the customer's
// balance; a cancelled transaction stays cancelled.
func (s *transactionService) UpdateStatus(ctx context.Context, scope session.Scope, id uuid.UUID, in *StatusInput) (*model.Transaction, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	switch in.Status {
	case "", model.TxStatusActive, model.TxStatusCompleted, model.TxStatusCancelled:
	default:
		return nil, ErrInvalidTxStatus
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	current, err := s.transactions.FindByID(ctx, wh, id)
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "UpdateStatus", err, "transaction not found")
	}
	reopening := func(status string) bool {
		return status == model.TxStatusCancelled && in.Status != "" && in.Status != model.TxStatusCancelled
	}
	if reopening(current.Status) {
		return nil, ErrReopenCancelled
	}
	cancelling := in.Status == model.TxStatusCancelled && current.Status != model.TxStatusCancelled
	keys := []string{lock.CustomerKey(current.CustomerID)}
	if cancelling && current.StorageLotID != nil {
		keys = append(keys, lock.LotKey(*current.StorageLotID))
	}

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	actor := scope.Actor()
	patch := repository.StatusPatch{Status: in.Status, VerifiedBy: in.VerifiedBy, VerificationDate: in.VerificationDate, Notes: in.Notes}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.LockByID(tx, wh, current.CustomerID)
		if err != nil {
			return concurrent("customer", err)
		}
		t, err := s.transactions.LockByID(tx, wh, id)
		if err != nil {
			return err
		}
		if reopening(t.Status) {
			return concurrent("transaction", ErrReopenCancelled)
		}
		changed := cancelling && t.Status != model.TxStatusCancelled
		if changed {
			if err := s.cancel(tx, wh, t, actor); err != nil {
				return err
			}
		}
		if err := s.transactions.SetStatus(tx, id, patch, actor); err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.balances.refresh(tx, customer, nil, actor)
	})
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "UpdateStatus", err, "failed to update transaction status")
	}
	s.cache.Invalidate(ctx, cache.OpTransactionStatus, wh)

	t, err := s.transactions.FindByID(ctx, wh, id)
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "UpdateStatus", err, "transaction not found")
	}
	s.publish("transaction_status", wh, map[string]any{
		"type":    "transaction_update",
		"action":  "status_changed",
		"id":      t.ID,
		"status":  t.Status,
		"user":    actor,
		"message": fmt.Sprintf("%s set %s to %s", actor, t.ReceiptNumber, t.Status),
	})
	return t, nil
}

// cancel undoes a transaction's stock movement. An inflow leaves its lot; an
// outflow's quantity goes back into its lot and its parent inflow reopens.
// Paid transactions and inflows with live outflows are refused.
func (s *transactionService) cancel(tx *gorm.DB, wh uuid.UUID, t *model.Transaction, actor string) error {
	if t.StoragePaidAmount.IsPositive() {
		return ErrCancelPaid
	}
	payments, err := s.payments.FindForCustomer(tx, t.CustomerID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.TransactionID == t.ID && p.PaymentStatus == model.PaymentStatusCompleted {
			return ErrCancelPaid
		}
	}

	switch t.Type {
	case model.TxInflow:
		drawn, err := s.transactions.SumDrawn(tx, t.ID)
		if err != nil {
			return err
		}
		if drawn.IsPositive() {
			return ErrCancelDrawn
		}
		if t.StorageLotID != nil && t.ItemQuantity.IsPositive() {
			if _, err := s.occupancy.apply(tx, wh, *t.StorageLotID, t.ItemQuantity.Neg(), actor, nil); err != nil {
				return err
			}
		}
	case model.TxOutflow:
		if t.StorageLotID != nil {
			if _, err := s.occupancy.apply(tx, wh, *t.StorageLotID, t.ItemQuantity, actor, nil); err != nil {
				return err
			}
		}
		if t.ParentTransactionID != nil {
			parent, err := s.transactions.LockByID(tx, wh, *t.ParentTransactionID)
			if err != nil {
				return err
			}
			// only inflows closed by their drawdown carry an outflow date
			if parent.Status == model.TxStatusCompleted && parent.ActualOutflowDate != nil {
				if err := s.transactions.Reopen(tx, parent.ID, actor); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *transactionService) RecomputeOutstanding(ctx context.Context, warehouseID, customerID uuid.UUID, repair bool) (*OutstandingReport, error) {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	if repair {
		release, err := s.locker.Acquire(ctx, lock.CustomerKey(customerID))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	report := &OutstandingReport{CustomerID: customerID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.LockByID(tx, warehouseID, customerID)
		if err != nil {
			return err
		}
		txs, err := s.transactions.FindForCustomer(tx, customerID)
		if err != nil {
			return err
		}
		payments, err := s.payments.FindForCustomer(tx, customerID)
		if err != nil {
			return err
		}
		report.Stored = customer.CurrentOutstanding
		report.Computed = ledger.Outstanding(txs, payments)
		report.Drift = report.Stored.Sub(report.Computed)
		if !repair || report.Drift.IsZero() {
			return nil
		}
		report.Repaired = true
		return s.customers.SetOutstanding(tx, customerID, report.Computed, customer.LastTransactionDate, "system")
	})
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "RecomputeOutstanding", err, "failed to recompute outstanding")
	}
	if report.Repaired {
		s.cache.Invalidate(ctx, cache.OpCustomerChanged, warehouseID)
	}
	return report, nil
}

func (s *transactionService) RecomputeWarehouse(ctx context.Context, warehouseID uuid.UUID, repair bool) ([]OutstandingReport, error) {
	ids, err := s.customers.FindIDs(ctx, warehouseID)
	if err != nil {
		return nil, s.storeErr(ctx, transactionModule, "RecomputeWarehouse", err, "failed to list customers")
	}
	reports := make([]OutstandingReport, 0, len(ids))
	for _, id := range ids {
		r, err := s.RecomputeOutstanding(ctx, warehouseID, id, repair)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}
