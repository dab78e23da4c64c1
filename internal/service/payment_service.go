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

const paymentModule = "payment_service"

var (
	ErrPaymentNotFound       = apperror.NotFound("payment not found")
	ErrTransactionNotInScope = apperror.Validation("transaction does not belong to this customer")
	ErrInvalidPaymentStatus  = apperror.Validation("invalid payment status")
	ErrInvalidPaymentType    = apperror.Validation("invalid payment type")
	ErrTransactionCancelled  = apperror.Validation("transaction is cancelled")
)

type PaymentInput struct {
	CustomerID       uuid.UUID       `json:"customer_id" validate:"uuid_required"`
	TransactionID    *uuid.UUID      `json:"transaction_id"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	PaymentDate      *time.Time      `json:"payment_date"`
	PaymentType      string          `json:"payment_type"`
	PaymentMode      string          `json:"payment_mode"`
	PaymentReference *string         `json:"payment_reference" validate:"omitempty,max=100"`
	ReceiptNumber    string          `json:"receipt_number" validate:"omitempty,max=50"`
	Notes            *string         `json:"notes"`
}

type PaymentService interface {
	List(ctx context.Context, scope session.Scope) ([]model.Payment, error)
	Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Payment, error)
	ListByCustomer(ctx context.Context, scope session.Scope, customerID uuid.UUID) ([]model.Payment, error)
	ListToday(ctx context.Context, scope session.Scope) ([]model.Payment, error)
	TotalOutstanding(ctx context.Context, scope session.Scope) (decimal.Decimal, error)
	OutstandingCustomers(ctx context.Context, scope session.Scope) ([]model.Customer, error)
	Create(ctx context.Context, scope session.Scope, in *PaymentInput) (*model.Payment, error)
	UpdateStatus(ctx context.Context, scope session.Scope, id uuid.UUID, in *StatusInput) (*model.Payment, error)
}

type paymentService struct {
	deps
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	customers    repository.CustomerRepository
	balances     balances
}

func NewPaymentService(
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	customers repository.CustomerRepository,
	db *gorm.DB, c *cache.Cache, locker lock.Locker, notifier Notifier, opts Options,
) PaymentService {
	return &paymentService{
		deps:         newDeps(db, c, locker, notifier, opts),
		payments:     payments,
		transactions: transactions,
		customers:    customers,
		balances:     balances{transactions: transactions, payments: payments, customers: customers},
	}
}

func (s *paymentService) List(ctx context.Context, scope session.Scope) ([]model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Payments, wh, cache.ViewList), func(ctx context.Context) ([]model.Payment, error) {
		return s.payments.FindAll(ctx, wh)
	})
	return out, s.storeErr(ctx, paymentModule, "List", err, "failed to fetch payments")
}

func (s *paymentService) Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	p, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Payments, wh, cache.ViewDetail, id.String()), func(ctx context.Context) (*model.Payment, error) {
		return s.payments.FindByID(ctx, wh, id)
	})
	return p, s.storeErr(ctx, paymentModule, "Get", err, "payment not found")
}

func (s *paymentService) ListByCustomer(ctx context.Context, scope session.Scope, customerID uuid.UUID) ([]model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(cache.Payments, wh, cache.ViewByCustomer, customerID.String())
	out, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]model.Payment, error) {
		return s.payments.FindByCustomer(ctx, wh, customerID)
	})
	return out, s.storeErr(ctx, paymentModule, "ListByCustomer", err, "failed to fetch customer payments")
}

// ListToday returns completed payments dated on the current calendar day.
func (s *paymentService) ListToday(ctx context.Context, scope session.Scope) ([]model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)
	key := cache.NewKey(cache.Payments, wh, cache.ViewToday, from.Format("2006-01-02"))
	out, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]model.Payment, error) {
		return s.payments.FindBetween(ctx, wh, from, to)
	})
	return out, s.storeErr(ctx, paymentModule, "ListToday", err, "failed to fetch today's payments")
}

func (s *paymentService) TotalOutstanding(ctx context.Context, scope session.Scope) (decimal.Decimal, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return decimal.Zero, err
	}
	total, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Payments, wh, cache.ViewTotal), func(ctx context.Context) (decimal.Decimal, error) {
		return s.customers.TotalOutstanding(ctx, wh)
	})
	return total, s.storeErr(ctx, paymentModule, "TotalOutstanding", err, "failed to sum outstanding")
}

func (s *paymentService) OutstandingCustomers(ctx context.Context, scope session.Scope) ([]model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Payments, wh, cache.ViewOutstanding), func(ctx context.Context) ([]model.Customer, error) {
		return s.customers.FindOutstanding(ctx, wh)
	})
	return out, s.storeErr(ctx, paymentModule, "OutstandingCustomers", err, "failed to fetch outstanding customers")
}

// checkPaymentType keeps on_account for payments without a transaction, so a
// status change later knows how the payment was settled.
func checkPaymentType(t string, onAccount bool) (string, error) {
	if onAccount {
		if t == "" || t == model.PaymentTypeOnAccount {
			return model.PaymentTypeOnAccount, nil
		}
		return "", ErrInvalidPaymentType
	}
	switch t {
	case "":
		return model.PaymentTypeStorage, nil
	case model.PaymentTypeStorage, model.PaymentTypeLabor:
		return t, nil
	}
	return "", ErrInvalidPaymentType
}

// Create records a payment. Without a transaction it is taken on account:
// spread over the customer's open transactions oldest first and attached to a
// zero-value inflow so every payment still points at one.
func (s *paymentService) Create(ctx context.Context, scope session.Scope, in *PaymentInput) (*model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}
	amount := in.PaymentAmount
	if !amount.IsPositive() {
		return nil, ledger.ErrNonPositivePayment
	}
	mode, err := checkPaymentMode(in.PaymentMode)
	if err != nil {
		return nil, err
	}
	paymentType, err := checkPaymentType(in.PaymentType, in.TransactionID == nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	customer, err := s.customers.FindByID(ctx, wh, in.CustomerID)
	if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
		return nil, ErrCustomerNotInScope
	}
	if err != nil {
		return nil, s.storeErr(ctx, paymentModule, "Create", err, "failed to load customer")
	}
	if in.TransactionID != nil {
		t, err := s.transactions.FindByID(ctx, wh, *in.TransactionID)
		if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, s.storeErr(ctx, paymentModule, "Create", err, "failed to load transaction")
		}
		if t.CustomerID != customer.ID {
			return nil, ErrTransactionNotInScope
		}
		if !ledger.Counts(t) {
			return nil, ErrTransactionCancelled
		}
		if amount.GreaterThan(t.StorageOutstanding) {
			return nil, ledger.ErrOverpayment
		}
	}
	if amount.GreaterThan(customer.CurrentOutstanding) {
		return nil, ledger.ErrOverpayment
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerKey(customer.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.opts.Now()
	paidAt := now
	if in.PaymentDate != nil {
		paidAt = *in.PaymentDate
	}
	actor := scope.Actor()
	p := &model.Payment{
		WarehouseID:          wh,
		CustomerID:           customer.ID,
		PaymentAmount:        amount,
		PaymentDate:          paidAt,
		PaymentType:          paymentType,
		PaymentMode:          mode,
		PaymentStatus:        model.PaymentStatusCompleted,
		PaymentReference:     in.PaymentReference,
		ReceivedBy:           actor,
		ReconciliationStatus: "pending",
		Notes:                in.Notes,
	}
	p.CreatedBy = actor
	p.UpdatedBy = actor

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.customers.LockByID(tx, wh, customer.ID)
		if err != nil {
			return concurrent("customer", err)
		}
		if amount.GreaterThan(locked.CurrentOutstanding) {
			return concurrent("customer", ledger.ErrOverpayment)
		}

		if in.TransactionID != nil {
			t, err := s.transactions.LockByID(tx, wh, *in.TransactionID)
			if err != nil {
				return concurrent("transaction", err)
			}
			if !ledger.Counts(t) {
				return concurrent("transaction", ErrTransactionCancelled)
			}
			if err := ledger.ApplyPayment(t, amount); err != nil {
				return concurrent("transaction", err)
			}
			if err := s.transactions.SaveSettlement(tx, t, actor); err != nil {
				return err
			}
			p.TransactionID = t.ID
		} else {
			if err := s.allocate(tx, customer.ID, amount, actor); err != nil {
				return concurrent("customer", err)
			}
			placeholder, err := s.placeholder(tx, wh, customer.ID, paidAt, actor, now)
			if err != nil {
				return err
			}
			p.TransactionID = placeholder.ID
		}

		receipt, err := uniqueReceipt(tx, in.ReceiptNumber, receiptPrefix, now, s.payments.ReceiptExists)
		if err != nil {
			return err
		}
		p.ReceiptNumber = receipt
		if err := s.payments.Create(tx, p); err != nil {
			return err
		}
		return s.balances.refresh(tx, locked, nil, actor)
	})
	if err != nil {
		return nil, s.storeErr(ctx, paymentModule, "Create", err, "failed to record payment")
	}

	s.cache.Invalidate(ctx, cache.OpPaymentCreated, wh)
	s.publish("payment_created", wh, map[string]any{
		"type":   "payment_update",
		"action": "payment_created",
		"payment": map[string]any{
			"id":             p.ID,
			"receipt_number": p.ReceiptNumber,
			"customer_id":    p.CustomerID,
			"transaction_id": p.TransactionID,
			"payment_amount": p.PaymentAmount,
			"payment_type":   p.PaymentType,
		},
		"user": map[string]any{
			"id":    scope.UserID,
			"name":  scope.FullName,
			"email": scope.Email,
		},
		"message": fmt.Sprintf("%s received %s from %s", actor, p.PaymentAmount.StringFixed(2), customer.CustomerName),
	})
	return p, nil
}

// allocate settles an on-account amount against the customer's open
// transactions, oldest first.
func (s *paymentService) allocate(tx *gorm.DB, customerID uuid.UUID, amount decimal.Decimal, actor string) error {
	open, err := s.transactions.LockSettlements(tx, customerID)
	if err != nil {
		return err
	}
	touched, rest := ledger.Allocate(open, amount)
	if rest.IsPositive() {
		return ledger.ErrOverpayment
	}
	return s.saveSettlements(tx, touched, actor)
}

// unallocate takes an on-account amount back, latest transaction first.
func (s *paymentService) unallocate(tx *gorm.DB, customerID uuid.UUID, amount decimal.Decimal, actor string) error {
	open, err := s.transactions.LockSettlements(tx, customerID)
	if err != nil {
		return err
	}
	payments, err := s.payments.FindForCustomer(tx, customerID)
	if err != nil {
		return err
	}
	direct := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range payments {
		if p.PaymentStatus == model.PaymentStatusCompleted && p.PaymentType != model.PaymentTypeOnAccount {
			direct[p.TransactionID] = direct[p.TransactionID].Add(p.PaymentAmount)
		}
	}
	touched, rest := ledger.Unallocate(open, direct, amount)
	if rest.IsPositive() {
		return ledger.ErrReversalExceedsPaid
	}
	return s.saveSettlements(tx, touched, actor)
}

func (s *paymentService) saveSettlements(tx *gorm.DB, txs []*model.Transaction, actor string) error {
	for _, t := range txs {
		if err := s.transactions.SaveSettlement(tx, t, actor); err != nil {
			return err
		}
	}
	return nil
}

// placeholder inserts the zero-value inflow an on-account payment hangs off.
func (s *paymentService) placeholder(tx *gorm.DB, wh, customerID uuid.UUID, at time.Time, actor string, now time.Time) (*model.Transaction, error) {
	receipt, err := uniqueReceipt(tx, "", payPrefix, now, s.transactions.ReceiptExists)
	if err != nil {
		return nil, err
	}
	t := &model.Transaction{
		WarehouseID:          wh,
		CustomerID:           customerID,
		Type:                 model.TxInflow,
		TransactionDate:      at,
		ItemQuantity:         decimal.Zero,
		ItemUnit:             "bags",
		StorageDate:          at,
		ReceiptNumber:        receipt,
		Status:               model.TxStatusCompleted,
		PaymentStatus:        model.PaymentPaid,
		LaborPaymentStatus:   model.PaymentPaid,
		StoragePaymentStatus: model.PaymentPaid,
		IsActive:             true,
	}
	t.CreatedBy = actor
	t.UpdatedBy = actor
	if err := s.transactions.Create(tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateStatus changes a payment's status. Moving a payment into or out of
// completed re-settles what it paid for and recomputes the customer's balance.
func (s *paymentService) UpdateStatus(ctx context.Context, scope session.Scope, id uuid.UUID, in *StatusInput) (*model.Payment, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	switch in.Status {
	case "", model.PaymentStatusCompleted, model.PaymentStatusPending, model.PaymentStatusFailed:
	default:
		return nil, ErrInvalidPaymentStatus
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	current, err := s.payments.FindByID(ctx, wh, id)
	if err != nil {
		return nil, s.storeErr(ctx, paymentModule, "UpdateStatus", err, "payment not found")
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerKey(current.CustomerID))
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
		p, err := s.payments.LockByID(tx, wh, id)
		if err != nil {
			return err
		}
		was := p.PaymentStatus == model.PaymentStatusCompleted
		next := was
		if in.Status != "" {
			next = in.Status == model.PaymentStatusCompleted
		}
		if was != next {
			if err := s.resettle(tx, wh, customer, p, next, actor); err != nil {
				return err
			}
		}
		if err := s.payments.SetStatus(tx, id, patch, actor); err != nil {
			return err
		}
		if was == next {
			return nil
		}
		return s.balances.refresh(tx, customer, nil, actor)
	})
	if err != nil {
		return nil, s.storeErr(ctx, paymentModule, "UpdateStatus", err, "failed to update payment status")
	}
	s.cache.Invalidate(ctx, cache.OpPaymentStatus, wh)

	p, err := s.payments.FindByID(ctx, wh, id)
	if err != nil {
		return nil, s.storeErr(ctx, paymentModule, "UpdateStatus", err, "payment not found")
	}
	s.publish("payment_status", wh, map[string]any{
		"type":    "payment_update",
		"action":  "status_changed",
		"id":      p.ID,
		"status":  p.PaymentStatus,
		"user":    actor,
		"message": fmt.Sprintf("%s set %s to %s", actor, p.ReceiptNumber, p.PaymentStatus),
	})
	return p, nil
}

// resettle applies (completed) or reverses a payment on what it paid for.
func (s *paymentService) resettle(tx *gorm.DB, wh uuid.UUID, customer *model.Customer, p *model.Payment, completed bool, actor string) error {
	if completed && p.PaymentAmount.GreaterThan(customer.CurrentOutstanding) {
		return ledger.ErrOverpayment
	}
	if p.PaymentType == model.PaymentTypeOnAccount {
		if completed {
			return s.allocate(tx, customer.ID, p.PaymentAmount, actor)
		}
		return s.unallocate(tx, customer.ID, p.PaymentAmount, actor)
	}

	t, err := s.transactions.LockByID(tx, wh, p.TransactionID)
	if err != nil {
		return err
	}
	if completed {
		if !ledger.Counts(t) {
			return ErrTransactionCancelled
		}
		err = ledger.ApplyPayment(t, p.PaymentAmount)
	} else {
		err = ledger.ReversePayment(t, p.PaymentAmount)
	}
	if err != nil {
		return err
	}
	return s.transactions.SaveSettlement(tx, t, actor)
}
