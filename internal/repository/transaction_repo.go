package repository

import (
	"context"
	"time"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusPatch carries the only fields a recorded transaction or payment may change.
type StatusPatch struct {
	Status           string
	VerifiedBy       *string
	VerificationDate *time.Time
	Notes            *string
}

func (p StatusPatch) updates(updatedBy string) map[string]any {
	u := map[string]any{"updated_by": updatedBy}
	if p.Status != "" {
		u["status"] = p.Status
	}
	if p.VerifiedBy != nil {
		u["verified_by"] = *p.VerifiedBy
	}
	if p.VerificationDate != nil {
		u["verification_date"] = *p.VerificationDate
	}
	if p.Notes != nil {
		u["notes"] = *p.Notes
	}
	return u
}

type TransactionRepository interface {
	FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Transaction, error)
	FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Transaction, error)
	FindByCustomer(ctx context.Context, warehouseID, customerID uuid.UUID) ([]model.Transaction, error)
	FindActiveInflows(ctx context.Context, warehouseID uuid.UUID) ([]model.Transaction, error)
	FindRecent(ctx context.Context, warehouseID uuid.UUID, limit int) ([]model.Transaction, error)
	FindBetween(ctx context.Context, warehouseID uuid.UUID, from, to time.Time) ([]model.Transaction, error)
	SumTotal(ctx context.Context, warehouseID uuid.UUID, txType model.TransactionType, from, to *time.Time) (decimal.Decimal, int64, error)
	CountByStatus(ctx context.Context, warehouseID uuid.UUID, status string) (int64, error)

	// Workflow methods run on the caller's transaction handle.
	Create(tx *gorm.DB, t *model.Transaction) error
	SetStatus(tx *gorm.DB, id uuid.UUID, patch StatusPatch, updatedBy string) error
	Reopen(tx *gorm.DB, id uuid.UUID, updatedBy string) error
	ReceiptExists(tx *gorm.DB, receipt string) (bool, error)
	LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Transaction, error)
	SumDrawn(tx *gorm.DB, parentID uuid.UUID) (decimal.Decimal, error)
	MarkCompleted(tx *gorm.DB, id uuid.UUID, at time.Time, updatedBy string) error
	SaveSettlement(tx *gorm.DB, t *model.Transaction, updatedBy string) error
	FindForCustomer(tx *gorm.DB, customerID uuid.UUID) ([]model.Transaction, error)
	LockSettlements(tx *gorm.DB, customerID uuid.UUID) ([]model.Transaction, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func withRefs(db *gorm.DB) *gorm.DB {
	return db.Preload("Customer", unscoped).Preload("Product", unscoped).Preload("StorageLot", unscoped)
}

func (r *transactionRepo) FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID), withRefs).
		Order("transaction_date DESC").Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID), withRefs).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) FindByCustomer(ctx context.Context, warehouseID, customerID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Where("customer_id = ?", customerID).
		Order("transaction_date DESC").Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindActiveInflows(ctx context.Context, warehouseID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Where("transaction_type = ? AND status = ?", model.TxInflow, model.TxStatusActive).
		Preload("Outflows", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ? AND status <> ?", true, model.TxStatusCancelled).Order("transaction_date")
		}).
		Preload("StorageLot", unscoped).
		Preload("Customer", unscoped).
		Order("transaction_date DESC").Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindRecent(ctx context.Context, warehouseID uuid.UUID, limit int) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Preload("Customer", unscoped).
		Order("created_at DESC").Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindBetween(ctx context.Context, warehouseID uuid.UUID, from, to time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID), withRefs).
		Where("transaction_date >= ? AND transaction_date < ?", from, to).
		Order("transaction_date").Order("created_at").
		Find(&transactions).Error
	return transactions, err
}

// SumTotal returns the gross total_amount and row count of non-cancelled
// transactions of a type, optionally within [from, to).
func (r *transactionRepo) SumTotal(ctx context.Context, warehouseID uuid.UUID, txType model.TransactionType, from, to *time.Time) (decimal.Decimal, int64, error) {
	q := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Transaction{}).Scopes(active, inWarehouse(warehouseID)).
			Where("transaction_type = ? AND status <> ?", txType, model.TxStatusCancelled)
		if from != nil {
			q = q.Where("transaction_date >= ?", *from)
		}
		if to != nil {
			q = q.Where("transaction_date < ?", *to)
		}
		return q
	}
	total, err := sumDecimal(q(), "total_amount")
	if err != nil {
		return decimal.Zero, 0, err
	}
	var count int64
	if err := q().Count(&count).Error; err != nil {
		return decimal.Zero, 0, err
	}
	return total, count, nil
}

func (r *transactionRepo) CountByStatus(ctx context.Context, warehouseID uuid.UUID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).Scopes(active, inWarehouse(warehouseID)).
		Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *transactionRepo) SetStatus(tx *gorm.DB, id uuid.UUID, patch StatusPatch, updatedBy string) error {
	res := tx.Model(&model.Transaction{}).Scopes(active).Where("id = ?", id).Updates(patch.updates(updatedBy))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reopen returns a drawn-down inflow to active once one of its outflows is cancelled.
func (r *transactionRepo) Reopen(tx *gorm.DB, id uuid.UUID, updatedBy string) error {
	return tx.Model(&model.Transaction{}).Where("id = ?", id).Updates(map[string]any{
		"status":              model.TxStatusActive,
		"actual_outflow_date": nil,
		"updated_by":          updatedBy,
	}).Error
}

func (r *transactionRepo) Create(tx *gorm.DB, t *model.Transaction) error {
	return tx.Omit(clause.Associations).Create(t).Error
}

func (r *transactionRepo) ReceiptExists(tx *gorm.DB, receipt string) (bool, error) {
	var count int64
	err := tx.Model(&model.Transaction{}).Unscoped().Where("receipt_number = ?", receipt).Count(&count).Error
	return count > 0, err
}

func (r *transactionRepo) LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := tx.Scopes(active, inWarehouse(warehouseID), forUpdate).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) SumDrawn(tx *gorm.DB, parentID uuid.UUID) (decimal.Decimal, error) {
	return sumDecimal(tx.Model(&model.Transaction{}).Scopes(active).
		Where("parent_transaction_id = ? AND transaction_type = ? AND status <> ?", parentID, model.TxOutflow, model.TxStatusCancelled),
		"item_quantity")
}

func (r *transactionRepo) MarkCompleted(tx *gorm.DB, id uuid.UUID, at time.Time, updatedBy string) error {
	return tx.Model(&model.Transaction{}).Where("id = ?", id).Updates(map[string]any{
		"status":              model.TxStatusCompleted,
		"actual_outflow_date": at,
		"updated_by":          updatedBy,
	}).Error
}

func (r *transactionRepo) SaveSettlement(tx *gorm.DB, t *model.Transaction, updatedBy string) error {
	return tx.Model(&model.Transaction{}).Where("id = ?", t.ID).Updates(map[string]any{
		"storage_outstanding":    t.StorageOutstanding,
		"storage_paid_amount":    t.StoragePaidAmount,
		"storage_payment_status": t.StoragePaymentStatus,
		"payment_status":         t.PaymentStatus,
		"labor_payment_status":   t.LaborPaymentStatus,
		"updated_by":             updatedBy,
	}).Error
}

func (r *transactionRepo) FindForCustomer(tx *gorm.DB, customerID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := tx.Where("customer_id = ?", customerID).Find(&transactions).Error
	return transactions, err
}

// LockSettlements locks a customer's live transactions, oldest first, so a
// payment can be spread over them.
func (r *transactionRepo) LockSettlements(tx *gorm.DB, customerID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := tx.Scopes(active, forUpdate).
		Where("customer_id = ? AND status <> ?", customerID, model.TxStatusCancelled).
		Order("transaction_date").Order("created_at").
		Find(&transactions).Error
	return transactions, err
}
