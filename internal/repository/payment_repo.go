package repository

import (
	"context"
	"time"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Payment, error)
	FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Payment, error)
	FindByCustomer(ctx context.Context, warehouseID, customerID uuid.UUID) ([]model.Payment, error)
	FindByTransaction(ctx context.Context, warehouseID, transactionID uuid.UUID) ([]model.Payment, error)
	FindBetween(ctx context.Context, warehouseID uuid.UUID, from, to time.Time) ([]model.Payment, error)

	Create(tx *gorm.DB, p *model.Payment) error
	LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Payment, error)
	SetStatus(tx *gorm.DB, id uuid.UUID, patch StatusPatch, updatedBy string) error
	ReceiptExists(tx *gorm.DB, receipt string) (bool, error)
	FindForCustomer(tx *gorm.DB, customerID uuid.UUID) ([]model.Payment, error)
}

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db}
}

func (r *paymentRepo) FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Scopes(inWarehouse(warehouseID)).
		Preload("Customer", unscoped).
		Order("payment_date DESC").Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Scopes(inWarehouse(warehouseID)).Preload("Customer", unscoped).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindByCustomer(ctx context.Context, warehouseID, customerID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Scopes(inWarehouse(warehouseID)).
		Where("customer_id = ?", customerID).
		Order("payment_date DESC").Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) FindByTransaction(ctx context.Context, warehouseID, transactionID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Scopes(inWarehouse(warehouseID)).
		Where("transaction_id = ?", transactionID).
		Order("payment_date").Find(&payments).Error
	return payments, err
}

// FindBetween returns completed payments dated within [from, to).
func (r *paymentRepo) FindBetween(ctx context.Context, warehouseID uuid.UUID, from, to time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).Scopes(inWarehouse(warehouseID)).
		Where("payment_status = ?", model.PaymentStatusCompleted).
		Where("payment_date >= ? AND payment_date < ?", from, to).
		Preload("Customer", unscoped).
		Order("payment_date DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := tx.Scopes(inWarehouse(warehouseID), forUpdate).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) SetStatus(tx *gorm.DB, id uuid.UUID, patch StatusPatch, updatedBy string) error {
	updates := patch.updates(updatedBy)
	if s, ok := updates["status"]; ok {
		delete(updates, "status")
		updates["payment_status"] = s
	}
	res := tx.Model(&model.Payment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *paymentRepo) Create(tx *gorm.DB, p *model.Payment) error {
	return tx.Omit(clause.Associations).Create(p).Error
}

func (r *paymentRepo) ReceiptExists(tx *gorm.DB, receipt string) (bool, error) {
	var count int64
	err := tx.Model(&model.Payment{}).Unscoped().Where("receipt_number = ?", receipt).Count(&count).Error
	return count > 0, err
}

func (r *paymentRepo) FindForCustomer(tx *gorm.DB, customerID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := tx.Where("customer_id = ?", customerID).Find(&payments).Error
	return payments, err
}
