package repository

import (
	"context"
	"time"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// current_outstanding is not editable here; only the ledger workflow writes it.
var customerEditable = []string{
	"customer_name", "customer_phone", "customer_email", "customer_address",
	"business_name", "gst_number", "pan_number", "customer_type", "customer_status",
	"credit_limit", "payment_terms", "notes", "updated_by",
}

type CustomerRepository interface {
	FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Customer, error)
	FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Customer, error)
	Search(ctx context.Context, warehouseID uuid.UUID, query string) ([]model.Customer, error)
	FindByStatus(ctx context.Context, warehouseID uuid.UUID, status string) ([]model.Customer, error)
	FindOutstanding(ctx context.Context, warehouseID uuid.UUID) ([]model.Customer, error)
	TotalOutstanding(ctx context.Context, warehouseID uuid.UUID) (decimal.Decimal, error)
	FindIDs(ctx context.Context, warehouseID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, customer *model.Customer) error
	Update(ctx context.Context, customer *model.Customer) error
	SoftDelete(ctx context.Context, warehouseID, id uuid.UUID, deletedBy string) (bool, error)

	// LockByID and SetOutstanding take the workflow's transaction handle.
	LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Customer, error)
	SetOutstanding(tx *gorm.DB, id uuid.UUID, outstanding decimal.Decimal, lastTransaction *time.Time, updatedBy string) error
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

func (r *customerRepo) FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Order("customer_name").Find(&customers).Error
	return customers, err
}

func (r *customerRepo) FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) Search(ctx context.Context, warehouseID uuid.UUID, query string) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Scopes(active, inWarehouse(warehouseID), searchAny(containsPattern(query), "customer_name", "customer_phone", "business_name")).
		Order("customer_name").Find(&customers).Error
	return customers, err
}

func (r *customerRepo) FindByStatus(ctx context.Context, warehouseID uuid.UUID, status string) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Where("customer_status = ?", status).
		Order("customer_name").Find(&customers).Error
	return customers, err
}

func (r *customerRepo) FindOutstanding(ctx context.Context, warehouseID uuid.UUID) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Where("current_outstanding > 0").
		Order("current_outstanding DESC").Find(&customers).Error
	return customers, err
}

func (r *customerRepo) TotalOutstanding(ctx context.Context, warehouseID uuid.UUID) (decimal.Decimal, error) {
	return sumDecimal(r.db.WithContext(ctx).Model(&model.Customer{}).Scopes(active, inWarehouse(warehouseID)), "current_outstanding")
}

func (r *customerRepo) FindIDs(ctx context.Context, warehouseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Customer{}).Scopes(inWarehouse(warehouseID)).
		Order("customer_name").Pluck("id", &ids).Error
	return ids, err
}

func (r *customerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepo) Update(ctx context.Context, customer *model.Customer) error {
	res := r.db.WithContext(ctx).Model(&model.Customer{}).
		Scopes(active, inWarehouse(customer.WarehouseID)).
		Where("id = ?", customer.ID).
		Select(customerEditable).
		Updates(customer)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *customerRepo) SoftDelete(ctx context.Context, warehouseID, id uuid.UUID, deletedBy string) (bool, error) {
	return softDelete(ctx, r.db, &model.Customer{}, []func(*gorm.DB) *gorm.DB{inWarehouse(warehouseID)}, id, deletedBy)
}

func (r *customerRepo) LockByID(tx *gorm.DB, warehouseID, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := tx.Scopes(active, inWarehouse(warehouseID), forUpdate).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) SetOutstanding(tx *gorm.DB, id uuid.UUID, outstanding decimal.Decimal, lastTransaction *time.Time, updatedBy string) error {
	updates := map[string]any{
		"current_outstanding": outstanding,
		"updated_by":          updatedBy,
	}
	if lastTransaction != nil {
		updates["last_transaction_date"] = *lastTransaction
	}
	return tx.Model(&model.Customer{}).Where("id = ?", id).Updates(updates).Error
}
