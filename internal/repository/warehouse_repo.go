package repository

import (
	"context"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var warehouseEditable = []string{
	"warehouse_name", "warehouse_initials", "warehouse_address", "warehouse_contact",
	"warehouse_capacity", "default_storage_rate", "default_labor_rate", "timezone",
	"currency", "gst_number", "updated_by",
}

type WarehouseRepository interface {
	FindAll(ctx context.Context) ([]model.Warehouse, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
	FindByCode(ctx context.Context, code string) (*model.Warehouse, error)
	Create(ctx context.Context, warehouse *model.Warehouse) error
	Update(ctx context.Context, warehouse *model.Warehouse) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error)
}

type warehouseRepo struct {
	db *gorm.DB
}

func NewWarehouseRepo(db *gorm.DB) WarehouseRepository {
	return &warehouseRepo{db}
}

func (r *warehouseRepo) FindAll(ctx context.Context) ([]model.Warehouse, error) {
	var warehouses []model.Warehouse
	err := r.db.WithContext(ctx).Scopes(active).Order("warehouse_name").Find(&warehouses).Error
	return warehouses, err
}

func (r *warehouseRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	var warehouse model.Warehouse
	if err := r.db.WithContext(ctx).Scopes(active).First(&warehouse, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *warehouseRepo) FindByCode(ctx context.Context, code string) (*model.Warehouse, error) {
	var warehouse model.Warehouse
	if err := r.db.WithContext(ctx).Scopes(active).First(&warehouse, "warehouse_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *warehouseRepo) Create(ctx context.Context, warehouse *model.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *warehouseRepo) Update(ctx context.Context, warehouse *model.Warehouse) error {
	res := r.db.WithContext(ctx).Model(&model.Warehouse{}).Scopes(active).
		Where("id = ?", warehouse.ID).
		Select(warehouseEditable).
		Updates(warehouse)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *warehouseRepo) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error) {
	return softDelete(ctx, r.db, &model.Warehouse{}, nil, id, deletedBy)
}
