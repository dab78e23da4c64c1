package repository

import (
	"context"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var productEditable = []string{
	"name", "code", "category", "subcategory", "unit", "weight_per_unit",
	"perishable", "hazardous", "minimum_storage_period", "updated_by",
}

// ProductRepository scopes every call by warehouse; a nil warehouse means the
// global catalog (rows with no warehouse).
type ProductRepository interface {
	FindAll(ctx context.Context, warehouseID *uuid.UUID) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByCategory(ctx context.Context, warehouseID *uuid.UUID, category string) ([]model.Product, error)
	Search(ctx context.Context, query string, warehouseID *uuid.UUID) ([]model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	SoftDelete(ctx context.Context, warehouseID *uuid.UUID, id uuid.UUID, deletedBy string) (bool, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func productScope(warehouseID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if warehouseID == nil {
			return db.Where("warehouse_id IS NULL")
		}
		return db.Where("warehouse_id = ?", *warehouseID)
	}
}

func (r *productRepo) FindAll(ctx context.Context, warehouseID *uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Scopes(active, productScope(warehouseID)).Order("name").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Scopes(active).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByCategory(ctx context.Context, warehouseID *uuid.UUID, category string) ([]model.Product, error) {
	q := r.db.WithContext(ctx).Scopes(active, productScope(warehouseID))
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var products []model.Product
	err := q.Order("name").Find(&products).Error
	return products, err
}

func (r *productRepo) Search(ctx context.Context, query string, warehouseID *uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Scopes(active, productScope(warehouseID), searchAny(containsPattern(query), "name", "code", "category")).
		Order("name").Find(&products).Error
	return products, err
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Scopes(active, productScope(product.WarehouseID)).
		Where("id = ?", product.ID).
		Select(productEditable).
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) SoftDelete(ctx context.Context, warehouseID *uuid.UUID, id uuid.UUID, deletedBy string) (bool, error) {
	return softDelete(ctx, r.db, &model.Product{}, []func(*gorm.DB) *gorm.DB{productScope(warehouseID)}, id, deletedBy)
}
