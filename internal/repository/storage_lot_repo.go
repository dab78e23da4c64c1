package repository

import (
	"context"

	"go-warehouse-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// current_occupancy is only written by SetOccupancy.
var storageLotEditable = []string{
	"lot_name", "capacity", "reserved_capacity", "lot_type", "rate_multiplier",
	"lot_status", "lot_description", "lot_settings", "last_maintenance_date",
	"next_maintenance_date", "updated_by",
}

type StorageLotRepository interface {
	FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.StorageLot, error)
	FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.StorageLot, error)
	FindAvailable(ctx context.Context, warehouseID uuid.UUID, required decimal.Decimal) ([]model.StorageLot, error)
	Create(ctx context.Context, lot *model.StorageLot) error
	CreateMany(ctx context.Context, lots []model.StorageLot) error
	Update(ctx context.Context, lot *model.StorageLot) error
	SoftDelete(ctx context.Context, warehouseID, id uuid.UUID, deletedBy string) (bool, error)
	TotalOccupancy(ctx context.Context, warehouseID uuid.UUID) (decimal.Decimal, error)

	// WithTx binds the repository to an open transaction.
	WithTx(tx *gorm.DB) StorageLotRepository
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.StorageLot, error)
	SetOccupancy(tx *gorm.DB, lot *model.StorageLot, updatedBy string) error
}

type storageLotRepo struct {
	db *gorm.DB
}

func NewStorageLotRepo(db *gorm.DB) StorageLotRepository {
	return &storageLotRepo{db}
}

func (r *storageLotRepo) FindAll(ctx context.Context, warehouseID uuid.UUID) ([]model.StorageLot, error) {
	var lots []model.StorageLot
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).Order("lot_name").Find(&lots).Error
	return lots, err
}

func (r *storageLotRepo) FindByID(ctx context.Context, warehouseID, id uuid.UUID) (*model.StorageLot, error) {
	var lot model.StorageLot
	if err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *storageLotRepo) FindAvailable(ctx context.Context, warehouseID uuid.UUID, required decimal.Decimal) ([]model.StorageLot, error) {
	var lots []model.StorageLot
	err := r.db.WithContext(ctx).Scopes(active, inWarehouse(warehouseID)).
		Where("lot_status = ?", model.LotActive).
		Where("capacity - current_occupancy - reserved_capacity >= ?", required.InexactFloat64()).
		Order("current_occupancy ASC").Order("lot_name").
		Find(&lots).Error
	return lots, err
}

func (r *storageLotRepo) Create(ctx context.Context, lot *model.StorageLot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *storageLotRepo) CreateMany(ctx context.Context, lots []model.StorageLot) error {
	if len(lots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&lots).Error
	})
}

func (r *storageLotRepo) Update(ctx context.Context, lot *model.StorageLot) error {
	res := r.db.WithContext(ctx).Model(&model.StorageLot{}).
		Scopes(active, inWarehouse(lot.WarehouseID)).
		Where("id = ?", lot.ID).
		Select(storageLotEditable).
		Updates(lot)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *storageLotRepo) SoftDelete(ctx context.Context, warehouseID, id uuid.UUID, deletedBy string) (bool, error) {
	return softDelete(ctx, r.db, &model.StorageLot{}, []func(*gorm.DB) *gorm.DB{inWarehouse(warehouseID)}, id, deletedBy)
}

func (r *storageLotRepo) TotalOccupancy(ctx context.Context, warehouseID uuid.UUID) (decimal.Decimal, error) {
	return sumDecimal(r.db.WithContext(ctx).Model(&model.StorageLot{}).Scopes(active, inWarehouse(warehouseID)), "current_occupancy")
}

func (r *storageLotRepo) WithTx(tx *gorm.DB) StorageLotRepository {
	return &storageLotRepo{tx}
}

func (r *storageLotRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.StorageLot, error) {
	var lot model.StorageLot
	if err := tx.Scopes(forUpdate).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *storageLotRepo) SetOccupancy(tx *gorm.DB, lot *model.StorageLot, updatedBy string) error {
	return tx.Model(&model.StorageLot{}).Where("id = ?", lot.ID).Updates(map[string]any{
		"current_occupancy": lot.CurrentOccupancy,
		"lot_status":        lot.LotStatus,
		"updated_by":        updatedBy,
	}).Error
}
