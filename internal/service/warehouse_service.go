package service

import (
	"context"
	"strings"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const warehouseModule = "warehouse_service"

var (
	ErrWarehouseNotFound   = apperror.NotFound("warehouse not found")
	ErrDuplicateWarehouse  = apperror.Conflict("warehouse code already exists")
	ErrNoDefaultWarehouse  = apperror.NotFound("default warehouse is not configured")
	ErrWarehouseOutOfScope = apperror.Forbidden("warehouse is outside your scope")
)

type WarehouseRequest struct {
	WarehouseName      string                  `json:"warehouse_name" validate:"required,max=255"`
	WarehouseCode      string                  `json:"warehouse_code" validate:"required,max=50"`
	WarehouseInitials  string                  `json:"warehouse_initials" validate:"omitempty,max=10"`
	WarehouseAddress   model.JSONMap           `json:"warehouse_address"`
	WarehouseContact   model.JSONMap           `json:"warehouse_contact"`
	WarehouseCapacity  model.WarehouseCapacity `json:"warehouse_capacity"`
	DefaultStorageRate decimal.Decimal         `json:"default_storage_rate"`
	DefaultLaborRate   decimal.Decimal         `json:"default_labor_rate"`
	Timezone           string                  `json:"timezone"`
	Currency           string                  `json:"currency" validate:"omitempty,len=3"`
	GSTNumber          string                  `json:"gst_number" validate:"omitempty,max=20"`
}

func (r *WarehouseRequest) apply(w *model.Warehouse) {
	w.WarehouseName = r.WarehouseName
	w.WarehouseInitials = r.WarehouseInitials
	w.WarehouseAddress = r.WarehouseAddress
	w.WarehouseContact = r.WarehouseContact
	w.WarehouseCapacity = r.WarehouseCapacity
	w.DefaultStorageRate = r.DefaultStorageRate
	w.DefaultLaborRate = r.DefaultLaborRate
	w.Timezone = r.Timezone
	if w.Timezone == "" {
		w.Timezone = "Asia/Kolkata"
	}
	w.Currency = strings.ToUpper(r.Currency)
	if w.Currency == "" {
		w.Currency = "INR"
	}
	w.GSTNumber = r.GSTNumber
}

type WarehouseService interface {
	List(ctx context.Context) ([]model.Warehouse, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
	Default(ctx context.Context) (*model.Warehouse, error)
	Create(ctx context.Context, scope session.Scope, req *WarehouseRequest) (*model.Warehouse, error)
	Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *WarehouseRequest) (*model.Warehouse, error)
	Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error
}

type warehouseService struct {
	deps
	warehouses repository.WarehouseRepository
}

func NewWarehouseService(warehouses repository.WarehouseRepository, db *gorm.DB, c *cache.Cache, notifier Notifier, opts Options) WarehouseService {
	return &warehouseService{deps: newDeps(db, c, nil, notifier, opts), warehouses: warehouses}
}

func (s *warehouseService) List(ctx context.Context) ([]model.Warehouse, error) {
	out, err := cache.Query(ctx, s.cache, cache.GlobalKey(cache.Warehouses, cache.ViewList), func(ctx context.Context) ([]model.Warehouse, error) {
		return s.warehouses.FindAll(ctx)
	})
	return out, s.storeErr(ctx, warehouseModule, "List", err, "failed to fetch warehouses")
}

func (s *warehouseService) Get(ctx context.Context, id uuid.UUID) (*model.Warehouse, error) {
	w, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Warehouses, id, cache.ViewDetail), func(ctx context.Context) (*model.Warehouse, error) {
		return s.warehouses.FindByID(ctx, id)
	})
	return w, s.storeErr(ctx, warehouseModule, "Get", err, "warehouse not found")
}

// Default returns the warehouse with code DEFAULT.
func (s *warehouseService) Default(ctx context.Context) (*model.Warehouse, error) {
	w, err := cache.Query(ctx, s.cache, cache.GlobalKey(cache.Warehouses, cache.ViewDefault), func(ctx context.Context) (*model.Warehouse, error) {
		return s.warehouses.FindByCode(ctx, model.DefaultWarehouseCode)
	})
	if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
		return nil, ErrNoDefaultWarehouse
	}
	return w, s.storeErr(ctx, warehouseModule, "Default", err, "failed to fetch default warehouse")
}

func (s *warehouseService) Create(ctx context.Context, scope session.Scope, req *WarehouseRequest) (*model.Warehouse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.WarehouseCode))

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	if existing, _ := s.warehouses.FindByCode(ctx, code); existing != nil {
		return nil, ErrDuplicateWarehouse
	}
	w := &model.Warehouse{WarehouseCode: code, IsActive: true}
	req.apply(w)
	w.CreatedBy = scope.Actor()
	w.UpdatedBy = scope.Actor()
	if err := s.warehouses.Create(ctx, w); err != nil {
		return nil, s.storeErr(ctx, warehouseModule, "Create", err, "failed to create warehouse")
	}
	s.cache.Invalidate(ctx, cache.OpWarehouseChanged, w.ID)
	return w, nil
}

// Update is limited to the caller's selected warehouse unless they may
// create warehouses.
func (s *warehouseService) Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *WarehouseRequest) (*model.Warehouse, error) {
	if err := s.inScope(scope, id); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	w, err := s.warehouses.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, warehouseModule, "Update", err, "warehouse not found")
	}
	req.apply(w)
	w.UpdatedBy = scope.Actor()
	if err := s.warehouses.Update(ctx, w); err != nil {
		return nil, s.storeErr(ctx, warehouseModule, "Update", err, "failed to update warehouse")
	}
	s.cache.Invalidate(ctx, cache.OpWarehouseChanged, id)
	s.publish("warehouse_updated", id, map[string]any{
		"type":   "warehouse_update",
		"action": "warehouse_updated",
		"id":     id,
		"user":   scope.Actor(),
	})
	return w, nil
}

func (s *warehouseService) Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	ok, err := s.warehouses.SoftDelete(ctx, id, scope.Actor())
	if err != nil {
		return s.storeErr(ctx, warehouseModule, "Delete", err, "failed to delete warehouse")
	}
	if !ok {
		return ErrWarehouseNotFound
	}
	s.cache.Invalidate(ctx, cache.OpWarehouseChanged, id)
	return nil
}

func (s *warehouseService) inScope(scope session.Scope, id uuid.UUID) error {
	if scope.RoleCode == model.RoleMasterAdmin || scope.HasPrivilege("warehouse:create") {
		return nil
	}
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return err
	}
	if wh != id {
		return ErrWarehouseOutOfScope
	}
	return nil
}
