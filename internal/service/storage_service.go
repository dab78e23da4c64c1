package service

import (
	"context"
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

const storageModule = "storage_service"

var (
	ErrLotNotFound      = apperror.NotFound("storage lot not found")
	ErrInvalidCapacity  = apperror.Validation("capacity must be greater than zero")
	ErrInvalidReserved  = apperror.Validation("reserved capacity must be between zero and capacity")
	ErrCapacityBelowUse = apperror.Validation("capacity cannot be below current occupancy plus reserved capacity")
	ErrInvalidLotStatus = apperror.Validation("invalid lot status")
	ErrLotInUse         = apperror.Validation("storage lot still holds or reserves stock")
)

type LotRequest struct {
	LotName             string           `json:"lot_name" validate:"required,max=100"`
	Capacity            decimal.Decimal  `json:"capacity"`
	ReservedCapacity    decimal.Decimal  `json:"reserved_capacity"`
	LotType             string           `json:"lot_type"`
	RateMultiplier      *decimal.Decimal `json:"rate_multiplier"`
	LotStatus           model.LotStatus  `json:"lot_status"`
	LotDescription      *string          `json:"lot_description"`
	LotSettings         model.JSONMap    `json:"lot_settings"`
	LastMaintenanceDate *time.Time       `json:"last_maintenance_date"`
	NextMaintenanceDate *time.Time       `json:"next_maintenance_date"`
}

func (r *LotRequest) check() error {
	if err := validate(r); err != nil {
		return err
	}
	if !r.Capacity.IsPositive() {
		return ErrInvalidCapacity
	}
	if r.ReservedCapacity.IsNegative() || r.ReservedCapacity.GreaterThan(r.Capacity) {
		return ErrInvalidReserved
	}
	switch r.LotStatus {
	case "", model.LotActive, model.LotFull, model.LotMaintenance, model.LotInactive:
	default:
		return ErrInvalidLotStatus
	}
	return nil
}

func (r *LotRequest) apply(lot *model.StorageLot) {
	lot.LotName = r.LotName
	lot.Capacity = r.Capacity
	lot.ReservedCapacity = r.ReservedCapacity
	lot.LotType = r.LotType
	if lot.LotType == "" {
		lot.LotType = "standard"
	}
	if r.RateMultiplier != nil {
		lot.RateMultiplier = *r.RateMultiplier
	} else if lot.RateMultiplier.IsZero() {
		lot.RateMultiplier = decimal.NewFromInt(1)
	}
	if r.LotStatus != "" {
		lot.LotStatus = r.LotStatus
	}
	lot.LotDescription = r.LotDescription
	lot.LotSettings = r.LotSettings
	lot.LastMaintenanceDate = r.LastMaintenanceDate
	lot.NextMaintenanceDate = r.NextMaintenanceDate
}

type StorageService interface {
	List(ctx context.Context, scope session.Scope) ([]model.StorageLot, error)
	Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.StorageLot, error)
	Create(ctx context.Context, scope session.Scope, req *LotRequest) (*model.StorageLot, error)
	CreateMany(ctx context.Context, scope session.Scope, reqs []LotRequest) ([]model.StorageLot, error)
	Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *LotRequest) (*model.StorageLot, error)
	Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error
	Available(ctx context.Context, scope session.Scope, required decimal.Decimal) ([]model.StorageLot, error)
	Utilization(ctx context.Context, scope session.Scope) ([]ledger.LotUtilization, error)
	UpdateLotOccupancy(ctx context.Context, scope session.Scope, lotID uuid.UUID, delta decimal.Decimal) (*model.StorageLot, error)
}

// occupancyWriter is the only code path that changes current_occupancy.
// Callers hold the lot's lock key and run it inside their transaction.
type occupancyWriter struct {
	lots     repository.StorageLotRepository
	nearFull float64
}

// guard, when set, re-checks the locked row before the change is applied.
func (w occupancyWriter) apply(tx *gorm.DB, warehouseID, lotID uuid.UUID, delta decimal.Decimal, updatedBy string, guard func(*model.StorageLot) error) (*model.StorageLot, error) {
	lot, err := w.lots.LockByID(tx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.WarehouseID != warehouseID || !lot.IsActive {
		return nil, ErrLotNotFound
	}
	if guard != nil {
		if err := guard(lot); err != nil {
			return nil, err
		}
	}
	if err := ledger.ApplyOccupancy(lot, delta, w.nearFull); err != nil {
		return nil, err
	}
	if err := w.lots.SetOccupancy(tx, lot, updatedBy); err != nil {
		return nil, err
	}
	return lot, nil
}

type storageService struct {
	deps
	lots      repository.StorageLotRepository
	occupancy occupancyWriter
}

func NewStorageService(lots repository.StorageLotRepository, db *gorm.DB, c *cache.Cache, locker lock.Locker, notifier Notifier, opts Options) StorageService {
	d := newDeps(db, c, locker, notifier, opts)
	return &storageService{
		deps:      d,
		lots:      lots,
		occupancy: occupancyWriter{lots: lots, nearFull: d.opts.NearFullThreshold},
	}
}

func (s *storageService) List(ctx context.Context, scope session.Scope) ([]model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	lots, err := cache.Query(ctx, s.cache, cache.NewKey(cache.StorageLots, wh, cache.ViewList), func(ctx context.Context) ([]model.StorageLot, error) {
		return s.lots.FindAll(ctx, wh)
	})
	return lots, s.storeErr(ctx, storageModule, "List", err, "failed to fetch storage lots")
}

func (s *storageService) Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	lot, err := cache.Query(ctx, s.cache, cache.NewKey(cache.StorageLots, wh, cache.ViewDetail, id.String()), func(ctx context.Context) (*model.StorageLot, error) {
		return s.lots.FindByID(ctx, wh, id)
	})
	return lot, s.storeErr(ctx, storageModule, "Get", err, "storage lot not found")
}

func (s *storageService) Create(ctx context.Context, scope session.Scope, req *LotRequest) (*model.StorageLot, error) {
	lots, err := s.CreateMany(ctx, scope, []LotRequest{*req})
	if err != nil {
		return nil, err
	}
	return &lots[0], nil
}

func (s *storageService) CreateMany(ctx context.Context, scope session.Scope, reqs []LotRequest) ([]model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, apperror.Validation("at least one storage lot is required")
	}
	lots := make([]model.StorageLot, len(reqs))
	for i := range reqs {
		if err := reqs[i].check(); err != nil {
			return nil, err
		}
		lot := model.StorageLot{WarehouseID: wh, LotStatus: model.LotActive, IsActive: true}
		reqs[i].apply(&lot)
		lot.CurrentOccupancy = decimal.Zero
		lot.CreatedBy = scope.Actor()
		lot.UpdatedBy = scope.Actor()
		lots[i] = lot
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.lots.CreateMany(ctx, lots); err != nil {
		return nil, s.storeErr(ctx, storageModule, "CreateMany", err, "failed to create storage lots")
	}
	s.cache.Invalidate(ctx, cache.OpLotChanged, wh)
	s.publish("storage_lot_created", wh, map[string]any{"count": len(lots), "user": scope.Actor()})
	return lots, nil
}

func (s *storageService) Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *LotRequest) (*model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	release, err := s.locker.Acquire(ctx, lock.LotKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *model.StorageLot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lots := s.lots.WithTx(tx)
		lot, err := lots.LockByID(tx, id)
		if err != nil {
			return err
		}
		if lot.WarehouseID != wh || !lot.IsActive {
			return ErrLotNotFound
		}
		capacity := lot.Capacity
		req.apply(lot)
		if !lot.Capacity.Equal(capacity) {
			ledger.RefreshStatus(lot, s.opts.NearFullThreshold)
		}
		if lot.Capacity.LessThan(lot.CurrentOccupancy.Add(lot.ReservedCapacity)) {
			return ErrCapacityBelowUse
		}
		lot.UpdatedBy = scope.Actor()
		if err := lots.Update(ctx, lot); err != nil {
			return err
		}
		updated = lot
		return nil
	})
	if err != nil {
		return nil, s.storeErr(ctx, storageModule, "Update", err, "failed to update storage lot")
	}
	s.cache.Invalidate(ctx, cache.OpLotChanged, wh)
	return updated, nil
}

// Delete retires an empty lot. Transactions keep pointing at it for history.
func (s *storageService) Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return err
	}
	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	release, err := s.locker.Acquire(ctx, lock.LotKey(id))
	if err != nil {
		return err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lots := s.lots.WithTx(tx)
		lot, err := lots.LockByID(tx, id)
		if apperror.IsKind(apperror.FromDB(err, ""), apperror.KindNotFound) {
			return ErrLotNotFound
		}
		if err != nil {
			return err
		}
		if lot.WarehouseID != wh || !lot.IsActive {
			return ErrLotNotFound
		}
		if lot.CurrentOccupancy.IsPositive() || lot.ReservedCapacity.IsPositive() {
			return ErrLotInUse
		}
		ok, err := lots.SoftDelete(ctx, wh, id, scope.Actor())
		if err != nil {
			return err
		}
		if !ok {
			return ErrLotNotFound
		}
		return nil
	})
	if err != nil {
		return s.storeErr(ctx, storageModule, "Delete", err, "failed to delete storage lot")
	}
	s.cache.Invalidate(ctx, cache.OpLotChanged, wh)
	return nil
}

func (s *storageService) Available(ctx context.Context, scope session.Scope, required decimal.Decimal) ([]model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if required.IsNegative() {
		required = decimal.Zero
	}
	key := cache.NewKey(cache.StorageLots, wh, cache.ViewAvailable, required.String())
	lots, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]model.StorageLot, error) {
		return s.lots.FindAvailable(ctx, wh, required)
	})
	return lots, s.storeErr(ctx, storageModule, "Available", err, "failed to fetch available lots")
}

func (s *storageService) Utilization(ctx context.Context, scope session.Scope) ([]ledger.LotUtilization, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(cache.StorageLots, wh, cache.ViewUtilization)
	out, err := cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]ledger.LotUtilization, error) {
		lots, err := s.lots.FindAll(ctx, wh)
		if err != nil {
			return nil, err
		}
		today := s.opts.Now()
		views := make([]ledger.LotUtilization, len(lots))
		for i, lot := range lots {
			views[i] = ledger.Utilization(lot, today, s.opts.NearFullThreshold, s.opts.MaintenanceWindowDays)
		}
		return views, nil
	})
	return out, s.storeErr(ctx, storageModule, "Utilization", err, "failed to compute lot utilization")
}

// UpdateLotOccupancy is the corrective adjustment entry point; inflows and
// outflows reach the same writer through the transaction workflow.
func (s *storageService) UpdateLotOccupancy(ctx context.Context, scope session.Scope, lotID uuid.UUID, delta decimal.Decimal) (*model.StorageLot, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return nil, apperror.Validation("quantity change must not be zero")
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	release, err := s.locker.Acquire(ctx, lock.LotKey(lotID))
	if err != nil {
		return nil, err
	}
	defer release()

	var lot *model.StorageLot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lot, err = s.occupancy.apply(tx, wh, lotID, delta, scope.Actor(), nil)
		return err
	})
	if err != nil {
		return nil, s.storeErr(ctx, storageModule, "UpdateLotOccupancy", err, "failed to update lot occupancy")
	}
	s.cache.Invalidate(ctx, cache.OpLotChanged, wh)
	s.publish("lot_occupancy_changed", wh, map[string]any{
		"lot_id":            lot.ID,
		"current_occupancy": lot.CurrentOccupancy,
		"lot_status":        lot.LotStatus,
		"user":              scope.Actor(),
	})
	return lot, nil
}
