package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// newTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every query on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type publishedEvent struct {
	Event     string
	Warehouse uuid.UUID
	Payload   map[string]any
}

// recorder is a Notifier that keeps what was published.
type recorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recorder) Publish(event string, warehouseID uuid.UUID, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Event: event, Warehouse: warehouseID, Payload: payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	cache     *cache.Cache
	locker    lock.Locker
	notifier  *recorder
	opts      Options
	warehouse *model.Warehouse
	scope     session.Scope

	warehouseRepo   repository.WarehouseRepository
	customerRepo    repository.CustomerRepository
	productRepo     repository.ProductRepository
	lotRepo         repository.StorageLotRepository
	transactionRepo repository.TransactionRepository
	paymentRepo     repository.PaymentRepository

	storage      StorageService
	transactions TransactionService
	payments     PaymentService
	customers    CustomerService
	products     ProductService
	dashboard    DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:       newTestDB(t),
		cache:    cache.New(nil),
		locker:   lock.NewLocalLocker(),
		notifier: &recorder{},
		opts:     Options{WriteTimeout: 5 * time.Second, Now: func() time.Time { return testNow }},
	}
	f.warehouseRepo = repository.NewWarehouseRepo(f.db)
	f.customerRepo = repository.NewCustomerRepo(f.db)
	f.productRepo = repository.NewProductRepo(f.db)
	f.lotRepo = repository.NewStorageLotRepo(f.db)
	f.transactionRepo = repository.NewTransactionRepo(f.db)
	f.paymentRepo = repository.NewPaymentRepo(f.db)
	f.warehouse = f.addWarehouse(t, "Main Warehouse", model.DefaultWarehouseCode)
	f.scope = scopeFor(f.warehouse)
	f.build()
	return f
}

// build (re)creates the services from the fixture's current settings.
func (f *fixture) build() {
	f.storage = NewStorageService(f.lotRepo, f.db, f.cache, f.locker, f.notifier, f.opts)
	f.transactions = NewTransactionService(f.transactionRepo, f.paymentRepo, f.customerRepo, f.productRepo, f.lotRepo, f.db, f.cache, f.locker, f.notifier, f.opts)
	f.payments = NewPaymentService(f.paymentRepo, f.transactionRepo, f.customerRepo, f.db, f.cache, f.locker, f.notifier, f.opts)
	f.customers = NewCustomerService(f.customerRepo, f.db, f.cache, f.notifier, f.opts)
	f.products = NewProductService(f.productRepo, f.db, f.cache, f.notifier, f.opts)
	f.dashboard = NewDashboardService(f.transactionRepo, f.lotRepo, f.customerRepo, f.warehouseRepo, f.db, f.cache, f.opts)
}

func scopeFor(w *model.Warehouse) session.Scope {
	return session.Scope{
		UserID:   uuid.New(),
		Email:    "operator@example.com",
		FullName: "Test Operator",
		RoleCode: model.RoleAdmin,
		Warehouse: &session.Warehouse{
			ID:   w.ID,
			Name: w.WarehouseName,
			Code: w.WarehouseCode,
		},
	}
}

func (f *fixture) addWarehouse(t *testing.T, name, code string) *model.Warehouse {
	t.Helper()
	w := &model.Warehouse{WarehouseName: name, WarehouseCode: code, Currency: "INR", Timezone: "Asia/Kolkata", IsActive: true}
	if err := f.warehouseRepo.Create(context.Background(), w); err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	return w
}

func (f *fixture) addCustomer(t *testing.T, name string) *model.Customer {
	t.Helper()
	c := &model.Customer{
		WarehouseID:    f.warehouse.ID,
		CustomerName:   name,
		CustomerPhone:  "+919876543210",
		CustomerType:   "individual",
		CustomerStatus: "active",
		PaymentTerms:   "immediate",
		IsActive:       true,
	}
	if err := f.customerRepo.Create(context.Background(), c); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f *fixture) addLot(t *testing.T, name string, capacity, occupancy int64) *model.StorageLot {
	t.Helper()
	lot := &model.StorageLot{
		WarehouseID:      f.warehouse.ID,
		LotName:          name,
		Capacity:         decimal.NewFromInt(capacity),
		CurrentOccupancy: decimal.NewFromInt(occupancy),
		LotType:          "standard",
		RateMultiplier:   decimal.NewFromInt(1),
		LotStatus:        model.LotActive,
		IsActive:         true,
	}
	if err := f.lotRepo.Create(context.Background(), lot); err != nil {
		t.Fatalf("create lot: %v", err)
	}
	return lot
}

func (f *fixture) lot(t *testing.T, id uuid.UUID) *model.StorageLot {
	t.Helper()
	lot, err := f.lotRepo.FindByID(context.Background(), f.warehouse.ID, id)
	if err != nil {
		t.Fatalf("reload lot: %v", err)
	}
	return lot
}

func (f *fixture) customer(t *testing.T, id uuid.UUID) *model.Customer {
	t.Helper()
	c, err := f.customerRepo.FindByID(context.Background(), f.warehouse.ID, id)
	if err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	return c
}

func (f *fixture) transaction(t *testing.T, id uuid.UUID) *model.Transaction {
	t.Helper()
	tx, err := f.transactionRepo.FindByID(context.Background(), f.warehouse.ID, id)
	if err != nil {
		t.Fatalf("reload transaction: %v", err)
	}
	return tx
}

// inflow records qty into lot for customer with the given base amount.
func (f *fixture) inflow(t *testing.T, customerID, lotID uuid.UUID, qty, base int64) *model.Transaction {
	t.Helper()
	tx, err := f.transactions.CreateInflow(context.Background(), f.scope, &InflowInput{
		CustomerID:   customerID,
		StorageLotID: &lotID,
		ItemQuantity: decimal.NewFromInt(qty),
		BaseAmount:   decimal.NewFromInt(base),
	})
	if err != nil {
		t.Fatalf("CreateInflow(%d): %v", qty, err)
	}
	return tx
}

// outflow draws qty from parent for customer with no charges.
func (f *fixture) outflow(t *testing.T, customerID, parentID uuid.UUID, qty int64) *model.Transaction {
	t.Helper()
	tx, err := f.transactions.CreateOutflow(context.Background(), f.scope, &OutflowInput{
		CustomerID:          customerID,
		ParentTransactionID: &parentID,
		ItemQuantity:        decimal.NewFromInt(qty),
	})
	if err != nil {
		t.Fatalf("CreateOutflow(%d): %v", qty, err)
	}
	return tx
}

// assertBalanced checks that the customer's stored outstanding equals the one
// recomputed from their transactions and payments.
func (f *fixture) assertBalanced(t *testing.T, customerID uuid.UUID, want string) {
	t.Helper()
	report, err := f.transactions.RecomputeOutstanding(context.Background(), f.warehouse.ID, customerID, false)
	if err != nil {
		t.Fatalf("RecomputeOutstanding: %v", err)
	}
	if !report.Drift.IsZero() {
		t.Fatalf("stored outstanding drifted from ledger: stored=%s computed=%s", report.Stored, report.Computed)
	}
	assertDecimal(t, "outstanding", report.Stored, dec(want))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, what string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: expected %s, got %s", what, want, got)
	}
}
