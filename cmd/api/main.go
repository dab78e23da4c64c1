package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/handler"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/middleware"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/service"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/internal/ws"
	"go-warehouse-ws/pkg/config"
	"go-warehouse-ws/pkg/database"
	"go-warehouse-ws/pkg/jwt"
	applog "go-warehouse-ws/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// 1. Load config
	cfg := config.Load()
	log := applog.Configure(cfg.Logger.Level, cfg.Logger.Format)

	// 2. Setup database
	db, err := database.ConnectDB(cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	// 3. Seed default privileges, roles, warehouse and admin user
	seed(context.Background(), db)

	// 4. Cache and locks: redis when configured, in-process otherwise
	rdb, err := database.ConnectRedis(context.Background(), cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-process cache and locks")
		rdb = nil
	}
	var (
		queryCache *cache.Cache
		locker     lock.Locker
	)
	if rdb != nil {
		queryCache = cache.New(cache.NewRedisStore(rdb))
		locker = lock.NewRedisLocker(rdb)
	} else {
		queryCache = cache.New(nil)
		locker = lock.NewLocalLocker()
	}

	// 5. Setup WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	queryCache.OnInvalidate(wsHub.CacheInvalidated)

	// 6. Dependency injection
	warehouseRepo := repository.NewWarehouseRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	productRepo := repository.NewProductRepo(db)
	lotRepo := repository.NewStorageLotRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	registry := session.NewRegistry(service.ProfileResolver{Users: userRepo, Warehouses: warehouseRepo})
	registry.Subscribe(wsHub.SessionChanged)
	tokens := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)

	opts := service.Options{
		WriteTimeout:          cfg.Server.WriteTimeout,
		NearFullThreshold:     cfg.Ledger.NearFullThreshold,
		MaintenanceWindowDays: cfg.Ledger.MaintenanceWindowDays,
	}

	authService := service.NewAuthService(userRepo, warehouseRepo, registry, tokens, wsHub, cfg.Server.IdleTimeout)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo, registry)
	warehouseService := service.NewWarehouseService(warehouseRepo, db, queryCache, wsHub, opts)
	customerService := service.NewCustomerService(customerRepo, db, queryCache, wsHub, opts)
	productService := service.NewProductService(productRepo, db, queryCache, wsHub, opts)
	storageService := service.NewStorageService(lotRepo, db, queryCache, locker, wsHub, opts)
	txService := service.NewTransactionService(txRepo, paymentRepo, customerRepo, productRepo, lotRepo, db, queryCache, locker, wsHub, opts)
	paymentService := service.NewPaymentService(paymentRepo, txRepo, customerRepo, db, queryCache, locker, wsHub, opts)
	dashService := service.NewDashboardService(txRepo, lotRepo, customerRepo, warehouseRepo, db, queryCache, opts)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleRepo, privilegeRepo)
	warehouseHandler := handler.NewWarehouseHandler(warehouseService)
	customerHandler := handler.NewCustomerHandler(customerService)
	productHandler := handler.NewProductHandler(productService)
	storageHandler := handler.NewStorageHandler(storageService)
	txHandler := handler.NewTransactionHandler(txService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	dashHandler := handler.NewDashboardHandler(dashService)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Warehouse Storage Ledger v1.0",
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// 8. Routes
	api := app.Group("/api/v1")
	requireAuth := middleware.RequireAuth(authService)
	can := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)
	auth.Post("/logout", requireAuth, authHandler.Logout)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Session
	protected.Get("/session", authHandler.Session)
	protected.Put("/session/warehouse", authHandler.SelectWarehouse)
	protected.Put("/session/profile", authHandler.UpdateProfile)

	// Dashboard & reports
	protected.Get("/dashboard/stats", can("dashboard:view"), dashHandler.GetDashboardStats)
	protected.Get("/dashboard/movement", can("dashboard:view"), dashHandler.GetMovement)
	protected.Get("/reports/revenue", can("report:view"), dashHandler.GetReport)
	protected.Get("/reports/transactions.xlsx", can("report:view"), dashHandler.ExportTransactions)

	// Warehouses
	protected.Get("/warehouses", can("warehouse:view"), warehouseHandler.GetWarehouses)
	protected.Get("/warehouses/default", warehouseHandler.GetDefault)
	protected.Get("/warehouses/:id", can("warehouse:view"), warehouseHandler.GetWarehouse)
	protected.Post("/warehouses", can("warehouse:create"), warehouseHandler.CreateWarehouse)
	protected.Put("/warehouses/:id", can("warehouse:update"), warehouseHandler.UpdateWarehouse)
	protected.Delete("/warehouses/:id", can("warehouse:delete"), warehouseHandler.DeleteWarehouse)

	// Customers
	protected.Get("/customers", can("customer:view"), customerHandler.GetCustomers)
	protected.Get("/customers/:id", can("customer:view"), customerHandler.GetCustomer)
	protected.Get("/customers/:id/transactions", can("transaction:view"), txHandler.GetCustomerTransactions)
	protected.Get("/customers/:id/payments", can("payment:view"), paymentHandler.GetCustomerPayments)
	protected.Post("/customers/:id/recompute-outstanding", can("payment:update"), txHandler.RecomputeOutstanding)
	protected.Post("/customers", can("customer:create"), customerHandler.CreateCustomer)
	protected.Put("/customers/:id", can("customer:update"), customerHandler.UpdateCustomer)
	protected.Delete("/customers/:id", can("customer:delete"), customerHandler.DeleteCustomer)

	// Products
	protected.Get("/products", can("product:view"), productHandler.GetProducts)
	protected.Get("/products/:id", can("product:view"), productHandler.GetProduct)
	protected.Post("/products", can("product:create"), productHandler.CreateProduct)
	protected.Put("/products/:id", can("product:update"), productHandler.UpdateProduct)
	protected.Delete("/products/:id", can("product:delete"), productHandler.DeleteProduct)

	// Storage lots
	protected.Get("/storage-lots", can("storage:view"), storageHandler.GetLots)
	protected.Get("/storage-lots/available", can("storage:view"), storageHandler.GetAvailable)
	protected.Get("/storage-lots/utilization", can("storage:view"), storageHandler.GetUtilization)
	protected.Get("/storage-lots/:id", can("storage:view"), storageHandler.GetLot)
	protected.Post("/storage-lots", can("storage:create"), storageHandler.CreateLots)
	protected.Put("/storage-lots/:id", can("storage:update"), storageHandler.UpdateLot)
	protected.Post("/storage-lots/:id/occupancy", can("storage:adjust"), storageHandler.AdjustOccupancy)
	protected.Delete("/storage-lots/:id", can("storage:delete"), storageHandler.DeleteLot)

	// Transactions
	protected.Get("/transactions", can("transaction:view"), txHandler.GetTransactions)
	protected.Get("/transactions/active-inflows", can("transaction:view"), txHandler.GetActiveInflows)
	protected.Get("/transactions/:id", can("transaction:view"), txHandler.GetTransaction)
	protected.Post("/transactions/inflow", can("transaction:create"), txHandler.CreateInflow)
	protected.Post("/transactions/outflow", can("transaction:create"), txHandler.CreateOutflow)
	protected.Put("/transactions/:id/status", can("transaction:update"), txHandler.UpdateStatus)

	// Payments
	protected.Get("/payments", can("payment:view"), paymentHandler.GetPayments)
	protected.Get("/payments/today", can("payment:view"), paymentHandler.GetToday)
	protected.Get("/payments/outstanding", can("payment:view"), paymentHandler.GetOutstanding)
	protected.Get("/payments/:id", can("payment:view"), paymentHandler.GetPayment)
	protected.Post("/payments", can("payment:create"), paymentHandler.CreatePayment)
	protected.Put("/payments/:id/status", can("payment:update"), paymentHandler.UpdateStatus)

	// User management
	protected.Get("/users", can("user:view"), userHandler.GetUsers)
	protected.Get("/users/:id", can("user:view"), userHandler.GetUser)
	protected.Post("/users", can("user:create"), userHandler.CreateUser)
	protected.Put("/users/:id", can("user:update"), userHandler.UpdateUser)
	protected.Delete("/users/:id", can("user:delete"), userHandler.DeleteUser)
	protected.Put("/users/:id/privileges", can("user:update_privilege"), userHandler.UpdateUserPrivileges)

	// Roles & privileges
	protected.Get("/roles", roleHandler.GetRoles)
	protected.Get("/privileges", roleHandler.GetPrivileges)

	// WebSocket route, authenticated with ?token=
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, requireAuth)
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		scope, _ := c.Locals(middleware.ScopeKey).(session.Scope)
		client := &ws.Client{Conn: c, UserID: scope.UserID}
		if scope.Warehouse != nil {
			id := scope.Warehouse.ID
			client.Warehouse = &id
		}
		wsHub.Register <- client
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 9. Graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.WithError(err).Panic("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}
	wsHub.Stop()
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server exited")
}
