// Command recompute-outstanding compares every customer's stored outstanding
// balance with the one derived from their transactions and payments, and
// optionally writes the derived value back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/service"
	"go-warehouse-ws/pkg/config"
	"go-warehouse-ws/pkg/database"
	"go-warehouse-ws/pkg/format"
	applog "go-warehouse-ws/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	warehouseFlag := flag.String("warehouse", "", "warehouse id or code (default: DEFAULT)")
	repair := flag.Bool("repair", false, "write recomputed balances back")
	flag.Parse()

	cfg := config.Load()
	log := applog.Configure(cfg.Logger.Level, cfg.Logger.Format)

	db, err := database.ConnectDB(cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	ctx := context.Background()

	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using local locks")
		rdb = nil
	}
	queryCache := cache.New(nil)
	locker := lock.NewLocalLocker()
	if rdb != nil {
		queryCache = cache.New(cache.NewRedisStore(rdb))
		locker = lock.NewRedisLocker(rdb)
		defer rdb.Close()
	}

	warehouses := repository.NewWarehouseRepo(db)
	warehouseID, err := resolveWarehouse(ctx, warehouses, *warehouseFlag)
	if err != nil {
		log.WithError(err).Fatal("unknown warehouse")
	}

	txService := service.NewTransactionService(
		repository.NewTransactionRepo(db),
		repository.NewPaymentRepo(db),
		repository.NewCustomerRepo(db),
		repository.NewProductRepo(db),
		repository.NewStorageLotRepo(db),
		db, queryCache, locker, nil,
		service.Options{WriteTimeout: cfg.Server.WriteTimeout},
	)

	reports, err := txService.RecomputeWarehouse(ctx, warehouseID, *repair)
	if err != nil {
		log.WithError(err).Fatal("recompute failed")
	}

	drifted := 0
	for _, r := range reports {
		if r.Drift.IsZero() {
			continue
		}
		drifted++
		fmt.Fprintf(os.Stdout, "%s\tstored=%s\tcomputed=%s\tdrift=%s\trepaired=%t\n",
			r.CustomerID, format.FormatCurrency(r.Stored), format.FormatCurrency(r.Computed), format.FormatCurrency(r.Drift), r.Repaired)
	}
	log.WithField("customers", len(reports)).WithField("drifted", drifted).WithField("repair", *repair).Info("outstanding recompute finished")
}

func resolveWarehouse(ctx context.Context, warehouses repository.WarehouseRepository, v string) (uuid.UUID, error) {
	if id, err := uuid.Parse(v); err == nil {
		return id, nil
	}
	if v == "" {
		v = model.DefaultWarehouseCode
	}
	w, err := warehouses.FindByCode(ctx, v)
	if err != nil {
		return uuid.Nil, err
	}
	return w.ID, nil
}
