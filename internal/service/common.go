package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/ledger"
	"go-warehouse-ws/internal/lock"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/pkg/apperror"
	"go-warehouse-ws/pkg/logger"
	"go-warehouse-ws/pkg/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notifier pushes domain events to connected dashboards.
type Notifier interface {
	Publish(event string, warehouseID uuid.UUID, payload map[string]any)
}

// Options carries the runtime knobs shared by the write services.
type Options struct {
	WriteTimeout          time.Duration
	NearFullThreshold     float64
	MaintenanceWindowDays int
	Now                   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.NearFullThreshold <= 0 || o.NearFullThreshold > 1 {
		o.NearFullThreshold = ledger.DefaultNearFullThreshold
	}
	if o.MaintenanceWindowDays <= 0 {
		o.MaintenanceWindowDays = 7
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// deps bundles what every service needs besides its repositories.
type deps struct {
	db       *gorm.DB
	cache    *cache.Cache
	locker   lock.Locker
	notifier Notifier
	opts     Options
	log      *logrus.Logger
}

func newDeps(db *gorm.DB, c *cache.Cache, locker lock.Locker, notifier Notifier, opts Options) deps {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return deps{db: db, cache: c, locker: locker, notifier: notifier, opts: opts.withDefaults(), log: logger.Get()}
}

// writeContext bounds a write by the configured timeout.
func (d deps) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.opts.WriteTimeout)
}

func (d deps) publish(event string, warehouseID uuid.UUID, payload map[string]any) {
	if d.notifier == nil {
		return
	}
	d.notifier.Publish(event, warehouseID, payload)
}

// storeErr classifies a storage failure and logs anything unexpected.
func (d deps) storeErr(ctx context.Context, module, fn string, err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = apperror.Wrap(apperror.KindTimeout, message+": timed out", err)
	} else {
		err = apperror.FromDB(err, message)
	}
	if k := apperror.KindOf(err); k != apperror.KindNotFound {
		logger.LogError(d.log, module, fn, message, nil, err)
	}
	return err
}

// balances rewrites a customer's stored outstanding from their ledger. Callers
// hold the customer's lock and the locked row.
type balances struct {
	transactions repository.TransactionRepository
	payments     repository.PaymentRepository
	customers    repository.CustomerRepository
}

func (b balances) refresh(tx *gorm.DB, customer *model.Customer, lastTransaction *time.Time, actor string) error {
	txs, err := b.transactions.FindForCustomer(tx, customer.ID)
	if err != nil {
		return err
	}
	payments, err := b.payments.FindForCustomer(tx, customer.ID)
	if err != nil {
		return err
	}
	if lastTransaction == nil {
		lastTransaction = customer.LastTransactionDate
	}
	return b.customers.SetOutstanding(tx, customer.ID, ledger.Outstanding(txs, payments), lastTransaction, actor)
}

func validationError(errs []*validator.ErrorResponse) error {
	first := errs[0]
	return apperror.Validationf("Validation failed: Field '%s' failed on tag '%s'", first.FailedField, first.Tag)
}

func validate(req any) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}
	return nil
}

// uniqueReceipt returns supplied when given, otherwise PREFIX-<epoch ms>,
// suffixed until exists reports it free.
func uniqueReceipt(tx *gorm.DB, supplied, prefix string, now time.Time, exists func(*gorm.DB, string) (bool, error)) (string, error) {
	if supplied != "" {
		taken, err := exists(tx, supplied)
		if err != nil {
			return "", err
		}
		if taken {
			return "", apperror.Conflict(fmt.Sprintf("receipt number %s already exists", supplied))
		}
		return supplied, nil
	}
	base := ledger.ReceiptNumber(prefix, now)
	candidate := base
	for i := 2; ; i++ {
		taken, err := exists(tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
