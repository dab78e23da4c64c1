package service

import (
	"context"
	"strings"

	"go-warehouse-ws/internal/cache"
	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/internal/repository"
	"go-warehouse-ws/internal/session"
	"go-warehouse-ws/pkg/apperror"
	"go-warehouse-ws/pkg/format"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const customerModule = "customer_service"

var (
	ErrCustomerNotFound      = apperror.NotFound("customer not found")
	ErrCustomerOutOfScope    = apperror.Forbidden("customer belongs to another warehouse")
	ErrInvalidCustomerStatus = apperror.Validation("invalid customer status")
	ErrInvalidCustomerType   = apperror.Validation("invalid customer type")
	ErrNegativeCreditLimit   = apperror.Validation("credit limit cannot be negative")
)

type CustomerRequest struct {
	WarehouseID     *uuid.UUID      `json:"warehouse_id"`
	CustomerName    string          `json:"customer_name" validate:"required,max=255"`
	CustomerPhone   string          `json:"customer_phone" validate:"required,in_phone"`
	CustomerEmail   *string         `json:"customer_email" validate:"omitempty,email"`
	CustomerAddress model.JSONMap   `json:"customer_address"`
	BusinessName    *string         `json:"business_name" validate:"omitempty,max=255"`
	GSTNumber       *string         `json:"gst_number" validate:"omitempty,max=20"`
	PANNumber       *string         `json:"pan_number" validate:"omitempty,max=20"`
	CustomerType    string          `json:"customer_type"`
	CustomerStatus  string          `json:"customer_status"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	PaymentTerms    string          `json:"payment_terms"`
	Notes           *string         `json:"notes"`
}

func (r *CustomerRequest) check(wh uuid.UUID) error {
	if r.WarehouseID != nil && *r.WarehouseID != wh {
		return ErrCustomerOutOfScope
	}
	if err := validate(r); err != nil {
		return err
	}
	switch r.CustomerType {
	case "", model.CustomerTypeIndividual, model.CustomerTypeBusiness:
	default:
		return ErrInvalidCustomerType
	}
	switch r.CustomerStatus {
	case "", model.CustomerStatusActive, model.CustomerStatusInactive, model.CustomerStatusBlocked:
	default:
		return ErrInvalidCustomerStatus
	}
	if r.CreditLimit.IsNegative() {
		return ErrNegativeCreditLimit
	}
	return nil
}

func (r *CustomerRequest) apply(c *model.Customer) error {
	phone, err := format.NormalizePhone(r.CustomerPhone, format.DefaultRegion)
	if err != nil {
		return apperror.Validation("customer phone number is not valid")
	}
	c.CustomerName = strings.TrimSpace(r.CustomerName)
	c.CustomerPhone = phone
	c.CustomerEmail = r.CustomerEmail
	c.CustomerAddress = r.CustomerAddress
	c.BusinessName = r.BusinessName
	c.GSTNumber = r.GSTNumber
	c.PANNumber = r.PANNumber
	c.CustomerType = orDefault(r.CustomerType, model.CustomerTypeIndividual)
	c.CustomerStatus = orDefault(r.CustomerStatus, model.CustomerStatusActive)
	c.CreditLimit = r.CreditLimit
	c.PaymentTerms = orDefault(r.PaymentTerms, model.PaymentTermsImmediate)
	c.Notes = r.Notes
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type CustomerService interface {
	List(ctx context.Context, scope session.Scope) ([]model.Customer, error)
	Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Customer, error)
	Search(ctx context.Context, scope session.Scope, query string) ([]model.Customer, error)
	ListByStatus(ctx context.Context, scope session.Scope, status string) ([]model.Customer, error)
	ListOutstanding(ctx context.Context, scope session.Scope) ([]model.Customer, error)
	Create(ctx context.Context, scope session.Scope, req *CustomerRequest) (*model.Customer, error)
	Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *CustomerRequest) (*model.Customer, error)
	Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error
}

type customerService struct {
	deps
	customers repository.CustomerRepository
}

func NewCustomerService(customers repository.CustomerRepository, db *gorm.DB, c *cache.Cache, notifier Notifier, opts Options) CustomerService {
	return &customerService{deps: newDeps(db, c, nil, notifier, opts), customers: customers}
}

func (s *customerService) List(ctx context.Context, scope session.Scope) ([]model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Customers, wh, cache.ViewList), func(ctx context.Context) ([]model.Customer, error) {
		return s.customers.FindAll(ctx, wh)
	})
	return out, s.storeErr(ctx, customerModule, "List", err, "failed to fetch customers")
}

func (s *customerService) Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	c, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Customers, wh, cache.ViewDetail, id.String()), func(ctx context.Context) (*model.Customer, error) {
		return s.customers.FindByID(ctx, wh, id)
	})
	return c, s.storeErr(ctx, customerModule, "Get", err, "customer not found")
}

func (s *customerService) Search(ctx context.Context, scope session.Scope, query string) ([]model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, scope)
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Customers, wh, cache.ViewSearch, query), func(ctx context.Context) ([]model.Customer, error) {
		return s.customers.Search(ctx, wh, query)
	})
	return out, s.storeErr(ctx, customerModule, "Search", err, "failed to search customers")
}

func (s *customerService) ListByStatus(ctx context.Context, scope session.Scope, status string) ([]model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Customers, wh, cache.ViewByStatus, status), func(ctx context.Context) ([]model.Customer, error) {
		return s.customers.FindByStatus(ctx, wh, status)
	})
	return out, s.storeErr(ctx, customerModule, "ListByStatus", err, "failed to fetch customers")
}

func (s *customerService) ListOutstanding(ctx context.Context, scope session.Scope) ([]model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, cache.NewKey(cache.Customers, wh, cache.ViewOutstanding), func(ctx context.Context) ([]model.Customer, error) {
		return s.customers.FindOutstanding(ctx, wh)
	})
	return out, s.storeErr(ctx, customerModule, "ListOutstanding", err, "failed to fetch outstanding customers")
}

func (s *customerService) Create(ctx context.Context, scope session.Scope, req *CustomerRequest) (*model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := req.check(wh); err != nil {
		return nil, err
	}
	c := &model.Customer{WarehouseID: wh, IsActive: true, CurrentOutstanding: decimal.Zero}
	if err := req.apply(c); err != nil {
		return nil, err
	}
	c.CreatedBy = scope.Actor()
	c.UpdatedBy = scope.Actor()

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, s.storeErr(ctx, customerModule, "Create", err, "failed to create customer")
	}
	s.cache.Invalidate(ctx, cache.OpCustomerChanged, wh)
	s.publish("customer_created", wh, map[string]any{
		"type":     "customer_update",
		"action":   "customer_created",
		"customer": map[string]any{"id": c.ID, "customer_name": c.CustomerName},
		"user":     scope.Actor(),
	})
	return c, nil
}

func (s *customerService) Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *CustomerRequest) (*model.Customer, error) {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if err := req.check(wh); err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	c, err := s.customers.FindByID(ctx, wh, id)
	if err != nil {
		return nil, s.storeErr(ctx, customerModule, "Update", err, "customer not found")
	}
	if err := req.apply(c); err != nil {
		return nil, err
	}
	c.UpdatedBy = scope.Actor()
	if err := s.customers.Update(ctx, c); err != nil {
		return nil, s.storeErr(ctx, customerModule, "Update", err, "failed to update customer")
	}
	s.cache.Invalidate(ctx, cache.OpCustomerChanged, wh)
	return c, nil
}

func (s *customerService) Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error {
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return err
	}
	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	ok, err := s.customers.SoftDelete(ctx, wh, id, scope.Actor())
	if err != nil {
		return s.storeErr(ctx, customerModule, "Delete", err, "failed to delete customer")
	}
	if !ok {
		return ErrCustomerNotFound
	}
	s.cache.Invalidate(ctx, cache.OpCustomerChanged, wh)
	return nil
}
