package service

import (
	"context"
	"fmt"
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

const productModule = "product_service"

var (
	ErrProductNotFound     = apperror.NotFound("product not found")
	ErrProductOutOfScope   = apperror.Forbidden("product belongs to another warehouse")
	ErrGlobalCatalogDenied = apperror.Forbidden("only a master admin can change the global catalog")
)

type ProductRequest struct {
	// Global puts the product in the shared catalog instead of the selected warehouse.
	Global               bool                `json:"global"`
	WarehouseID          *uuid.UUID          `json:"warehouse_id"`
	Name                 string              `json:"name" validate:"required,max=255"`
	Code                 *string             `json:"code" validate:"omitempty,max=50"`
	Category             *string             `json:"category" validate:"omitempty,max=100"`
	Subcategory          *string             `json:"subcategory" validate:"omitempty,max=100"`
	Unit                 string              `json:"unit" validate:"omitempty,max=20"`
	WeightPerUnit        decimal.NullDecimal `json:"weight_per_unit"`
	Perishable           bool                `json:"perishable"`
	Hazardous            bool                `json:"hazardous"`
	MinimumStoragePeriod int                 `json:"minimum_storage_period" validate:"gte=0"`
}

func (r *ProductRequest) apply(p *model.Product) {
	p.Name = strings.TrimSpace(r.Name)
	p.Code = r.Code
	p.Category = r.Category
	p.Subcategory = r.Subcategory
	p.Unit = orDefault(r.Unit, "bags")
	p.WeightPerUnit = r.WeightPerUnit
	p.Perishable = r.Perishable
	p.Hazardous = r.Hazardous
	p.MinimumStoragePeriod = r.MinimumStoragePeriod
}

type ProductService interface {
	// List returns the selected warehouse's products, or the global catalog when global is set.
	List(ctx context.Context, scope session.Scope, global bool) ([]model.Product, error)
	Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Product, error)
	ListByCategory(ctx context.Context, scope session.Scope, global bool, category string) ([]model.Product, error)
	Search(ctx context.Context, scope session.Scope, global bool, query string) ([]model.Product, error)
	Create(ctx context.Context, scope session.Scope, req *ProductRequest) (*model.Product, error)
	Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *ProductRequest) (*model.Product, error)
	Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error
}

type productService struct {
	deps
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository, db *gorm.DB, c *cache.Cache, notifier Notifier, opts Options) ProductService {
	return &productService{deps: newDeps(db, c, nil, notifier, opts), products: products}
}

// target resolves which catalog a call addresses: nil is the global one.
func (s *productService) target(scope session.Scope, global bool) (*uuid.UUID, error) {
	if global {
		return nil, nil
	}
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func catalogKey(wh *uuid.UUID, view string, parts ...string) cache.Key {
	if wh == nil {
		return cache.GlobalKey(cache.Products, view, parts...)
	}
	return cache.NewKey(cache.Products, *wh, view, parts...)
}

func catalogID(wh *uuid.UUID) uuid.UUID {
	if wh == nil {
		return uuid.Nil
	}
	return *wh
}

func (s *productService) List(ctx context.Context, scope session.Scope, global bool) ([]model.Product, error) {
	wh, err := s.target(scope, global)
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, catalogKey(wh, cache.ViewList), func(ctx context.Context) ([]model.Product, error) {
		return s.products.FindAll(ctx, wh)
	})
	return out, s.storeErr(ctx, productModule, "List", err, "failed to fetch products")
}

func (s *productService) Get(ctx context.Context, scope session.Scope, id uuid.UUID) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, productModule, "Get", err, "product not found")
	}
	if p.IsGlobal() {
		return p, nil
	}
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if *p.WarehouseID != wh {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *productService) ListByCategory(ctx context.Context, scope session.Scope, global bool, category string) ([]model.Product, error) {
	wh, err := s.target(scope, global)
	if err != nil {
		return nil, err
	}
	out, err := cache.Query(ctx, s.cache, catalogKey(wh, cache.ViewByCategory, category), func(ctx context.Context) ([]model.Product, error) {
		return s.products.FindByCategory(ctx, wh, category)
	})
	return out, s.storeErr(ctx, productModule, "ListByCategory", err, "failed to fetch products")
}

func (s *productService) Search(ctx context.Context, scope session.Scope, global bool, query string) ([]model.Product, error) {
	wh, err := s.target(scope, global)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, scope, global)
	}
	out, err := cache.Query(ctx, s.cache, catalogKey(wh, cache.ViewSearch, query), func(ctx context.Context) ([]model.Product, error) {
		return s.products.Search(ctx, query, wh)
	})
	return out, s.storeErr(ctx, productModule, "Search", err, "failed to search products")
}

func (s *productService) authorize(scope session.Scope, req *ProductRequest) (*uuid.UUID, error) {
	if req.Global {
		if scope.RoleCode != model.RoleMasterAdmin {
			return nil, ErrGlobalCatalogDenied
		}
		return nil, nil
	}
	wh, err := scope.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	if req.WarehouseID != nil && *req.WarehouseID != wh {
		return nil, ErrProductOutOfScope
	}
	return &wh, nil
}

func (s *productService) Create(ctx context.Context, scope session.Scope, req *ProductRequest) (*model.Product, error) {
	wh, err := s.authorize(scope, req)
	if err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	p := &model.Product{WarehouseID: wh, IsActive: true}
	req.apply(p)
	p.CreatedBy = scope.Actor()
	p.UpdatedBy = scope.Actor()

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.products.Create(ctx, p); err != nil {
		return nil, s.storeErr(ctx, productModule, "Create", err, "failed to create product")
	}
	s.cache.Invalidate(ctx, cache.OpProductChanged, catalogID(wh))
	s.publishProduct("product_created", scope, p)
	return p, nil
}

func (s *productService) Update(ctx context.Context, scope session.Scope, id uuid.UUID, req *ProductRequest) (*model.Product, error) {
	wh, err := s.authorize(scope, req)
	if err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, productModule, "Update", err, "product not found")
	}
	if catalogID(p.WarehouseID) != catalogID(wh) {
		return nil, ErrProductOutOfScope
	}
	req.apply(p)
	p.UpdatedBy = scope.Actor()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, s.storeErr(ctx, productModule, "Update", err, "failed to update product")
	}
	s.cache.Invalidate(ctx, cache.OpProductChanged, catalogID(wh))
	s.publishProduct("product_updated", scope, p)
	return p, nil
}

func (s *productService) Delete(ctx context.Context, scope session.Scope, id uuid.UUID) error {
	ctx, cancel := s.writeContext(ctx)
	defer cancel()
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return s.storeErr(ctx, productModule, "Delete", err, "product not found")
	}
	if _, err := s.authorize(scope, &ProductRequest{Global: p.IsGlobal(), WarehouseID: p.WarehouseID}); err != nil {
		return err
	}
	ok, err := s.products.SoftDelete(ctx, p.WarehouseID, id, scope.Actor())
	if err != nil {
		return s.storeErr(ctx, productModule, "Delete", err, "failed to delete product")
	}
	if !ok {
		return ErrProductNotFound
	}
	s.cache.Invalidate(ctx, cache.OpProductChanged, catalogID(p.WarehouseID))
	return nil
}

func (s *productService) publishProduct(action string, scope session.Scope, p *model.Product) {
	s.publish(action, catalogID(p.WarehouseID), map[string]any{
		"type":   "product_update",
		"action": action,
		"product": map[string]any{
			"id":       p.ID,
			"name":     p.Name,
			"code":     p.Code,
			"category": p.Category,
		},
		"user": map[string]any{
			"id":    scope.UserID,
			"name":  scope.FullName,
			"email": scope.Email,
		},
		"message": fmt.Sprintf("%s saved product '%s'", scope.Actor(), p.Name),
	})
}
