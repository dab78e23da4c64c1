package service

import (
	"context"
	"testing"

	"go-warehouse-ws/internal/model"
	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
)

func TestCustomerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.customers.Create(ctx, f.scope, &CustomerRequest{
		CustomerName:  "  Kisan Mandi  ",
		CustomerPhone: "98765 43210",
		CustomerType:  model.CustomerTypeBusiness,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.CustomerName != "Kisan Mandi" || c.CustomerPhone != "+919876543210" {
		t.Fatalf("expected trimmed name and E.164 phone, got %q %q", c.CustomerName, c.CustomerPhone)
	}
	if c.CustomerStatus != model.CustomerStatusActive || c.PaymentTerms != model.PaymentTermsImmediate {
		t.Fatalf("expected defaults, got status %s terms %s", c.CustomerStatus, c.PaymentTerms)
	}

	found, err := f.customers.Search(ctx, f.scope, "kisan")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0].ID != c.ID {
		t.Fatalf("expected case-insensitive match, got %d results", len(found))
	}

	if err := f.customers.Delete(ctx, f.scope, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err := f.customers.List(ctx, f.scope)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected deleted customer to be hidden, got %d", len(list))
	}
	if err := f.customers.Delete(ctx, f.scope, c.ID); err != ErrCustomerNotFound {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerRequestChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	elsewhere := uuid.New()

	cases := []struct {
		name string
		req  CustomerRequest
		kind apperror.Kind
	}{
		{"missing name", CustomerRequest{CustomerPhone: "9876543210"}, apperror.KindValidation},
		{"bad phone", CustomerRequest{CustomerName: "X", CustomerPhone: "12"}, apperror.KindValidation},
		{"bad type", CustomerRequest{CustomerName: "X", CustomerPhone: "9876543210", CustomerType: "alien"}, apperror.KindValidation},
		{"negative credit", CustomerRequest{CustomerName: "X", CustomerPhone: "9876543210", CreditLimit: dec("-1")}, apperror.KindValidation},
		{"other warehouse", CustomerRequest{WarehouseID: &elsewhere, CustomerName: "X", CustomerPhone: "9876543210"}, apperror.KindForbidden},
	}
	for _, tc := range cases {
		req := tc.req
		if _, err := f.customers.Create(ctx, f.scope, &req); !apperror.IsKind(err, tc.kind) {
			t.Fatalf("%s: expected %s error, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestGlobalCatalogNeedsMasterAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.products.Create(ctx, f.scope, &ProductRequest{Global: true, Name: "Potato"}); err != ErrGlobalCatalogDenied {
		t.Fatalf("expected ErrGlobalCatalogDenied for an admin, got %v", err)
	}

	master := f.scope
	master.RoleCode = model.RoleMasterAdmin
	master.Warehouse = nil
	global, err := f.products.Create(ctx, master, &ProductRequest{Global: true, Name: "Potato"})
	if err != nil {
		t.Fatalf("global Create: %v", err)
	}
	if !global.IsGlobal() || global.Unit != "bags" {
		t.Fatalf("unexpected global product %+v", global)
	}

	local, err := f.products.Create(ctx, f.scope, &ProductRequest{Name: "Onion"})
	if err != nil {
		t.Fatalf("local Create: %v", err)
	}

	globals, err := f.products.List(ctx, f.scope, true)
	if err != nil {
		t.Fatalf("List global: %v", err)
	}
	if len(globals) != 1 || globals[0].ID != global.ID {
		t.Fatalf("expected only the global product, got %d", len(globals))
	}
	locals, err := f.products.List(ctx, f.scope, false)
	if err != nil {
		t.Fatalf("List local: %v", err)
	}
	if len(locals) != 1 || locals[0].ID != local.ID {
		t.Fatalf("expected only the warehouse product, got %d", len(locals))
	}

	if err := f.products.Delete(ctx, f.scope, global.ID); err != ErrGlobalCatalogDenied {
		t.Fatalf("expected admin delete of a global product to be denied, got %v", err)
	}

	// a global product can be stocked in any warehouse
	customer := f.addCustomer(t, "Stocker")
	if _, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{CustomerID: customer.ID, ProductID: &global.ID, ItemQuantity: dec("3")}); err != nil {
		t.Fatalf("inflow with global product: %v", err)
	}

	other := f.addWarehouse(t, "North", "NORTH")
	foreign, err := f.products.Create(ctx, scopeFor(other), &ProductRequest{Name: "Garlic"})
	if err != nil {
		t.Fatalf("foreign Create: %v", err)
	}
	if _, err := f.transactions.CreateInflow(ctx, f.scope, &InflowInput{CustomerID: customer.ID, ProductID: &foreign.ID, ItemQuantity: dec("3")}); err != ErrProductNotInScope {
		t.Fatalf("expected ErrProductNotInScope, got %v", err)
	}
}
