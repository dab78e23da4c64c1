package cache

import "github.com/google/uuid"

// Op is a write that makes cached reads stale.
type Op string

const (
	OpCustomerChanged   Op = "customer_changed"
	OpProductChanged    Op = "product_changed"
	OpLotChanged        Op = "lot_changed"
	OpWarehouseChanged  Op = "warehouse_changed"
	OpInflowCreated     Op = "inflow_created"
	OpOutflowCreated    Op = "outflow_created"
	OpPaymentCreated    Op = "payment_created"
	OpTransactionStatus Op = "transaction_status_changed"
	OpPaymentStatus     Op = "payment_status_changed"
)

var invalidationTable = map[Op][]Entity{
	OpCustomerChanged:   {Customers},
	OpProductChanged:    {Products},
	OpLotChanged:        {StorageLots, Dashboard},
	OpWarehouseChanged:  {Warehouses, Dashboard},
	OpInflowCreated:     {Transactions, StorageLots, Products, Customers, Payments, Dashboard},
	OpOutflowCreated:    {Transactions, StorageLots, Products, Customers, Payments, Dashboard},
	OpPaymentCreated:    {Payments, Customers, Transactions, Dashboard},
	OpTransactionStatus: {Transactions, StorageLots, Products, Customers, Payments, Dashboard},
	OpPaymentStatus:     {Payments, Customers, Transactions, Dashboard},
}

// Targets lists the entities op invalidates.
func Targets(op Op) []Entity {
	return invalidationTable[op]
}

// Prefixes lists the key prefixes op invalidates for a warehouse. Products and
// warehouses also have unscoped keys which are cleared alongside.
func Prefixes(op Op, warehouseID uuid.UUID) []string {
	scope := scopeOf(warehouseID)
	var out []string
	for _, entity := range Targets(op) {
		out = append(out, Prefix(entity, scope))
		if (entity == Products || entity == Warehouses) && scope != GlobalScope {
			out = append(out, Prefix(entity, GlobalScope))
		}
	}
	return out
}
