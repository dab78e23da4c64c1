package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "customer:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Create Customer"
}

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: "user:view", Name: "View User"},
	{Code: "user:create", Name: "Create User"},
	{Code: "user:update", Name: "Update User"},
	{Code: "user:delete", Name: "Delete User"},
	{Code: "user:update_privilege", Name: "Update User Privileges"},
	// Warehouse management
	{Code: "warehouse:view", Name: "View Warehouse"},
	{Code: "warehouse:create", Name: "Create Warehouse"},
	{Code: "warehouse:update", Name: "Update Warehouse"},
	{Code: "warehouse:delete", Name: "Delete Warehouse"},
	// Customer management
	{Code: "customer:view", Name: "View Customer"},
	{Code: "customer:create", Name: "Create Customer"},
	{Code: "customer:update", Name: "Update Customer"},
	{Code: "customer:delete", Name: "Delete Customer"},
	// Product catalog
	{Code: "product:view", Name: "View Product"},
	{Code: "product:create", Name: "Create Product"},
	{Code: "product:update", Name: "Update Product"},
	{Code: "product:delete", Name: "Delete Product"},
	// Storage lots
	{Code: "storage:view", Name: "View Storage Lot"},
	{Code: "storage:create", Name: "Create Storage Lot"},
	{Code: "storage:update", Name: "Update Storage Lot"},
	{Code: "storage:delete", Name: "Delete Storage Lot"},
	{Code: "storage:adjust", Name: "Adjust Lot Occupancy"},
	// Transactions
	{Code: "transaction:view", Name: "View Transaction"},
	{Code: "transaction:create", Name: "Create Transaction"},
	{Code: "transaction:update", Name: "Update Transaction Status"},
	// Payments
	{Code: "payment:view", Name: "View Payment"},
	{Code: "payment:create", Name: "Create Payment"},
	{Code: "payment:update", Name: "Update Payment Status"},
	// Dashboard & reports
	{Code: "dashboard:view", Name: "View Dashboard"},
	{Code: "report:view", Name: "View Reports"},
}

// AdminExcludedPrivileges are withheld from the ADMIN role.
var AdminExcludedPrivileges = map[string]bool{
	"user:create":           true,
	"user:update":           true,
	"user:delete":           true,
	"user:update_privilege": true,
	"warehouse:create":      true,
	"warehouse:delete":      true,
	"storage:adjust":        true,
}
