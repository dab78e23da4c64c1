package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // MASTER_ADMIN, ADMIN, OPERATOR
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleMasterAdmin = "MASTER_ADMIN"
	RoleAdmin       = "ADMIN"
	RoleOperator    = "OPERATOR"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleMasterAdmin,
		Name:        "Master Administrator",
		Description: "Full system access with all privileges",
	},
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Warehouse administration without user management",
	},
	{
		Code:        RoleOperator,
		Name:        "Operator",
		Description: "Day-to-day inflow, outflow and payment entry",
	},
}

// OperatorPrivileges is the set granted to the OPERATOR role.
var OperatorPrivileges = map[string]bool{
	"warehouse:view":     true,
	"customer:view":      true,
	"customer:create":    true,
	"customer:update":    true,
	"product:view":       true,
	"storage:view":       true,
	"transaction:view":   true,
	"transaction:create": true,
	"payment:view":       true,
	"payment:create":     true,
	"dashboard:view":     true,
}
