package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

const DefaultWarehouseCode = "DEFAULT"

// WarehouseCapacity is the capacity descriptor stored as JSON.
type WarehouseCapacity struct {
	TotalCapacity decimal.Decimal `json:"total_capacity"`
	Unit          string          `json:"unit,omitempty"`
}

func (c WarehouseCapacity) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *WarehouseCapacity) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*c = WarehouseCapacity{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return errors.New("WarehouseCapacity: unsupported scan type")
}

type Warehouse struct {
	BaseModel
	WarehouseName      string            `gorm:"type:varchar(255);not null" json:"warehouse_name" validate:"required"`
	WarehouseCode      string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"warehouse_code" validate:"required"`
	WarehouseInitials  string            `gorm:"type:varchar(10)" json:"warehouse_initials,omitempty"`
	WarehouseAddress   JSONMap           `gorm:"type:text" json:"warehouse_address"`
	WarehouseContact   JSONMap           `gorm:"type:text" json:"warehouse_contact"`
	WarehouseCapacity  WarehouseCapacity `gorm:"type:text" json:"warehouse_capacity"`
	DefaultStorageRate decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0" json:"default_storage_rate"`
	DefaultLaborRate   decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0" json:"default_labor_rate"`
	Timezone           string            `gorm:"type:varchar(50);default:'Asia/Kolkata'" json:"timezone"`
	Currency           string            `gorm:"type:varchar(3);default:'INR'" json:"currency"`
	GSTNumber          string            `gorm:"type:varchar(20)" json:"gst_number,omitempty"`
	IsActive           bool              `gorm:"default:true" json:"is_active"`
}
