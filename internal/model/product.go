package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a storable commodity. A nil WarehouseID makes it part of the global catalog.
type Product struct {
	BaseModel
	WarehouseID          *uuid.UUID          `gorm:"type:uuid;index" json:"warehouse_id"`
	Name                 string              `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Code                 *string             `gorm:"type:varchar(50)" json:"code,omitempty"`
	Category             *string             `gorm:"type:varchar(100);index" json:"category,omitempty"`
	Subcategory          *string             `gorm:"type:varchar(100)" json:"subcategory,omitempty"`
	Unit                 string              `gorm:"type:varchar(20);not null;default:'bags'" json:"unit"`
	WeightPerUnit        decimal.NullDecimal `gorm:"type:decimal(14,3)" json:"weight_per_unit"`
	Perishable           bool                `gorm:"default:false" json:"perishable"`
	Hazardous            bool                `gorm:"default:false" json:"hazardous"`
	MinimumStoragePeriod int                 `gorm:"default:0" json:"minimum_storage_period"`
	IsActive             bool                `gorm:"default:true" json:"is_active"`
}

// IsGlobal reports whether the product belongs to the shared catalog.
func (p *Product) IsGlobal() bool {
	return p.WarehouseID == nil
}
