package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LotStatus string

const (
	LotActive      LotStatus = "active"
	LotFull        LotStatus = "full"
	LotMaintenance LotStatus = "maintenance"
	LotInactive    LotStatus = "inactive"
)

type StorageLot struct {
	BaseModel
	WarehouseID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	LotName             string          `gorm:"type:varchar(100);not null" json:"lot_name" validate:"required"`
	Capacity            decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"capacity"`
	CurrentOccupancy    decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"current_occupancy"`
	ReservedCapacity    decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"reserved_capacity"`
	LotType             string          `gorm:"type:varchar(30);default:'standard'" json:"lot_type"`
	RateMultiplier      decimal.Decimal `gorm:"type:decimal(6,3);not null;default:1" json:"rate_multiplier"`
	LotStatus           LotStatus       `gorm:"type:varchar(20);not null;default:'active'" json:"lot_status"`
	LotDescription      *string         `gorm:"type:text" json:"lot_description,omitempty"`
	LotSettings         JSONMap         `gorm:"type:text" json:"lot_settings,omitempty"`
	LastMaintenanceDate *time.Time      `gorm:"type:date" json:"last_maintenance_date,omitempty"`
	NextMaintenanceDate *time.Time      `gorm:"type:date" json:"next_maintenance_date,omitempty"`
	IsActive            bool            `gorm:"default:true" json:"is_active"`
}

// Available is the capacity that can still be claimed by a new inflow.
func (l *StorageLot) Available() decimal.Decimal {
	return l.Capacity.Sub(l.CurrentOccupancy).Sub(l.ReservedCapacity)
}
