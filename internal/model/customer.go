package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CustomerStatusActive     = "active"
	CustomerStatusInactive   = "inactive"
	CustomerStatusBlocked    = "blocked"
	CustomerTypeIndividual   = "individual"
	CustomerTypeBusiness     = "business"
	PaymentTermsImmediate    = "immediate"
	PaymentTermsOnWithdrawal = "on_withdrawal"
)

type Customer struct {
	BaseModel
	WarehouseID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	CustomerName        string          `gorm:"type:varchar(255);not null" json:"customer_name" validate:"required"`
	CustomerPhone       string          `gorm:"type:varchar(20);not null" json:"customer_phone" validate:"required,in_phone"`
	CustomerEmail       *string         `gorm:"type:varchar(255)" json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerAddress     JSONMap         `gorm:"type:text" json:"customer_address,omitempty"`
	BusinessName        *string         `gorm:"type:varchar(255)" json:"business_name,omitempty"`
	GSTNumber           *string         `gorm:"type:varchar(20)" json:"gst_number,omitempty"`
	PANNumber           *string         `gorm:"type:varchar(20)" json:"pan_number,omitempty"`
	CustomerType        string          `gorm:"type:varchar(20);default:'individual'" json:"customer_type"`
	CustomerStatus      string          `gorm:"type:varchar(20);default:'active';index" json:"customer_status"`
	CreditLimit         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"credit_limit"`
	CurrentOutstanding  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"current_outstanding"`
	PaymentTerms        string          `gorm:"type:varchar(30);default:'immediate'" json:"payment_terms"`
	LastTransactionDate *time.Time      `json:"last_transaction_date,omitempty"`
	Notes               *string         `gorm:"type:text" json:"notes,omitempty"`
	IsActive            bool            `gorm:"default:true" json:"is_active"`
}
