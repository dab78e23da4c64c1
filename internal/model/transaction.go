package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxInflow  TransactionType = "inflow"
	TxOutflow TransactionType = "outflow"
)

const (
	TxStatusActive    = "active"
	TxStatusCompleted = "completed"
	TxStatusCancelled = "cancelled"
)

type PaymentState string

const (
	PaymentPending PaymentState = "pending"
	PaymentPartial PaymentState = "partial"
	PaymentPaid    PaymentState = "paid"
)

// Transaction is one goods-received (inflow) or goods-released (outflow) event.
// Rows are created only by the workflow in the service package and afterwards
// only status and verification fields change.
type Transaction struct {
	BaseModel
	WarehouseID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	CustomerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer     *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ProductID    *uuid.UUID      `gorm:"type:uuid;index" json:"product_id,omitempty"`
	Product      *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	StorageLotID *uuid.UUID      `gorm:"type:uuid;index" json:"storage_lot_id,omitempty"`
	StorageLot   *StorageLot     `gorm:"foreignKey:StorageLotID" json:"storage_lot,omitempty"`
	Type         TransactionType `gorm:"column:transaction_type;type:varchar(10);not null;index" json:"transaction_type"`

	TransactionDate     time.Time           `gorm:"not null;index" json:"transaction_date"`
	ItemQuantity        decimal.Decimal     `gorm:"type:decimal(14,3);not null" json:"item_quantity"`
	ItemUnit            string              `gorm:"type:varchar(20);not null;default:'bags'" json:"item_unit"`
	ItemWeight          decimal.NullDecimal `gorm:"type:decimal(14,3)" json:"item_weight"`
	StorageDate         time.Time           `gorm:"not null" json:"storage_date"`
	ExpectedOutflowDate *time.Time          `json:"expected_outflow_date,omitempty"`
	ActualOutflowDate   *time.Time          `json:"actual_outflow_date,omitempty"`
	StorageRate         decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"storage_rate"`

	// Monetary breakdown
	BaseAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"base_amount"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"tax_amount"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount_amount"`
	HandlingCharges   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"handling_charges"`
	LaborChargePerBag decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"labor_charge_per_bag"`
	TotalLaborCharges decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_labor_charges"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`

	ParentTransactionID *uuid.UUID    `gorm:"type:uuid;index" json:"parent_transaction_id,omitempty"`
	Outflows            []Transaction `gorm:"foreignKey:ParentTransactionID" json:"outflows,omitempty"`
	ReceiptNumber       string        `gorm:"type:varchar(50);uniqueIndex;not null" json:"receipt_number"`

	Status               string          `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	PaymentStatus        PaymentState    `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	LaborPaymentStatus   PaymentState    `gorm:"type:varchar(20);not null;default:'pending'" json:"labor_payment_status"`
	StorageOutstanding   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"storage_outstanding"`
	StoragePaidAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"storage_paid_amount"`
	StoragePaymentStatus PaymentState    `gorm:"type:varchar(20);not null;default:'pending'" json:"storage_payment_status"`

	VerifiedBy       *string    `gorm:"type:varchar(255)" json:"verified_by,omitempty"`
	VerificationDate *time.Time `json:"verification_date,omitempty"`
	Notes            *string    `gorm:"type:text" json:"notes,omitempty"`
	IsActive         bool       `gorm:"default:true" json:"is_active"`
}

// ActiveInflow is an inflow together with what has already been drawn from it.
type ActiveInflow struct {
	Transaction
	LotName   string          `json:"lot_name,omitempty"`
	Drawn     decimal.Decimal `json:"drawn_quantity"`
	Remaining decimal.Decimal `json:"remaining_quantity"`
}
