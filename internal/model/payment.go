package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
	PaymentStatusFailed    = "failed"

	PaymentTypeLabor     = "labor"
	PaymentTypeStorage   = "storage"
	PaymentTypeOnAccount = "on_account"
)

var PaymentModes = []string{"cash", "upi", "bank_transfer", "cheque", "card"}

// Payment is append-only: after insert only status and verification fields change.
type Payment struct {
	BaseModel
	WarehouseID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_id"`
	CustomerID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer             *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TransactionID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	PaymentAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"payment_amount"`
	PaymentDate          time.Time       `gorm:"not null;index" json:"payment_date"`
	PaymentType          string          `gorm:"type:varchar(20);not null;default:'storage'" json:"payment_type"`
	PaymentMode          string          `gorm:"type:varchar(20);not null;default:'cash'" json:"payment_mode"`
	PaymentStatus        string          `gorm:"type:varchar(20);not null;default:'completed';index" json:"payment_status"`
	PaymentReference     *string         `gorm:"type:varchar(100)" json:"payment_reference,omitempty"`
	ReceiptNumber        string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"receipt_number"`
	ReceivedBy           string          `gorm:"type:varchar(255);not null" json:"received_by"`
	VerifiedBy           *string         `gorm:"type:varchar(255)" json:"verified_by,omitempty"`
	VerificationDate     *time.Time      `json:"verification_date,omitempty"`
	ReconciliationStatus string          `gorm:"type:varchar(20);default:'pending'" json:"reconciliation_status"`
	Notes                *string         `gorm:"type:text" json:"notes,omitempty"`
}
