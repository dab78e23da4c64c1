package ledger

import (
	"time"

	"go-warehouse-ws/internal/model"

	"github.com/shopspring/decimal"
)

type UtilizationStatus string

const (
	UtilFull           UtilizationStatus = "full"
	UtilNearFull       UtilizationStatus = "near_full"
	UtilMaintenanceDue UtilizationStatus = "maintenance_due"
	UtilNormal         UtilizationStatus = "normal"
)

// LotUtilization is the read-side projection of a storage lot.
type LotUtilization struct {
	model.StorageLot
	UtilizationPercentage decimal.Decimal   `json:"utilization_percentage"`
	AvailableCapacity     decimal.Decimal   `json:"available_capacity"`
	Status                UtilizationStatus `json:"status"`
}

// Utilization projects a lot. Precedence when several conditions hold:
// full, then near_full, then maintenance_due, then normal.
func Utilization(lot model.StorageLot, today time.Time, nearFull float64, maintenanceWindowDays int) LotUtilization {
	if nearFull <= 0 || nearFull > 1 {
		nearFull = DefaultNearFullThreshold
	}
	pct := decimal.Zero
	ratio := decimal.Zero
	if lot.Capacity.IsPositive() {
		ratio = lot.CurrentOccupancy.Div(lot.Capacity)
		pct = ratio.Mul(decimal.NewFromInt(100)).Round(2)
	}

	status := UtilNormal
	switch {
	case lot.LotStatus == model.LotFull:
		status = UtilFull
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(nearFull)):
		status = UtilNearFull
	case maintenanceDue(lot.NextMaintenanceDate, today, maintenanceWindowDays):
		status = UtilMaintenanceDue
	}

	return LotUtilization{
		StorageLot:            lot,
		UtilizationPercentage: pct,
		AvailableCapacity:     lot.Available(),
		Status:                status,
	}
}

func maintenanceDue(next *time.Time, today time.Time, windowDays int) bool {
	if next == nil {
		return false
	}
	y, m, d := today.Date()
	limit := time.Date(y, m, d, 0, 0, 0, 0, today.Location()).AddDate(0, 0, windowDays)
	return !next.After(limit)
}
