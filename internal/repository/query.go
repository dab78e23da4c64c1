package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// active restricts a query to rows that are neither deactivated nor soft-deleted.
// gorm already adds deleted_at IS NULL for models with gorm.DeletedAt.
func active(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

func inWarehouse(warehouseID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("warehouse_id = ?", warehouseID)
	}
}

// unscoped lets preloads follow references to soft-deleted rows, so history
// keeps showing the customer or product it was recorded against.
func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// forUpdate locks the selected rows until the surrounding transaction ends.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// containsPattern builds a LIKE pattern matching q anywhere, case-insensitively.
func containsPattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

// searchAny matches pattern against any of cols.
func searchAny(pattern string, cols ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		parts := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			parts[i] = "LOWER(COALESCE(" + c + ", '')) LIKE ? ESCAPE '\\'"
			args[i] = pattern
		}
		return db.Where(strings.Join(parts, " OR "), args...)
	}
}

// softDelete deactivates a row and stamps who removed it. It reports false when
// no live row matched.
func softDelete(ctx context.Context, db *gorm.DB, m any, scopes []func(*gorm.DB) *gorm.DB, id uuid.UUID, deletedBy string) (bool, error) {
	res := db.WithContext(ctx).Model(m).Scopes(scopes...).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  false,
			"deleted_at": time.Now(),
			"deleted_by": deletedBy,
			"updated_by": deletedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// sumDecimal returns SUM(col) over q, zero when no rows match.
func sumDecimal(q *gorm.DB, col string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("SUM(" + col + ")").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
