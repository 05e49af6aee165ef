package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/metrics"
)

// Line is one product/quantity pair in a stock movement.
type Line struct {
	ProductID uuid.UUID
	Qty       int
}

// Ledger applies stock movements with conditional updates so a counter can
// never go below zero, no matter how many writers race.
type Ledger struct {
	payments *metrics.PaymentMetrics
}

func NewLedger(payments *metrics.PaymentMetrics) *Ledger {
	return &Ledger{payments: payments}
}

// Decrement atomically subtracts each line's quantity. The whole batch is
// all-or-nothing: the first line that cannot be satisfied returns an
// insufficient-stock error and the caller's transaction rolls back every
// earlier decrement.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for product %s", line.Qty, line.ProductID))
		}
		result := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty - ?, updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND available_qty >= ?`,
			line.Qty, line.ProductID, line.Qty,
		)
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "decrementing stock")
		}
		if result.RowsAffected == 0 {
			l.payments.IncStockConflict("decrement")
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"product_id": line.ProductID.String(), "qty": line.Qty})
		}
	}
	return nil
}

// Restock adds each line's quantity back, used on cancellation and when a
// buyer switches away from cash on delivery.
func (l *Ledger) Restock(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for product %s", line.Qty, line.ProductID))
		}
		result := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty + ?, updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ?`,
			line.Qty, line.ProductID,
		)
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "restocking")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory row missing").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
	}
	return nil
}

// Available reads the current counter for a product.
func (l *Ledger) Available(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	var qty int
	err := tx.WithContext(ctx).
		Raw("SELECT available_qty FROM inventory_items WHERE product_id = ?", productID).
		Scan(&qty).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stock")
	}
	return qty, nil
}
