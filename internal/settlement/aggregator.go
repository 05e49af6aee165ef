package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
)

// earningStatuses are the order states whose items count toward seller
// earnings. Pending and confirmed orders are unpaid promises; cancelled
// orders never count.
func earningStatuses() []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, 3)
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaid,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	} {
		if status.CountsForEarnings() {
			out = append(out, status)
		}
	}
	return out
}

// awaitingFulfilmentStatuses are the order states where the seller still
// owes a shipment.
func awaitingFulfilmentStatuses() []enums.OrderStatus {
	return []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaid,
	}
}

// CurrencyTotal is a sum in one currency. Marketplaces with sellers in one
// country will only ever see a single entry.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary aggregates a seller's earnings across paid-and-beyond orders.
// PendingOrders counts the seller's orders still waiting on a shipment,
// regardless of whether the money has arrived yet.
type Summary struct {
	SellerID      uuid.UUID       `json:"seller_id"`
	Totals        []CurrencyTotal `json:"totals"`
	OrderCount    int             `json:"order_count"`
	ItemCount     int             `json:"item_count"`
	PendingOrders int             `json:"pending_orders"`
}

// Filters narrows the aggregation window by order creation time.
type Filters struct {
	From *time.Time
	To   *time.Time
}

// Aggregator computes seller settlement figures from order line snapshots.
// Only the seller's own lines contribute: an order shared with other
// sellers pays each seller their lines, nothing more.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

type earningRow struct {
	OrderID   uuid.UUID
	LineTotal decimal.Decimal
	Qty       int
	Currency  string
}

// EarningsFor sums the seller's line totals across orders that have been
// paid (or progressed beyond payment). Sums are computed with exact
// decimals; nothing is rounded until presentation.
func (a *Aggregator) EarningsFor(ctx context.Context, sellerID uuid.UUID, filters Filters) (*Summary, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}

	query := a.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.order_id, order_items.line_total, order_items.qty, orders.currency").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.seller_id = ?", sellerID).
		Where("orders.status IN (?)", earningStatuses())
	if filters.From != nil {
		query = query.Where("orders.created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("orders.created_at < ?", *filters.To)
	}

	var rows []earningRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating seller earnings")
	}

	totals := map[string]decimal.Decimal{}
	orderSet := map[uuid.UUID]struct{}{}
	itemCount := 0
	for _, row := range rows {
		totals[row.Currency] = totals[row.Currency].Add(row.LineTotal)
		orderSet[row.OrderID] = struct{}{}
		itemCount += row.Qty
	}

	summary := &Summary{
		SellerID:   sellerID,
		Totals:     make([]CurrencyTotal, 0, len(totals)),
		OrderCount: len(orderSet),
		ItemCount:  itemCount,
	}
	for currency, amount := range totals {
		summary.Totals = append(summary.Totals, CurrencyTotal{Currency: currency, Amount: amount})
	}
	sort.Slice(summary.Totals, func(i, j int) bool {
		return summary.Totals[i].Currency < summary.Totals[j].Currency
	})

	var pending int64
	pendingQuery := a.db.WithContext(ctx).
		Table("order_items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.seller_id = ?", sellerID).
		Where("orders.status IN (?)", awaitingFulfilmentStatuses()).
		Distinct("order_items.order_id")
	if err := pendingQuery.Count(&pending).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting unshipped orders")
	}
	summary.PendingOrders = int(pending)
	return summary, nil
}
