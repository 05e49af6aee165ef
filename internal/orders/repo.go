package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByGatewayRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_ref = ?", ref).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters BuyerOrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return r.listOrders(query, params)
}

func (r *repository) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("id IN (?)", r.db.Model(&models.OrderItem{}).
			Select("order_id").
			Where("seller_id = ?", sellerID))
	return r.listOrders(query, params)
}

func (r *repository) listOrders(query *gorm.DB, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &OrderList{Orders: rows}
	if len(rows) > limit {
		list.Orders = rows[:limit]
		last := list.Orders[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

func (r *repository) FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpdateOrderStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
