package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
	"github.com/sokomart-dev/sokomart-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  payment_source TEXT,
  total_price TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  shipping_info TEXT,
  gateway_ref TEXT,
  tracking_ref TEXT,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  name TEXT NOT NULL,
  image_url TEXT,
  unit_price TEXT NOT NULL,
  qty INTEGER NOT NULL,
  line_total TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, buyerID, sellerID uuid.UUID, status enums.OrderStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        status,
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		TotalPrice:    decimal.RequireFromString("25.00"),
		Currency:      "USD",
		ShippingInfo: types.ShippingInfo{
			RecipientName: "Asha Mwangi",
			Phone:         "+254700000001",
			Line1:         "12 Moi Avenue",
			City:          "Nairobi",
			Province:      "Nairobi",
			PostalCode:    "00100",
			Country:       "KE",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(order).Error)

	item := models.OrderItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: uuid.New(),
		SellerID:  sellerID,
		Name:      "Ceramic Mug",
		UnitPrice: decimal.RequireFromString("12.50"),
		Qty:       2,
		LineTotal: decimal.RequireFromString("25.00"),
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(&item).Error)
	return order
}

func TestRepositoryCreateAndFindOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodManualTransfer,
		TotalPrice:    decimal.RequireFromString("40.00"),
		Currency:      "USD",
		ShippingInfo: types.ShippingInfo{
			RecipientName: "Brian Otieno",
			Phone:         "+254700000002",
			Line1:         "4 Kenyatta Road",
			City:          "Kisumu",
			Province:      "Kisumu",
			PostalCode:    "40100",
			Country:       "KE",
		},
	}

	created, err := repo.CreateOrder(context.Background(), order)
	require.NoError(t, err)

	items := []models.OrderItem{
		{
			ID:        uuid.New(),
			OrderID:   created.ID,
			ProductID: uuid.New(),
			SellerID:  uuid.New(),
			Name:      "Woven Basket",
			UnitPrice: decimal.RequireFromString("20.00"),
			Qty:       2,
			LineTotal: decimal.RequireFromString("40.00"),
		},
	}
	require.NoError(t, repo.CreateOrderItems(context.Background(), items))

	found, err := repo.FindOrder(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, buyerID, found.BuyerID)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
	assert.Equal(t, "Brian Otieno", found.ShippingInfo.RecipientName)
	assert.True(t, found.TotalPrice.Equal(decimal.RequireFromString("40.00")))
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Woven Basket", found.Items[0].Name)
}

func TestRepositoryFindOrderByGatewayRef(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusPending, time.Now().UTC())
	ref := "inv-" + uuid.NewString()
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("gateway_ref", ref).Error)

	found, err := repo.FindOrderByGatewayRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.NotNil(t, found.GatewayRef)
	assert.Equal(t, ref, *found.GatewayRef)

	_, err = repo.FindOrderByGatewayRef(context.Background(), "inv-missing")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindOrderMissingMapsToNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindOrder(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryUpdateOrderStatusIf(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusPending, time.Now().UTC())

	paidAt := time.Now().UTC()
	applied, err := repo.UpdateOrderStatusIf(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusPaid, map[string]any{"paid_at": paidAt})
	require.NoError(t, err)
	assert.True(t, applied)

	found, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
	require.NotNil(t, found.PaidAt)

	// The row already moved off pending, so the same transition loses.
	applied, err = repo.UpdateOrderStatusIf(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	found, err = repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
	assert.Nil(t, found.CancelledAt)
}

func TestRepositoryFindPendingOrdersBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	now := time.Now().UTC()
	stale := seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPending, now.Add(-48*time.Hour))
	seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPending, now.Add(-time.Minute))
	seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPaid, now.Add(-48*time.Hour))

	rows, err := repo.FindPendingOrdersBefore(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
	assert.Equal(t, enums.OrderStatusPending, rows[0].Status)
}

func TestRepositoryListBuyerOrders_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	now := time.Now().UTC()
	older := seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPaid, now.Add(-time.Hour))
	newer := seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPending, now)
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusPending, now)

	list, err := repo.ListBuyerOrders(context.Background(), buyerID, pagination.Params{Limit: 1}, BuyerOrderFilters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.NotEmpty(t, list.NextCursor)
	assert.Equal(t, newer.ID, list.Orders[0].ID)
	require.Len(t, list.Orders[0].Items, 1)

	second, err := repo.ListBuyerOrders(context.Background(), buyerID, pagination.Params{Limit: 1, Cursor: list.NextCursor}, BuyerOrderFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, older.ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryListBuyerOrders_statusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	buyerID := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPaid, now.Add(-time.Hour))
	pending := seedOrder(t, db, buyerID, uuid.New(), enums.OrderStatusPending, now)

	filters := BuyerOrderFilters{Status: ptr(enums.OrderStatusPending)}
	list, err := repo.ListBuyerOrders(context.Background(), buyerID, pagination.Params{Limit: 10}, filters)
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, pending.ID, list.Orders[0].ID)
	assert.Empty(t, list.NextCursor)
}

func TestRepositoryListSellerOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	now := time.Now().UTC()
	mine := seedOrder(t, db, uuid.New(), sellerID, enums.OrderStatusPaid, now)
	seedOrder(t, db, uuid.New(), uuid.New(), enums.OrderStatusPaid, now)

	list, err := repo.ListSellerOrders(context.Background(), sellerID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, mine.ID, list.Orders[0].ID)
	require.Len(t, list.Orders[0].Items, 1)
	assert.Equal(t, sellerID, list.Orders[0].Items[0].SellerID)
}

func ptr[T any](v T) *T {
	return &v
}
