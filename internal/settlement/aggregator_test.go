package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type seededLine struct {
	sellerID  uuid.UUID
	lineTotal string
	qty       int
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, lines []seededLine) uuid.UUID {
	t.Helper()
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(decimal.RequireFromString(line.lineTotal))
	}
	order := models.Order{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		Status:        status,
		PaymentMethod: enums.PaymentMethodManualTransfer,
		TotalPrice:    total,
		Currency:      "USD",
		ShippingInfo: types.ShippingInfo{
			RecipientName: "Wanjiru N",
			Phone:         "+254700000003",
			Line1:         "7 Market Lane",
			City:          "Mombasa",
			Province:      "Mombasa",
			PostalCode:    "80100",
			Country:       "KE",
		},
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for _, line := range lines {
		amount := decimal.RequireFromString(line.lineTotal)
		item := models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: uuid.New(),
			SellerID:  line.sellerID,
			Name:      "item",
			UnitPrice: amount.Div(decimal.NewFromInt(int64(line.qty))),
			Qty:       line.qty,
			LineTotal: amount,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	return order.ID
}

func TestEarningsCountPaidAndBeyondOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	agg := NewAggregator(db)
	seller := uuid.New()

	seedOrder(t, db, enums.OrderStatusPaid, []seededLine{{seller, "30.00", 2}})
	seedOrder(t, db, enums.OrderStatusShipped, []seededLine{{seller, "10.00", 1}})
	seedOrder(t, db, enums.OrderStatusDelivered, []seededLine{{seller, "5.50", 1}})
	// None of these may contribute a cent.
	seedOrder(t, db, enums.OrderStatusPending, []seededLine{{seller, "100.00", 1}})
	seedOrder(t, db, enums.OrderStatusConfirmed, []seededLine{{seller, "100.00", 1}})
	seedOrder(t, db, enums.OrderStatusCancelled, []seededLine{{seller, "100.00", 1}})

	summary, err := agg.EarningsFor(context.Background(), seller, Filters{})
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(summary.Totals) != 1 {
		t.Fatalf("currencies = %d, want 1", len(summary.Totals))
	}
	if !summary.Totals[0].Amount.Equal(decimal.RequireFromString("45.50")) {
		t.Fatalf("total = %s, want 45.50", summary.Totals[0].Amount)
	}
	if summary.OrderCount != 3 {
		t.Fatalf("order count = %d, want 3", summary.OrderCount)
	}
	if summary.ItemCount != 4 {
		t.Fatalf("item count = %d, want 4", summary.ItemCount)
	}
	// pending + confirmed + paid still owe a shipment
	if summary.PendingOrders != 3 {
		t.Fatalf("pending orders = %d, want 3", summary.PendingOrders)
	}
}

func TestEarningsIsolatePerSeller(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	agg := NewAggregator(db)
	sellerA := uuid.New()
	sellerB := uuid.New()

	// One shared order: each seller earns exactly their own lines.
	seedOrder(t, db, enums.OrderStatusPaid, []seededLine{
		{sellerA, "20.00", 1},
		{sellerB, "80.00", 1},
	})
	seedOrder(t, db, enums.OrderStatusPaid, []seededLine{{sellerA, "15.00", 3}})

	a, err := agg.EarningsFor(context.Background(), sellerA, Filters{})
	if err != nil {
		t.Fatalf("earnings a: %v", err)
	}
	if !a.Totals[0].Amount.Equal(decimal.RequireFromString("35.00")) {
		t.Fatalf("seller a total = %s, want 35.00", a.Totals[0].Amount)
	}

	b, err := agg.EarningsFor(context.Background(), sellerB, Filters{})
	if err != nil {
		t.Fatalf("earnings b: %v", err)
	}
	if !b.Totals[0].Amount.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("seller b total = %s, want 80.00", b.Totals[0].Amount)
	}
	if b.OrderCount != 1 {
		t.Fatalf("seller b orders = %d, want 1", b.OrderCount)
	}
}

func TestEarningsWindowFilter(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	agg := NewAggregator(db)
	seller := uuid.New()

	oldID := seedOrder(t, db, enums.OrderStatusPaid, []seededLine{{seller, "10.00", 1}})
	seedOrder(t, db, enums.OrderStatusPaid, []seededLine{{seller, "25.00", 1}})

	past := time.Now().Add(-60 * 24 * time.Hour)
	if err := db.Model(&models.Order{}).Where("id = ?", oldID).
		Update("created_at", past).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}

	from := time.Now().Add(-30 * 24 * time.Hour)
	summary, err := agg.EarningsFor(context.Background(), seller, Filters{From: &from})
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if !summary.Totals[0].Amount.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("total = %s, want 25.00 inside window", summary.Totals[0].Amount)
	}
}

func TestEarningsEmptySeller(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	agg := NewAggregator(db)

	summary, err := agg.EarningsFor(context.Background(), uuid.New(), Filters{})
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(summary.Totals) != 0 || summary.OrderCount != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}
