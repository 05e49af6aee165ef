package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
)

func TestSnapshotLoad(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	snapshot := NewSnapshot()

	seller := uuid.New()
	active := seedProduct(t, db, seller, "Widget", "19.99", true)
	inactive := seedProduct(t, db, seller, "Old Widget", "9.99", false)

	products, err := snapshot.Load(ctx, db, []uuid.UUID{active, active})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	got := products[active]
	if got.Name != "Widget" {
		t.Fatalf("unexpected name %q", got.Name)
	}
	if !got.Price.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected price %s", got.Price)
	}

	if _, err := snapshot.Load(ctx, db, []uuid.UUID{uuid.New()}); err == nil {
		t.Fatal("expected not found error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}

	if _, err := snapshot.Load(ctx, db, []uuid.UUID{inactive}); err == nil {
		t.Fatal("expected validation error for inactive product")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}

	if _, err := snapshot.Load(ctx, db, nil); err == nil {
		t.Fatal("expected validation error for empty request")
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.InventoryItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, name, price string, active bool) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: active,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	// gorm drops zero-valued fields carrying a column default on insert, so
	// deactivation has to be an explicit update.
	if !active {
		if err := db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate product: %v", err)
		}
	}
	return product.ID
}
