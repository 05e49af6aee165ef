package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the seller-owned catalog entry. Price and name are the
// authoritative values orders snapshot from at checkout.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SellerID    uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    string          `gorm:"column:currency;type:text;not null;default:'USD'"`
	ImageURL    *string         `gorm:"column:image_url;type:text"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	Inventory   *InventoryItem  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
