package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures the per-product snapshot within an order. Name, price,
// image and seller are frozen at checkout so later catalog edits cannot
// change what the buyer agreed to.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SellerID  uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	ImageURL  *string         `gorm:"column:image_url;type:text"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Qty       int             `gorm:"column:qty;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
