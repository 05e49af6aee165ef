package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/types"
)

// Order is the buyer-facing order aggregate. Totals are computed server
// side at intake and never trusted from the client.
type Order struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	BuyerID       uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentSource *string             `gorm:"column:payment_source;type:text"`
	TotalPrice    decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;type:text;not null;default:'USD'"`
	ShippingInfo  types.ShippingInfo  `gorm:"column:shipping_info;type:jsonb"`
	GatewayRef    *string             `gorm:"column:gateway_ref;type:text;index"`
	TrackingRef   *string             `gorm:"column:tracking_ref;type:text"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	ShippedAt     *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt   *time.Time          `gorm:"column:delivered_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
