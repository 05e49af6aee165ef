package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refund records money owed back to a buyer after an admin cancels a paid
// order. Processing is out of band; this row is the durable request.
type Refund struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID   uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency  string          `gorm:"column:currency;type:text;not null;default:'USD'"`
	Reason    *string         `gorm:"column:reason"`
	SettledAt *time.Time      `gorm:"column:settled_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
