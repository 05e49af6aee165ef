package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
)

// OrderCreatedEvent is emitted once intake persists the order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerIDs     []uuid.UUID         `json:"seller_ids"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
}

// OrderStatusChangedEvent is emitted on every applied transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID            `json:"order_id"`
	BuyerID    uuid.UUID            `json:"buyer_id"`
	FromStatus enums.OrderStatus    `json:"from_status"`
	ToStatus   enums.OrderStatus    `json:"to_status"`
	Source     *enums.PaymentSource `json:"source,omitempty"`
}

// OrderCancelledEvent carries the restock outcome alongside the cancellation.
type OrderCancelledEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	BuyerID   uuid.UUID         `json:"buyer_id"`
	WasStatus enums.OrderStatus `json:"was_status"`
	Restocked bool              `json:"restocked"`
	Reason    *string           `json:"reason,omitempty"`
}

// PaymentMethodSwitchedEvent records a buyer changing payment method.
type PaymentMethodSwitchedEvent struct {
	OrderID   uuid.UUID           `json:"order_id"`
	BuyerID   uuid.UUID           `json:"buyer_id"`
	OldMethod enums.PaymentMethod `json:"old_method"`
	NewMethod enums.PaymentMethod `json:"new_method"`
	NewStatus enums.OrderStatus   `json:"new_status"`
}

func buildActor(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
