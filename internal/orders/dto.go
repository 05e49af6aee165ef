package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/types"
)

// CartLine is one product/quantity pair submitted at checkout. Price is
// deliberately absent: the catalog decides what the buyer pays.
type CartLine struct {
	ProductID uuid.UUID
	Qty       int
}

// CreateOrderInput carries everything intake needs to build an order.
type CreateOrderInput struct {
	BuyerID       uuid.UUID
	Lines         []CartLine
	PaymentMethod enums.PaymentMethod
	ShippingInfo  types.ShippingInfo
	ActorRole     string
}

// CreateOrderResult reports the persisted order back to the controller.
type CreateOrderResult struct {
	Order *models.Order
	// GatewayCheckoutURL is set when the payment method requires the buyer
	// to finish on the hosted payment page.
	GatewayCheckoutURL string
}

// ConfirmPaymentInput unifies the gateway callback, the manual poll and the
// human confirmation behind a single operation, tagged by source.
type ConfirmPaymentInput struct {
	OrderID     uuid.UUID
	Source      enums.PaymentSource
	GatewayRef  string
	ActorUserID uuid.UUID
	ActorRole   string
}

// ConfirmPaymentResult distinguishes a fresh transition from an idempotent replay.
type ConfirmPaymentResult struct {
	Order        *models.Order
	AlreadyPaid  bool
	StockApplied bool
}

// RejectPaymentInput carries a terminal signal from the provider: the
// invoice failed or expired and will never settle.
type RejectPaymentInput struct {
	OrderID        uuid.UUID
	GatewayRef     string
	Source         enums.PaymentSource
	ProviderStatus string
}

// RejectPaymentResult distinguishes a fresh cancellation from a signal that
// arrived after the order had already moved on.
type RejectPaymentResult struct {
	Order           *models.Order
	Cancelled       bool
	AlreadyResolved bool
}

// UpdateStatusInput drives the generic ship/deliver/collect transitions.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	TrackingRef *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// CancelInput captures a cancellation request.
type CancelInput struct {
	OrderID     uuid.UUID
	Reason      *string
	ActorUserID uuid.UUID
	ActorRole   string
	AsAdmin     bool
}

// SwitchPaymentMethodInput captures a buyer changing how they will pay.
type SwitchPaymentMethodInput struct {
	OrderID     uuid.UUID
	NewMethod   enums.PaymentMethod
	ActorUserID uuid.UUID
	ActorRole   string
}

// BuyerOrderFilters narrows buyer order listings.
type BuyerOrderFilters struct {
	Status *enums.OrderStatus
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// OrderSummary is the listing projection returned to clients.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}
