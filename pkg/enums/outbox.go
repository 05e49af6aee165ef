package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateInventory    OutboxAggregateType = "inventory"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInventory,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderConfirmed         OutboxEventType = "order_confirmed"
	EventOrderPaid              OutboxEventType = "order_paid"
	EventOrderShipped           OutboxEventType = "order_shipped"
	EventOrderDelivered         OutboxEventType = "order_delivered"
	EventOrderCancelled         OutboxEventType = "order_cancelled"
	EventOrderExpired           OutboxEventType = "order_expired"
	EventPaymentMethodSwitched  OutboxEventType = "payment_method_switched"
	EventStockDepleted          OutboxEventType = "stock_depleted"
	EventNotificationRequested  OutboxEventType = "notification_requested"
	EventRefundRequested        OutboxEventType = "refund_requested"
	EventOrderStateChanged      OutboxEventType = "order_state_changed"
	EventGatewayInvoiceCreated  OutboxEventType = "gateway_invoice_created"
	EventGatewayCallbackHandled OutboxEventType = "gateway_callback_handled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderPaid,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderExpired,
	EventPaymentMethodSwitched,
	EventStockDepleted,
	EventNotificationRequested,
	EventRefundRequested,
	EventOrderStateChanged,
	EventGatewayInvoiceCreated,
	EventGatewayCallbackHandled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
