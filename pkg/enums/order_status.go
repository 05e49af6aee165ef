package enums

import "fmt"

// OrderStatus tracks the lifecycle of a marketplace order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderStatusTransitions is the single source of truth for which status
// moves are legal. Anything not listed is rejected.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusPaid},
	OrderStatusDelivered: {OrderStatusPaid},
	OrderStatusCancelled: {},
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (o OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[o]) == 0 && o.IsValid()
}

// CanTransitionTo reports whether moving from o to next is legal.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[o] {
		if candidate == next {
			return true
		}
	}
	return false
}

// HoldsStock reports whether an order in this status has decremented
// inventory that a cancellation must restore.
func (o OrderStatus) HoldsStock() bool {
	switch o {
	case OrderStatusConfirmed, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// CountsForEarnings reports whether items in this status contribute to
// seller settlement totals.
func (o OrderStatus) CountsForEarnings() bool {
	switch o {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
