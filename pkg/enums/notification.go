package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderCreated   NotificationType = "order_created"
	NotificationTypeOrderPaid      NotificationType = "order_paid"
	NotificationTypeOrderShipped   NotificationType = "order_shipped"
	NotificationTypeOrderDelivered NotificationType = "order_delivered"
	NotificationTypeOrderCancelled NotificationType = "order_cancelled"
	NotificationTypePaymentPending NotificationType = "payment_pending"
	NotificationTypeSellerNewOrder NotificationType = "seller_new_order"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderCreated,
	NotificationTypeOrderPaid,
	NotificationTypeOrderShipped,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderCancelled,
	NotificationTypePaymentPending,
	NotificationTypeSellerNewOrder,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
