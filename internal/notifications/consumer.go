package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer watches order lifecycle events and turns them into in-app
// notifications for buyers and sellers. Delivery is best effort: a failed
// notification never blocks or reverses the order flow that produced it.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	mailer       Mailer
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer. The mailer is optional;
// when present it receives a best-effort copy of each buyer notification.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager idempotencyChecker, mailer Mailer, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		manager:      manager,
		mailer:       mailer,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("orders subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			c.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := c.Process(ctx, eventType, envelope); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

var handledEventTypes = map[enums.OutboxEventType]struct{}{
	enums.EventOrderCreated:   {},
	enums.EventOrderPaid:      {},
	enums.EventOrderShipped:   {},
	enums.EventOrderDelivered: {},
	enums.EventOrderCancelled: {},
	enums.EventOrderExpired:   {},
}

// Process writes the notifications for one outbox envelope, exactly once per
// event id.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := handledEventTypes[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by notification consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		_ = c.manager.Delete(ctx, orderNotificationConsumer, eventID)
		return err
	}
	return nil
}

type orderCreatedPayload struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerIDs     []uuid.UUID         `json:"seller_ids"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Currency      string              `json:"currency"`
}

type orderStatusPayload struct {
	OrderID  uuid.UUID         `json:"order_id"`
	BuyerID  uuid.UUID         `json:"buyer_id"`
	ToStatus enums.OrderStatus `json:"to_status"`
}

type orderCancelledPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
	Reason  *string   `json:"reason,omitempty"`
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderCreated:
		var payload orderCreatedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handleOrderCreated(ctx, payload, logCtx)
	case enums.EventOrderPaid, enums.EventOrderShipped, enums.EventOrderDelivered:
		var payload orderStatusPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handleStatusChange(ctx, eventType, payload, logCtx)
	case enums.EventOrderCancelled, enums.EventOrderExpired:
		var payload orderCancelledPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handleCancelled(ctx, eventType, payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) handleOrderCreated(ctx context.Context, payload orderCreatedPayload, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	orderRef := shortOrderRef(payload.OrderID)
	link := fmt.Sprintf("/orders/%s", payload.OrderID)

	buyerType := enums.NotificationTypeOrderCreated
	buyerTitle := "Order placed"
	buyerMessage := fmt.Sprintf("Your order %s has been placed.", orderRef)
	if payload.Status == enums.OrderStatusPending {
		buyerType = enums.NotificationTypePaymentPending
		buyerTitle = "Awaiting payment"
		buyerMessage = fmt.Sprintf("Order %s is waiting for your payment of %s %s.", orderRef, payload.TotalPrice.StringFixed(2), payload.Currency)
	}
	if err := c.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.BuyerID,
		Type:    buyerType,
		Title:   buyerTitle,
		Message: buyerMessage,
		Link:    stringPtr(link),
	}); err != nil {
		return err
	}
	c.mail(ctx, payload.BuyerID, buyerTitle, buyerMessage)

	for _, sellerID := range payload.SellerIDs {
		if sellerID == uuid.Nil {
			continue
		}
		if err := c.repo.Create(ctx, &models.Notification{
			ID:      uuid.New(),
			UserID:  sellerID,
			Type:    enums.NotificationTypeSellerNewOrder,
			Title:   "New order",
			Message: fmt.Sprintf("Order %s contains items from your shop.", orderRef),
			Link:    stringPtr(fmt.Sprintf("/seller/orders/%s", payload.OrderID)),
		}); err != nil {
			return err
		}
	}

	c.logg.Info(logCtx, "order creation notifications written")
	return nil
}

func (c *Consumer) handleStatusChange(ctx context.Context, eventType enums.OutboxEventType, payload orderStatusPayload, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	orderRef := shortOrderRef(payload.OrderID)

	var notifType enums.NotificationType
	var title, message string
	switch eventType {
	case enums.EventOrderPaid:
		notifType = enums.NotificationTypeOrderPaid
		title = "Payment received"
		message = fmt.Sprintf("Payment for order %s has been confirmed.", orderRef)
	case enums.EventOrderShipped:
		notifType = enums.NotificationTypeOrderShipped
		title = "Order shipped"
		message = fmt.Sprintf("Order %s is on its way.", orderRef)
	case enums.EventOrderDelivered:
		notifType = enums.NotificationTypeOrderDelivered
		title = "Order delivered"
		message = fmt.Sprintf("Order %s has been delivered.", orderRef)
	}

	if err := c.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.BuyerID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	}); err != nil {
		return err
	}
	c.mail(ctx, payload.BuyerID, title, message)

	c.logg.Info(logCtx, "order status notification written")
	return nil
}

func (c *Consumer) handleCancelled(ctx context.Context, eventType enums.OutboxEventType, payload orderCancelledPayload, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	orderRef := shortOrderRef(payload.OrderID)

	message := fmt.Sprintf("Order %s has been cancelled.", orderRef)
	if eventType == enums.EventOrderExpired {
		message = fmt.Sprintf("Order %s expired because payment was not received in time.", orderRef)
	} else if payload.Reason != nil && *payload.Reason != "" {
		message = fmt.Sprintf("Order %s was cancelled. Reason: %s", orderRef, *payload.Reason)
	}

	if err := c.repo.Create(ctx, &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeOrderCancelled,
		Title:   "Order cancelled",
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	}); err != nil {
		return err
	}
	c.mail(ctx, payload.BuyerID, "Order cancelled", message)

	c.logg.Info(logCtx, "order cancellation notification written")
	return nil
}

// mail forwards a buyer notification to the mailer, swallowing failures.
func (c *Consumer) mail(ctx context.Context, userID uuid.UUID, subject, body string) {
	if c.mailer == nil {
		return
	}
	if err := c.mailer.Send(ctx, userID, subject, body); err != nil {
		c.logg.Error(ctx, "mail delivery failed", err)
	}
}

func shortOrderRef(orderID uuid.UUID) string {
	id := orderID.String()
	if len(id) >= 8 {
		return "#" + id[:8]
	}
	return "#" + id
}

func stringPtr(value string) *string {
	return &value
}
