package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/stock"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/metrics"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
)

// Service owns the order lifecycle: intake, payment reconciliation, status
// progression, cancellation and payment-method switches. All writes that
// move money or stock run inside a single transaction, and every status
// transition goes through a conditional update so concurrent signals cannot
// double-apply.
type Service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	ledger   stockLedger
	catalog  catalogSnapshot
	gateway  paymentGateway
	payments *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	ledger stockLedger,
	catalog catalogSnapshot,
	gw paymentGateway,
	payments *metrics.PaymentMetrics,
	logg *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		ledger:   ledger,
		catalog:  catalog,
		gateway:  gw,
		payments: payments,
		logg:     logg,
	}
}

// CreateOrder runs checkout intake. Name and price for every line come from
// the catalog rows read inside the transaction; client-submitted prices are
// never consulted. Cash-on-delivery orders decrement stock immediately and
// start CONFIRMED, everything else starts PENDING and touches no stock.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if err := input.ShippingInfo.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping info")
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").WithDetails(map[string]any{
				"product_id": line.ProductID.String(),
			})
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		productIDs := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
		products, err := s.catalog.Load(ctx, tx, productIDs)
		if err != nil {
			return err
		}

		status := input.PaymentMethod.InitialOrderStatus()
		currency := ""
		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(input.Lines))
		sellerSet := map[uuid.UUID]struct{}{}

		orderID := uuid.New()
		for _, line := range input.Lines {
			product := products[line.ProductID]
			if currency == "" {
				currency = product.Currency
			} else if currency != product.Currency {
				return pkgerrors.New(pkgerrors.CodeValidation, "order cannot mix currencies")
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Qty)))
			total = total.Add(lineTotal)
			sellerSet[product.SellerID] = struct{}{}
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: product.ID,
				SellerID:  product.SellerID,
				Name:      product.Name,
				ImageURL:  product.ImageURL,
				UnitPrice: product.Price,
				Qty:       line.Qty,
				LineTotal: lineTotal,
			})
		}

		created, err := repo.CreateOrder(ctx, &models.Order{
			ID:            orderID,
			BuyerID:       input.BuyerID,
			Status:        status,
			PaymentMethod: input.PaymentMethod,
			TotalPrice:    total,
			Currency:      currency,
			ShippingInfo:  input.ShippingInfo,
		})
		if err != nil {
			return err
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return err
		}
		created.Items = items
		order = created

		if input.PaymentMethod.DecrementsOnCreate() {
			if err := s.ledger.Decrement(ctx, tx, stockLines(items)); err != nil {
				return err
			}
		}

		sellerIDs := make([]uuid.UUID, 0, len(sellerSet))
		for sellerID := range sellerSet {
			sellerIDs = append(sellerIDs, sellerID)
		}
		actor := buildActor(input.BuyerID, input.ActorRole)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data: OrderCreatedEvent{
				OrderID:       orderID,
				BuyerID:       input.BuyerID,
				SellerIDs:     sellerIDs,
				Status:        status,
				PaymentMethod: input.PaymentMethod,
				TotalPrice:    total,
				Currency:      currency,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if status == enums.OrderStatusConfirmed {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderConfirmed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Actor:         actor,
				Data: OrderStatusChangedEvent{
					OrderID:    orderID,
					BuyerID:    input.BuyerID,
					FromStatus: enums.OrderStatusPending,
					ToStatus:   status,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CreateOrderResult{Order: order}
	if input.PaymentMethod == enums.PaymentMethodGateway {
		result.GatewayCheckoutURL = s.openInvoice(ctx, order)
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return result, nil
}

// openInvoice asks the provider for a hosted checkout session and records
// the reference on the order. Runs after the intake transaction commits: a
// provider outage must not lose the order, which stays PENDING and can be
// retried via a payment-method switch.
func (s *Service) openInvoice(ctx context.Context, order *models.Order) string {
	if s.gateway == nil {
		return ""
	}

	inv, err := s.gateway.CreateInvoice(ctx, gateway.CreateInvoiceParams{
		OrderID:     order.ID,
		Amount:      order.TotalPrice,
		Currency:    order.Currency,
		Description: "sokomart order " + order.ID.String(),
	})
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "gateway invoice creation failed", err)
		return ""
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"gateway_ref": inv.Ref}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGatewayInvoiceCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"order_id":    order.ID.String(),
				"invoice_ref": inv.Ref,
			},
			Version: 1,
		})
	})
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "recording gateway invoice failed", err)
		return ""
	}

	order.GatewayRef = &inv.Ref
	return inv.CheckoutURL
}

// ConfirmPayment applies a payment signal from the gateway callback, a
// gateway poll, or a human confirming a manual transfer. The operation is
// idempotent: replays and races observe the order already paid and return
// AlreadyPaid without touching stock again.
func (s *Service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*ConfirmPaymentResult, error) {
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment source")
	}

	result := &ConfirmPaymentResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.resolveOrder(ctx, repo, input.OrderID, input.GatewayRef)
		if err != nil {
			return err
		}

		// PaidAt, not the status, is the replay signal: a SHIPPED cash
		// order has moved past CONFIRMED without any money collected yet.
		if order.PaidAt != nil {
			result.Order = order
			result.AlreadyPaid = true
			s.payments.IncDuplicate(input.Source.String())
			return nil
		}

		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot accept a payment signal").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   order.Status.String(),
			})
		}
		if err := validateSourceForMethod(input.Source, order.PaymentMethod); err != nil {
			return err
		}

		now := time.Now().UTC()
		source := input.Source.String()
		updates := map[string]any{
			"status":         enums.OrderStatusPaid,
			"paid_at":        now,
			"payment_source": source,
		}
		if input.GatewayRef != "" && order.GatewayRef == nil {
			updates["gateway_ref"] = input.GatewayRef
		}

		won, err := repo.UpdateOrderStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPaid, updates)
		if err != nil {
			return err
		}
		if !won {
			current, err := repo.FindOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.PaidAt != nil {
				result.Order = current
				result.AlreadyPaid = true
				s.payments.IncDuplicate(source)
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while confirming payment").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   current.Status.String(),
			})
		}

		// The winner charges stock exactly once. Insufficient stock rolls
		// back the PAID write together with the decrement.
		if err := s.ledger.Decrement(ctx, tx, stockLines(order.Items)); err != nil {
			return err
		}
		result.StockApplied = true

		order.Status = enums.OrderStatusPaid
		order.PaidAt = &now
		order.PaymentSource = &source
		result.Order = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: OrderStatusChangedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				FromStatus: enums.OrderStatusPending,
				ToStatus:   enums.OrderStatusPaid,
				Source:     &input.Source,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		s.payments.IncConfirmation(source)
		s.payments.IncTransition(enums.OrderStatusPending.String(), enums.OrderStatusPaid.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     result.Order.ID.String(),
		"source":       input.Source.String(),
		"already_paid": result.AlreadyPaid,
	})
	s.logg.Info(logCtx, "payment signal handled")
	return result, nil
}

// RejectPayment cancels a PENDING order whose invoice the provider reports
// as failed or expired. Replays, and signals that land after the order moved
// on, are acknowledged without touching it. Gateway orders hold no stock
// before payment, so there is nothing to restock.
func (s *Service) RejectPayment(ctx context.Context, input RejectPaymentInput) (*RejectPaymentResult, error) {
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment source")
	}

	result := &RejectPaymentResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.resolveOrder(ctx, repo, input.OrderID, input.GatewayRef)
		if err != nil {
			return err
		}
		if err := validateSourceForMethod(input.Source, order.PaymentMethod); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			result.Order = order
			result.AlreadyResolved = true
			return nil
		}

		now := time.Now().UTC()
		won, err := repo.UpdateOrderStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			return err
		}
		if !won {
			current, err := repo.FindOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			result.Order = current
			result.AlreadyResolved = true
			return nil
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		result.Order = order
		result.Cancelled = true

		reason := "gateway invoice " + strings.ToLower(input.ProviderStatus)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: OrderCancelledEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				WasStatus: enums.OrderStatusPending,
				Restocked: false,
				Reason:    &reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		s.payments.IncTransition(enums.OrderStatusPending.String(), enums.OrderStatusCancelled.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":         result.Order.ID.String(),
		"source":           input.Source.String(),
		"provider_status":  input.ProviderStatus,
		"already_resolved": result.AlreadyResolved,
	})
	s.logg.Info(logCtx, "payment rejection handled")
	return result, nil
}

// VerifyGatewayPayment polls the provider for the order's invoice and, when
// the provider reports it settled, confirms the payment. Safe to call any
// number of times.
func (s *Service) VerifyGatewayPayment(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, actorRole string) (*ConfirmPaymentResult, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaidAt != nil {
		return &ConfirmPaymentResult{Order: order, AlreadyPaid: true}, nil
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not a gateway order")
	}
	if order.GatewayRef == nil || *order.GatewayRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway invoice")
	}

	inv, err := s.gateway.GetInvoice(ctx, *order.GatewayRef)
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		rejected, err := s.RejectPayment(ctx, RejectPaymentInput{
			OrderID:        order.ID,
			Source:         enums.PaymentSourceGatewayPoll,
			ProviderStatus: string(inv.Status),
		})
		if err != nil {
			return nil, err
		}
		return &ConfirmPaymentResult{Order: rejected.Order}, nil
	}
	if !inv.Status.Settled() {
		return &ConfirmPaymentResult{Order: order}, nil
	}

	return s.ConfirmPayment(ctx, ConfirmPaymentInput{
		OrderID:     order.ID,
		Source:      enums.PaymentSourceGatewayPoll,
		GatewayRef:  *order.GatewayRef,
		ActorUserID: actorID,
		ActorRole:   actorRole,
	})
}

// UpdateStatus drives the fulfilment transitions: ship, deliver, and
// collecting cash on a COD order. Cancellation has its own operation, and a
// PENDING order can only become PAID through a payment signal.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if input.Target == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation to cancel an order")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		from := order.Status

		if !from.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").WithDetails(map[string]any{
				"order_id":  order.ID.String(),
				"status":    from.String(),
				"requested": input.Target.String(),
			})
		}
		if from == enums.OrderStatusPending && input.Target == enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pending orders are paid through payment confirmation").WithDetails(map[string]any{
				"order_id": order.ID.String(),
			})
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": input.Target}
		eventType := enums.EventOrderStateChanged
		switch input.Target {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			if input.TrackingRef != nil && *input.TrackingRef != "" {
				updates["tracking_ref"] = *input.TrackingRef
			}
			eventType = enums.EventOrderShipped
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			eventType = enums.EventOrderDelivered
		case enums.OrderStatusPaid:
			// COD collection: stock was charged at intake, only the
			// payment bookkeeping changes.
			updates["paid_at"] = now
			updates["payment_source"] = enums.PaymentSourceManual.String()
			eventType = enums.EventOrderPaid
		}

		won, err := repo.UpdateOrderStatusIf(ctx, order.ID, from, input.Target, updates)
		if err != nil {
			return err
		}
		if !won {
			current, err := repo.FindOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.Status == input.Target {
				updated = current
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while updating status").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   current.Status.String(),
			})
		}

		order.Status = input.Target
		switch input.Target {
		case enums.OrderStatusShipped:
			order.ShippedAt = &now
			if input.TrackingRef != nil && *input.TrackingRef != "" {
				order.TrackingRef = input.TrackingRef
			}
		case enums.OrderStatusDelivered:
			order.DeliveredAt = &now
		case enums.OrderStatusPaid:
			source := enums.PaymentSourceManual.String()
			order.PaidAt = &now
			order.PaymentSource = &source
		}
		updated = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: OrderStatusChangedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				FromStatus: from,
				ToStatus:   input.Target,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		s.payments.IncTransition(from.String(), input.Target.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel aborts an order. Buyers may cancel before fulfilment starts
// (PENDING or CONFIRMED); admins may additionally cancel a PAID order,
// which records a refund request. Stock held by the order is returned.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !input.AsAdmin && order.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}

		from := order.Status
		if from == enums.OrderStatusCancelled {
			cancelled = order
			return nil
		}
		if !cancellableBy(from, input.AsAdmin) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   from.String(),
			})
		}

		now := time.Now().UTC()
		won, err := repo.UpdateOrderStatusIf(ctx, order.ID, from, enums.OrderStatusCancelled, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			return err
		}
		if !won {
			current, err := repo.FindOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.Status == enums.OrderStatusCancelled {
				cancelled = current
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while cancelling").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   current.Status.String(),
			})
		}

		restocked := false
		if from.HoldsStock() {
			if err := s.ledger.Restock(ctx, tx, stockLines(order.Items)); err != nil {
				return err
			}
			restocked = true
		}

		if from == enums.OrderStatusPaid {
			refund := &models.Refund{
				ID:       uuid.New(),
				OrderID:  order.ID,
				BuyerID:  order.BuyerID,
				Amount:   order.TotalPrice,
				Currency: order.Currency,
				Reason:   input.Reason,
			}
			if _, err := repo.CreateRefund(ctx, refund); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRefundRequested,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         buildActor(input.ActorUserID, input.ActorRole),
				Data: map[string]any{
					"order_id":  order.ID.String(),
					"refund_id": refund.ID.String(),
					"amount":    order.TotalPrice.StringFixed(2),
					"currency":  order.Currency,
				},
				Version: 1,
			}); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		cancelled = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: OrderCancelledEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				WasStatus: from,
				Restocked: restocked,
				Reason:    input.Reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		s.payments.IncTransition(from.String(), enums.OrderStatusCancelled.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// SwitchPaymentMethod lets a buyer change how they will pay before any
// payment signal lands. Moving onto cash-on-delivery re-checks and charges
// stock; moving off it returns the stock and the order goes back to
// awaiting payment.
func (s *Service) SwitchPaymentMethod(ctx context.Context, input SwitchPaymentMethodInput) (*models.Order, error) {
	if !input.NewMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	var switched *models.Order
	var openGatewayInvoice bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}

		oldMethod := order.PaymentMethod
		if oldMethod == input.NewMethod {
			switched = order
			return nil
		}

		from := order.Status
		awaitingPayment := from == enums.OrderStatusPending ||
			(from == enums.OrderStatusConfirmed && oldMethod == enums.PaymentMethodCashOnDelivery)
		if !awaitingPayment {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment method can no longer change").WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"status":   from.String(),
			})
		}

		target := input.NewMethod.InitialOrderStatus()
		updates := map[string]any{
			"status":         target,
			"payment_method": input.NewMethod,
			"gateway_ref":    nil,
		}

		// Charge stock before committing to cash-on-delivery; a depleted
		// product rejects the switch and leaves the order untouched.
		if !oldMethod.DecrementsOnCreate() && input.NewMethod.DecrementsOnCreate() {
			if err := s.ledger.Decrement(ctx, tx, stockLines(order.Items)); err != nil {
				return err
			}
		}
		if oldMethod.DecrementsOnCreate() && !input.NewMethod.DecrementsOnCreate() {
			if err := s.ledger.Restock(ctx, tx, stockLines(order.Items)); err != nil {
				return err
			}
		}

		won, err := repo.UpdateOrderStatusIf(ctx, order.ID, from, target, updates)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while switching payment method").WithDetails(map[string]any{
				"order_id": order.ID.String(),
			})
		}

		order.Status = target
		order.PaymentMethod = input.NewMethod
		order.GatewayRef = nil
		switched = order
		openGatewayInvoice = input.NewMethod == enums.PaymentMethodGateway

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentMethodSwitched,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: PaymentMethodSwitchedEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				OldMethod: oldMethod,
				NewMethod: input.NewMethod,
				NewStatus: target,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		if from != target {
			s.payments.IncTransition(from.String(), target.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if openGatewayInvoice {
		s.openInvoice(ctx, switched)
	}
	return switched, nil
}

// ExpireStalePending cancels PENDING orders older than the cutoff. They hold
// no stock, so expiry is pure bookkeeping plus an event for notifications.
func (s *Service) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPendingOrdersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range stale {
		order := order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			now := time.Now().UTC()
			won, err := repo.UpdateOrderStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			})
			if err != nil {
				return err
			}
			if !won {
				return nil
			}
			expired++
			s.payments.IncTransition(enums.OrderStatusPending.String(), enums.OrderStatusCancelled.String())
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: OrderCancelledEvent{
					OrderID:   order.ID,
					BuyerID:   order.BuyerID,
					WasStatus: enums.OrderStatusPending,
					Restocked: false,
				},
				Version: 1,
			})
		})
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "expiring stale order failed", err)
		}
	}
	return expired, nil
}

// GetOrder loads a single order, enforcing visibility: buyers see their own
// orders, sellers see orders containing their items, admins see everything.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, role enums.MemberRole) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch role {
	case enums.MemberRoleAdmin:
		return order, nil
	case enums.MemberRoleBuyer:
		if order.BuyerID != requesterID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
		}
		return order, nil
	case enums.MemberRoleSeller:
		for _, item := range order.Items {
			if item.SellerID == requesterID {
				return order, nil
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order contains no items for this seller")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
}

// ListBuyerOrders returns a cursor page of the buyer's orders.
func (s *Service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters BuyerOrderFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	return s.repo.ListBuyerOrders(ctx, buyerID, params, filters)
}

// ListSellerOrders returns a cursor page of orders containing the seller's items.
func (s *Service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.repo.ListSellerOrders(ctx, sellerID, params)
}

func (s *Service) resolveOrder(ctx context.Context, repo Repository, orderID uuid.UUID, gatewayRef string) (*models.Order, error) {
	if orderID != uuid.Nil {
		return repo.FindOrder(ctx, orderID)
	}
	if gatewayRef != "" {
		return repo.FindOrderByGatewayRef(ctx, gatewayRef)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or gateway ref is required")
}

// cancellableBy encodes who may cancel from which state. Buyers stop at
// fulfilment; admins may also unwind a paid order (with a refund).
func cancellableBy(status enums.OrderStatus, asAdmin bool) bool {
	switch status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed:
		return true
	case enums.OrderStatusPaid:
		return asAdmin
	default:
		return false
	}
}

func validateSourceForMethod(source enums.PaymentSource, method enums.PaymentMethod) error {
	gatewaySource := source == enums.PaymentSourceGatewayCallback || source == enums.PaymentSourceGatewayPoll
	if gatewaySource && method != enums.PaymentMethodGateway {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "gateway signal for a non-gateway order").WithDetails(map[string]any{
			"payment_method": method.String(),
		})
	}
	if source == enums.PaymentSourceManual && method == enums.PaymentMethodCashOnDelivery {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cash orders are settled at delivery").WithDetails(map[string]any{
			"payment_method": method.String(),
		})
	}
	return nil
}

func stockLines(items []models.OrderItem) []stock.Line {
	lines := make([]stock.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, stock.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}
