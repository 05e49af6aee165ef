package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/api/responses"
	"github.com/sokomart-dev/sokomart-backend/api/validators"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/internal/settlement"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

type updateOrderStatusRequest struct {
	Status      string  `json:"status" validate:"required"`
	TrackingRef *string `json:"tracking_ref,omitempty" validate:"omitempty,max=128"`
}

// SellerUpdateOrderStatus drives ship/deliver/collect transitions.
func SellerUpdateOrderStatus(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:     orderID,
			Target:      target,
			TrackingRef: req.TrackingRef,
			ActorUserID: userID,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// SellerVerifyPayment asks the payment provider whether a pending gateway
// order has settled.
func SellerVerifyPayment(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyGatewayPayment(r.Context(), orderID, userID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SellerConfirmPayment records a human-verified manual transfer.
func SellerConfirmPayment(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), orders.ConfirmPaymentInput{
			OrderID:     orderID,
			Source:      enums.PaymentSourceManual,
			ActorUserID: userID,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// EarningsAggregator is the settlement surface the HTTP layer uses.
type EarningsAggregator interface {
	EarningsFor(ctx context.Context, sellerID uuid.UUID, filters settlement.Filters) (*settlement.Summary, error)
}

// SellerEarnings reports the caller's settled earnings.
func SellerEarnings(agg EarningsAggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := settlement.Filters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			from, parseErr := time.Parse(time.RFC3339, raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "from must be RFC3339"))
				return
			}
			filters.From = &from
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
			to, parseErr := time.Parse(time.RFC3339, raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "to must be RFC3339"))
				return
			}
			filters.To = &to
		}

		summary, err := agg.EarningsFor(r.Context(), userID, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
