package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/api/middleware"
	"github.com/sokomart-dev/sokomart-backend/api/responses"
	"github.com/sokomart-dev/sokomart-backend/api/validators"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
	"github.com/sokomart-dev/sokomart-backend/pkg/types"
)

// OrdersService is the slice of the order service the HTTP layer uses.
type OrdersService interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID, requesterID uuid.UUID, role enums.MemberRole) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.BuyerOrderFilters) (*orders.OrderList, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*orders.OrderList, error)
	Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error)
	SwitchPaymentMethod(ctx context.Context, input orders.SwitchPaymentMethodInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*models.Order, error)
	VerifyGatewayPayment(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*orders.ConfirmPaymentResult, error)
	ConfirmPayment(ctx context.Context, input orders.ConfirmPaymentInput) (*orders.ConfirmPaymentResult, error)
	RejectPayment(ctx context.Context, input orders.RejectPaymentInput) (*orders.RejectPaymentResult, error)
}

type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id" validate:"required,uuid"`
		Qty       int    `json:"qty" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	ShippingInfo  types.ShippingInfo `json:"shipping_info"`
}

type createOrderResponse struct {
	Order *models.Order `json:"order"`
	// CheckoutURL is present for gateway orders; manual transfers get
	// human payment instructions instead.
	CheckoutURL  string `json:"checkout_url,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

const manualTransferInstructions = "Transfer the order total to the marketplace account and quote your order id; a reviewer will confirm your payment."

// CreateOrder places an order for the authenticated buyer.
func CreateOrder(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		lines := make([]orders.CartLine, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			lines = append(lines, orders.CartLine{ProductID: productID, Qty: item.Qty})
		}

		result, err := svc.CreateOrder(r.Context(), orders.CreateOrderInput{
			BuyerID:       buyerID,
			Lines:         lines,
			PaymentMethod: method,
			ShippingInfo:  req.ShippingInfo,
			ActorRole:     role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createOrderResponse{Order: result.Order, CheckoutURL: result.GatewayCheckoutURL}
		if method == enums.PaymentMethodManualTransfer {
			resp.Instructions = manualTransferInstructions
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ListOrders pages through the caller's orders: buyers see their own,
// sellers the orders containing their items.
func ListOrders(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var list *orders.OrderList
		if role == enums.MemberRoleSeller.String() {
			list, err = svc.ListSellerOrders(r.Context(), userID, params)
		} else {
			filters := orders.BuyerOrderFilters{}
			if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
				status, parseErr := enums.ParseOrderStatus(raw)
				if parseErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "unknown order status"))
					return
				}
				filters.Status = &status
			}
			list, err = svc.ListBuyerOrders(r.Context(), userID, params, filters)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one order, access-checked for the caller.
func OrderDetail(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.GetOrder(r.Context(), orderID, userID, enums.MemberRole(role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CancelOrder cancels the caller's order; admins may cancel anyone's.
func CancelOrder(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
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

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			Reason:      req.Reason,
			ActorUserID: userID,
			ActorRole:   role,
			AsAdmin:     role == enums.MemberRoleAdmin.String(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type switchPaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// SwitchPaymentMethod changes how an unpaid order will be paid.
func SwitchPaymentMethod(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
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

		var req switchPaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		order, err := svc.SwitchPaymentMethod(r.Context(), orders.SwitchPaymentMethodInput{
			OrderID:     orderID,
			NewMethod:   method,
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

func actorFromContext(r *http.Request) (uuid.UUID, string, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor context")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return userID, middleware.RoleFromContext(r.Context()), nil
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderId")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
