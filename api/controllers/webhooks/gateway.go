package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sokomart-dev/sokomart-backend/api/responses"
	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

const callbackTokenHeader = "X-Callback-Token"

// PaymentReconciler is the slice of the order service the gateway webhook
// uses: settled invoices confirm the payment, terminal ones cancel the order.
type PaymentReconciler interface {
	ConfirmPayment(ctx context.Context, input orders.ConfirmPaymentInput) (*orders.ConfirmPaymentResult, error)
	RejectPayment(ctx context.Context, input orders.RejectPaymentInput) (*orders.RejectPaymentResult, error)
}

type tokenVerifier interface {
	VerifyCallbackToken(token string) bool
}

type gatewayCallbackEvent struct {
	InvoiceRef string `json:"invoice_ref"`
	Status     string `json:"status"`
}

// GatewayCallback handles the provider's payment notification. Replays are
// harmless: payment confirmation is idempotent on the order side.
func GatewayCallback(svc PaymentReconciler, verifier tokenVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway webhook unavailable"))
			return
		}

		token := strings.TrimSpace(r.Header.Get(callbackTokenHeader))
		if token == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "callback token missing"))
			return
		}
		if !verifier.VerifyCallbackToken(token) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "callback token rejected"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event gatewayCallbackEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback"))
			return
		}
		if strings.TrimSpace(event.InvoiceRef) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invoice_ref is required"))
			return
		}

		invoiceStatus := gateway.InvoiceStatus(strings.ToUpper(strings.TrimSpace(event.Status)))
		switch {
		case invoiceStatus.Settled():
			result, err := svc.ConfirmPayment(ctx, orders.ConfirmPaymentInput{
				GatewayRef: event.InvoiceRef,
				Source:     enums.PaymentSourceGatewayCallback,
			})
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			status := "confirmed"
			if result.AlreadyPaid {
				status = "duplicate"
			}
			responses.WriteSuccess(w, map[string]string{"status": status})

		case invoiceStatus.Terminal():
			// The invoice will never settle; release the order.
			result, err := svc.RejectPayment(ctx, orders.RejectPaymentInput{
				GatewayRef:     event.InvoiceRef,
				Source:         enums.PaymentSourceGatewayCallback,
				ProviderStatus: string(invoiceStatus),
			})
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			status := "cancelled"
			if result.AlreadyResolved {
				status = "duplicate"
			}
			responses.WriteSuccess(w, map[string]string{"status": status})

		default:
			// Intermediate states are acks so the provider stops retrying.
			if logg != nil {
				logCtx := logg.WithFields(ctx, map[string]any{
					"invoice_ref":    event.InvoiceRef,
					"invoice_status": event.Status,
				})
				logg.Info(logCtx, "gateway callback ignored")
			}
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
		}
	}
}
