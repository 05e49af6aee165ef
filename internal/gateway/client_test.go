package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{ServiceName: "gateway-test", Level: logger.ParseLevel("error")})

	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:       srv.URL,
		MerchantCode:  "soko-test",
		APIKey:        "sk-test",
		CallbackToken: "cb-secret",
		Timeout:       2 * time.Second,
		InvoiceExpiry: time.Hour,
	}, logg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestCreateInvoice(t *testing.T) {
	orderID := uuid.New()

	var captured createInvoiceRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/invoices" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(invoiceResponse{
			Ref:         "inv-123",
			Status:      "pending",
			CheckoutURL: "https://pay.example.com/inv-123",
			Amount:      captured.Amount,
			Currency:    captured.Currency,
		})
	}))

	inv, err := client.CreateInvoice(context.Background(), CreateInvoiceParams{
		OrderID:  orderID,
		Amount:   decimal.RequireFromString("125.50"),
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if captured.MerchantRef != orderID.String() {
		t.Fatalf("merchant_ref = %q, want order id", captured.MerchantRef)
	}
	if captured.Amount != "125.50" {
		t.Fatalf("amount = %q, want 125.50", captured.Amount)
	}
	if inv.Ref != "inv-123" {
		t.Fatalf("ref = %q, want inv-123", inv.Ref)
	}
	if inv.Status != InvoiceStatusPending {
		t.Fatalf("status = %q, want pending", inv.Status)
	}
	if inv.CheckoutURL == "" {
		t.Fatal("expected checkout URL")
	}
}

func TestGetInvoicePaid(t *testing.T) {
	paidAt := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invoices/inv-9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(invoiceResponse{
			Ref:      "inv-9",
			Status:   "PAID",
			Amount:   "40.00",
			Currency: "USD",
			PaidAt:   paidAt.Format(time.RFC3339),
		})
	}))

	inv, err := client.GetInvoice(context.Background(), "inv-9")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !inv.Status.Settled() {
		t.Fatalf("status = %q, want settled", inv.Status)
	}
	if inv.PaidAt == nil || !inv.PaidAt.Equal(paidAt) {
		t.Fatalf("paid_at = %v, want %v", inv.PaidAt, paidAt)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(errorResponse{Message: "invoice not found"})
	}))

	_, err := client.GetInvoice(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyCallbackToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if !client.VerifyCallbackToken("cb-secret") {
		t.Fatal("expected matching token to verify")
	}
	if client.VerifyCallbackToken("wrong") {
		t.Fatal("expected mismatched token to fail")
	}
	if client.VerifyCallbackToken("") {
		t.Fatal("expected empty token to fail")
	}
}
