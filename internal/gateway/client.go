package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

var (
	errBaseURLRequired       = errors.New("gateway base URL is required")
	errMerchantCodeRequired  = errors.New("gateway merchant code is required")
	errAPIKeyRequired        = errors.New("gateway API key is required")
	errCallbackTokenRequired = errors.New("gateway callback token is required")
	errLoggerRequired        = errors.New("gateway logger is required")
)

// InvoiceStatus is the payment state the provider reports for an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusExpired InvoiceStatus = "EXPIRED"
	InvoiceStatusFailed  InvoiceStatus = "FAILED"
)

// Settled reports whether the provider considers the invoice paid.
func (s InvoiceStatus) Settled() bool {
	return s == InvoiceStatusPaid
}

// Terminal reports whether the provider has given up on collecting this
// invoice. A terminal invoice never settles later.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusExpired || s == InvoiceStatusFailed
}

// Invoice is the provider-side record for a checkout session.
type Invoice struct {
	Ref         string
	Status      InvoiceStatus
	CheckoutURL string
	Amount      decimal.Decimal
	Currency    string
	PaidAt      *time.Time
}

// CreateInvoiceParams carries everything the provider needs to open an invoice.
type CreateInvoiceParams struct {
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	BuyerEmail  string
	Description string
}

// Client wraps the payment provider API with centralized auth, logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	merchantCode  string
	apiKey        string
	callbackToken string
	invoiceExpiry time.Duration
	logger        *logger.Logger
}

// NewClient initializes the provider wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	merchantCode := strings.TrimSpace(cfg.MerchantCode)
	if merchantCode == "" {
		return nil, errMerchantCodeRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	callbackToken := strings.TrimSpace(cfg.CallbackToken)
	if callbackToken == "" {
		return nil, errCallbackTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		merchantCode:  merchantCode,
		apiKey:        apiKey,
		callbackToken: callbackToken,
		invoiceExpiry: cfg.InvoiceExpiry,
		logger:        logg,
	}

	logg.Info(ctx, "gateway client initialized")
	return c, nil
}

// VerifyCallbackToken compares a callback token against the shared secret in constant time.
func (c *Client) VerifyCallbackToken(token string) bool {
	if c == nil || c.callbackToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.callbackToken)) == 1
}

type createInvoiceRequest struct {
	MerchantCode   string `json:"merchant_code"`
	MerchantRef    string `json:"merchant_ref"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	CustomerEmail  string `json:"customer_email,omitempty"`
	Description    string `json:"description,omitempty"`
	ExpirySeconds  int64  `json:"expiry_seconds,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type invoiceResponse struct {
	Ref         string `json:"ref"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	PaidAt      string `json:"paid_at"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateInvoice opens a provider invoice for the order and returns the hosted checkout URL.
func (c *Client) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	req := createInvoiceRequest{
		MerchantCode:   c.merchantCode,
		MerchantRef:    params.OrderID.String(),
		Amount:         params.Amount.StringFixed(2),
		Currency:       params.Currency,
		CustomerEmail:  params.BuyerEmail,
		Description:    params.Description,
		IdempotencyKey: fmt.Sprintf("inv-%s", params.OrderID),
	}
	if c.invoiceExpiry > 0 {
		req.ExpirySeconds = int64(c.invoiceExpiry / time.Second)
	}

	c.log(ctx, "request", "create_invoice", map[string]any{
		"merchant_ref": req.MerchantRef,
		"amount":       req.Amount,
		"currency":     req.Currency,
	})

	var resp invoiceResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invoices", req, &resp); err != nil {
		c.log(ctx, "error", "create_invoice", map[string]any{"error": err.Error()})
		return nil, err
	}

	inv, err := resp.toInvoice()
	if err != nil {
		return nil, err
	}

	c.log(ctx, "response", "create_invoice", map[string]any{
		"invoice_ref": inv.Ref,
		"status":      string(inv.Status),
	})
	return inv, nil
}

// GetInvoice fetches the current provider-side state of an invoice.
func (c *Client) GetInvoice(ctx context.Context, ref string) (*Invoice, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice ref is required")
	}

	c.log(ctx, "request", "get_invoice", map[string]any{"invoice_ref": ref})

	var resp invoiceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/invoices/"+ref, nil, &resp); err != nil {
		c.log(ctx, "error", "get_invoice", map[string]any{"error": err.Error()})
		return nil, err
	}

	inv, err := resp.toInvoice()
	if err != nil {
		return nil, err
	}

	c.log(ctx, "response", "get_invoice", map[string]any{
		"invoice_ref": inv.Ref,
		"status":      string(inv.Status),
	})
	return inv, nil
}

func (r invoiceResponse) toInvoice() (*Invoice, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway returned malformed amount")
	}

	inv := &Invoice{
		Ref:         r.Ref,
		Status:      InvoiceStatus(strings.ToUpper(r.Status)),
		CheckoutURL: r.CheckoutURL,
		Amount:      amount,
		Currency:    r.Currency,
	}
	if r.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, r.PaidAt)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway returned malformed paid_at")
		}
		inv.PaidAt = &paidAt
	}
	return inv, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return c.mapError(httpResp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var payload errorResponse
	_ = json.Unmarshal(raw, &payload)
	msg := strings.TrimSpace(payload.Message)
	if msg == "" {
		msg = fmt.Sprintf("gateway responded with status %d", status)
	}

	switch {
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway rejected credentials")
	case status >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{
			"gateway_code": payload.Code,
		})
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}
