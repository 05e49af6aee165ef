package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/internal/notifications"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/internal/settlement"
	pkgauth "github.com/sokomart-dev/sokomart-backend/pkg/auth"
	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
	"github.com/sokomart-dev/sokomart-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) CreateOrder(context.Context, orders.CreateOrderInput) (*orders.CreateOrderResult, error) {
	return &orders.CreateOrderResult{Order: &models.Order{}}, nil
}

func (stubOrdersService) GetOrder(context.Context, uuid.UUID, uuid.UUID, enums.MemberRole) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListBuyerOrders(context.Context, uuid.UUID, pagination.Params, orders.BuyerOrderFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) ListSellerOrders(context.Context, uuid.UUID, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) Cancel(context.Context, orders.CancelInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) SwitchPaymentMethod(context.Context, orders.SwitchPaymentMethodInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) UpdateStatus(context.Context, orders.UpdateStatusInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) VerifyGatewayPayment(context.Context, uuid.UUID, uuid.UUID, string) (*orders.ConfirmPaymentResult, error) {
	return &orders.ConfirmPaymentResult{}, nil
}

func (stubOrdersService) ConfirmPayment(context.Context, orders.ConfirmPaymentInput) (*orders.ConfirmPaymentResult, error) {
	return &orders.ConfirmPaymentResult{}, nil
}

func (stubOrdersService) RejectPayment(context.Context, orders.RejectPaymentInput) (*orders.RejectPaymentResult, error) {
	return &orders.RejectPaymentResult{}, nil
}

type stubEarnings struct{}

func (stubEarnings) EarningsFor(context.Context, uuid.UUID, settlement.Filters) (*settlement.Summary, error) {
	return &settlement.Summary{}, nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotifications) UnreadCount(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "sokomart-test", ExpirationMinutes: 30},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Redis:         (*redis.Client)(nil),
		Orders:        stubOrdersService{},
		Earnings:      stubEarnings{},
		Notifications: stubNotifications{},
		Gateway:       nil,
	})
}

func mintToken(t *testing.T, cfg *config.Config, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.MemberRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSellerGroupRequiresSellerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/earnings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.MemberRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("buyer hitting seller surface: expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/seller/earnings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.MemberRoleSeller))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("seller hitting seller surface: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSellerGroupAdmitsAdmins(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/earnings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.MemberRoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestNotificationsRequireAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, enums.MemberRoleBuyer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGatewayWebhookSkipsUserAuth(t *testing.T) {
	router := newTestRouter(testConfig())

	// No bearer token: the webhook authenticates with its own callback
	// token, so the response is 401 from the webhook, not the JWT layer.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
