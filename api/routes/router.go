package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sokomart-dev/sokomart-backend/api/controllers"
	webhookcontrollers "github.com/sokomart-dev/sokomart-backend/api/controllers/webhooks"
	"github.com/sokomart-dev/sokomart-backend/api/middleware"
	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/notifications"
	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/db"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Orders        controllers.OrdersService
	Earnings      controllers.EarningsAggregator
	Notifications notifications.Service
	Gateway       *gateway.Client
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadyDeps(params.DB, params.Redis)))
	})

	// Provider callbacks authenticate with their own token, not a user JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayCallback(params.Orders, params.Gateway, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(params.Orders, logg))
			r.Get("/", controllers.ListOrders(params.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(params.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(params.Orders, logg))
			r.Post("/{orderId}/payment-method", controllers.SwitchPaymentMethod(params.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(params.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(params.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(params.Notifications, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleSeller.String(), enums.MemberRoleAdmin.String()))
			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderId}/status", controllers.SellerUpdateOrderStatus(params.Orders, logg))
				r.Post("/{orderId}/verify-payment", controllers.SellerVerifyPayment(params.Orders, logg))
				r.Post("/{orderId}/confirm-payment", controllers.SellerConfirmPayment(params.Orders, logg))
			})
			r.Get("/earnings", controllers.SellerEarnings(params.Earnings, logg))
		})
	})

	return r
}
