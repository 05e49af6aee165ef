package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/stock"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
	"github.com/sokomart-dev/sokomart-backend/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByGatewayRef(ctx context.Context, ref string) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters BuyerOrderFilters) (*OrderList, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error)
	FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	// UpdateOrderStatusIf applies updates only when the stored status still
	// matches from; it reports whether the row was written. Every success-path
	// transition funnels through this guard so concurrent signals collapse to
	// a single winner.
	UpdateOrderStatusIf(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockLedger is the slice of the stock ledger the order flows need.
type stockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
	Restock(ctx context.Context, tx *gorm.DB, lines []stock.Line) error
}

// catalogSnapshot resolves authoritative product rows at checkout.
type catalogSnapshot interface {
	Load(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// paymentGateway is the slice of the provider client the order flows need.
type paymentGateway interface {
	CreateInvoice(ctx context.Context, params gateway.CreateInvoiceParams) (*gateway.Invoice, error)
	GetInvoice(ctx context.Context, ref string) (*gateway.Invoice, error)
}
