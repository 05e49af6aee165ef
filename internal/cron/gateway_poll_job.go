package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

const defaultGatewayPollMaxAge = 48 * time.Hour

// GatewayPollJobParams configure the invoice reconciliation sweep.
type GatewayPollJobParams struct {
	Logger        *logger.Logger
	PendingReader pendingOrderReader
	Verifier      gatewayVerifier
	MaxAge        time.Duration
}

type pendingOrderReader interface {
	FindPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type gatewayVerifier interface {
	VerifyGatewayPayment(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*orders.ConfirmPaymentResult, error)
}

// NewGatewayPollJob builds the cron job that polls the provider for invoices
// whose callback never arrived. Dropped callbacks are the rule, not the
// exception, on flaky networks: polling is the safety net that keeps paid
// invoices from sitting in PENDING forever.
func NewGatewayPollJob(params GatewayPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("gateway verifier required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultGatewayPollMaxAge
	}
	return &gatewayPollJob{
		logg:     params.Logger,
		pending:  params.PendingReader,
		verifier: params.Verifier,
		maxAge:   maxAge,
		now:      time.Now,
	}, nil
}

type gatewayPollJob struct {
	logg     *logger.Logger
	pending  pendingOrderReader
	verifier gatewayVerifier
	maxAge   time.Duration
	now      func() time.Time
}

func (j *gatewayPollJob) Name() string { return "gateway-poll" }

func (j *gatewayPollJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.pending.FindPendingOrdersBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	oldest := now.Add(-j.maxAge)
	var errs error
	polled, settled := 0, 0
	for _, order := range rows {
		if order.PaymentMethod != enums.PaymentMethodGateway {
			continue
		}
		if order.GatewayRef == nil || *order.GatewayRef == "" {
			continue
		}
		// Invoices past the provider's expiry window are left to the TTL
		// sweep instead of being polled forever.
		if order.CreatedAt.Before(oldest) {
			continue
		}

		polled++
		result, err := j.verifier.VerifyGatewayPayment(ctx, order.ID, uuid.Nil, "")
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if result.StockApplied {
			settled++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"polled":  polled,
		"settled": settled,
	})
	j.logg.Info(logCtx, "gateway invoice poll complete")
	return errs
}
