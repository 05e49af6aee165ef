package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

const defaultPendingOrderTTL = 24 * time.Hour

// OrderTTLJobParams configure the stale pending-order sweeper.
type OrderTTLJobParams struct {
	Logger  *logger.Logger
	Expirer staleOrderExpirer
	TTL     time.Duration
}

type staleOrderExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

// NewOrderTTLJob builds the cron job that expires orders whose payment
// never arrived.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &orderTTLJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

type orderTTLJob struct {
	logg    *logger.Logger
	expirer staleOrderExpirer
	ttl     time.Duration
	now     func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.expirer.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire stale pending orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	j.logg.Info(logCtx, "pending order sweep complete")
	return nil
}
