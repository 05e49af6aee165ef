package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

type fakeExpirer struct {
	cutoffs []time.Time
	expired int
	err     error
}

func (f *fakeExpirer) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.expired, f.err
}

func TestOrderTTLJobUsesConfiguredTTL(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 3}
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Expirer: expirer,
		TTL:     6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job := jobIface.(*orderTTLJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 1 {
		t.Fatalf("expected 1 sweep, got %d", len(expirer.cutoffs))
	}
	want := now.Add(-6 * time.Hour)
	if !expirer.cutoffs[0].Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", expirer.cutoffs[0], want)
	}
}

func TestOrderTTLJobPropagatesFailure(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Expirer: expirer,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing expirer")
	}
}

func TestOrderTTLJobRequiresExpirer(t *testing.T) {
	_, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
	})
	if err == nil {
		t.Fatal("expected constructor error without expirer")
	}
}
