package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

type fakeRetentionRepo struct {
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func TestOutboxRetentionJobPrunesBeforeCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{deleted: 42}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: repo,
		Retention:  72 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.cutoffs) != 1 {
		t.Fatalf("expected 1 prune call, got %d", len(repo.cutoffs))
	}
	want := now.Add(-72 * time.Hour)
	if !repo.cutoffs[0].Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", repo.cutoffs[0], want)
	}
}

func TestOutboxRetentionJobDefaultsRetention(t *testing.T) {
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: &fakeRetentionRepo{},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	if job.retention != defaultOutboxRetention {
		t.Fatalf("expected default retention, got %s", job.retention)
	}
}

func TestOutboxRetentionJobPropagatesFailure(t *testing.T) {
	repo := &fakeRetentionRepo{err: errors.New("locked")}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing repository")
	}
}
