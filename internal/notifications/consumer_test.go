package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
)

type captureRepo struct {
	rows []*models.Notification
	err  error
}

func (c *captureRepo) Create(_ context.Context, notification *models.Notification) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, notification)
	return nil
}

type fakeIdempotency struct {
	check    func(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	deleteFn func(ctx context.Context, consumer string, eventID uuid.UUID) error
	deleted  int
}

func (f *fakeIdempotency) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.check != nil {
		return f.check(ctx, consumer, eventID)
	}
	return false, nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	f.deleted++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, consumer, eventID)
	}
	return nil
}

func mustConsumer(t *testing.T, repo repository, manager idempotencyChecker) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Level: logger.ParseLevel("error"), Output: io.Discard})
	consumer, err := NewConsumer(repo, nil, manager, nil, logg)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func buildEnvelope(t *testing.T, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
}

func TestConsumerNotifiesBuyerAndSellersOnCreate(t *testing.T) {
	repo := &captureRepo{}
	consumer := mustConsumer(t, repo, &fakeIdempotency{})

	buyer := uuid.New()
	sellerA := uuid.New()
	sellerB := uuid.New()
	envelope := buildEnvelope(t, map[string]any{
		"order_id":       uuid.New().String(),
		"buyer_id":       buyer.String(),
		"seller_ids":     []string{sellerA.String(), sellerB.String()},
		"status":         "pending",
		"payment_method": "manual_transfer",
		"total_price":    42.50,
		"currency":       "USD",
	})

	if err := consumer.Process(context.Background(), enums.EventOrderCreated, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if len(repo.rows) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(repo.rows))
	}
	if repo.rows[0].UserID != buyer || repo.rows[0].Type != enums.NotificationTypePaymentPending {
		t.Fatalf("unexpected buyer notification: %+v", repo.rows[0])
	}
	sellers := map[uuid.UUID]bool{repo.rows[1].UserID: true, repo.rows[2].UserID: true}
	if !sellers[sellerA] || !sellers[sellerB] {
		t.Fatal("both sellers must be notified")
	}
	for _, row := range repo.rows[1:] {
		if row.Type != enums.NotificationTypeSellerNewOrder {
			t.Fatalf("unexpected seller notification type %s", row.Type)
		}
	}
}

func TestConsumerSkipsDuplicateEvents(t *testing.T) {
	repo := &captureRepo{}
	manager := &fakeIdempotency{
		check: func(_ context.Context, _ string, _ uuid.UUID) (bool, error) {
			return true, nil
		},
	}
	consumer := mustConsumer(t, repo, manager)

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.New().String(),
		"buyer_id": uuid.New().String(),
	})
	if err := consumer.Process(context.Background(), enums.EventOrderPaid, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("duplicate event must write nothing, got %d rows", len(repo.rows))
	}
}

func TestConsumerReleasesIdempotencyKeyOnFailure(t *testing.T) {
	repo := &captureRepo{err: errors.New("db offline")}
	manager := &fakeIdempotency{}
	consumer := mustConsumer(t, repo, manager)

	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.New().String(),
		"buyer_id": uuid.New().String(),
	})
	err := consumer.Process(context.Background(), enums.EventOrderShipped, envelope)
	if err == nil {
		t.Fatal("expected error when the write fails")
	}
	if manager.deleted != 1 {
		t.Fatalf("failed handling must release the idempotency key, deletes = %d", manager.deleted)
	}
}

func TestConsumerIgnoresUnhandledEvents(t *testing.T) {
	repo := &captureRepo{}
	consumer := mustConsumer(t, repo, &fakeIdempotency{})

	envelope := buildEnvelope(t, map[string]any{"order_id": uuid.New().String()})
	if err := consumer.Process(context.Background(), enums.EventStockDepleted, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("unhandled event must write nothing, got %d rows", len(repo.rows))
	}
}

func TestConsumerCancellationMessageCarriesReason(t *testing.T) {
	repo := &captureRepo{}
	consumer := mustConsumer(t, repo, &fakeIdempotency{})

	buyer := uuid.New()
	envelope := buildEnvelope(t, map[string]any{
		"order_id": uuid.New().String(),
		"buyer_id": buyer.String(),
		"reason":   "out of stock",
	})
	if err := consumer.Process(context.Background(), enums.EventOrderCancelled, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.UserID != buyer || row.Type != enums.NotificationTypeOrderCancelled {
		t.Fatalf("unexpected notification: %+v", row)
	}
	if want := "Reason: out of stock"; !strings.Contains(row.Message, want) {
		t.Fatalf("message %q missing %q", row.Message, want)
	}
}
