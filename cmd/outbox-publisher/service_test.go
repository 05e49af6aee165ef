package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	"github.com/sokomart-dev/sokomart-backend/pkg/enums"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{
				ID:            uuid.New(),
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-one"),
			},
			{
				ID:            uuid.New(),
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-two"),
			},
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestServiceProcessBatchEmptyFetchReportsIdle(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestServiceRoutesNotificationAggregateToNotificationTopic(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "notify"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	var routed []enums.OutboxAggregateType
	service.publisherFactory = func(aggregate enums.OutboxAggregateType) publisher {
		routed = append(routed, aggregate)
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(routed) != 1 || routed[0] != enums.AggregateNotification {
		t.Fatalf("unexpected routing: %v", routed)
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected published row recorded once, got %d", len(repo.published))
	}
}

func TestServiceProcessBatchSurfacesFetchError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("db down")}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
}

func TestServicePublishAttachesEventAttributes(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "evt-123"),
		CreatedAt:     time.Now(),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one published message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderCancelled) {
		t.Fatalf("unexpected event_type attribute: %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute: %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] != "evt-123" {
		t.Fatalf("unexpected event_id attribute: %q", attrs["event_id"])
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		PublisherFactory: func(enums.OutboxAggregateType) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, f.fetchErr
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) OrdersPublisher() *gcppubsub.Publisher {
	return nil
}

func (f *fakePubSubClient) NotificationPublisher() *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}
