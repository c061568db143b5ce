package main

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/payloads"
	"github.com/fuelops/fuelops-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// harness wires a Service to in-memory fakes.
type harness struct {
	repo     *memRepo
	pub      *recordingPublisher
	registry *stubRegistry
	dlq      *memDLQ
	svc      *Service
}

func newHarness(t *testing.T, cfg config.OutboxConfig, events ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo:     &memRepo{events: events},
		pub:      &recordingPublisher{},
		registry: &stubRegistry{payload: &payloads.LedgerEntryRecordedEvent{}, topic: "ledger-topic"},
		dlq:      &memDLQ{},
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: cfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               inlineDB{},
		PubSub:           idlePubSub{},
		Repository:       h.repo,
		Registry:         h.registry,
		PublisherFactory: func(string) publisher { return h.pub },
		DLQRepository:    h.dlq,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// failNext queues publish errors; nil entries succeed.
func (h *harness) failNext(errs ...error) {
	h.pub.errs = append(h.pub.errs, errs...)
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: eventType.Aggregate(),
		AggregateID:   aggregateID,
		Payload:       envelope,
	}
}

type memRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (m *memRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *memRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type inlineDB struct{}

func (inlineDB) Ping(context.Context) error { return nil }

func (inlineDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type idlePubSub struct{}

func (idlePubSub) Ping(context.Context) error { return nil }

func (idlePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type recordingPublisher struct {
	errs    []error
	sent    []*gcppubsub.Message
	resumed []string
}

func (p *recordingPublisher) ResumePublish(key string) {
	p.resumed = append(p.resumed, key)
}

func (p *recordingPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	return settledResult{err: err}
}

type settledResult struct{ err error }

func (r settledResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

// stubRegistry resolves every row onto topic unless err is set.
type stubRegistry struct {
	topic   string
	payload any
	actor   *outbox.ActorRef
	err     error
}

func (s *stubRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	envelope.Actor = s.actor
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: s.topic, AggregateType: event.AggregateType},
		Envelope:   envelope,
		Payload:    s.payload,
	}, nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) ParkTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}
