package main

import (
	"context"
	"errors"
	"testing"

	"github.com/fuelops/fuelops-backend/pkg/config"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	"github.com/fuelops/fuelops-backend/pkg/metrics"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
	second := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
	h := newHarness(t, config.OutboxConfig{}, first, second)
	h.failNext(errors.New("transient"), nil)

	stats, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batchStats{claimed: 2, published: 1, retried: 1}, stats)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchHonoursBatchSize(t *testing.T) {
	rows := []uuid.UUID{}
	h := newHarness(t, config.OutboxConfig{BatchSize: 2})
	for i := 0; i < 3; i++ {
		row := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
		h.repo.events = append(h.repo.events, row)
		rows = append(rows, row.ID)
	}

	stats, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.claimed)
	assert.Equal(t, rows[:2], h.repo.published)
}

func TestProcessBatchDefersEventsBehindFailedAggregate(t *testing.T) {
	accountID := uuid.New()
	first := outboxRow(t, enums.EventLedgerEntryRecorded, accountID)
	second := outboxRow(t, enums.EventAccountRecalculated, accountID)
	unrelated := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
	h := newHarness(t, config.OutboxConfig{}, first, second, unrelated)
	h.failNext(errors.New("unavailable"), errors.New("publishing paused"), nil)

	stats, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batchStats{claimed: 3, published: 1, retried: 1, deferred: 1}, stats)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed, "only the first failure burns an attempt")
	assert.Equal(t, []uuid.UUID{unrelated.ID}, h.repo.published)

	key := "account:" + accountID.String()
	assert.Equal(t, []string{key}, h.pub.resumed)
	assert.Equal(t, key, h.pub.sent[0].OrderingKey)
	assert.Equal(t, key, h.pub.sent[1].OrderingKey)
}

func TestProcessBatchRoutesInvoiceEventsWithAttributes(t *testing.T) {
	row := outboxRow(t, enums.EventInvoiceFinalised, uuid.New())
	h := newHarness(t, config.OutboxConfig{}, row)
	h.registry.topic = "invoice-topic"
	h.registry.actor = &outbox.ActorRef{Source: "invoice-bridge"}
	var topics []string
	h.svc.publisherFactory = func(topic string) publisher {
		topics = append(topics, topic)
		return h.pub
	}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"invoice-topic"}, topics)
	require.Len(t, h.pub.sent, 1)
	attrs := h.pub.sent[0].Attributes
	assert.Equal(t, row.AggregateID.String(), attrs["invoice_id"])
	assert.NotContains(t, attrs, "account_id")
	assert.Equal(t, string(enums.EventInvoiceFinalised), attrs["event_type"])
	assert.Equal(t, "1", attrs["schema_version"])
	assert.Equal(t, "invoice-bridge", attrs["source"])
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.published)
}

func TestMessageAttributesTagAccount(t *testing.T) {
	row := outboxRow(t, enums.EventAccountRecalculated, uuid.New())
	attrs := messageAttributes(row, outbox.PayloadEnvelope{EventID: "evt-1", Version: 1})

	assert.Equal(t, row.AggregateID.String(), attrs["account_id"])
	assert.Equal(t, "evt-1", attrs["event_id"])
	assert.NotContains(t, attrs, "source")
}

func TestProcessBatchRecordsOutcomeMetrics(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{},
		outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New()),
		outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New()),
	)
	h.failNext(nil, errors.New("transient"))
	reg := prometheus.NewRegistry()
	h.svc.metrics = metrics.NewOutboxMetrics(reg)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mustCount(t, reg, "fuelops_outbox_events_total"))
}

func TestProcessBatchDeadLettersUnresolvableRows(t *testing.T) {
	row := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
	h := newHarness(t, config.OutboxConfig{}, row)
	h.registry.err = registry.NewNonRetryableError(errors.New("invalid payload"))

	stats, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.deadLettered)
	assert.Empty(t, h.pub.sent)
	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, []byte(row.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	row := outboxRow(t, enums.EventLedgerEntryRecorded, uuid.New())
	row.AttemptCount = 1
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 2}, row)
	h.failNext(errors.New("transient"))

	stats, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batchStats{claimed: 1, deadLettered: 1}, stats)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.repo.failed)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func mustCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	return n
}
