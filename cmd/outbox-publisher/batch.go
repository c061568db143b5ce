package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
	"github.com/fuelops/fuelops-backend/pkg/outbox/registry"
	"gorm.io/gorm"
)

type batchStats struct {
	claimed      int
	published    int
	retried      int
	deferred     int
	deadLettered int
}

// delivery is one claimed row between Publish and Get.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	pub      publisher
	result   publishResult
	fields   map[string]any
}

// processBatch publishes every claimed row before waiting on any result so
// the client can batch them. Rows sharing an aggregate carry the same
// ordering key; once one of them fails, later ones in the batch are left
// untouched for the next poll instead of burning an attempt.
func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		stats.claimed = len(events)
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		inflight := make([]delivery, 0, len(events))
		for _, event := range events {
			d, err := s.send(publishCtx, event)
			if err != nil {
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, d.fields); err != nil {
					return err
				}
				stats.deadLettered++
				continue
			}
			inflight = append(inflight, d)
		}

		paused := map[string]publisher{}
		for _, d := range inflight {
			if err := s.settle(ctx, publishCtx, tx, d, paused, &stats); err != nil {
				return err
			}
		}
		for key, pub := range paused {
			if r, ok := pub.(orderingResumer); ok {
				r.ResumePublish(key)
			}
		}
		return nil
	})
	return stats, err
}

// send resolves the row and hands it to the topic publisher. Any error it
// returns is final for the row.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) (delivery, error) {
	d := delivery{event: event, fields: s.eventFields(event, outbox.PayloadEnvelope{}, "")}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return d, err
	}
	topic := resolved.Descriptor.Topic
	d.resolved = resolved
	d.fields = s.eventFields(event, resolved.Envelope, topic)

	d.pub = s.publisherFactory(topic)
	if d.pub == nil {
		return d, fmt.Errorf("publisher not configured for topic %s", topic)
	}
	d.result = d.pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  messageAttributes(event, resolved.Envelope),
		OrderingKey: orderingKey(event),
	})
	if d.result == nil {
		return d, fmt.Errorf("publisher returned nil for topic %s", topic)
	}
	return d, nil
}

func (s *Service) settle(ctx, publishCtx context.Context, tx *gorm.DB, d delivery, paused map[string]publisher, stats *batchStats) error {
	event := d.event
	_, pubErr := d.result.Get(publishCtx)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		stats.published++
		s.metrics.Observe(string(event.EventType), "published")
		s.logg.Info(s.logg.WithFields(ctx, d.fields), "outbox event published")
		return nil
	}

	key := orderingKey(event)
	if _, blocked := paused[key]; blocked {
		stats.deferred++
		s.logg.Debug(s.logg.WithFields(ctx, d.fields), "outbox event deferred behind failed aggregate")
		return nil
	}
	paused[key] = d.pub

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		stats.deadLettered++
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, d.fields)
	}

	attempt := event.AttemptCount + 1
	d.fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		d.fields["terminal_reason"] = "max_attempts"
		stats.deadLettered++
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", pubErr), d.fields)
	}

	s.logg.Warn(s.logg.WithFields(ctx, withError(d.fields, pubErr)), "outbox publish failed")
	s.metrics.Observe(string(event.EventType), "retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	stats.retried++
	return nil
}

// deadLetter copies the row into outbox_dlq and parks it so it is never
// fetched again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithFields(ctx, withError(fields, cause)), "outbox event dead-lettered")

	entry := models.DeadLetterOf(event, reason, cause, s.now().UTC())
	if err := s.dlq.ParkTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Observe(string(event.EventType), "dead_lettered")
	return nil
}

// orderingKey keeps every event of one account or invoice in commit order.
func orderingKey(event models.OutboxEvent) string {
	return string(event.AggregateType) + ":" + event.AggregateID.String()
}

// messageAttributes lets subscribers filter by account or invoice without
// decoding the payload.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"schema_version": strconv.Itoa(envelope.Version),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	switch event.AggregateType {
	case enums.AggregateAccount:
		attrs["account_id"] = event.AggregateID.String()
	case enums.AggregateInvoice:
		attrs["invoice_id"] = event.AggregateID.String()
	}
	if envelope.Actor != nil && envelope.Actor.Source != "" {
		attrs["source"] = envelope.Actor.Source
	}
	return attrs
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
