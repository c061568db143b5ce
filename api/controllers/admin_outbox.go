package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fuelops/fuelops-backend/api/responses"
	"github.com/fuelops/fuelops-backend/api/validators"
	"github.com/fuelops/fuelops-backend/pkg/db/models"
	"github.com/fuelops/fuelops-backend/pkg/enums"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	"github.com/fuelops/fuelops-backend/pkg/outbox"
)

// DeadLetterLister reads parked outbox events.
type DeadLetterLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type deadLetterItem struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Reason        string          `json:"error_reason"`
	Message       string          `json:"error_message,omitempty"`
	AttemptCount  int             `json:"attempt_count"`
	FailedAt      string          `json:"failed_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// AdminDeadLetters lists dead-lettered ledger and invoice events, newest
// first. Filters: event_type, aggregate_id, limit (1..500).
func AdminDeadLetters(dlq DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if dlq == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead-letter store unavailable"))
			return
		}
		filter, err := deadLetterFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := dlq.List(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}

		items := make([]deadLetterItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, newDeadLetterItem(row))
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}

// AdminDeadLetter returns one parked event, payload included, so an
// operator can inspect it before replaying.
func AdminDeadLetter(dlq DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if dlq == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead-letter store unavailable"))
			return
		}
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := dlq.FindByEventID(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter"))
			return
		}
		if row == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "event is not dead-lettered"))
			return
		}
		item := newDeadLetterItem(*row)
		item.Payload = row.Payload
		responses.WriteSuccess(w, item)
	}
}

func newDeadLetterItem(row models.OutboxDLQ) deadLetterItem {
	item := deadLetterItem{
		EventID:       row.EventID.String(),
		EventType:     string(row.EventType),
		AggregateType: string(row.AggregateType),
		AggregateID:   row.AggregateID.String(),
		Reason:        string(row.ErrorReason),
		AttemptCount:  row.AttemptCount,
		FailedAt:      row.FailedAt.UTC().Format(time.RFC3339),
	}
	if row.ErrorMessage != nil {
		item.Message = *row.ErrorMessage
	}
	return item
}

func deadLetterFilter(r *http.Request) (outbox.DLQFilter, error) {
	query := r.URL.Query()
	var filter outbox.DLQFilter

	if raw := strings.TrimSpace(query.Get("event_type")); raw != "" {
		eventType := enums.OutboxEventType(raw)
		if !eventType.IsValid() {
			return filter, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown event_type %q", raw).
				WithDetails(map[string]any{"field": "event_type"})
		}
		filter.EventType = eventType
	}

	aggregateID, err := validators.ParseOptionalUUID(query.Get("aggregate_id"), "aggregate_id")
	if err != nil {
		return filter, err
	}
	filter.AggregateID = aggregateID

	filter.Limit, err = validators.ParseQueryInt(r, "limit", 50, 1, 500)
	return filter, err
}
