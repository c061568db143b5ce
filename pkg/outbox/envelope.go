package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// EnvelopeVersion is bumped when the envelope layout changes; subscribers
// read it from the schema_version message attribute.
const EnvelopeVersion = 1

// ActorRef names the component that wrote the event and, for API-driven
// writes, the request that caused it.
type ActorRef struct {
	Source    string `json:"source"`
	RequestID string `json:"requestId,omitempty"`
}

// PayloadEnvelope is the stored shape of outbox_events.payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type requestIDKey struct{}

// WithRequestID carries the inbound request ID down to event emission.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ActorFromContext builds the actor for source, tagged with the request ID
// when ctx carries one. Cron-driven writes have none.
func ActorFromContext(ctx context.Context, source string) *ActorRef {
	actor := &ActorRef{Source: source}
	if ctx != nil {
		if id, ok := ctx.Value(requestIDKey{}).(string); ok {
			actor.RequestID = id
		}
	}
	return actor
}
