// Package registry maps outbox rows to their Pub/Sub topic and typed payload.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/outbox/payloads"
)

// Route binds one event type to the aggregate it is filed under, the topic it
// is published on and the payload type it carries.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// keyed payloads name the aggregate they describe.
type keyed interface {
	AggregateKey() uuid.UUID
}

func route[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType) Route {
	return Route{
		EventType:     event,
		AggregateType: aggregate,
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}
			return &payload, nil
		},
	}
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NewEventRegistry routes every storefront event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.StorefrontTopic)
	if topic == "" {
		return nil, errors.New("storefront topic is required")
	}

	reg := &EventRegistry{routes: map[enums.OutboxEventType]Route{}}
	for _, r := range []Route{
		route[payloads.PurchaseCompletedEvent](enums.EventPurchaseCompleted, enums.AggregatePurchase),
		route[payloads.PaymentStatusChangedEvent](enums.EventPaymentStatusChanged, enums.AggregatePurchase),
		route[payloads.ReviewCreatedEvent](enums.EventReviewCreated, enums.AggregateReview),
	} {
		r.Topic = topic
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Resolve decodes row. Every error it returns is a NonRetryableError: a row
// that fails to decode now will fail the same way on the next attempt.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[row.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", row.EventType)
	}
	if rt.AggregateType != row.AggregateType {
		return nil, nonRetryable("%s must be filed under %s, got %s", row.EventType, rt.AggregateType, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, nonRetryable("%s row has no aggregate id", row.EventType)
	}

	envelope, err := outbox.OpenEnvelope(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", row.EventType, err))
	}

	payload, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	if k, ok := payload.(keyed); ok && k.AggregateKey() != row.AggregateID {
		return nil, nonRetryable("%s payload belongs to %s, row is filed under %s", row.EventType, k.AggregateKey(), row.AggregateID)
	}

	return &ResolvedEvent{Route: rt, Envelope: envelope, Payload: payload}, nil
}

// NonRetryableError marks a failure the relay should dead letter immediately.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) NonRetryableError {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}
