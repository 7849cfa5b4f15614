package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/outbox/payloads"
)

func TestResolvePurchaseCompleted(t *testing.T) {
	reg := newTestRegistry(t)
	purchaseID := uuid.New()
	gameID := uuid.New()

	resolved, err := reg.Resolve(row(t, enums.EventPurchaseCompleted, enums.AggregatePurchase, purchaseID, payloads.PurchaseCompletedEvent{
		PurchaseID:    purchaseID,
		UserID:        uuid.New(),
		Total:         decimal.RequireFromString("59.99"),
		PaymentMethod: "tarjeta",
		PaymentStatus: enums.PaymentStatusCompleted,
		Lines:         []payloads.PurchaseLine{{GameID: gameID, PricePaid: decimal.RequireFromString("59.99")}},
	}))
	require.NoError(t, err)
	require.Equal(t, "storefront-events", resolved.Route.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.PurchaseCompletedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Len(t, payload.Lines, 1)
	require.Equal(t, gameID, payload.Lines[0].GameID)
	require.True(t, payload.Total.Equal(decimal.RequireFromString("59.99")))
}

func TestResolveRoutesEveryEventType(t *testing.T) {
	reg := newTestRegistry(t)
	purchaseID := uuid.New()
	reviewID := uuid.New()

	cases := []struct {
		event     enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		id        uuid.UUID
		payload   any
	}{
		{enums.EventPaymentStatusChanged, enums.AggregatePurchase, purchaseID, payloads.PaymentStatusChangedEvent{PurchaseID: purchaseID, From: enums.PaymentStatusCompleted, To: enums.PaymentStatusRefunded}},
		{enums.EventReviewCreated, enums.AggregateReview, reviewID, payloads.ReviewCreatedEvent{ReviewID: reviewID, Score: 9, Recommended: true}},
	}
	for _, tc := range cases {
		t.Run(string(tc.event), func(t *testing.T) {
			resolved, err := reg.Resolve(row(t, tc.event, tc.aggregate, tc.id, tc.payload))
			require.NoError(t, err)
			require.Equal(t, tc.event, resolved.Route.EventType)
			require.Equal(t, "storefront-events", resolved.Route.Topic)
		})
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)
	reviewID := uuid.New()
	review := payloads.ReviewCreatedEvent{ReviewID: reviewID, Score: 3}

	unknown := row(t, enums.EventReviewCreated, enums.AggregateReview, reviewID, review)
	unknown.EventType = "game_deleted"

	wrongAggregate := row(t, enums.EventReviewCreated, enums.AggregatePurchase, reviewID, review)

	noAggregateID := row(t, enums.EventReviewCreated, enums.AggregateReview, reviewID, review)
	noAggregateID.AggregateID = uuid.Nil

	otherReview := row(t, enums.EventReviewCreated, enums.AggregateReview, uuid.New(), review)

	nullData := row(t, enums.EventReviewCreated, enums.AggregateReview, reviewID, nil)

	garbled := row(t, enums.EventReviewCreated, enums.AggregateReview, reviewID, review)
	garbled.Payload = json.RawMessage(`{"version":`)

	futureVersion := row(t, enums.EventReviewCreated, enums.AggregateReview, reviewID, review)
	futureVersion.Payload = json.RawMessage(`{"version":2,"eventId":"e-1","data":{}}`)

	for name, bad := range map[string]models.OutboxEvent{
		"unknown event":    unknown,
		"wrong aggregate":  wrongAggregate,
		"no aggregate id":  noAggregateID,
		"payload mismatch": otherReview,
		"null data":        nullData,
		"garbled envelope": garbled,
		"future version":   futureVersion,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(bad)
			require.Error(t, err)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry), "got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{StorefrontTopic: "  "})
	require.Error(t, err)
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{StorefrontTopic: "storefront-events"})
	require.NoError(t, err)
	return reg
}

func row(t *testing.T, event enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, payload any) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Payload:       envelope,
	}
}
