package enums

// OutboxAggregateType names the entity an outbox event is filed under.
type OutboxAggregateType string

const (
	AggregatePurchase OutboxAggregateType = "purchase"
	AggregateReview   OutboxAggregateType = "review"
)

var aggregateTypes = values[OutboxAggregateType]{AggregatePurchase, AggregateReview}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", raw)
}

// OutboxEventType names a domain event relayed by the outbox publisher.
type OutboxEventType string

const (
	EventPurchaseCompleted    OutboxEventType = "purchase_completed"
	EventPaymentStatusChanged OutboxEventType = "payment_status_changed"
	EventReviewCreated        OutboxEventType = "review_created"
)

var eventTypes = values[OutboxEventType]{
	EventPurchaseCompleted,
	EventPaymentStatusChanged,
	EventReviewCreated,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return eventTypes.parse("event type", raw)
}

// OutboxDLQErrorReason records why the relay dead-lettered an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: publishing kept failing until the retry
	// budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the row can never be published as stored.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = values[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
