package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/metrics"
	"github.com/ministeam/ministeam-api/pkg/outbox/registry"
	"github.com/ministeam/ministeam-api/pkg/pubsub"
)

const (
	relayJob = "outbox_relay"

	defaultBatchSize   = 50
	defaultPollEvery   = 500 * time.Millisecond
	defaultMaxAttempts = 10
	sendTimeout        = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

func (o outcome) String() string {
	switch o {
	case outcomePublished:
		return "published"
	case outcomeRetry:
		return "retry"
	case outcomeDeadLettered:
		return "dead_lettered"
	}
	return "unknown"
}

// eventStore is the outbox table as seen from inside a relay transaction.
type eventStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type deadLetterStore interface {
	Insert(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sender delivers one message and waits for the broker to acknowledge it.
type sender interface {
	db.Pinger
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type database interface {
	db.Pinger
	db.TxRunner
}

type RelayDeps struct {
	Logger      *logger.Logger
	DB          database
	Events      eventStore
	DeadLetters deadLetterStore
	Resolver    eventResolver
	Sender      sender
	Metrics     *metrics.JobMetrics
}

// Relay moves committed outbox rows to Pub/Sub. A row that cannot be
// delivered is retried until maxAttempts and then dead lettered.
type Relay struct {
	deps        RelayDeps
	batchSize   int
	maxAttempts int
	pollEvery   time.Duration
}

func NewRelay(deps RelayDeps, cfg config.OutboxConfig) (*Relay, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"logger", deps.Logger == nil},
		{"database", deps.DB == nil},
		{"event store", deps.Events == nil},
		{"dead letter store", deps.DeadLetters == nil},
		{"event resolver", deps.Resolver == nil},
		{"sender", deps.Sender == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("outbox relay: %s is required", r.name)
		}
	}

	relay := &Relay{
		deps:        deps,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		pollEvery:   cfg.PollInterval(),
	}
	if relay.batchSize <= 0 {
		relay.batchSize = defaultBatchSize
	}
	if relay.maxAttempts <= 0 {
		relay.maxAttempts = defaultMaxAttempts
	}
	if relay.pollEvery <= 0 {
		relay.pollEvery = defaultPollEvery
	}
	return relay, nil
}

// Run drains the outbox until ctx is cancelled. Full batches are followed
// immediately by the next one; idle polls wait pollEvery and failing batches
// back off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, dep := range map[string]db.Pinger{"database": r.deps.DB, "pubsub": r.deps.Sender} {
		if err := dep.Ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}

	wait := backoff{base: r.pollEvery, max: maxIdleBackoff}
	for {
		if err := ctx.Err(); err != nil {
			r.deps.Logger.Info(ctx, "outbox relay stopping")
			return err
		}

		t, err := r.drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.deps.Logger.Error(ctx, "outbox relay batch failed", err)
			pause = wait.fail()
		case t.total() > 0:
			wait.reset()
			continue
		default:
			wait.reset()
			pause = r.pollEvery
		}

		if err := sleep(ctx, pause+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

type tally map[outcome]int

func (t tally) total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// drain relays one batch inside a single transaction so the row locks hold
// until every row's outcome is written.
func (r *Relay) drain(ctx context.Context) (tally, error) {
	started := time.Now()
	t := tally{}
	err := r.deps.DB.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.deps.Events.ClaimBatch(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			oc, err := r.relayOne(ctx, tx, row)
			if err != nil {
				return err
			}
			t[oc]++
		}
		return nil
	})
	if err != nil || t.total() > 0 {
		r.deps.Metrics.ObserveRun(relayJob, time.Since(started), err)
	}
	if err == nil {
		for oc, n := range t {
			r.deps.Metrics.AddItems(relayJob, oc.String(), n)
		}
	}
	return t, err
}

func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	logg := r.deps.Logger
	ctx = logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	})

	resolved, err := r.deps.Resolver.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, row.AttemptCount, err)
	}
	ctx = logg.WithField(ctx, "topic", resolved.Route.Topic)

	sendErr := r.send(ctx, row, resolved)
	attempts := row.AttemptCount + 1
	switch {
	case sendErr == nil:
		if err := r.deps.Events.MarkPublished(tx, row.ID); err != nil {
			return 0, fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	case permanent(sendErr):
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, attempts, sendErr)
	case attempts >= r.maxAttempts:
		err := fmt.Errorf("gave up after %d attempts: %w", attempts, sendErr)
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, attempts, err)
	default:
		logg.Warn(logg.WithField(ctx, "error", sendErr.Error()), "outbox publish failed, will retry")
		if err := r.deps.Events.RecordFailure(tx, row.ID, sendErr); err != nil {
			return 0, fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		return outcomeRetry, nil
	}
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	eventID := resolved.Envelope.EventID
	if eventID == "" {
		eventID = row.ID.String()
	}
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return r.deps.Sender.Send(sendCtx, resolved.Route.Topic, msg)
}

// deadLetter copies row to outbox_dlq and pins its attempt count at the
// ceiling so it is never fetched again.
func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, attempts int, cause error) error {
	logg := r.deps.Logger
	logCtx := logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})
	logg.Warn(logCtx, "outbox event dead lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  attempts,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.deps.DeadLetters.Insert(tx, entry); err != nil {
		return fmt.Errorf("dead letter %s: %w", row.ID, err)
	}
	if err := r.deps.Events.Retire(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark %s terminal: %w", row.ID, err)
	}
	return nil
}

func permanent(err error) bool {
	var nonRetryable registry.NonRetryableError
	return errors.As(err, &nonRetryable) || errors.Is(err, pubsub.ErrTopicUnavailable)
}

type backoff struct {
	base, max, current time.Duration
}

func (b *backoff) fail() time.Duration {
	if b.current < b.base {
		b.current = b.base
	} else {
		b.current *= 2
	}
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

func (b *backoff) reset() {
	b.current = 0
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
