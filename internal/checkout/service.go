package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/internal/cart"
	"github.com/ministeam/ministeam-api/internal/library"
	"github.com/ministeam/ministeam-api/internal/purchases"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/metrics"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/outbox/payloads"
)

const (
	lockScope      = "checkout"
	defaultLockTTL = 30 * time.Second
	releaseTimeout = 2 * time.Second
)

var errLocked = pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")

// Locker is the Redis surface used to serialize checkouts per user.
type Locker interface {
	LockKey(scope, id string) string
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

type purchaseReader interface {
	Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, purchaseID uuid.UUID) (*purchases.PurchaseDTO, error)
}

// Service converts a cart into a purchase and library entries.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, req Request) (*purchases.PurchaseDTO, error)
}

// ServiceParams groups checkout dependencies.
type ServiceParams struct {
	DB        db.TxRunner
	Locker    Locker
	Outbox    outbox.Emitter
	Purchases purchaseReader
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	LockTTL   time.Duration
	Now       func() time.Time
}

type service struct {
	tx        db.TxRunner
	locker    Locker
	outbox    outbox.Emitter
	purchases purchaseReader
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	lockTTL   time.Duration
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("checkout locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase reader required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.DB,
		locker:    params.Locker,
		outbox:    params.Outbox,
		purchases: params.Purchases,
		metrics:   params.Metrics,
		logg:      params.Logger,
		lockTTL:   ttl,
		now:       now,
	}, nil
}

// Execute runs the checkout for userID. Everything between the cart snapshot and the
// outbox event commits or rolls back together.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, req Request) (result *purchases.PurchaseDTO, err error) {
	started := s.now()
	itemCount := 0
	defer func() {
		s.metrics.Observe(outcomeFor(err), s.now().Sub(started), itemCount)
	}()

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "metodo_pago is required")
	}

	key := s.locker.LockKey(lockScope, userID.String())
	token := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !acquired {
		return nil, errLocked
	}
	defer s.release(ctx, key, token)

	var purchaseID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		id, count, err := s.convert(ctx, tx, userID, method, req.Notes)
		purchaseID, itemCount = id, count
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":     userID.String(),
			"purchase_id": purchaseID.String(),
			"item_count":  itemCount,
		})
		s.logg.Info(logCtx, "checkout completed")
	}
	return s.purchases.Get(ctx, userID, enums.UserRoleCustomer, purchaseID)
}

func (s *service) convert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, method string, notes *string) (uuid.UUID, int, error) {
	snapshot, err := cart.Snapshot(ctx, tx, userID)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot cart")
	}
	if len(snapshot.Items) == 0 {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeInvalidState, "cart is empty")
	}

	gameIDs := make([]uuid.UUID, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		gameIDs = append(gameIDs, item.GameID)
	}
	libraryRepo := library.NewRepository(tx)
	owned, err := libraryRepo.OwnedAmong(ctx, userID, gameIDs)
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check library")
	}
	if len(owned) > 0 {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "cart contains games already in library").
			WithDetails(map[string]any{"game_ids": owned})
	}

	purchase := &models.Purchase{
		UserID:        userID,
		Total:         snapshot.Total,
		PaymentMethod: method,
		PaymentStatus: enums.PaymentStatusCompleted,
		Notes:         notes,
	}
	lines := make([]models.PurchaseLineItem, 0, len(snapshot.Items))
	eventLines := make([]payloads.PurchaseLine, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, models.PurchaseLineItem{
			GameID:    item.GameID,
			PricePaid: item.Price,
			Quantity:  1,
		})
		eventLines = append(eventLines, payloads.PurchaseLine{GameID: item.GameID, PricePaid: item.Price})
	}
	if err := purchases.NewRepository(tx).Create(ctx, purchase, lines); err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}

	entries := make([]models.LibraryEntry, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		entries = append(entries, models.LibraryEntry{
			UserID:     userID,
			GameID:     item.GameID,
			PurchaseID: &purchase.ID,
			Status:     enums.LibraryStatusNotStarted,
		})
	}
	if err := libraryRepo.CreateBatch(ctx, entries); err != nil {
		if db.IsUniqueViolation(err, "library_entries_user_game_key") {
			return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart contains games already in library")
		}
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create library entries")
	}

	if _, err := cart.NewRepository(tx).Clear(ctx, userID); err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}

	completedAt := s.now().UTC()
	event := outbox.DomainEvent{
		EventType:     enums.EventPurchaseCompleted,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
		OccurredAt:    completedAt,
		Data: payloads.PurchaseCompletedEvent{
			PurchaseID:    purchase.ID,
			UserID:        userID,
			Total:         purchase.Total,
			PaymentMethod: method,
			PaymentStatus: purchase.PaymentStatus,
			Lines:         eventLines,
			CompletedAt:   completedAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue purchase event")
	}
	return purchase.ID, len(snapshot.Items), nil
}

func (s *service) release(ctx context.Context, key, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if _, err := s.locker.ReleaseLock(releaseCtx, key, token); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "lock_key", key), "release checkout lock failed")
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.CheckoutOutcomeCompleted
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInvalidState:
		return metrics.CheckoutOutcomeEmptyCart
	case pkgerrors.CodeValidation:
		return metrics.CheckoutOutcomeRejected
	case pkgerrors.CodeConflict:
		if errors.Is(err, errLocked) {
			return metrics.CheckoutOutcomeLocked
		}
		return metrics.CheckoutOutcomeRejected
	default:
		return metrics.CheckoutOutcomeFailed
	}
}
