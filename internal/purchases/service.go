package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/enums"
	pkgerrors "github.com/ministeam/ministeam-api/pkg/errors"
	"github.com/ministeam/ministeam-api/pkg/outbox"
	"github.com/ministeam/ministeam-api/pkg/outbox/payloads"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const defaultListLimit = 10

// Service reads the purchase ledger and lets admins settle payments.
type Service interface {
	ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ListResult, error)
	Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, purchaseID uuid.UUID) (*PurchaseDTO, error)
	ListAll(ctx context.Context, filters ListFilters) (*ListResult, error)
	UpdatePaymentStatus(ctx context.Context, actorID, purchaseID uuid.UUID, req UpdatePaymentStatusRequest) (*PurchaseDTO, error)
	SalesStats(ctx context.Context) (*SalesStats, error)
}

// ServiceParams groups ledger dependencies.
type ServiceParams struct {
	DB     db.TxRunner
	Repo   *Repository
	Outbox outbox.Emitter
	Now    func() time.Time
}

type service struct {
	tx     db.TxRunner
	repo   *Repository
	outbox outbox.Emitter
	now    func() time.Time
}

// NewService builds the purchase ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("purchase repository is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{tx: params.DB, repo: params.Repo, outbox: params.Outbox, now: now}, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ListResult, error) {
	page = pagination.Normalize(page, defaultListLimit)
	list, total, err := s.repo.List(ctx, &userID, "", page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	return &ListResult{Purchases: list, Pagination: pagination.NewMeta(page, total)}, nil
}

func (s *service) Get(ctx context.Context, actorID uuid.UUID, role enums.UserRole, purchaseID uuid.UUID) (*PurchaseDTO, error) {
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	if purchase.UserID != actorID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase belongs to another user")
	}
	items, err := s.repo.LineItems(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase items")
	}
	purchase.Items = items
	return purchase, nil
}

func (s *service) ListAll(ctx context.Context, filters ListFilters) (*ListResult, error) {
	var status enums.PaymentStatus
	if raw := strings.TrimSpace(filters.Status); raw != "" {
		parsed, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid estado_pago filter")
		}
		status = parsed
	}
	page := pagination.Normalize(filters.Page, defaultListLimit)
	list, total, err := s.repo.List(ctx, nil, status, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	return &ListResult{Purchases: list, Pagination: pagination.NewMeta(page, total)}, nil
}

// UpdatePaymentStatus changes the status and queues payment_status_changed in the same transaction.
// Setting the current status again is a no-op.
func (s *service) UpdatePaymentStatus(ctx context.Context, actorID, purchaseID uuid.UUID, req UpdatePaymentStatusRequest) (*PurchaseDTO, error) {
	next, err := enums.ParsePaymentStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid estado_pago").
			WithDetails(map[string]any{"allowed": enums.PaymentStatuses()})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		purchase, err := repo.FindForUpdate(ctx, purchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
		}
		if purchase.PaymentStatus == next {
			return nil
		}
		changedAt := s.now().UTC()
		if err := repo.UpdateStatus(ctx, purchaseID, next, changedAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchaseID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)},
			OccurredAt:    changedAt,
			Data: payloads.PaymentStatusChangedEvent{
				PurchaseID: purchaseID,
				UserID:     purchase.UserID,
				From:       purchase.PaymentStatus,
				To:         next,
				ChangedAt:  changedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment status event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actorID, enums.UserRoleAdmin, purchaseID)
}

func (s *service) SalesStats(ctx context.Context) (*SalesStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sales stats")
	}
	return stats, nil
}
