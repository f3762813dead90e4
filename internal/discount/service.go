package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/outbox"
)

// Transactor runs a function inside a store transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CacheInvalidator drops cached product entries after discount writes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...uuid.UUID)
}

// EventEmitter queues outbox events inside the same transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SetDiscountInput configures one discount across many products.
type SetDiscountInput struct {
	ProductIDs []uuid.UUID
	Kind       enums.DiscountKind
	Value      int
	StartsAt   *time.Time
	EndsAt     *time.Time
	Actor      *outbox.ActorRef
}

// Service applies and removes discounts. Evaluation of live prices is
// the package-level Evaluate function; this service only writes config.
type Service interface {
	BulkSetDiscount(ctx context.Context, input SetDiscountInput) (int64, error)
	BulkRemoveDiscount(ctx context.Context, productIDs []uuid.UUID, actor *outbox.ActorRef) (int64, error)
	EffectivePrice(product *models.Product, now time.Time) Evaluation
}

type service struct {
	tx     Transactor
	repo   Repository
	events EventEmitter
	cache  CacheInvalidator
	logg   *logger.Logger
}

// NewService wires the discount service. The cache invalidator may be
// nil when no cache is configured.
func NewService(tx Transactor, repo Repository, events EventEmitter, cache CacheInvalidator, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("discount transactor required")
	}
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("discount event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("discount logger required")
	}
	return &service{tx: tx, repo: repo, events: events, cache: cache, logg: logg}, nil
}

func (s *service) BulkSetDiscount(ctx context.Context, input SetDiscountInput) (int64, error) {
	if err := validateSetInput(input); err != nil {
		return 0, err
	}

	activeNow := windowContains(input.StartsAt, input.EndsAt, time.Now())

	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).BulkSet(ctx, input.ProductIDs, input.Kind, input.Value, input.StartsAt, input.EndsAt, activeNow)
		if err != nil {
			return err
		}
		affected = n
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDiscountChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   input.ProductIDs[0],
			Actor:         input.Actor,
			Data: outbox.DiscountChangedPayload{
				ProductIDs: input.ProductIDs,
				Kind:       input.Kind,
				Value:      int64(input.Value),
			},
			Version: 1,
		})
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, input.ProductIDs)
	s.logg.Info(s.logg.WithField(ctx, "products_affected", affected), "bulk discount applied")
	return affected, nil
}

func (s *service) BulkRemoveDiscount(ctx context.Context, productIDs []uuid.UUID, actor *outbox.ActorRef) (int64, error) {
	if len(productIDs) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one product id is required")
	}

	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).BulkRemove(ctx, productIDs)
		if err != nil {
			return err
		}
		affected = n
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDiscountChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productIDs[0],
			Actor:         actor,
			Data: outbox.DiscountChangedPayload{
				ProductIDs: productIDs,
				Removed:    true,
			},
			Version: 1,
		})
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, productIDs)
	s.logg.Info(s.logg.WithField(ctx, "products_affected", affected), "bulk discount removed")
	return affected, nil
}

func (s *service) EffectivePrice(product *models.Product, now time.Time) Evaluation {
	return Evaluate(product, now)
}

func (s *service) invalidate(ctx context.Context, productIDs []uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, productIDs...)
}

func validateSetInput(input SetDiscountInput) error {
	if len(input.ProductIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one product id is required")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount kind %q", input.Kind))
	}
	switch input.Kind {
	case enums.DiscountKindPercentage:
		if input.Value < 1 || input.Value > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage discount must be between 1 and 100")
		}
	case enums.DiscountKindFixed:
		if input.Value <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed discount must be positive")
		}
	}
	if input.StartsAt != nil && input.EndsAt != nil && !input.StartsAt.Before(*input.EndsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount window must start before it ends")
	}
	return nil
}

func windowContains(startsAt, endsAt *time.Time, now time.Time) bool {
	if startsAt != nil && now.Before(*startsAt) {
		return false
	}
	if endsAt != nil && !now.Before(*endsAt) {
		return false
	}
	return true
}
