package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

// Item names one (product, color, quantity) inventory move.
type Item struct {
	ProductID uuid.UUID
	ColorName string
	Quantity  int
}

// Failure reports one item whose move could not be applied.
type Failure struct {
	Item   Item
	Reason error
}

type transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCache interface {
	Invalidate(ctx context.Context, productIDs ...uuid.UUID)
}

// Service is the stock ledger. Every debit and credit flows through it
// so stock can never go negative and every change leaves an audit row.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Debit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error
	Credit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error
	DebitItems(ctx context.Context, items []Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]Failure, error)
	CreditItems(ctx context.Context, items []Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]Failure, error)
	MovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
}

type service struct {
	repo  Repository
	tx    transactor
	cache productCache
	logg  *logger.Logger
	inTx  bool
}

// NewService wires the stock ledger with its repository, transaction
// runner and the product cache it invalidates on every applied move.
func NewService(repo Repository, tx transactor, cache productCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor required")
	}
	if cache == nil {
		return nil, fmt.Errorf("product cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("inventory logger required")
	}
	return &service{repo: repo, tx: tx, cache: cache, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), tx: s.tx, cache: s.cache, logg: s.logg, inTx: true}
}

func (s *service) Debit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error {
	if err := validateItem(item, reason); err != nil {
		return err
	}
	if err := s.atomically(ctx, func(txSvc *service) error {
		return txSvc.debit(ctx, item, reason, orderID)
	}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, item.ProductID)
	return nil
}

func (s *service) Credit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error {
	if err := validateItem(item, reason); err != nil {
		return err
	}
	if err := s.atomically(ctx, func(txSvc *service) error {
		return txSvc.credit(ctx, item, reason, orderID)
	}); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, item.ProductID)
	return nil
}

// atomically runs fn against a transaction-bound copy of the service.
// A service already rebound into a caller's transaction runs fn as is;
// rolling back here is the enclosing transaction's call.
func (s *service) atomically(ctx context.Context, fn func(txSvc *service) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.WithTx(tx).(*service))
	})
}

func (s *service) debit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error {
	product, err := s.loadProduct(ctx, item.ProductID)
	if err != nil {
		return err
	}

	variantName := ""
	if product.HasVariants() {
		if item.ColorName == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "color name is required for products with variants")
		}
		variant := product.VariantByName(item.ColorName)
		if variant == nil {
			return pkgerrors.New(pkgerrors.CodeColorNotAvailable,
				fmt.Sprintf("color %q is not available for this product", item.ColorName))
		}
		variantName = variant.Name

		applied, err := s.repo.DebitVariant(ctx, item.ProductID, variant.Name, item.Quantity)
		if err != nil {
			return err
		}
		if !applied {
			return insufficientStock(item, variant.Stock)
		}
		if err := s.repo.RecomputeAggregate(ctx, item.ProductID); err != nil {
			return err
		}
	} else {
		applied, err := s.repo.DebitProduct(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !applied {
			return insufficientStock(item, product.Stock)
		}
	}

	return s.record(ctx, item.ProductID, variantName, -item.Quantity, reason, orderID)
}

func (s *service) credit(ctx context.Context, item Item, reason enums.StockMovementReason, orderID *uuid.UUID) error {
	product, err := s.loadProduct(ctx, item.ProductID)
	if err != nil {
		return err
	}

	variantName := ""
	if product.HasVariants() {
		variant := product.VariantByName(item.ColorName)
		if variant == nil {
			// The color snapshot may predate a variant rename; restock
			// the first variant rather than losing the units.
			variant = product.FirstVariant()
			fields := map[string]any{
				"requested_color": item.ColorName,
				"fallback_color":  variant.Name,
			}
			s.logg.Warn(s.logg.WithFields(s.logg.WithProductID(ctx, item.ProductID.String()), fields),
				"credit color not found, restocking first variant")
		}
		variantName = variant.Name

		if _, err := s.repo.CreditVariant(ctx, item.ProductID, variant.Name, item.Quantity); err != nil {
			return err
		}
		if err := s.repo.RecomputeAggregate(ctx, item.ProductID); err != nil {
			return err
		}
	} else {
		if _, err := s.repo.CreditProduct(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	return s.record(ctx, item.ProductID, variantName, item.Quantity, reason, orderID)
}

// DebitItems applies debits one line at a time. Lines that fail are
// reported individually; lines already applied stay applied, so the
// caller decides whether to compensate or surface the partial state.
func (s *service) DebitItems(ctx context.Context, items []Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]Failure, error) {
	var failures []Failure
	var combined error
	for _, item := range items {
		if err := s.Debit(ctx, item, reason, orderID); err != nil {
			failures = append(failures, Failure{Item: item, Reason: err})
			combined = multierr.Append(combined, err)
		}
	}
	return failures, combined
}

// CreditItems restocks each line, collecting failures so one bad line
// does not block the rest of a cancellation or return.
func (s *service) CreditItems(ctx context.Context, items []Item, reason enums.StockMovementReason, orderID *uuid.UUID) ([]Failure, error) {
	var failures []Failure
	var combined error
	for _, item := range items {
		if err := s.Credit(ctx, item, reason, orderID); err != nil {
			failures = append(failures, Failure{Item: item, Reason: err})
			combined = multierr.Append(combined, err)
		}
	}
	return failures, combined
}

func (s *service) MovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ListMovementsByOrder(ctx, orderID)
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetProductWithVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *service) record(ctx context.Context, productID uuid.UUID, variantName string, delta int, reason enums.StockMovementReason, orderID *uuid.UUID) error {
	return s.repo.RecordMovement(ctx, &models.StockMovement{
		ProductID:   productID,
		VariantName: variantName,
		Delta:       delta,
		Reason:      reason,
		OrderID:     orderID,
	})
}

func validateItem(item Item, reason enums.StockMovementReason) error {
	if item.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if item.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock movement reason %q", reason))
	}
	return nil
}

func insufficientStock(item Item, available int) error {
	err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	return err.WithDetails(map[string]any{
		"product_id": item.ProductID.String(),
		"requested":  item.Quantity,
		"available":  available,
	})
}
