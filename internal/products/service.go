package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/internal/inventory"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
)

// Service exposes catalog management and read operations.
type Service interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*View, error)
	GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, input ListInput) (*ListResult, error)
	CreateProduct(ctx context.Context, input CreateInput) (*View, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateInput) (*View, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	AdjustStock(ctx context.Context, input AdjustStockInput) (*View, error)
}

// VariantInput declares one color variant on create or replace.
type VariantInput struct {
	Name      string
	ColorCode string
	Stock     int
	Position  int
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	Name        string
	Description *string
	PriceCents  int
	Stock       int
	ImageURL    *string
	IsActive    bool
	Returnable  *bool
	Replaceable *bool
	Variants    []VariantInput
}

// UpdateInput holds optional mutation values for a product. Stock and
// discount columns are deliberately absent: stock moves through the
// ledger and discounts through their own bulk operations.
type UpdateInput struct {
	Name        *string
	Description *string
	PriceCents  *int
	ImageURL    *string
	IsActive    *bool
	Returnable  *bool
	Replaceable *bool
	Variants    *[]VariantInput
}

// ListInput captures the inputs needed to paginate and filter the catalog.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ListResult is one page of evaluated product views.
type ListResult struct {
	Products   []View `json:"products"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// AdjustStockInput is an admin stock correction for one product line.
// Positive deltas credit, negative deltas debit.
type AdjustStockInput struct {
	ProductID uuid.UUID
	ColorName string
	Delta     int
}

type transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	Debit(ctx context.Context, item inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) error
	Credit(ctx context.Context, item inventory.Item, reason enums.StockMovementReason, orderID *uuid.UUID) error
}

type productCache interface {
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, bool)
	Put(ctx context.Context, product *models.Product)
	Invalidate(ctx context.Context, productIDs ...uuid.UUID)
}

type service struct {
	repo  Repository
	tx    transactor
	stock stockAdjuster
	cache productCache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService constructs the catalog service. The cache may be nil when
// Redis is not configured.
func NewService(repo Repository, tx transactor, stock stockAdjuster, cache productCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, stock: stock, cache: cache, logg: logg, now: time.Now}, nil
}

// GetProduct returns the product with its discount evaluated now.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*View, error) {
	row, err := s.GetProductWithVariants(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewView(row, s.now()), nil
}

// GetProductWithVariants reads through the product cache; misses load the
// row with its variants and populate the cache.
func (s *service) GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, productID); ok {
			return cached, nil
		}
	}

	row, err := s.repo.GetWithVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if s.cache != nil {
		s.cache.Put(ctx, row)
	}
	return row, nil
}

func (s *service) ListProducts(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Pagination.Limit)

	rows, err := s.repo.List(ctx, input.Filters, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	page, hasMore := pagination.Trim(rows, limit)
	now := s.now()

	result := &ListResult{Products: make([]View, 0, len(page))}
	for i := range page {
		result.Products = append(result.Products, *NewView(&page[i], now))
	}
	if hasMore {
		last := page[len(page)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateInput) (*View, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	row := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		IsActive:    input.IsActive,
		Returnable:  input.Returnable,
		Replaceable: input.Replaceable,
		Variants:    buildVariants(input.Variants),
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		if len(row.Variants) > 0 {
			if err := txRepo.RecomputeAggregateStock(ctx, row.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: recompute stock")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, row.ID.String()), "product created")
	return s.GetProduct(ctx, row.ID)
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateInput) (*View, error) {
	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 && input.Variants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if input.Variants != nil {
		if err := validateVariants(*input.Variants); err != nil {
			return nil, err
		}
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if len(updates) > 0 {
			found, err := txRepo.ApplyUpdates(ctx, productID, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
			}
			if !found {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
		} else if _, err := txRepo.FindByID(ctx, productID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}

		if input.Variants != nil {
			if err := txRepo.ReplaceVariants(ctx, productID, buildVariants(*input.Variants)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace variants")
			}
			if err := txRepo.RecomputeAggregateStock(ctx, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: recompute stock")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
	s.logg.Info(s.logg.WithProductID(ctx, productID.String()), "product updated")
	return s.GetProduct(ctx, productID)
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	found, err := s.repo.Delete(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
	s.logg.Info(s.logg.WithProductID(ctx, productID.String()), "product deleted")
	return nil
}

// AdjustStock corrects stock through the ledger so the adjustment leaves
// a movement row behind.
func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*View, error) {
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}

	item := inventory.Item{
		ProductID: input.ProductID,
		ColorName: input.ColorName,
		Quantity:  input.Delta,
	}

	var err error
	if input.Delta > 0 {
		err = s.stock.Credit(ctx, item, enums.MovementReasonAdjustment, nil)
	} else {
		item.Quantity = -input.Delta
		err = s.stock.Debit(ctx, item, enums.MovementReasonAdjustment, nil)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, input.ProductID)
	}
	logCtx := s.logg.WithField(s.logg.WithProductID(ctx, input.ProductID.String()), "delta", input.Delta)
	s.logg.Info(logCtx, "stock adjusted")
	return s.GetProduct(ctx, input.ProductID)
}

func validateCreate(input CreateInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PriceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if len(input.Variants) > 0 && input.Stock != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "aggregate stock is derived for variant products")
	}
	return validateVariants(input.Variants)
}

func validateVariants(variants []VariantInput) error {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant name is required")
		}
		if _, dup := seen[name]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant names must be unique").
				WithDetails(map[string]interface{}{"name": v.Name})
		}
		seen[name] = struct{}{}
		if v.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant stock must not be negative")
		}
	}
	return nil
}

func buildVariants(inputs []VariantInput) []models.ProductVariant {
	variants := make([]models.ProductVariant, 0, len(inputs))
	for i, v := range inputs {
		position := v.Position
		if position == 0 {
			position = i
		}
		colorCode := strings.TrimSpace(v.ColorCode)
		if colorCode == "" {
			colorCode = "#000000"
		}
		variants = append(variants, models.ProductVariant{
			Name:        strings.TrimSpace(v.Name),
			ColorCode:   colorCode,
			Stock:       v.Stock,
			IsAvailable: v.Stock > 0,
			Position:    position,
		})
	}
	return variants
}

func buildUpdates(input UpdateInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Returnable != nil {
		updates["returnable"] = *input.Returnable
	}
	if input.Replaceable != nil {
		updates["replaceable"] = *input.Replaceable
	}
	return updates, nil
}
