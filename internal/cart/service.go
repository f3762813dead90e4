package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/types"
)

const placeholderImageURL = "/static/placeholder-product.png"

// Inline data URIs above this size are dropped from cart views so one
// bloated snapshot cannot balloon every cart read.
const maxInlineImageBytes = 100 * 1024

// ProductGetter is the slice of the product service the cart needs.
type ProductGetter interface {
	GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// AddItemInput captures a request to put units of one (product, color)
// into the caller's cart.
type AddItemInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	ColorName string
}

// LineView is one cart line with its computed total.
type LineView struct {
	ProductID      uuid.UUID   `json:"product_id"`
	Name           string      `json:"name"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int         `json:"unit_price_cents"`
	LineTotalCents int         `json:"line_total_cents"`
	Color          types.Color `json:"color"`
	ImageURL       string      `json:"image_url"`
}

// View is the cart as returned to clients. Totals are folded over the
// stored snapshots on every read, never persisted.
type View struct {
	ID            uuid.UUID  `json:"id"`
	Items         []LineView `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int        `json:"subtotal_cents"`
}

// Service owns the single mutable cart per user.
type Service interface {
	WithTx(tx *gorm.DB) Service
	AddItem(ctx context.Context, input AddItemInput) (*View, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, colorName string, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID, colorName string) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	GetCartRecord(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
}

type service struct {
	repo     Repository
	products ProductGetter
	logg     *logger.Logger
}

// NewService wires the cart service.
func NewService(repo Repository, products ProductGetter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product getter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("cart logger required")
	}
	return &service{repo: repo, products: products, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), products: s.products, logg: s.logg}
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*View, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	color, err := resolveColor(product, input.ColorName)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindOrCreateByUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	// The snapshot captures the price the buyer saw, so an active
	// discount is folded in at add time.
	eval := discount.Evaluate(product, time.Now().UTC())

	line := &models.CartItem{
		CartID:         record.ID,
		ProductID:      product.ID,
		Quantity:       input.Quantity,
		UnitPriceCents: eval.EffectivePriceCents,
		Name:           product.Name,
		ImageURL:       product.ImageURL,
		ColorName:      color.Name,
		ColorCode:      color.Code,
	}
	if err := s.repo.UpsertLine(ctx, line); err != nil {
		return nil, err
	}

	return s.GetCart(ctx, input.UserID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, colorName string, quantity int) (*View, error) {
	if quantity <= 0 {
		// Zero (or less) means the line goes away entirely.
		return s.RemoveItem(ctx, userID, productID, colorName)
	}

	record, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetLineQuantity(ctx, record.ID, productID, normalizeColorName(colorName), quantity)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID, colorName string) (*View, error) {
	record, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.RemoveLine(ctx, record.ID, productID, normalizeColorName(colorName))
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.repo.ClearLines(ctx, record.ID)
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	record, err := s.repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildView(record), nil
}

// GetCartRecord returns the raw cart row for checkout, which needs the
// stored snapshots rather than the client view.
func (s *service) GetCartRecord(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	return s.findCart(ctx, userID)
}

func (s *service) findCart(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetProductWithVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

// resolveColor applies the color normalization rules: variant products
// resolve the requested name case-insensitively, variant-less products
// always store the sentinel color. An omitted or unrecognized name
// falls back to the first variant so an add never fails on the color
// alone.
func resolveColor(product *models.Product, requested string) (types.Color, error) {
	requested = normalizeColorName(requested)

	if !product.HasVariants() {
		return types.DefaultColor(), nil
	}

	variant := product.VariantByName(requested)
	if variant == nil {
		first := product.FirstVariant()
		return types.Color{Name: first.Name, Code: first.ColorCode}, nil
	}
	if !variant.IsAvailable {
		return types.Color{}, pkgerrors.New(pkgerrors.CodeColorNotAvailable,
			fmt.Sprintf("color %q is out of stock", variant.Name))
	}
	return types.Color{Name: variant.Name, Code: variant.ColorCode}, nil
}

func normalizeColorName(name string) string {
	return strings.TrimSpace(name)
}

func isOversizedDataURI(url string) bool {
	return strings.HasPrefix(url, "data:") && len(url) > maxInlineImageBytes
}

func buildView(record *models.CartRecord) *View {
	view := &View{
		ID:    record.ID,
		Items: make([]LineView, 0, len(record.Items)),
	}
	for _, item := range record.Items {
		imageURL := placeholderImageURL
		if item.ImageURL != nil && *item.ImageURL != "" && !isOversizedDataURI(*item.ImageURL) {
			imageURL = *item.ImageURL
		}
		view.Items = append(view.Items, LineView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.Quantity * item.UnitPriceCents,
			Color:          types.Color{Name: item.ColorName, Code: item.ColorCode},
			ImageURL:       imageURL,
		})
		view.ItemCount += item.Quantity
		view.SubtotalCents += item.Quantity * item.UnitPriceCents
	}
	return view
}
