package cart

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/types"
)

type fakeRepository struct {
	carts map[uuid.UUID]*models.CartRecord
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{carts: map[uuid.UUID]*models.CartRecord{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByUser(_ context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record, ok := f.carts[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeRepository) FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if record, ok := f.carts[userID]; ok {
		return record, nil
	}
	record := &models.CartRecord{ID: uuid.New(), UserID: userID}
	f.carts[userID] = record
	return record, nil
}

func (f *fakeRepository) UpsertLine(_ context.Context, line *models.CartItem) error {
	for _, record := range f.carts {
		if record.ID != line.CartID {
			continue
		}
		for i := range record.Items {
			existing := &record.Items[i]
			if existing.ProductID == line.ProductID && strings.EqualFold(existing.ColorName, line.ColorName) {
				existing.Quantity += line.Quantity
				return nil
			}
		}
		record.Items = append(record.Items, *line)
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) SetLineQuantity(_ context.Context, cartID, productID uuid.UUID, colorName string, quantity int) (bool, error) {
	for _, record := range f.carts {
		if record.ID != cartID {
			continue
		}
		for i := range record.Items {
			item := &record.Items[i]
			if item.ProductID == productID && lineColorMatches(item.ColorName, colorName) {
				item.Quantity = quantity
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepository) RemoveLine(_ context.Context, cartID, productID uuid.UUID, colorName string) (bool, error) {
	for _, record := range f.carts {
		if record.ID != cartID {
			continue
		}
		for i := range record.Items {
			item := record.Items[i]
			if item.ProductID == productID && lineColorMatches(item.ColorName, colorName) {
				record.Items = append(record.Items[:i], record.Items[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

// Mirrors the SQL scope: an empty requested color targets the first
// line found for the product.
func lineColorMatches(stored, requested string) bool {
	return requested == "" || strings.EqualFold(stored, requested)
}

func (f *fakeRepository) ClearLines(_ context.Context, cartID uuid.UUID) error {
	for _, record := range f.carts {
		if record.ID == cartID {
			record.Items = nil
		}
	}
	return nil
}

type fakeProducts struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProducts) GetProductWithVariants(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func discountKindPtr(k enums.DiscountKind) *enums.DiscountKind { return &k }

func testService(t *testing.T, repo Repository, products ProductGetter) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "cart-test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(repo, products, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func fixtures() (*fakeRepository, *fakeProducts, *models.Product, *models.Product) {
	repo := newFakeRepository()
	withVariants := &models.Product{
		ID:         uuid.New(),
		Name:       "Ceramic Mug",
		PriceCents: 1500,
		IsActive:   true,
		ImageURL:   strPtr("https://cdn.example.com/mug.png"),
		Variants: []models.ProductVariant{
			{Name: "Red", ColorCode: "#E53935", Stock: 5, IsAvailable: true, Position: 0},
			{Name: "Blue", ColorCode: "#1E88E5", Stock: 2, IsAvailable: true, Position: 1},
		},
	}
	plain := &models.Product{
		ID:         uuid.New(),
		Name:       "Poster",
		PriceCents: 900,
		IsActive:   true,
	}
	products := &fakeProducts{products: map[uuid.UUID]*models.Product{
		withVariants.ID: withVariants,
		plain.ID:        plain,
	}}
	return repo, products, withVariants, plain
}

func TestService_AddItemResolvesColor(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	view, err := svc.AddItem(context.Background(), AddItemInput{
		UserID:    userID,
		ProductID: mug.ID,
		Quantity:  2,
		ColorName: "red",
	})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	if len(view.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Items))
	}
	line := view.Items[0]
	if line.Color.Name != "Red" || line.Color.Code != "#E53935" {
		t.Fatalf("color not normalized to variant casing: %+v", line.Color)
	}
	if line.UnitPriceCents != 1500 || line.LineTotalCents != 3000 {
		t.Fatalf("unexpected pricing: %+v", line)
	}
	if view.SubtotalCents != 3000 || view.ItemCount != 2 {
		t.Fatalf("unexpected totals: subtotal=%d count=%d", view.SubtotalCents, view.ItemCount)
	}
}

func TestService_AddItemMergesSameLine(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 1, ColorName: "Red"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 3, ColorName: "RED"})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Items) != 1 {
		t.Fatalf("same color must merge into one line, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 4 {
		t.Fatalf("expected merged quantity 4, got %d", view.Items[0].Quantity)
	}
}

func TestService_AddItemDefaultsToFirstVariant(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)

	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: mug.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if view.Items[0].Color.Name != "Red" {
		t.Fatalf("expected first variant, got %q", view.Items[0].Color.Name)
	}
}

func TestService_AddItemVariantlessUsesSentinelColor(t *testing.T) {
	repo, products, _, poster := fixtures()
	svc := testService(t, repo, products)

	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: poster.ID, Quantity: 1, ColorName: "Anything"})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if view.Items[0].Color != types.DefaultColor() {
		t.Fatalf("expected sentinel color, got %+v", view.Items[0].Color)
	}
	if view.Items[0].ImageURL != placeholderImageURL {
		t.Fatalf("expected placeholder image, got %q", view.Items[0].ImageURL)
	}
}

func TestService_AddItemUnknownColorFallsBack(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)

	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: mug.ID, Quantity: 1, ColorName: "Green"})
	if err != nil {
		t.Fatalf("unknown color must not fail the add: %v", err)
	}
	if view.Items[0].Color.Name != "Red" {
		t.Fatalf("expected fallback to first variant, got %q", view.Items[0].Color.Name)
	}
}

func TestService_AddItemSnapshotsDiscountedPrice(t *testing.T) {
	repo, products, mug, _ := fixtures()
	now := time.Now()
	mug.DiscountKind = discountKindPtr(enums.DiscountKindPercentage)
	mug.DiscountValue = 20
	mug.DiscountStartsAt = timePtr(now.Add(-time.Hour))
	mug.DiscountEndsAt = timePtr(now.Add(time.Hour))
	svc := testService(t, repo, products)

	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: mug.ID, Quantity: 1, ColorName: "Red"})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if view.Items[0].UnitPriceCents != 1200 {
		t.Fatalf("snapshot must hold the discounted price, got %d", view.Items[0].UnitPriceCents)
	}
	if view.SubtotalCents != 1200 {
		t.Fatalf("unexpected subtotal: %d", view.SubtotalCents)
	}
}

func TestService_AddItemInactiveProduct(t *testing.T) {
	repo, products, mug, _ := fixtures()
	mug.IsActive = false
	svc := testService(t, repo, products)

	_, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: mug.ID, Quantity: 1, ColorName: "Red"})
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
}

func TestService_UpdateQuantityZeroRemovesLine(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 2, ColorName: "Red"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.UpdateItemQuantity(context.Background(), userID, mug.ID, "Red", 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(view.Items))
	}
}

func TestService_UpdateQuantity(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 2, ColorName: "Blue"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.UpdateItemQuantity(context.Background(), userID, mug.ID, "blue", 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Items[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", view.Items[0].Quantity)
	}
}

func TestService_RemoveMissingLine(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 1, ColorName: "Red"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := svc.RemoveItem(context.Background(), userID, mug.ID, "Blue")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_UpdateQuantityWithoutColor(t *testing.T) {
	repo, products, mug, _ := fixtures()
	svc := testService(t, repo, products)
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{UserID: userID, ProductID: mug.ID, Quantity: 2, ColorName: "Red"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.UpdateItemQuantity(context.Background(), userID, mug.ID, "", 5)
	if err != nil {
		t.Fatalf("colorless update must target the existing line: %v", err)
	}
	if view.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", view.Items[0].Quantity)
	}
}

func TestService_ViewDropsOversizedInlineImage(t *testing.T) {
	repo, products, mug, _ := fixtures()
	mug.ImageURL = strPtr("data:image/png;base64," + strings.Repeat("A", maxInlineImageBytes))
	svc := testService(t, repo, products)

	view, err := svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), ProductID: mug.ID, Quantity: 1, ColorName: "Red"})
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if view.Items[0].ImageURL != placeholderImageURL {
		t.Fatalf("oversized inline image must be replaced, got %d bytes", len(view.Items[0].ImageURL))
	}
}

func TestService_ClearEmptyCartIsNoop(t *testing.T) {
	repo, products, _, _ := fixtures()
	svc := testService(t, repo, products)

	if err := svc.Clear(context.Background(), uuid.New()); err != nil {
		t.Fatalf("clear on missing cart must be a no-op, got %v", err)
	}
}
