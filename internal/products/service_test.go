package product

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/internal/inventory"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
)

type fakeRepository struct {
	products map[uuid.UUID]*models.Product
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{products: map[uuid.UUID]*models.Product{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	row, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	clone.Variants = nil
	return &clone, nil
}

func (f *fakeRepository) GetWithVariants(_ context.Context, id uuid.UUID) (*models.Product, error) {
	row, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepository) Create(_ context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeRepository) ApplyUpdates(_ context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	row, ok := f.products[id]
	if !ok {
		return false, nil
	}
	for column, value := range updates {
		switch column {
		case "name":
			row.Name = value.(string)
		case "description":
			v := value.(string)
			row.Description = &v
		case "price_cents":
			row.PriceCents = value.(int)
		case "image_url":
			v := value.(string)
			row.ImageURL = &v
		case "is_active":
			row.IsActive = value.(bool)
		case "returnable":
			v := value.(bool)
			row.Returnable = &v
		case "replaceable":
			v := value.(bool)
			row.Replaceable = &v
		}
	}
	return true, nil
}

func (f *fakeRepository) ReplaceVariants(_ context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	row, ok := f.products[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Variants = variants
	return nil
}

func (f *fakeRepository) RecomputeAggregateStock(_ context.Context, productID uuid.UUID) error {
	row, ok := f.products[productID]
	if !ok {
		return nil
	}
	total := 0
	for _, v := range row.Variants {
		total += v.Stock
	}
	row.Stock = total
	return nil
}

func (f *fakeRepository) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	if _, ok := f.products[id]; !ok {
		return false, nil
	}
	delete(f.products, id)
	return true, nil
}

func (f *fakeRepository) List(_ context.Context, filters ListFilters, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Product, error) {
	var rows []models.Product
	for _, row := range f.products {
		if filters.ActiveOnly && !row.IsActive {
			continue
		}
		if q := strings.TrimSpace(filters.Query); q != "" && !strings.Contains(strings.ToLower(row.Name), strings.ToLower(q)) {
			continue
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() > rows[j].ID.String()
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if cursor != nil {
		filtered := rows[:0]
		for _, row := range rows {
			if row.CreatedAt.Before(cursor.CreatedAt) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if len(rows) > limitWithBuffer {
		rows = rows[:limitWithBuffer]
	}
	return rows, nil
}

type fakeTransactor struct{}

func (fakeTransactor) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stockCall struct {
	item   inventory.Item
	reason enums.StockMovementReason
	credit bool
}

type fakeStock struct {
	calls []stockCall
	err   error
}

func (f *fakeStock) Debit(_ context.Context, item inventory.Item, reason enums.StockMovementReason, _ *uuid.UUID) error {
	f.calls = append(f.calls, stockCall{item: item, reason: reason})
	return f.err
}

func (f *fakeStock) Credit(_ context.Context, item inventory.Item, reason enums.StockMovementReason, _ *uuid.UUID) error {
	f.calls = append(f.calls, stockCall{item: item, reason: reason, credit: true})
	return f.err
}

type fakeCache struct {
	entries     map[uuid.UUID]*models.Product
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[uuid.UUID]*models.Product{}}
}

func (f *fakeCache) Get(_ context.Context, productID uuid.UUID) (*models.Product, bool) {
	row, ok := f.entries[productID]
	return row, ok
}

func (f *fakeCache) Put(_ context.Context, product *models.Product) {
	f.entries[product.ID] = product
}

func (f *fakeCache) Invalidate(_ context.Context, productIDs ...uuid.UUID) {
	for _, id := range productIDs {
		delete(f.entries, id)
		f.invalidated = append(f.invalidated, id)
	}
}

func newTestService(t *testing.T) (Service, *fakeRepository, *fakeStock, *fakeCache) {
	t.Helper()

	repo := newFakeRepository()
	stock := &fakeStock{}
	cache := newFakeCache()
	logg := logger.New(logger.Options{ServiceName: "product-test", Level: zerolog.Disabled, Output: io.Discard})

	svc, err := NewService(repo, fakeTransactor{}, stock, cache, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, stock, cache
}

func TestCreateProductDerivesAggregateStock(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	view, err := svc.CreateProduct(context.Background(), CreateInput{
		Name:       "Desk Lamp",
		PriceCents: 4500,
		IsActive:   true,
		Variants: []VariantInput{
			{Name: "Black", ColorCode: "#111111", Stock: 3},
			{Name: "White", Stock: 2},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Stock != 5 {
		t.Fatalf("expected derived stock 5, got %d", view.Stock)
	}
	if len(view.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(view.Variants))
	}
	if view.Variants[1].ColorCode != "#000000" {
		t.Fatalf("expected default color code, got %s", view.Variants[1].ColorCode)
	}

	stored := repo.products[view.ID]
	if stored == nil || stored.Stock != 5 {
		t.Fatalf("aggregate stock not persisted: %+v", stored)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"empty name", CreateInput{PriceCents: 100}},
		{"zero price", CreateInput{Name: "Lamp"}},
		{"negative stock", CreateInput{Name: "Lamp", PriceCents: 100, Stock: -1}},
		{"duplicate variant names", CreateInput{Name: "Lamp", PriceCents: 100, Variants: []VariantInput{
			{Name: "Black", Stock: 1}, {Name: "black", Stock: 2},
		}}},
		{"aggregate stock on variant product", CreateInput{Name: "Lamp", PriceCents: 100, Stock: 4, Variants: []VariantInput{
			{Name: "Black", Stock: 1},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetProductEvaluatesDiscountLive(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	now := time.Now()

	kind := enums.DiscountKindPercentage
	startsAt := now.Add(-time.Hour)
	endsAt := now.Add(time.Hour)
	row := &models.Product{
		ID:               uuid.New(),
		Name:             "Desk Lamp",
		PriceCents:       1000,
		IsActive:         true,
		DiscountKind:     &kind,
		DiscountValue:    20,
		DiscountStartsAt: &startsAt,
		DiscountEndsAt:   &endsAt,
	}
	repo.products[row.ID] = row

	view, err := svc.GetProduct(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.EffectivePriceCents != 800 || view.SavedCents != 200 {
		t.Fatalf("unexpected pricing: %+v", view)
	}
	if view.DiscountStatus != enums.DiscountStatusActive {
		t.Fatalf("expected active discount, got %s", view.DiscountStatus)
	}
}

func TestGetProductWithVariantsReadsThroughCache(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	row := &models.Product{ID: uuid.New(), Name: "Desk Lamp", PriceCents: 1000, IsActive: true}
	repo.products[row.ID] = row

	loaded, err := svc.GetProductWithVariants(ctx, row.ID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, ok := cache.entries[row.ID]; !ok {
		t.Fatal("miss should populate the cache")
	}

	delete(repo.products, row.ID)
	cachedRead, err := svc.GetProductWithVariants(ctx, row.ID)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if cachedRead.ID != loaded.ID {
		t.Fatal("expected cache hit after delete from store")
	}
}

func TestUpdateProductInvalidatesCache(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	row := &models.Product{ID: uuid.New(), Name: "Desk Lamp", PriceCents: 1000, IsActive: true}
	repo.products[row.ID] = row
	cache.entries[row.ID] = row

	newPrice := 1200
	view, err := svc.UpdateProduct(ctx, row.ID, UpdateInput{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.PriceCents != 1200 {
		t.Fatalf("expected price 1200, got %d", view.PriceCents)
	}
	if len(cache.invalidated) == 0 || cache.invalidated[0] != row.ID {
		t.Fatal("expected cache invalidation")
	}
}

func TestUpdateProductReplacesVariants(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	row := &models.Product{
		ID:         uuid.New(),
		Name:       "Desk Lamp",
		PriceCents: 1000,
		IsActive:   true,
		Stock:      3,
		Variants:   []models.ProductVariant{{Name: "Black", Stock: 3}},
	}
	repo.products[row.ID] = row

	variants := []VariantInput{
		{Name: "Black", Stock: 1},
		{Name: "Brass", Stock: 6},
	}
	view, err := svc.UpdateProduct(ctx, row.ID, UpdateInput{Variants: &variants})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Stock != 7 {
		t.Fatalf("expected recomputed stock 7, got %d", view.Stock)
	}
}

func TestUpdateProductRejectsEmptyInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.UpdateProduct(context.Background(), uuid.New(), UpdateInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	name := "Renamed"
	_, err := svc.UpdateProduct(context.Background(), uuid.New(), UpdateInput{Name: &name})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	row := &models.Product{ID: uuid.New(), Name: "Desk Lamp", PriceCents: 1000}
	repo.products[row.ID] = row
	cache.entries[row.ID] = row

	if err := svc.DeleteProduct(ctx, row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.products[row.ID]; ok {
		t.Fatal("product should be gone")
	}
	if len(cache.invalidated) == 0 {
		t.Fatal("expected cache invalidation")
	}

	err := svc.DeleteProduct(ctx, row.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdjustStockRoutesThroughLedger(t *testing.T) {
	svc, repo, stock, cache := newTestService(t)
	ctx := context.Background()

	row := &models.Product{
		ID:         uuid.New(),
		Name:       "Desk Lamp",
		PriceCents: 1000,
		IsActive:   true,
		Variants:   []models.ProductVariant{{Name: "Black", Stock: 3, IsAvailable: true}},
	}
	repo.products[row.ID] = row

	if _, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: row.ID, ColorName: "Black", Delta: 4}); err != nil {
		t.Fatalf("credit adjust: %v", err)
	}
	if _, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: row.ID, ColorName: "Black", Delta: -2}); err != nil {
		t.Fatalf("debit adjust: %v", err)
	}

	if len(stock.calls) != 2 {
		t.Fatalf("expected 2 ledger calls, got %d", len(stock.calls))
	}
	if !stock.calls[0].credit || stock.calls[0].item.Quantity != 4 {
		t.Fatalf("unexpected credit call: %+v", stock.calls[0])
	}
	if stock.calls[1].credit || stock.calls[1].item.Quantity != 2 {
		t.Fatalf("unexpected debit call: %+v", stock.calls[1])
	}
	for _, call := range stock.calls {
		if call.reason != enums.MovementReasonAdjustment {
			t.Fatalf("expected adjustment reason, got %s", call.reason)
		}
	}
	if len(cache.invalidated) != 2 {
		t.Fatalf("expected cache invalidation per adjustment, got %d", len(cache.invalidated))
	}

	_, err := svc.AdjustStock(ctx, AdjustStockInput{ProductID: row.ID, Delta: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListProductsPaginatesAndEvaluates(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := uuid.New()
		repo.products[id] = &models.Product{
			ID:         id,
			Name:       "Lamp",
			PriceCents: 1000,
			IsActive:   true,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	inactive := uuid.New()
	repo.products[inactive] = &models.Product{ID: inactive, Name: "Lamp", PriceCents: 1000, CreatedAt: base}

	page, err := svc.ListProducts(ctx, ListInput{
		Filters:    ListFilters{ActiveOnly: true},
		Pagination: pagination.Params{Limit: 3},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(page.Products))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	rest, err := svc.ListProducts(ctx, ListInput{
		Filters:    ListFilters{ActiveOnly: true},
		Pagination: pagination.Params{Limit: 3, Cursor: page.NextCursor},
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest.Products) != 2 {
		t.Fatalf("expected 2 products on second page, got %d", len(rest.Products))
	}
	if rest.NextCursor != "" {
		t.Fatal("expected no cursor on the last page")
	}
}
