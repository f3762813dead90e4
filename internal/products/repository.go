package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
)

// ListFilters describe the supported filter knobs for catalog listings.
type ListFilters struct {
	Query         string
	ActiveOnly    bool
	PriceMinCents *int
	PriceMaxCents *int
	DiscountedAt  *time.Time
}

// Repository is the catalog persistence surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetWithVariants(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	ApplyUpdates(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error
	RecomputeAggregateStock(ctx context.Context, productID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// FindByID loads the product without associations.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return &product, nil
}

// GetWithVariants loads the product with its variants ordered by position.
func (r *repository) GetWithVariants(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &product, nil
}

// Create inserts a product row together with its variants.
func (r *repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ApplyUpdates writes the given allow-listed columns to one product row.
func (r *repository) ApplyUpdates(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReplaceVariants swaps the full variant set for the product. Aggregate
// stock must be recomputed by the caller afterwards.
func (r *repository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductVariant{}).Error; err != nil {
		return err
	}
	if len(variants) == 0 {
		return nil
	}
	for i := range variants {
		variants[i].ProductID = productID
	}
	return tx.Create(&variants).Error
}

// RecomputeAggregateStock realigns the denormalized product stock with the
// sum of its variant stocks.
func (r *repository) RecomputeAggregateStock(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock = (SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?)
		 WHERE id = ?`,
		productID, productID,
	).Error
}

// Delete removes a product and, via the FK cascade, its variants.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List pages products newest first with their variants preloaded.
func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Product, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	qb := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})

	if filters.ActiveOnly {
		qb = qb.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(filters.Query); search != "" {
		qb = qb.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filters.PriceMinCents != nil {
		qb = qb.Where("price_cents >= ?", *filters.PriceMinCents)
	}
	if filters.PriceMaxCents != nil {
		qb = qb.Where("price_cents <= ?", *filters.PriceMaxCents)
	}
	if at := filters.DiscountedAt; at != nil {
		qb = qb.Where(
			`discount_kind IS NOT NULL AND discount_value > 0
			 AND (discount_starts_at IS NULL OR discount_starts_at <= ?)
			 AND (discount_ends_at IS NULL OR discount_ends_at >= ?)`,
			*at, *at,
		)
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return rows, nil
}
