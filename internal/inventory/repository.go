package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
)

// Repository manages persistence for stock levels and the movement audit
// trail. The conditional updates are single statements so a debit can
// never drive stock negative, regardless of concurrent checkouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	DebitVariant(ctx context.Context, productID uuid.UUID, variantName string, qty int) (bool, error)
	CreditVariant(ctx context.Context, productID uuid.UUID, variantName string, qty int) (bool, error)
	DebitProduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	CreditProduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	RecomputeAggregate(ctx context.Context, productID uuid.UUID) error
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetProductWithVariants(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&product, "id = ?", productID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) DebitVariant(ctx context.Context, productID uuid.UUID, variantName string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock - ?,
			is_available = (stock - ?) > 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND lower(name) = lower(?) AND stock >= ?
	`, qty, qty, productID, variantName, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreditVariant(ctx context.Context, productID uuid.UUID, variantName string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock + ?,
			is_available = true,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND lower(name) = lower(?)
	`, qty, productID, variantName)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DebitProduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreditProduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RecomputeAggregate(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = (
			SELECT COALESCE(SUM(stock), 0)
			FROM product_variants
			WHERE product_id = ?
		),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID, productID).Error
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	return movements, nil
}
