package discount

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// Repository persists discount configuration on product rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	BulkSet(ctx context.Context, productIDs []uuid.UUID, kind enums.DiscountKind, value int, startsAt, endsAt *time.Time, activeNow bool) (int64, error)
	BulkRemove(ctx context.Context, productIDs []uuid.UUID) (int64, error)
	RefreshActiveFlags(ctx context.Context, now time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the discount repository to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) BulkSet(ctx context.Context, productIDs []uuid.UUID, kind enums.DiscountKind, value int, startsAt, endsAt *time.Time, activeNow bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", productIDs).
		Updates(map[string]any{
			"discount_kind":      kind,
			"discount_value":     value,
			"discount_starts_at": startsAt,
			"discount_ends_at":   endsAt,
			"discount_active":    activeNow,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) BulkRemove(ctx context.Context, productIDs []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", productIDs).
		Updates(map[string]any{
			"discount_kind":      nil,
			"discount_value":     0,
			"discount_starts_at": nil,
			"discount_ends_at":   nil,
			"discount_active":    false,
		})
	return res.RowsAffected, res.Error
}

// RefreshActiveFlags realigns the cached discount_active column with the
// window. Reads never trust the flag, so this only keeps listings that
// filter on it honest.
func (r *repository) RefreshActiveFlags(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET discount_active = (
			discount_kind IS NOT NULL
			AND discount_value > 0
			AND (discount_starts_at IS NULL OR discount_starts_at <= ?)
			AND (discount_ends_at IS NULL OR discount_ends_at > ?)
		)
		WHERE discount_kind IS NOT NULL OR discount_active
	`, now, now).Error
}
