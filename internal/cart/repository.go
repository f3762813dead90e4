package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
)

// Repository encapsulates cart persistence. Line quantity bumps are a
// single upsert statement so two concurrent adds of the same line never
// lose an increment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	UpsertLine(ctx context.Context, line *models.CartItem) error
	SetLineQuantity(ctx context.Context, cartID, productID uuid.UUID, colorName string, quantity int) (bool, error)
	RemoveLine(ctx context.Context, cartID, productID uuid.UUID, colorName string) (bool, error)
	ClearLines(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("user_id = ?", userID).
		First(&record).Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &record, nil
}

func (r *repository) FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	record, err := r.FindByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record = &models.CartRecord{UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(record).Error; err != nil {
		return nil, db.TranslateError(err)
	}
	// DoNothing leaves the struct empty when another request won the
	// insert race, so always re-read.
	return r.FindByUser(ctx, userID)
}

func (r *repository) UpsertLine(ctx context.Context, line *models.CartItem) error {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	return db.TranslateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}, {Name: "color_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(line).Error)
}

func (r *repository) SetLineQuantity(ctx context.Context, cartID, productID uuid.UUID, colorName string, quantity int) (bool, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	res := r.lineScope(ctx, cartID, productID, colorName).
		Model(&models.CartItem{}).
		Update("quantity", quantity)
	if res.Error != nil {
		return false, db.TranslateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RemoveLine(ctx context.Context, cartID, productID uuid.UUID, colorName string) (bool, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	res := r.lineScope(ctx, cartID, productID, colorName).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return false, db.TranslateError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// lineScope targets one cart line. An empty color means the caller did
// not care which variant row, so the oldest line for the product is
// picked rather than failing to match anything.
func (r *repository) lineScope(ctx context.Context, cartID, productID uuid.UUID, colorName string) *gorm.DB {
	scope := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID)
	if colorName == "" {
		oldest := r.db.Model(&models.CartItem{}).
			Select("id").
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Order("created_at ASC").
			Limit(1)
		return scope.Where("id = (?)", oldest)
	}
	return scope.Where("lower(color_name) = lower(?)", colorName)
}

func (r *repository) ClearLines(ctx context.Context, cartID uuid.UUID) error {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	return db.TranslateError(r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error)
}
