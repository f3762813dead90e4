package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
)

// AdminFilters narrows the back-office order listing.
type AdminFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Search        string
}

// Repository is the order persistence surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Order, error)
	AdminList(ctx context.Context, filters AdminFilters, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Order, error)
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

// Create inserts the order together with its item snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads the order with its items in insertion order.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &order, nil
}

// Update writes the order row. Item snapshots are immutable and never
// touched here.
func (r *repository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Order, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	qb := r.baseListQuery(ctx).Where("user_id = ?", userID)
	return r.pageQuery(qb, cursor, limitWithBuffer)
}

func (r *repository) AdminList(ctx context.Context, filters AdminFilters, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Order, error) {
	ctx, cancel := db.OperationContext(ctx)
	defer cancel()

	qb := r.baseListQuery(ctx)

	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.PaymentMethod != nil {
		qb = qb.Where("payment ->> 'method' = ?", filters.PaymentMethod.String())
	}
	if filters.CreatedFrom != nil {
		qb = qb.Where("created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		qb = qb.Where("created_at < ?", *filters.CreatedTo)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where(
			`EXISTS (SELECT 1 FROM order_items oi
			 WHERE oi.order_id = orders.id AND LOWER(oi.name) LIKE ?)`,
			pattern,
		)
	}

	return r.pageQuery(qb, cursor, limitWithBuffer)
}

func (r *repository) baseListQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

func (r *repository) pageQuery(qb *gorm.DB, cursor *pagination.Cursor, limitWithBuffer int) ([]models.Order, error) {
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return rows, nil
}
