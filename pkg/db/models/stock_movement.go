package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// StockMovement is an append-only audit row for every inventory change.
// Delta is negative for debits and positive for credits.
type StockMovement struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index:ix_stock_movements_product"`
	VariantName string                    `gorm:"column:variant_name;not null;default:''"`
	Delta       int                       `gorm:"column:delta;not null"`
	Reason      enums.StockMovementReason `gorm:"column:reason;not null"`
	OrderID     *uuid.UUID                `gorm:"column:order_id;type:uuid;index:ix_stock_movements_order"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime;index:ix_stock_movements_created"`
}

func (StockMovement) TableName() string { return "stock_movements" }
