package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant carries per-color stock. IsAvailable is false exactly when
// Stock is zero; the stock ledger maintains both in the same statement.
type ProductVariant struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_variants_product_name,priority:1"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:ux_product_variants_product_name,priority:2"`
	ColorCode   string    `gorm:"column:color_code;not null;default:'#000000'"`
	Stock       int       `gorm:"column:stock;not null;default:0"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true"`
	Position    int       `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
