package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a snapshot of a cart line at checkout time.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:ix_order_items_order"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	ColorName  string    `gorm:"column:color_name;not null"`
	ColorCode  string    `gorm:"column:color_code;not null"`
	ImageURL   *string   `gorm:"column:image_url"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotalCents is quantity times the captured unit price.
func (i OrderItem) LineTotalCents() int {
	return i.Quantity * i.PriceCents
}
