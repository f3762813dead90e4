package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// Product is the canonical catalog listing. The aggregate Stock column is
// derived from variant stocks whenever variants exist; only the stock ledger
// writes it.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	PriceCents  int       `gorm:"column:price_cents;not null"`
	Stock       int       `gorm:"column:stock;not null;default:0"`
	ImageURL    *string   `gorm:"column:image_url"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`

	// After-sales overrides; nil falls back to the site-wide policy.
	Returnable  *bool `gorm:"column:returnable"`
	Replaceable *bool `gorm:"column:replaceable"`

	// Discount configuration. DiscountActive is a cached evaluation and is
	// never trusted as the source of truth.
	DiscountValue    int                 `gorm:"column:discount_value;not null;default:0"`
	DiscountKind     *enums.DiscountKind `gorm:"column:discount_kind"`
	DiscountStartsAt *time.Time          `gorm:"column:discount_starts_at"`
	DiscountEndsAt   *time.Time          `gorm:"column:discount_ends_at"`
	DiscountActive   bool                `gorm:"column:discount_active;not null;default:false"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasVariants reports whether stock is tracked per color.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// VariantByName resolves a variant case-insensitively by name.
func (p *Product) VariantByName(name string) *ProductVariant {
	for i := range p.Variants {
		if strings.EqualFold(p.Variants[i].Name, name) {
			return &p.Variants[i]
		}
	}
	return nil
}

// FirstVariant returns the lowest-position variant, or nil.
func (p *Product) FirstVariant() *ProductVariant {
	if len(p.Variants) == 0 {
		return nil
	}
	first := &p.Variants[0]
	for i := range p.Variants {
		if p.Variants[i].Position < first.Position {
			first = &p.Variants[i]
		}
	}
	return first
}
