package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// VariantView is the customer-facing shape of one color variant.
type VariantView struct {
	Name        string `json:"name"`
	ColorCode   string `json:"colorCode"`
	Stock       int    `json:"stock"`
	IsAvailable bool   `json:"isAvailable"`
}

// View is a product with its discount evaluated at read time. The price
// fields always reflect the clock, never the cached active flag.
type View struct {
	ID                  uuid.UUID               `json:"id"`
	Name                string                  `json:"name"`
	Description         *string                 `json:"description,omitempty"`
	PriceCents          int                     `json:"priceCents"`
	EffectivePriceCents int                     `json:"effectivePriceCents"`
	SavedCents          int                     `json:"savedCents"`
	DiscountStatus      enums.DiscountStatus    `json:"discountStatus"`
	TimeRemaining       *discount.TimeRemaining `json:"timeRemaining,omitempty"`
	Stock               int                     `json:"stock"`
	ImageURL            *string                 `json:"imageUrl,omitempty"`
	IsActive            bool                    `json:"isActive"`
	Variants            []VariantView           `json:"variants,omitempty"`
	CreatedAt           time.Time               `json:"createdAt"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

// NewView evaluates the product's discount at the given instant and maps
// the row into its read shape.
func NewView(p *models.Product, now time.Time) *View {
	eval := discount.Evaluate(p, now)

	view := &View{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		PriceCents:          p.PriceCents,
		EffectivePriceCents: eval.EffectivePriceCents,
		SavedCents:          eval.SavedCents,
		DiscountStatus:      eval.Status,
		TimeRemaining:       eval.TimeRemaining,
		Stock:               p.Stock,
		ImageURL:            p.ImageURL,
		IsActive:            p.IsActive,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, VariantView{
			Name:        v.Name,
			ColorCode:   v.ColorCode,
			Stock:       v.Stock,
			IsAvailable: v.IsAvailable,
		})
	}
	return view
}
