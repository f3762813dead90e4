package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// TimeRemaining is the countdown to a live discount's end.
type TimeRemaining struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Evaluation is the result of applying a product's discount window
// against the clock. EffectivePriceCents equals the base price whenever
// the discount is not live. TimeRemaining is set only for an active
// discount with an end date still ahead.
type Evaluation struct {
	Status              enums.DiscountStatus
	EffectivePriceCents int
	SavedCents          int
	TimeRemaining       *TimeRemaining
}

var oneHundred = decimal.NewFromInt(100)

// Evaluate computes the live price for a product at the given instant.
// The stored DiscountActive flag is ignored; the window and the clock
// are the only inputs that matter.
func Evaluate(product *models.Product, now time.Time) Evaluation {
	status := Status(product, now)
	if status != enums.DiscountStatusActive {
		return Evaluation{Status: status, EffectivePriceCents: product.PriceCents}
	}

	price := product.PriceCents
	var discounted int
	switch *product.DiscountKind {
	case enums.DiscountKindPercentage:
		// Percentages are whole numbers (20 means 20% off). Rounding is
		// half-up to the nearest cent.
		factor := oneHundred.Sub(decimal.NewFromInt(int64(product.DiscountValue))).Div(oneHundred)
		discounted = int(decimal.NewFromInt(int64(price)).Mul(factor).Round(0).IntPart())
	case enums.DiscountKindFixed:
		discounted = price - product.DiscountValue
	default:
		return Evaluation{Status: enums.DiscountStatusInactive, EffectivePriceCents: price}
	}

	if discounted < 0 {
		discounted = 0
	}
	if discounted > price {
		discounted = price
	}
	return Evaluation{
		Status:              enums.DiscountStatusActive,
		EffectivePriceCents: discounted,
		SavedCents:          price - discounted,
		TimeRemaining:       remainingUntil(product.DiscountEndsAt, now),
	}
}

func remainingUntil(endsAt *time.Time, now time.Time) *TimeRemaining {
	if endsAt == nil || !endsAt.After(now) {
		return nil
	}
	left := endsAt.Sub(now)
	return &TimeRemaining{
		Days:    int(left.Hours()) / 24,
		Hours:   int(left.Hours()) % 24,
		Minutes: int(left.Minutes()) % 60,
	}
}

// Status classifies the discount window without computing a price.
func Status(product *models.Product, now time.Time) enums.DiscountStatus {
	if product.DiscountKind == nil || product.DiscountValue <= 0 {
		return enums.DiscountStatusInactive
	}
	if product.DiscountStartsAt != nil && now.Before(*product.DiscountStartsAt) {
		return enums.DiscountStatusUpcoming
	}
	// The window is inclusive on both ends, so a discount expires only
	// strictly after its end instant.
	if product.DiscountEndsAt != nil && now.After(*product.DiscountEndsAt) {
		return enums.DiscountStatusExpired
	}
	return enums.DiscountStatusActive
}
