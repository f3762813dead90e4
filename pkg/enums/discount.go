package enums

import "fmt"

// DiscountKind selects how a discount value is applied to the base price.
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPercentage,
	DiscountKindFixed,
}

// String implements fmt.Stringer.
func (k DiscountKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known DiscountKind.
func (k DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}

// DiscountStatus is the result of evaluating a discount window against the
// current clock. It is always computed, never read from storage.
type DiscountStatus string

const (
	DiscountStatusInactive DiscountStatus = "inactive"
	DiscountStatusUpcoming DiscountStatus = "upcoming"
	DiscountStatusActive   DiscountStatus = "active"
	DiscountStatusExpired  DiscountStatus = "expired"
)

// String implements fmt.Stringer.
func (s DiscountStatus) String() string {
	return string(s)
}
