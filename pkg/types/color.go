package types

import "strings"

// DefaultColorName and DefaultColorCode are the sentinel color stored when a
// product carries no variants.
const (
	DefaultColorName = "Default"
	DefaultColorCode = "#000000"
)

// Color identifies a product variant inside cart and order snapshots.
type Color struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// DefaultColor returns the sentinel color for variant-less products.
func DefaultColor() Color {
	return Color{Name: DefaultColorName, Code: DefaultColorCode}
}

// IsZero reports whether no color was supplied.
func (c Color) IsZero() bool {
	return strings.TrimSpace(c.Name) == ""
}

// EqualName compares variant names case-insensitively, the same resolution
// rule the stock ledger uses.
func (c Color) EqualName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}
