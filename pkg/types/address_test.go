package types

import (
	"strings"
	"testing"
)

func TestAddressValidate(t *testing.T) {
	full := Address{
		FullName:   "Dana Whitfield",
		Line1:      "44 Harbor St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
		Country:    "US",
		Phone:      "555-0142",
	}
	if err := full.Validate(); err != nil {
		t.Fatalf("complete address rejected: %v", err)
	}

	missing := full
	missing.PostalCode = "  "
	err := missing.Validate()
	if err == nil {
		t.Fatal("expected error for missing postal_code")
	}
	if !strings.Contains(err.Error(), "postal_code") {
		t.Fatalf("error should name the field: %v", err)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	src := Address{
		FullName:   "Dana Whitfield",
		Line1:      "44 Harbor St",
		Line2:      "Unit 3",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
		Country:    "US",
		Phone:      "555-0142",
	}
	value, err := src.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var dst Address
	if err := dst.Scan(value); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if dst != src {
		t.Fatalf("round trip mismatch: %+v != %+v", dst, src)
	}
}

func TestColorHelpers(t *testing.T) {
	if !DefaultColor().EqualName("default") {
		t.Fatal("color name match should be case-insensitive")
	}
	if (Color{Name: " "}).IsZero() != true {
		t.Fatal("blank name should be zero")
	}
}
