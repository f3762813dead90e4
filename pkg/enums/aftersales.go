package enums

import "fmt"

// AfterSalesStatus is the request sub-machine state stored on the order.
type AfterSalesStatus string

const (
	AfterSalesStatusNone      AfterSalesStatus = "none"
	AfterSalesStatusPending   AfterSalesStatus = "pending"
	AfterSalesStatusApproved  AfterSalesStatus = "approved"
	AfterSalesStatusRejected  AfterSalesStatus = "rejected"
	AfterSalesStatusCompleted AfterSalesStatus = "completed"
)

var validAfterSalesStatuses = []AfterSalesStatus{
	AfterSalesStatusNone,
	AfterSalesStatusPending,
	AfterSalesStatusApproved,
	AfterSalesStatusRejected,
	AfterSalesStatusCompleted,
}

// String implements fmt.Stringer.
func (s AfterSalesStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AfterSalesStatus.
func (s AfterSalesStatus) IsValid() bool {
	for _, candidate := range validAfterSalesStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Blocks reports whether a new request cannot be submitted while a request
// in this state exists.
func (s AfterSalesStatus) Blocks() bool {
	return s == AfterSalesStatusPending || s == AfterSalesStatusApproved
}

// ParseAfterSalesStatus converts raw input into an AfterSalesStatus.
func ParseAfterSalesStatus(value string) (AfterSalesStatus, error) {
	for _, candidate := range validAfterSalesStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid after-sales status %q", value)
}

// AfterSalesType distinguishes returns from replacements.
type AfterSalesType string

const (
	AfterSalesTypeReturn      AfterSalesType = "return"
	AfterSalesTypeReplacement AfterSalesType = "replacement"
)

var validAfterSalesTypes = []AfterSalesType{
	AfterSalesTypeReturn,
	AfterSalesTypeReplacement,
}

// String implements fmt.Stringer.
func (t AfterSalesType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AfterSalesType.
func (t AfterSalesType) IsValid() bool {
	for _, candidate := range validAfterSalesTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAfterSalesType converts raw input into an AfterSalesType.
func ParseAfterSalesType(value string) (AfterSalesType, error) {
	for _, candidate := range validAfterSalesTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid after-sales type %q", value)
}
