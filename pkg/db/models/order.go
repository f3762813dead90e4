package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/pkg/enums"
	"github.com/davidmarcano/storefront-backend/pkg/types"
)

// Order is the durable record of a checkout. Item rows are immutable
// snapshots; later catalog edits never change what the customer paid.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index:ix_orders_user"`
	Status          enums.OrderStatus  `gorm:"column:status;not null;default:'pending';index:ix_orders_status"`
	SubtotalCents   int                `gorm:"column:subtotal_cents;not null"`
	DiscountCents   int                `gorm:"column:discount_cents;not null;default:0"`
	TotalCents      int                `gorm:"column:total_cents;not null"`
	ShippingAddress types.Address      `gorm:"column:shipping_address;type:jsonb;not null"`
	Payment         PaymentInfo        `gorm:"column:payment;type:jsonb;not null"`
	Tracking        *TrackingInfo      `gorm:"column:tracking;type:jsonb"`
	Cancellation    *CancellationInfo  `gorm:"column:cancellation;type:jsonb"`
	AfterSales      *AfterSalesRequest `gorm:"column:after_sales;type:jsonb"`
	Notes           *string            `gorm:"column:notes"`
	DeliveredAt     *time.Time         `gorm:"column:delivered_at"`
	Items           []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime;index:ix_orders_created"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// PaymentInfo captures how an order was (or will be) paid.
type PaymentInfo struct {
	Method            enums.PaymentMethod `json:"method"`
	Status            enums.PaymentStatus `json:"status"`
	ProviderOrderID   string              `json:"provider_order_id,omitempty"`
	ProviderPaymentID string              `json:"provider_payment_id,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	RefundedAt        *time.Time          `json:"refunded_at,omitempty"`
}

func (p PaymentInfo) Value() (driver.Value, error)  { return jsonbValue(p) }
func (p *PaymentInfo) Scan(value interface{}) error { return jsonbScan(p, value) }

// TrackingInfo is set when the order ships.
type TrackingInfo struct {
	Carrier     string     `json:"carrier"`
	Number      string     `json:"number"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

func (t TrackingInfo) Value() (driver.Value, error)  { return jsonbValue(t) }
func (t *TrackingInfo) Scan(value interface{}) error { return jsonbScan(t, value) }

// CancellationInfo records who cancelled the order and why. Forced marks
// an admin cancellation of an already shipped order.
type CancellationInfo struct {
	CancelledAt time.Time  `json:"cancelled_at"`
	CancelledBy enums.Role `json:"cancelled_by"`
	Reason      string     `json:"reason,omitempty"`
	Forced      bool       `json:"forced,omitempty"`
}

func (c CancellationInfo) Value() (driver.Value, error)  { return jsonbValue(c) }
func (c *CancellationInfo) Scan(value interface{}) error { return jsonbScan(c, value) }

// AfterSalesRequest is the embedded return/replacement workflow state.
// At most one request lives on an order at a time.
type AfterSalesRequest struct {
	Type          enums.AfterSalesType   `json:"type"`
	Status        enums.AfterSalesStatus `json:"status"`
	Reason        string                 `json:"reason"`
	Items         []AfterSalesItem       `json:"items"`
	RequestedAt   time.Time              `json:"requested_at"`
	DecidedAt     *time.Time             `json:"decided_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	DecisionNotes string                 `json:"decision_notes,omitempty"`
}

func (a AfterSalesRequest) Value() (driver.Value, error)  { return jsonbValue(a) }
func (a *AfterSalesRequest) Scan(value interface{}) error { return jsonbScan(a, value) }

// AfterSalesItem names one order line included in the request.
type AfterSalesItem struct {
	ProductID uuid.UUID `json:"product_id"`
	ColorName string    `json:"color_name,omitempty"`
	Quantity  int       `json:"quantity"`
}
