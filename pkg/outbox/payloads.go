package outbox

import (
	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/pkg/enums"
)

// Payload shapes published on the domain topic. Versioned through the
// envelope, so additive changes only.

type OrderCreatedPayload struct {
	OrderID       uuid.UUID           `json:"orderId"`
	UserID        uuid.UUID           `json:"userId"`
	TotalCents    int64               `json:"totalCents"`
	ItemCount     int                 `json:"itemCount"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
}

type OrderStatusChangedPayload struct {
	OrderID uuid.UUID         `json:"orderId"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

type OrderCancelledPayload struct {
	OrderID uuid.UUID  `json:"orderId"`
	Reason  string     `json:"reason,omitempty"`
	By      enums.Role `json:"by"`
	Forced  bool       `json:"forced,omitempty"`
}

type OrderRefundedPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	AmountCents int64     `json:"amountCents"`
}

type AfterSalesDecidedPayload struct {
	OrderID uuid.UUID              `json:"orderId"`
	Type    enums.AfterSalesType   `json:"type"`
	Status  enums.AfterSalesStatus `json:"status"`
}

// StockFailure names one line whose inventory move could not be applied.
type StockFailure struct {
	ProductID uuid.UUID `json:"productId"`
	ColorName string    `json:"colorName,omitempty"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// StockDebitFailedPayload flags an order persisted without all of its
// inventory debits applied; consumers alert operators for manual review.
type StockDebitFailedPayload struct {
	OrderID  uuid.UUID      `json:"orderId"`
	Failures []StockFailure `json:"failures"`
}

type DiscountChangedPayload struct {
	ProductIDs []uuid.UUID        `json:"productIds"`
	Kind       enums.DiscountKind `json:"kind,omitempty"`
	Value      int64              `json:"value,omitempty"`
	Removed    bool               `json:"removed,omitempty"`
}
