package orders

import (
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
)

// forwardEdges is the single-step happy path. Cancel and refund are
// side-exits handled by their own operations.
var forwardEdges = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusConfirmed,
	enums.OrderStatusConfirmed:  enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

func checkForwardTransition(from, to enums.OrderStatus) error {
	next, ok := forwardEdges[from]
	if !ok || next != to {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]interface{}{
				"current_status":   from.String(),
				"requested_status": to.String(),
			})
	}
	return nil
}

// cancellable reports whether the order can still be cancelled at all.
// Shipped orders additionally require a forced admin cancellation.
func cancellable(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusReturned:
		return false
	default:
		return true
	}
}

func refundable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCancelled || status == enums.OrderStatusReturned
}
