package controllers

import (
	"net/http"
	"strings"

	"github.com/davidmarcano/storefront-backend/api/responses"
	"github.com/davidmarcano/storefront-backend/api/validators"
	ordersvc "github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/pagination"
	"github.com/davidmarcano/storefront-backend/pkg/payments"
	"github.com/davidmarcano/storefront-backend/pkg/types"
)

type paymentConfirmationPayload struct {
	ProviderOrderID   string `json:"provider_order_id" validate:"required"`
	ProviderPaymentID string `json:"provider_payment_id" validate:"required"`
	Signature         string `json:"signature" validate:"required"`
}

type createOrderRequest struct {
	PaymentMethod      string                      `json:"payment_method" validate:"required"`
	ShippingAddress    types.Address               `json:"shipping_address" validate:"required"`
	ExpectedTotalCents int                         `json:"expected_total_cents" validate:"required,min=1"`
	Confirmation       *paymentConfirmationPayload `json:"confirmation,omitempty"`
	Notes              *string                     `json:"notes,omitempty"`
}

// OrderCreate converts the caller's cart into an order.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		input := ordersvc.CreateInput{
			Actor:              actor,
			PaymentMethod:      method,
			ShippingAddress:    payload.ShippingAddress,
			ExpectedTotalCents: payload.ExpectedTotalCents,
			Notes:              payload.Notes,
		}
		if payload.Confirmation != nil {
			input.Confirmation = &payments.Confirmation{
				ProviderOrderID:   payload.Confirmation.ProviderOrderID,
				ProviderPaymentID: payload.Confirmation.ProviderPaymentID,
				Signature:         payload.Confirmation.Signature,
			}
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"order": result.Order}
		if len(result.StockWarnings) > 0 {
			body["stock_warnings"] = result.StockWarnings
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, body)
	}
}

// OrderPaymentIntent opens a provider payment intent for the cart total.
func OrderPaymentIntent(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.CreatePaymentIntent(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// OrderFetch returns one order to its owner or an admin.
func OrderFetch(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderList pages the caller's own orders.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForUser(r.Context(), ordersvc.ListInput{
			UserID:     actor.UserID,
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
	Force  bool   `json:"force"`
}

// OrderCancel cancels an order. Force only matters for admins cancelling
// shipped orders.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, ordersvc.CancelInput{
			Reason: payload.Reason,
			Force:  payload.Force,
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
