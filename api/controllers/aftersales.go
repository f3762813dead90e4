package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/api/responses"
	"github.com/davidmarcano/storefront-backend/api/validators"
	aftersalessvc "github.com/davidmarcano/storefront-backend/internal/aftersales"
	ordersvc "github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

// AfterSalesEligibility answers whether the order can still open a
// return or replacement.
func AfterSalesEligibility(svc aftersalessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		eligibility, err := svc.CheckEligibility(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eligibility)
	}
}

type afterSalesItemPayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	ColorName string    `json:"color_name"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type submitAfterSalesRequest struct {
	Type   string                  `json:"type" validate:"required"`
	Reason string                  `json:"reason" validate:"required"`
	Items  []afterSalesItemPayload `json:"items,omitempty" validate:"omitempty,dive"`
}

// AfterSalesSubmit opens a return or replacement request.
func AfterSalesSubmit(svc aftersalessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload submitAfterSalesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseAfterSalesType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request type"))
			return
		}

		order, err := svc.Submit(r.Context(), orderID, aftersalessvc.SubmitInput{
			Type:   kind,
			Reason: payload.Reason,
			Items:  toAfterSalesItems(payload.Items),
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

// AfterSalesApprove accepts a pending request.
func AfterSalesApprove(svc aftersalessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc.Approve, logg)
}

// AfterSalesReject declines a pending request.
func AfterSalesReject(svc aftersalessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return decisionHandler(svc.Reject, logg)
}

type completeAfterSalesRequest struct {
	Replacements []afterSalesItemPayload `json:"replacements,omitempty" validate:"omitempty,dive"`
}

// AfterSalesComplete closes an approved request and applies its stock
// effects.
func AfterSalesComplete(svc aftersalessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload completeAfterSalesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Complete(r.Context(), orderID, aftersalessvc.CompleteInput{
			Replacements: toAfterSalesItems(payload.Replacements),
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func decisionHandler(
	decide func(ctx context.Context, orderID uuid.UUID, notes string, actor ordersvc.Actor) (*models.Order, error),
	logg *logger.Logger,
) http.HandlerFunc {
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

		var payload decisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := decide(r.Context(), orderID, payload.Notes, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func toAfterSalesItems(payloads []afterSalesItemPayload) []models.AfterSalesItem {
	items := make([]models.AfterSalesItem, 0, len(payloads))
	for _, payload := range payloads {
		items = append(items, models.AfterSalesItem{
			ProductID: payload.ProductID,
			ColorName: payload.ColorName,
			Quantity:  payload.Quantity,
		})
	}
	return items
}
