package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/api/responses"
	"github.com/davidmarcano/storefront-backend/api/validators"
	discountsvc "github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/outbox"
)

type setDiscountRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1"`
	Kind       string      `json:"kind" validate:"required"`
	Value      int         `json:"value" validate:"required,min=1"`
	StartsAt   *time.Time  `json:"starts_at,omitempty"`
	EndsAt     *time.Time  `json:"ends_at,omitempty"`
}

// AdminDiscountSet applies one discount configuration across products.
func AdminDiscountSet(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseDiscountKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount kind"))
			return
		}

		updated, err := svc.BulkSetDiscount(r.Context(), discountsvc.SetDiscountInput{
			ProductIDs: payload.ProductIDs,
			Kind:       kind,
			Value:      payload.Value,
			StartsAt:   payload.StartsAt,
			EndsAt:     payload.EndsAt,
			Actor:      &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}

type removeDiscountRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1"`
}

// AdminDiscountRemove strips discount configuration from products.
func AdminDiscountRemove(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload removeDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.BulkRemoveDiscount(r.Context(), payload.ProductIDs,
			&outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
