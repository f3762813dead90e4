package controllers

import (
	"net/http"

	"github.com/davidmarcano/storefront-backend/api/responses"
	"github.com/davidmarcano/storefront-backend/api/validators"
	policysvc "github.com/davidmarcano/storefront-backend/internal/policy"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

// PolicyFetch returns the site-wide return policy.
func PolicyFetch(svc policysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

type updatePolicyRequest struct {
	ReturnableDefault     *bool `json:"returnable_default,omitempty"`
	ReplaceableDefault    *bool `json:"replaceable_default,omitempty"`
	ReturnWindowDays      *int  `json:"return_window_days,omitempty"`
	ReplacementWindowDays *int  `json:"replacement_window_days,omitempty"`
}

// AdminPolicyUpdate edits the site-wide return policy.
func AdminPolicyUpdate(svc policysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updatePolicyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Update(r.Context(), policysvc.UpdateInput{
			ReturnableDefault:     payload.ReturnableDefault,
			ReplaceableDefault:    payload.ReplaceableDefault,
			ReturnWindowDays:      payload.ReturnWindowDays,
			ReplacementWindowDays: payload.ReplacementWindowDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}
