package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/davidmarcano/storefront-backend/api/responses"
	"github.com/davidmarcano/storefront-backend/api/validators"
	productsvc "github.com/davidmarcano/storefront-backend/internal/products"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

// ProductList pages the catalog with live discount evaluation.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := productFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), productsvc.ListInput{
			Filters:    filters,
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductFetch returns one product evaluated at the current clock.
func ProductFetch(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type variantPayload struct {
	Name      string `json:"name" validate:"required"`
	ColorCode string `json:"color_code"`
	Stock     int    `json:"stock" validate:"min=0"`
	Position  int    `json:"position" validate:"min=0"`
}

type createProductRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description *string          `json:"description,omitempty"`
	PriceCents  int              `json:"price_cents" validate:"required,min=1"`
	Stock       int              `json:"stock" validate:"min=0"`
	ImageURL    *string          `json:"image_url,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
	Returnable  *bool            `json:"returnable,omitempty"`
	Replaceable *bool            `json:"replaceable,omitempty"`
	Variants    []variantPayload `json:"variants,omitempty" validate:"omitempty,dive"`
}

// AdminProductCreate adds a product to the catalog.
func AdminProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		active := true
		if payload.IsActive != nil {
			active = *payload.IsActive
		}

		view, err := svc.CreateProduct(r.Context(), productsvc.CreateInput{
			Name:        payload.Name,
			Description: payload.Description,
			PriceCents:  payload.PriceCents,
			Stock:       payload.Stock,
			ImageURL:    payload.ImageURL,
			IsActive:    active,
			Returnable:  payload.Returnable,
			Replaceable: payload.Replaceable,
			Variants:    toVariantInputs(payload.Variants),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

type updateProductRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	PriceCents  *int              `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	ImageURL    *string           `json:"image_url,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	Returnable  *bool             `json:"returnable,omitempty"`
	Replaceable *bool             `json:"replaceable,omitempty"`
	Variants    *[]variantPayload `json:"variants,omitempty"`
}

// AdminProductUpdate applies partial edits to a product.
func AdminProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			PriceCents:  payload.PriceCents,
			ImageURL:    payload.ImageURL,
			IsActive:    payload.IsActive,
			Returnable:  payload.Returnable,
			Replaceable: payload.Replaceable,
		}
		if payload.Variants != nil {
			variants := toVariantInputs(*payload.Variants)
			input.Variants = &variants
		}

		view, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminProductDelete removes a product from the catalog.
func AdminProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type adjustStockRequest struct {
	ColorName string `json:"color_name"`
	Delta     int    `json:"delta" validate:"required"`
}

// AdminProductAdjustStock applies a manual stock correction through the
// ledger.
func AdminProductAdjustStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AdjustStock(r.Context(), productsvc.AdjustStockInput{
			ProductID: productID,
			ColorName: payload.ColorName,
			Delta:     payload.Delta,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func toVariantInputs(payloads []variantPayload) []productsvc.VariantInput {
	variants := make([]productsvc.VariantInput, 0, len(payloads))
	for _, payload := range payloads {
		variants = append(variants, productsvc.VariantInput{
			Name:      payload.Name,
			ColorCode: payload.ColorCode,
			Stock:     payload.Stock,
			Position:  payload.Position,
		})
	}
	return variants
}

func productFilters(r *http.Request) (productsvc.ListFilters, error) {
	filters := productsvc.ListFilters{
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		ActiveOnly: r.URL.Query().Get("include_inactive") == "",
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("price_min")); raw != "" {
		value, err := validators.ParseQueryInt(r, "price_min", 0, 0, 1<<31-1)
		if err != nil {
			return productsvc.ListFilters{}, err
		}
		filters.PriceMinCents = &value
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("price_max")); raw != "" {
		value, err := validators.ParseQueryInt(r, "price_max", 0, 0, 1<<31-1)
		if err != nil {
			return productsvc.ListFilters{}, err
		}
		filters.PriceMaxCents = &value
	}
	if filters.PriceMinCents != nil && filters.PriceMaxCents != nil && *filters.PriceMinCents > *filters.PriceMaxCents {
		return productsvc.ListFilters{}, pkgerrors.New(pkgerrors.CodeValidation, "price_min must not exceed price_max")
	}

	if r.URL.Query().Get("discounted") == "true" {
		now := time.Now()
		filters.DiscountedAt = &now
	}
	return filters, nil
}
