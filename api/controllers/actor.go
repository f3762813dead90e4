package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidmarcano/storefront-backend/api/middleware"
	"github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
)

// actorFromContext rebuilds the authenticated actor the auth middleware
// stored on the request.
func actorFromContext(ctx context.Context) (orders.Actor, error) {
	rawID := middleware.UserIDFromContext(ctx)
	if rawID == "" {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return orders.Actor{UserID: userID, Role: role}, nil
}
