package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// TranslateError converts context deadline failures into the typed timeout
// error so callers can distinguish a slow store from a missing record or a
// conflict. Other errors pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "store operation timed out")
	}
	return err
}

// IsUniqueViolation reports whether the error is a unique constraint
// violation, optionally scoped to one named constraint. The sqlite
// message form is matched as well since tests run against sqlite.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	unique := strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !unique {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName) ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
