package policy

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/davidmarcano/storefront-backend/pkg/config"
	"github.com/davidmarcano/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

const singletonID = 1

// UpdateInput carries the admin-editable policy fields.
type UpdateInput struct {
	ReturnableDefault     *bool
	ReplaceableDefault    *bool
	ReturnWindowDays      *int
	ReplacementWindowDays *int
}

// Resolved is the effective after-sales policy for one product, with
// product-level overrides already applied. Returns and replacements
// keep separate windows.
type Resolved struct {
	Returnable            bool
	Replaceable           bool
	ReturnWindowDays      int
	ReplacementWindowDays int
}

// Service owns the store-wide return policy singleton.
type Service interface {
	Get(ctx context.Context) (*models.ReturnPolicy, error)
	Update(ctx context.Context, input UpdateInput) (*models.ReturnPolicy, error)
	ResolveForProduct(ctx context.Context, product *models.Product) (Resolved, error)
}

type service struct {
	db       *gorm.DB
	defaults config.PolicyConfig
	logg     *logger.Logger
}

// NewService wires the policy service. Config defaults apply until the
// singleton row exists.
func NewService(db *gorm.DB, defaults config.PolicyConfig, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("policy db handle required")
	}
	if logg == nil {
		return nil, fmt.Errorf("policy logger required")
	}
	return &service{db: db, defaults: defaults, logg: logg}, nil
}

func (s *service) Get(ctx context.Context) (*models.ReturnPolicy, error) {
	var row models.ReturnPolicy
	err := s.db.WithContext(ctx).First(&row, "id = ?", singletonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fromDefaults(), nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.ReturnPolicy, error) {
	if input.ReturnWindowDays != nil && *input.ReturnWindowDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return window days must not be negative")
	}
	if input.ReplacementWindowDays != nil && *input.ReplacementWindowDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "replacement window days must not be negative")
	}

	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if input.ReturnableDefault != nil {
		row.ReturnableDefault = *input.ReturnableDefault
	}
	if input.ReplaceableDefault != nil {
		row.ReplaceableDefault = *input.ReplaceableDefault
	}
	if input.ReturnWindowDays != nil {
		row.ReturnWindowDays = *input.ReturnWindowDays
	}
	if input.ReplacementWindowDays != nil {
		row.ReplacementWindowDays = *input.ReplacementWindowDays
	}
	row.ID = singletonID

	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "return policy updated")
	return row, nil
}

// ResolveForProduct layers product overrides on top of the singleton.
func (s *service) ResolveForProduct(ctx context.Context, product *models.Product) (Resolved, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return Resolved{}, err
	}

	resolved := Resolved{
		Returnable:            row.ReturnableDefault,
		Replaceable:           row.ReplaceableDefault,
		ReturnWindowDays:      row.ReturnWindowDays,
		ReplacementWindowDays: row.ReplacementWindowDays,
	}
	if product != nil {
		if product.Returnable != nil {
			resolved.Returnable = *product.Returnable
		}
		if product.Replaceable != nil {
			resolved.Replaceable = *product.Replaceable
		}
	}
	return resolved, nil
}

func (s *service) fromDefaults() *models.ReturnPolicy {
	return &models.ReturnPolicy{
		ID:                    singletonID,
		ReturnableDefault:     s.defaults.ReturnableDefault,
		ReplaceableDefault:    s.defaults.ReplaceableDefault,
		ReturnWindowDays:      s.defaults.ReturnWindowDays,
		ReplacementWindowDays: s.defaults.ReplacementWindowDays,
	}
}
