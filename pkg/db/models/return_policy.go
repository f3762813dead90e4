package models

import "time"

// ReturnPolicy is a singleton row (id = 1) holding store-wide after-sales
// defaults. Per-product Returnable/Replaceable overrides win over these.
type ReturnPolicy struct {
	ID                    int       `gorm:"column:id;primaryKey"`
	ReturnableDefault     bool      `gorm:"column:returnable_default;not null;default:true"`
	ReplaceableDefault    bool      `gorm:"column:replaceable_default;not null;default:true"`
	ReturnWindowDays      int       `gorm:"column:return_window_days;not null;default:7"`
	ReplacementWindowDays int       `gorm:"column:replacement_window_days;not null;default:7"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReturnPolicy) TableName() string { return "return_policies" }
