package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventResolution is the per-event resolution record produced by the
// resolution engine. One row per event; re-running resolution replaces
// the prior row.
type EventResolution struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	EventID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	Status     ResolutionStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	Confidence float64          `gorm:"not null;default:0"`

	ConfirmingCount    int `gorm:"not null;default:0"`
	ContradictingCount int `gorm:"not null;default:0"`
	TotalExamined      int `gorm:"not null;default:0"`

	Summary               string         `gorm:"type:text;not null"`
	KeyEvidence           datatypes.JSON `gorm:"type:jsonb"`
	ContradictingEvidence datatypes.JSON `gorm:"type:jsonb"`

	ResolvedBy string     `gorm:"type:varchar(50);not null"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`

	// Override fields are written only by the human escape hatch for
	// contradicted records. Notes are mandatory.
	OverriddenBy  *string    `gorm:"type:varchar(50)"`
	OverrideNotes *string    `gorm:"type:text"`
	OverriddenAt  *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (EventResolution) TableName() string {
	return "event_resolutions"
}
