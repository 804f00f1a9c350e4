package models

import "time"

// Outcome is the resolved ground truth for an event. At most one per
// event; written only by the resolution path. Event.State == resolved
// if and only if Outcome.Resolved is true.
type Outcome struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	EventID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	Resolved         bool       `gorm:"not null;default:false"`
	OutcomeValue     *string    `gorm:"type:varchar(20)"`
	ResolvedAt       *time.Time `gorm:"type:timestamptz;index"`
	ResolutionSource *string    `gorm:"type:varchar(50)"`
	Notes            *string    `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Outcome) TableName() string {
	return "outcomes"
}
