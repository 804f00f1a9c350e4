package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event is the canonical, deduplicated trackable occurrence. Key is the
// natural dedup key; state changes go through the lifecycle package.
type Event struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	ProposalID *string `gorm:"type:varchar(36);index"`

	Key         string     `gorm:"type:varchar(200);uniqueIndex;not null"`
	Title       string     `gorm:"type:varchar(500);not null"`
	Description string     `gorm:"type:text;not null"`
	State       EventState `gorm:"type:varchar(20);not null;default:'draft';index"`

	ResolutionCriteria *string    `gorm:"type:text"`
	ExpectedResolution *time.Time `gorm:"type:timestamptz;index"`

	Meta      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Event) TableName() string {
	return "events"
}
