package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prediction is one probability judgment produced by a workflow run.
// Immutable after creation.
type Prediction struct {
	ID         string      `gorm:"primaryKey;type:varchar(36)"`
	RunID      string      `gorm:"type:varchar(36);not null;index"`
	Run        WorkflowRun `gorm:"foreignKey:RunID"`
	ProtocolID string      `gorm:"type:varchar(36);not null;index"`
	Protocol   Protocol    `gorm:"foreignKey:ProtocolID"`

	P            decimal.Decimal `gorm:"type:numeric(3,2);not null;index"`
	HorizonHours *int            `gorm:""`
	Rationale    string          `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Prediction) TableName() string {
	return "predictions"
}
