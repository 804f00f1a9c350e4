package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WorkflowRun is one reasoning session producing predictions for one
// event under one protocol. Aggregate counters are maintained by the
// store whenever a tool call is appended.
type WorkflowRun struct {
	ID         string   `gorm:"primaryKey;type:varchar(36)"`
	EventID    string   `gorm:"type:varchar(36);not null;index"`
	Event      Event    `gorm:"foreignKey:EventID"`
	ProtocolID string   `gorm:"type:varchar(36);not null;index"`
	Protocol   Protocol `gorm:"foreignKey:ProtocolID"`

	Status RunStatus `gorm:"type:varchar(20);not null;default:'running';index"`

	TotalTokensIn  int             `gorm:"not null;default:0"`
	TotalTokensOut int             `gorm:"not null;default:0"`
	TotalCostUSD   decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	TotalLatencyMs int             `gorm:"not null;default:0"`

	StartedAt time.Time      `gorm:"type:timestamptz;not null;index"`
	EndedAt   *time.Time     `gorm:"type:timestamptz"`
	Meta      datatypes.JSON `gorm:"type:jsonb"`
}

func (WorkflowRun) TableName() string {
	return "workflow_runs"
}
