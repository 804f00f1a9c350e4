package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ToolCall is one ordered, append-only step inside a workflow run. Step
// numbers are strictly increasing within a run.
type ToolCall struct {
	ID    string `gorm:"primaryKey;type:varchar(36)"`
	RunID string `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_tool_calls_run_step"`

	StepNumber int          `gorm:"not null;uniqueIndex:uq_tool_calls_run_step"`
	Kind       ToolCallKind `gorm:"type:varchar(20);not null;index"`
	Name       string       `gorm:"type:varchar(100);not null"`

	Args   datatypes.JSON `gorm:"type:jsonb"`
	Result datatypes.JSON `gorm:"type:jsonb"`

	TokensIn  int             `gorm:"not null;default:0"`
	TokensOut int             `gorm:"not null;default:0"`
	CostUSD   decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0"`
	LatencyMs int             `gorm:"not null;default:0"`

	Success      bool      `gorm:"not null;default:true"`
	ErrorMessage *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ToolCall) TableName() string {
	return "tool_calls"
}
