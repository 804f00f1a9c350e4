package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EventProposal is a candidate event mined from one raw item. Proposals
// start pending; review is the only mutation path, and accepting one is
// the only way a canonical Event is created.
type EventProposal struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)"`
	RawItemID string  `gorm:"type:varchar(36);not null;index"`
	RawItem   RawItem `gorm:"foreignKey:RawItemID"`

	EventKey    string `gorm:"type:varchar(200);not null;index"`
	Title       string `gorm:"type:varchar(500);not null"`
	Description string `gorm:"type:text;not null"`
	ProposedBy  string `gorm:"type:varchar(50);not null"`

	Status     ProposalStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`
	Confidence *decimal.Decimal `gorm:"type:numeric(3,2)"`

	ReviewedAt  *time.Time `gorm:"type:timestamptz"`
	ReviewedBy  *string    `gorm:"type:varchar(50)"`
	ReviewNotes *string    `gorm:"type:text"`

	Meta      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (EventProposal) TableName() string {
	return "event_proposals"
}
