package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketListing mirrors an event on an external prediction market. It is
// refreshed independently and never resolves the event by itself.
type MarketListing struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	EventID string `gorm:"type:varchar(36);not null;index"`
	Event   Event  `gorm:"foreignKey:EventID"`

	MarketName string `gorm:"type:varchar(50);not null;uniqueIndex:uq_market_listings_name_id"`
	MarketID   string `gorm:"type:varchar(100);not null;uniqueIndex:uq_market_listings_name_id"`
	MarketURL  string `gorm:"type:text;not null"`

	CurrentPrice *decimal.Decimal `gorm:"type:numeric(3,2)"`
	Volume       *int64           `gorm:""`
	Active       bool             `gorm:"not null;default:true"`
	LastSyncAt   *time.Time       `gorm:"type:timestamptz"`

	Meta      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime"`
}

func (MarketListing) TableName() string {
	return "market_listings"
}
