package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawItem is one immutable piece of ingested content. Rows are never
// updated or deleted after creation; ContentHash is the global dedup key
// across all sources.
type RawItem struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	SourceID   string  `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_raw_items_source_extid"`
	Source     Source  `gorm:"foreignKey:SourceID"`
	ExternalID *string `gorm:"type:varchar(512);uniqueIndex:uq_raw_items_source_extid"`

	URL         string  `gorm:"type:text;not null"`
	Title       *string `gorm:"type:text"`
	ContentText *string `gorm:"type:text"`
	ContentHash string  `gorm:"type:varchar(64);not null;uniqueIndex"`

	FetchedAt time.Time      `gorm:"type:timestamptz;not null;index"`
	Meta      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime"`
}

func (RawItem) TableName() string {
	return "raw_items"
}
