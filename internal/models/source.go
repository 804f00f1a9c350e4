package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source is a registered external content producer (feed, wire, filing
// index, market API). Adapters submit raw items under a source id.
type Source struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)"`
	Name         string     `gorm:"type:varchar(200);uniqueIndex;not null"`
	Kind         SourceKind `gorm:"type:varchar(20);not null;index"`
	Endpoint     string     `gorm:"type:text;not null"`
	Active       bool       `gorm:"not null;default:true"`
	LastFetchAt  *time.Time `gorm:"type:timestamptz"`
	HealthStatus string     `gorm:"type:varchar(20);default:'ok'"`

	FetchConfig datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"type:timestamptz;autoCreateTime"`
}

func (Source) TableName() string {
	return "sources"
}
