package models

import "time"

// Protocol names one prediction-producing procedure at a fixed version.
type Protocol struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)"`
	Name        string       `gorm:"type:varchar(100);not null;uniqueIndex:uq_protocols_name_version"`
	Version     string       `gorm:"type:varchar(20);not null;uniqueIndex:uq_protocols_name_version"`
	Kind        ProtocolKind `gorm:"type:varchar(20);not null;index"`
	Description *string      `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"type:timestamptz;autoCreateTime"`
}

func (Protocol) TableName() string {
	return "protocols"
}
