package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionScore is one post-hoc accuracy measurement for a prediction.
// Append-only: repeated evaluations of the same type are kept as
// separate rows.
type PredictionScore struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	PredictionID string `gorm:"type:varchar(36);not null;index"`

	ScoreType    ScoreType       `gorm:"type:varchar(20);not null;index"`
	Value        decimal.Decimal `gorm:"type:numeric(10,6);not null"`
	AsOf         time.Time       `gorm:"type:timestamptz;not null;index"`
	HorizonHours *int            `gorm:""`
}

func (PredictionScore) TableName() string {
	return "prediction_scores"
}
