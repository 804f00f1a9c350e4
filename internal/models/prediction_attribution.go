package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionAttribution is a ranked link from a prediction to one of the
// raw items that justified it. Rank 0 is most important; ranks for one
// prediction form a dense ordering starting at 0.
type PredictionAttribution struct {
	PredictionID string `gorm:"primaryKey;type:varchar(36)"`
	RawItemID    string `gorm:"primaryKey;type:varchar(36);index"`

	// No unique index on (prediction_id, rank): the upsert re-rank on a
	// (prediction, item) conflict would collide with it mid-write. Rank
	// density is enforced where attributions are built.
	Rank      int              `gorm:"not null;default:0;index"`
	Relevance *decimal.Decimal `gorm:"type:numeric(3,2)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PredictionAttribution) TableName() string {
	return "prediction_attributions"
}
