package db

import (
	"sybil/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Source{},
		&models.RawItem{},
		&models.EventProposal{},
		&models.Event{},
		&models.MarketListing{},
		&models.Protocol{},
		&models.WorkflowRun{},
		&models.ToolCall{},
		&models.Prediction{},
		&models.PredictionAttribution{},
		&models.Outcome{},
		&models.PredictionScore{},
		&models.EventResolution{},
	)
}
