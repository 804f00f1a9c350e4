package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sybil/internal/models"
	"sybil/internal/repository"
)

// PredictionService persists probability judgments and their evidence
// attributions. Predictions are immutable after creation.
type PredictionService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type CreatePredictionParams struct {
	RunID      string
	ProtocolID string

	P            float64
	HorizonHours *int
	Rationale    string

	// RankedItemIDs is the citation order, most important first. Rank
	// is the position; repeated ids keep their first position so ranks
	// stay dense.
	RankedItemIDs []string
	Relevance     map[string]float64

	// RequireAttrib rejects an empty citation list, used for protocols
	// whose judgments must be evidence-backed.
	RequireAttrib bool
}

func (s *PredictionService) CreatePrediction(ctx context.Context, params CreatePredictionParams) (*models.Prediction, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	run, err := s.Repo.GetRunByID(ctx, params.RunID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &repository.IntegrityError{Entity: "workflow_run", Key: params.RunID, Err: fmt.Errorf("unknown run")}
	}
	proto, err := s.Repo.GetProtocolByID(ctx, params.ProtocolID)
	if err != nil {
		return nil, err
	}
	if proto == nil {
		return nil, &repository.IntegrityError{Entity: "protocol", Key: params.ProtocolID, Err: fmt.Errorf("unknown protocol")}
	}

	itemIDs := dedupeIDs(params.RankedItemIDs)
	if params.RequireAttrib && len(itemIDs) == 0 {
		return nil, fmt.Errorf("protocol %s requires cited evidence", proto.Name)
	}
	if len(itemIDs) > 0 {
		found, err := s.Repo.ListRawItemsByIDs(ctx, itemIDs)
		if err != nil {
			return nil, err
		}
		if len(found) != len(itemIDs) {
			return nil, &repository.IntegrityError{
				Entity: "prediction_attribution",
				Key:    params.RunID,
				Err:    fmt.Errorf("cited %d raw items, found %d", len(itemIDs), len(found)),
			}
		}
	}

	prediction := &models.Prediction{
		ID:           uuid.NewString(),
		RunID:        run.ID,
		ProtocolID:   proto.ID,
		P:            decimal.NewFromFloat(clampUnit(params.P)).Round(2),
		HorizonHours: params.HorizonHours,
		Rationale:    params.Rationale,
	}
	attrs := make([]models.PredictionAttribution, 0, len(itemIDs))
	for i, id := range itemIDs {
		attr := models.PredictionAttribution{
			PredictionID: prediction.ID,
			RawItemID:    id,
			Rank:         i,
		}
		if rel, ok := params.Relevance[id]; ok {
			r := decimal.NewFromFloat(clampUnit(rel)).Round(2)
			attr.Relevance = &r
		}
		attrs = append(attrs, attr)
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.CreatePredictionTx(ctx, tx, prediction, attrs)
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("prediction recorded",
			zap.String("prediction_id", prediction.ID),
			zap.String("run_id", run.ID),
			zap.String("p", prediction.P.String()),
			zap.Int("attributions", len(attrs)))
	}
	return prediction, nil
}

// Attributions returns a prediction's citation list ordered by rank.
func (s *PredictionService) Attributions(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListAttributionsByPredictionID(ctx, predictionID)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
