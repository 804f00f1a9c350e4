package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/models"
	"sybil/internal/repository"
)

// logLossEpsilon keeps log loss finite for p in {0, 1}.
const logLossEpsilon = 1e-6

// ScoringService evaluates predictions against resolved outcomes.
// Scores are append-only; repeated evaluations pile up as new rows.
type ScoringService struct {
	Repo   repository.Repository
	Config config.ScoringConfig
	Logger *zap.Logger
}

type RecordScoreParams struct {
	PredictionID string
	ScoreType    models.ScoreType
	Value        float64
	HorizonHours *int
	AsOf         time.Time
}

func (s *ScoringService) RecordScore(ctx context.Context, params RecordScoreParams) (*models.PredictionScore, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	prediction, err := s.Repo.GetPredictionByID(ctx, params.PredictionID)
	if err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, &repository.IntegrityError{Entity: "prediction", Key: params.PredictionID, Err: fmt.Errorf("unknown prediction")}
	}
	asOf := params.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	score := &models.PredictionScore{
		ID:           uuid.NewString(),
		PredictionID: prediction.ID,
		ScoreType:    params.ScoreType,
		Value:        decimal.NewFromFloat(params.Value).Round(6),
		AsOf:         asOf,
		HorizonHours: params.HorizonHours,
	}
	if err := s.Repo.InsertScore(ctx, score); err != nil {
		return nil, err
	}
	return score, nil
}

// ScoreEvent computes Brier and log loss for every prediction of a
// resolved event. Events without a resolved outcome are skipped with an
// error; unresolved predictions cannot be scored.
func (s *ScoringService) ScoreEvent(ctx context.Context, eventID string) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	outcome, err := s.Repo.GetOutcomeByEventID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if outcome == nil || !outcome.Resolved || outcome.OutcomeValue == nil {
		return 0, fmt.Errorf("event %s has no resolved outcome", eventID)
	}
	y := 0.0
	if *outcome.OutcomeValue == "true" {
		y = 1.0
	}

	predictions, err := s.Repo.ListPredictionsByEventID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	asOf := time.Now().UTC()
	scored := 0
	for _, prediction := range predictions {
		p, _ := prediction.P.Float64()
		pairs := []struct {
			kind  models.ScoreType
			value float64
		}{
			{models.ScoreBrier, Brier(p, y)},
			{models.ScoreLogLoss, LogLoss(p, y)},
		}
		for _, pair := range pairs {
			_, err := s.RecordScore(ctx, RecordScoreParams{
				PredictionID: prediction.ID,
				ScoreType:    pair.kind,
				Value:        pair.value,
				HorizonHours: prediction.HorizonHours,
				AsOf:         asOf,
			})
			if err != nil {
				return scored, err
			}
		}
		scored++
	}
	if s.Logger != nil {
		s.Logger.Info("event scored", zap.String("event_id", eventID), zap.Int("predictions", scored))
	}
	return scored, nil
}

// ProtocolPerformance summarizes a protocol's average score per metric
// over the trailing window.
type ProtocolPerformance struct {
	ProtocolID string                       `json:"protocol_id"`
	WindowDays int                          `json:"window_days"`
	Since      time.Time                    `json:"since"`
	Averages   []repository.ScoreAverageRow `json:"averages"`
}

func (s *ScoringService) Performance(ctx context.Context, protocolID string, windowDays int) (*ProtocolPerformance, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	proto, err := s.Repo.GetProtocolByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if proto == nil {
		return nil, fmt.Errorf("protocol %s not found", protocolID)
	}
	if windowDays <= 0 {
		windowDays = s.Config.WindowDays
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	rows, err := s.Repo.ProtocolScoreAverages(ctx, protocolID, since)
	if err != nil {
		return nil, err
	}
	return &ProtocolPerformance{
		ProtocolID: protocolID,
		WindowDays: windowDays,
		Since:      since,
		Averages:   rows,
	}, nil
}

// Brier is the squared error of probability p against outcome y.
func Brier(p, y float64) float64 {
	d := p - y
	return d * d
}

// LogLoss is the negative log likelihood with p clamped away from the
// endpoints.
func LogLoss(p, y float64) float64 {
	if p < logLossEpsilon {
		p = logLossEpsilon
	}
	if p > 1-logLossEpsilon {
		p = 1 - logLossEpsilon
	}
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
