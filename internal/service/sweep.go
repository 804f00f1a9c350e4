package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/repository"
	"sybil/internal/resolution"
)

// Sweeper drives the scheduled resolution pass: events past their
// expected resolution time and still active or locked get one engine
// attempt each. Failures are isolated per event.
type Sweeper struct {
	Repo   repository.Repository
	Engine *resolution.Engine
	Config config.ResolutionConfig
	Logger *zap.Logger
}

func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s == nil || s.Repo == nil || s.Engine == nil {
		return 0, nil
	}
	limit := s.Config.SweepLimit
	if limit <= 0 {
		limit = 50
	}
	events, err := s.Repo.ListEventsDueForResolution(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	attempted := 0
	for i := range events {
		event := &events[i]
		record, err := s.Engine.Resolve(ctx, event)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("resolution attempt failed",
					zap.String("event_id", event.ID),
					zap.String("event_key", event.Key),
					zap.Error(err))
			}
			continue
		}
		attempted++
		if record != nil && s.Logger != nil {
			s.Logger.Info("resolution attempted",
				zap.String("event_id", event.ID),
				zap.String("status", string(record.Status)),
				zap.Float64("confidence", record.Confidence))
		}
	}
	return attempted, nil
}
