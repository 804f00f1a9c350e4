package protocol

import (
	"context"

	"sybil/internal/models"
	"sybil/internal/reasoner"
)

// Agent delegates judgment to the external reasoner. A reasoner failure
// degrades to the neutral fallback instead of failing the run; the
// caller records the failure in the tool-call trace.
type Agent struct {
	Reasoner reasoner.Reasoner
}

func (a *Agent) Kind() models.ProtocolKind { return models.ProtocolAgent }

func (a *Agent) RequiresCitations() bool { return true }

func (a *Agent) Produce(ctx context.Context, event *models.Event, items []models.RawItem) (*Judgment, error) {
	input := reasoner.Input{
		EventTitle:       event.Title,
		EventDescription: event.Description,
		Items:            items,
	}
	if event.ResolutionCriteria != nil {
		input.ResolutionCriteria = *event.ResolutionCriteria
	}

	result, usage, err := a.Reasoner.Judge(ctx, input)
	if err != nil {
		result = reasoner.Fallback()
		// Degraded judgments cite every provided item in given order
		// so the attribution chain stays intact.
		for _, item := range items {
			result.RankedItemIDs = append(result.RankedItemIDs, item.ID)
		}
	}
	return &Judgment{
		P:             clamp01(result.Probability),
		Rationale:     result.Rationale,
		RankedItemIDs: result.RankedItemIDs,
		Relevance:     result.Relevance,
		Degraded:      result.Degraded,
		Usage:         usage,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
