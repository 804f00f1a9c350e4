package protocol

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"sybil/internal/models"
)

// Random is the coin-flip baseline. It cites nothing.
type Random struct {
	Rand *rand.Rand
}

func (r *Random) Kind() models.ProtocolKind { return models.ProtocolRandom }

func (r *Random) RequiresCitations() bool { return false }

func (r *Random) Produce(ctx context.Context, event *models.Event, items []models.RawItem) (*Judgment, error) {
	p := 0.5
	if r.Rand != nil {
		p = r.Rand.Float64()
	}
	return &Judgment{
		P:         p,
		Rationale: "random baseline",
	}, nil
}

var confirmingWords = []string{"confirmed", "announced", "won", "approved", "completed", "official"}
var hedgingWords = []string{"rumor", "may", "might", "could", "reportedly", "unclear"}

// Heuristic is a keyword-count baseline over the raw item text. It
// cites items ordered by recency, newest first.
type Heuristic struct{}

func (h *Heuristic) Kind() models.ProtocolKind { return models.ProtocolHeuristic }

func (h *Heuristic) RequiresCitations() bool { return true }

func (h *Heuristic) Produce(ctx context.Context, event *models.Event, items []models.RawItem) (*Judgment, error) {
	var confirming, hedging int
	for _, item := range items {
		text := strings.ToLower(itemText(item))
		for _, w := range confirmingWords {
			if strings.Contains(text, w) {
				confirming++
			}
		}
		for _, w := range hedgingWords {
			if strings.Contains(text, w) {
				hedging++
			}
		}
	}
	p := 0.5
	if confirming+hedging > 0 {
		p = float64(confirming) / float64(confirming+hedging)
		// Keep the baseline away from certainty.
		p = 0.1 + 0.8*p
	}

	ranked := make([]models.RawItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FetchedAt.After(ranked[j].FetchedAt)
	})
	ids := make([]string, 0, len(ranked))
	for _, item := range ranked {
		ids = append(ids, item.ID)
	}

	return &Judgment{
		P:             p,
		Rationale:     "keyword heuristic over cited items",
		RankedItemIDs: ids,
	}, nil
}

func itemText(item models.RawItem) string {
	var b strings.Builder
	if item.Title != nil {
		b.WriteString(*item.Title)
		b.WriteString(" ")
	}
	if item.ContentText != nil {
		b.WriteString(*item.ContentText)
	}
	return b.String()
}

// Human never produces a judgment programmatically; predictions for a
// human protocol arrive through the API.
type Human struct{}

func (h *Human) Kind() models.ProtocolKind { return models.ProtocolHuman }

func (h *Human) RequiresCitations() bool { return false }

func (h *Human) Produce(ctx context.Context, event *models.Event, items []models.RawItem) (*Judgment, error) {
	return nil, ErrAwaitingInput
}
