package protocol

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"sybil/internal/models"
	"sybil/internal/reasoner"
)

func strPtr(s string) *string { return &s }

func rawItem(id, title string, fetchedAt time.Time) models.RawItem {
	return models.RawItem{
		ID:        id,
		Title:     strPtr(title),
		FetchedAt: fetchedAt,
	}
}

func TestRandomProducesBoundedProbability(t *testing.T) {
	p := &Random{Rand: rand.New(rand.NewSource(42))}
	for i := 0; i < 20; i++ {
		j, err := p.Produce(context.Background(), &models.Event{}, nil)
		if err != nil {
			t.Fatalf("Produce: %v", err)
		}
		if j.P < 0.0 || j.P > 1.0 {
			t.Fatalf("p out of range: %v", j.P)
		}
		if len(j.RankedItemIDs) != 0 {
			t.Fatalf("random baseline must not cite items")
		}
	}
}

func TestRandomWithoutSourceIsNeutral(t *testing.T) {
	p := &Random{}
	j, err := p.Produce(context.Background(), &models.Event{}, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if j.P != 0.5 {
		t.Fatalf("p = %v, want 0.5", j.P)
	}
}

func TestHeuristicKeywordBalance(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name  string
		items []models.RawItem
		want  float64
	}{
		{
			name:  "no keywords stays neutral",
			items: []models.RawItem{rawItem("a", "quarterly update", now)},
			want:  0.5,
		},
		{
			name:  "confirming only",
			items: []models.RawItem{rawItem("a", "winner confirmed and announced by official sources", now)},
			want:  0.9,
		},
		{
			name:  "hedging only",
			items: []models.RawItem{rawItem("a", "rumor says it may happen, reportedly unclear", now)},
			want:  0.1,
		},
		{
			name: "mixed two confirming two hedging",
			items: []models.RawItem{
				rawItem("a", "result confirmed and announced", now),
				rawItem("b", "outcome may change, reportedly", now),
			},
			want: 0.5,
		},
	}
	h := &Heuristic{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := h.Produce(context.Background(), &models.Event{}, tt.items)
			if err != nil {
				t.Fatalf("Produce: %v", err)
			}
			if math.Abs(j.P-tt.want) > 1e-9 {
				t.Fatalf("p = %v, want %v", j.P, tt.want)
			}
		})
	}
}

func TestHeuristicCitesNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	items := []models.RawItem{
		rawItem("old", "confirmed", now.Add(-2*time.Hour)),
		rawItem("new", "confirmed", now),
		rawItem("mid", "confirmed", now.Add(-1*time.Hour)),
	}
	j, err := (&Heuristic{}).Produce(context.Background(), &models.Event{}, items)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(j.RankedItemIDs) != len(want) {
		t.Fatalf("ranked = %v", j.RankedItemIDs)
	}
	for i, id := range want {
		if j.RankedItemIDs[i] != id {
			t.Fatalf("ranked = %v, want %v", j.RankedItemIDs, want)
		}
	}
}

func TestHumanAwaitsInput(t *testing.T) {
	j, err := (&Human{}).Produce(context.Background(), &models.Event{}, nil)
	if !errors.Is(err, ErrAwaitingInput) {
		t.Fatalf("err = %v, want ErrAwaitingInput", err)
	}
	if j != nil {
		t.Fatalf("judgment = %+v, want nil", j)
	}
}

func TestAgentPassesThroughJudgment(t *testing.T) {
	agent := &Agent{Reasoner: reasoner.Func(func(ctx context.Context, input reasoner.Input) (reasoner.Result, reasoner.Usage, error) {
		if input.ResolutionCriteria != "official announcement" {
			return reasoner.Result{}, reasoner.Usage{}, errors.New("criteria not forwarded")
		}
		return reasoner.Result{
			Probability:   0.83,
			Rationale:     "two independent confirmations",
			RankedItemIDs: []string{"item-2", "item-1"},
			Relevance:     map[string]float64{"item-2": 0.9, "item-1": 0.4},
		}, reasoner.Usage{TokensIn: 1200, TokensOut: 80}, nil
	})}
	event := &models.Event{Title: "test event", ResolutionCriteria: strPtr("official announcement")}
	items := []models.RawItem{rawItem("item-1", "a", time.Now()), rawItem("item-2", "b", time.Now())}

	j, err := agent.Produce(context.Background(), event, items)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if j.P != 0.83 || j.Degraded {
		t.Fatalf("judgment = %+v", j)
	}
	if j.RankedItemIDs[0] != "item-2" {
		t.Fatalf("ranked = %v", j.RankedItemIDs)
	}
	if j.Usage.TokensIn != 1200 {
		t.Fatalf("usage = %+v", j.Usage)
	}
}

func TestAgentClampsProbability(t *testing.T) {
	agent := &Agent{Reasoner: reasoner.Func(func(ctx context.Context, input reasoner.Input) (reasoner.Result, reasoner.Usage, error) {
		return reasoner.Result{Probability: 1.7}, reasoner.Usage{}, nil
	})}
	j, err := agent.Produce(context.Background(), &models.Event{}, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if j.P != 1.0 {
		t.Fatalf("p = %v, want clamped 1.0", j.P)
	}
}

func TestAgentDegradesOnReasonerFailure(t *testing.T) {
	agent := &Agent{Reasoner: reasoner.Func(func(ctx context.Context, input reasoner.Input) (reasoner.Result, reasoner.Usage, error) {
		return reasoner.Result{}, reasoner.Usage{}, errors.New("upstream timeout")
	})}
	items := []models.RawItem{
		rawItem("item-1", "a", time.Now()),
		rawItem("item-2", "b", time.Now()),
	}
	j, err := agent.Produce(context.Background(), &models.Event{}, items)
	if err != nil {
		t.Fatalf("degraded path must not error: %v", err)
	}
	if !j.Degraded || j.P != 0.5 {
		t.Fatalf("judgment = %+v, want neutral degraded", j)
	}
	if len(j.RankedItemIDs) != 2 || j.RankedItemIDs[0] != "item-1" || j.RankedItemIDs[1] != "item-2" {
		t.Fatalf("degraded citations = %v, want all items in given order", j.RankedItemIDs)
	}
}

func TestRegistrySelectsByKind(t *testing.T) {
	reg := NewRegistry(reasoner.Func(func(ctx context.Context, input reasoner.Input) (reasoner.Result, reasoner.Usage, error) {
		return reasoner.Fallback(), reasoner.Usage{}, nil
	}))
	for _, kind := range []models.ProtocolKind{models.ProtocolAgent, models.ProtocolRandom, models.ProtocolHeuristic, models.ProtocolHuman} {
		impl, err := reg.For(kind)
		if err != nil {
			t.Fatalf("For(%s): %v", kind, err)
		}
		if impl.Kind() != kind {
			t.Fatalf("For(%s) returned %s", kind, impl.Kind())
		}
	}
	if _, err := reg.For(models.ProtocolKind("nonsense")); err == nil {
		t.Fatalf("unknown kind must error")
	}
}

func TestRegistryWithoutReasonerOmitsAgent(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.For(models.ProtocolAgent); err == nil {
		t.Fatalf("agent protocol must be unavailable without a reasoner")
	}
	if _, err := reg.For(models.ProtocolHeuristic); err != nil {
		t.Fatalf("heuristic must remain available: %v", err)
	}
}
