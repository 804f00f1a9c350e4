package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sybil/internal/models"
	"sybil/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository with enough semantics for the service tests:
// keyed lookups, unique-key collisions, and tool-call counters.
type stubRepo struct {
	sources     map[string]*models.Source
	rawItems    map[string]*models.RawItem
	rawByHash   map[string]*models.RawItem
	proposals   map[string]*models.EventProposal
	events      map[string]*models.Event
	eventsByKey map[string]*models.Event
	listings    map[string]*models.MarketListing
	protocols   map[string]*models.Protocol
	runs        map[string]*models.WorkflowRun
	toolCalls   map[string][]models.ToolCall
	predictions map[string]*models.Prediction
	attrs       map[string][]models.PredictionAttribution
	outcomes    map[string]*models.Outcome
	resolutions map[string]*models.EventResolution
	scores      []models.PredictionScore
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		sources:     map[string]*models.Source{},
		rawItems:    map[string]*models.RawItem{},
		rawByHash:   map[string]*models.RawItem{},
		proposals:   map[string]*models.EventProposal{},
		events:      map[string]*models.Event{},
		eventsByKey: map[string]*models.Event{},
		listings:    map[string]*models.MarketListing{},
		protocols:   map[string]*models.Protocol{},
		runs:        map[string]*models.WorkflowRun{},
		toolCalls:   map[string][]models.ToolCall{},
		predictions: map[string]*models.Prediction{},
		attrs:       map[string][]models.PredictionAttribution{},
		outcomes:    map[string]*models.Outcome{},
		resolutions: map[string]*models.EventResolution{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) UpsertSource(ctx context.Context, item *models.Source) error {
	s.sources[item.Name] = item
	return nil
}

func (s *stubRepo) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	return s.sources[name], nil
}

func (s *stubRepo) ListSources(ctx context.Context) ([]models.Source, error) {
	out := make([]models.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, *src)
	}
	return out, nil
}

func (s *stubRepo) TouchSource(ctx context.Context, id string, fetchedAt time.Time, health string) error {
	for _, src := range s.sources {
		if src.ID == id {
			src.LastFetchAt = &fetchedAt
			src.HealthStatus = health
		}
	}
	return nil
}

func (s *stubRepo) UpsertRawItem(ctx context.Context, item *models.RawItem) (*models.RawItem, bool, error) {
	if existing, ok := s.rawByHash[item.ContentHash]; ok {
		return existing, true, nil
	}
	s.rawItems[item.ID] = item
	s.rawByHash[item.ContentHash] = item
	return item, false, nil
}

func (s *stubRepo) GetRawItemByID(ctx context.Context, id string) (*models.RawItem, error) {
	return s.rawItems[id], nil
}

func (s *stubRepo) ListRawItemsByIDs(ctx context.Context, ids []string) ([]models.RawItem, error) {
	out := make([]models.RawItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.rawItems[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubRepo) ListRawItems(ctx context.Context, params repository.ListRawItemsParams) ([]models.RawItem, error) {
	out := make([]models.RawItem, 0, len(s.rawItems))
	for _, item := range s.rawItems {
		out = append(out, *item)
	}
	return out, nil
}

func (s *stubRepo) CreateProposal(ctx context.Context, item *models.EventProposal) error {
	s.proposals[item.ID] = item
	return nil
}

func (s *stubRepo) GetProposalByID(ctx context.Context, id string) (*models.EventProposal, error) {
	return s.proposals[id], nil
}

func (s *stubRepo) ListProposals(ctx context.Context, params repository.ListProposalsParams) ([]models.EventProposal, error) {
	out := make([]models.EventProposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) SaveProposalTx(ctx context.Context, tx *gorm.DB, item *models.EventProposal) error {
	s.proposals[item.ID] = item
	return nil
}

func (s *stubRepo) GetOrCreateEventByKey(ctx context.Context, key string, seed *models.Event) (*models.Event, bool, error) {
	if existing, ok := s.eventsByKey[key]; ok {
		return existing, true, nil
	}
	s.events[seed.ID] = seed
	s.eventsByKey[key] = seed
	return seed, false, nil
}

func (s *stubRepo) CreateEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	if _, ok := s.eventsByKey[item.Key]; ok {
		return gorm.ErrDuplicatedKey
	}
	s.events[item.ID] = item
	s.eventsByKey[item.Key] = item
	return nil
}

func (s *stubRepo) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return s.events[id], nil
}

func (s *stubRepo) GetEventByKey(ctx context.Context, key string) (*models.Event, error) {
	return s.eventsByKey[key], nil
}

func (s *stubRepo) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	return out, nil
}

func (s *stubRepo) UpdateEventState(ctx context.Context, id string, state models.EventState) error {
	if ev, ok := s.events[id]; ok {
		ev.State = state
	}
	return nil
}

func (s *stubRepo) UpdateEventStateTx(ctx context.Context, tx *gorm.DB, id string, state models.EventState) error {
	return s.UpdateEventState(ctx, id, state)
}

func (s *stubRepo) ListEventsDueForResolution(ctx context.Context, asOf time.Time, limit int) ([]models.Event, error) {
	out := make([]models.Event, 0)
	for _, ev := range s.events {
		if ev.State != models.EventActive && ev.State != models.EventLocked {
			continue
		}
		if ev.ExpectedResolution == nil || ev.ExpectedResolution.After(asOf) {
			continue
		}
		out = append(out, *ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertMarketListing(ctx context.Context, item *models.MarketListing) error {
	s.listings[item.MarketName+"/"+item.MarketID] = item
	return nil
}

func (s *stubRepo) ListMarketListingsByEventID(ctx context.Context, eventID string) ([]models.MarketListing, error) {
	out := make([]models.MarketListing, 0)
	for _, l := range s.listings {
		if l.EventID == eventID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *stubRepo) ListActiveMarketListings(ctx context.Context, limit int) ([]models.MarketListing, error) {
	out := make([]models.MarketListing, 0)
	for _, l := range s.listings {
		if !l.Active {
			continue
		}
		out = append(out, *l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertProtocol(ctx context.Context, item *models.Protocol) error {
	s.protocols[item.ID] = item
	return nil
}

func (s *stubRepo) GetProtocolByID(ctx context.Context, id string) (*models.Protocol, error) {
	return s.protocols[id], nil
}

func (s *stubRepo) GetProtocol(ctx context.Context, name, version string) (*models.Protocol, error) {
	for _, p := range s.protocols {
		if p.Name == name && p.Version == version {
			return p, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListProtocols(ctx context.Context) ([]models.Protocol, error) {
	out := make([]models.Protocol, 0, len(s.protocols))
	for _, p := range s.protocols {
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) CreateRun(ctx context.Context, item *models.WorkflowRun) error {
	s.runs[item.ID] = item
	return nil
}

func (s *stubRepo) GetRunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	return s.runs[id], nil
}

func (s *stubRepo) CountRunningRuns(ctx context.Context, eventID string) (int64, error) {
	var n int64
	for _, r := range s.runs {
		if r.EventID == eventID && r.Status == models.RunRunning {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) FinishRun(ctx context.Context, id string, status models.RunStatus, endedAt time.Time) error {
	if r, ok := s.runs[id]; ok {
		r.Status = status
		r.EndedAt = &endedAt
	}
	return nil
}

func (s *stubRepo) AppendToolCall(ctx context.Context, item *models.ToolCall) error {
	s.toolCalls[item.RunID] = append(s.toolCalls[item.RunID], *item)
	if run, ok := s.runs[item.RunID]; ok {
		run.TotalTokensIn += item.TokensIn
		run.TotalTokensOut += item.TokensOut
		run.TotalCostUSD = run.TotalCostUSD.Add(item.CostUSD)
		run.TotalLatencyMs += item.LatencyMs
	}
	return nil
}

func (s *stubRepo) ListToolCallsByRunID(ctx context.Context, runID string) ([]models.ToolCall, error) {
	return s.toolCalls[runID], nil
}

func (s *stubRepo) MaxStepNumber(ctx context.Context, runID string) (int, error) {
	max := 0
	for _, call := range s.toolCalls[runID] {
		if call.StepNumber > max {
			max = call.StepNumber
		}
	}
	return max, nil
}

func (s *stubRepo) CreatePredictionTx(ctx context.Context, tx *gorm.DB, item *models.Prediction, attrs []models.PredictionAttribution) error {
	s.predictions[item.ID] = item
	s.attrs[item.ID] = attrs
	return nil
}

func (s *stubRepo) GetPredictionByID(ctx context.Context, id string) (*models.Prediction, error) {
	return s.predictions[id], nil
}

func (s *stubRepo) ListRecentPredictions(ctx context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	out := make([]models.Prediction, 0, len(s.predictions))
	for _, p := range s.predictions {
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) ListAttributionsByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error) {
	return s.attrs[predictionID], nil
}

func (s *stubRepo) ListPredictionsByEventID(ctx context.Context, eventID string) ([]models.Prediction, error) {
	out := make([]models.Prediction, 0)
	for _, p := range s.predictions {
		run, ok := s.runs[p.RunID]
		if !ok || run.EventID != eventID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) GetOutcomeByEventID(ctx context.Context, eventID string) (*models.Outcome, error) {
	return s.outcomes[eventID], nil
}

func (s *stubRepo) UpsertOutcomeTx(ctx context.Context, tx *gorm.DB, item *models.Outcome) error {
	s.outcomes[item.EventID] = item
	return nil
}

func (s *stubRepo) GetResolutionByEventID(ctx context.Context, eventID string) (*models.EventResolution, error) {
	return s.resolutions[eventID], nil
}

func (s *stubRepo) UpsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.EventResolution) error {
	s.resolutions[item.EventID] = item
	return nil
}

func (s *stubRepo) InsertScore(ctx context.Context, item *models.PredictionScore) error {
	s.scores = append(s.scores, *item)
	return nil
}

func (s *stubRepo) ListScoresByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionScore, error) {
	out := make([]models.PredictionScore, 0)
	for _, sc := range s.scores {
		if sc.PredictionID == predictionID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *stubRepo) ProtocolScoreAverages(ctx context.Context, protocolID string, since time.Time) ([]repository.ScoreAverageRow, error) {
	return nil, nil
}
