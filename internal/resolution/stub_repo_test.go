package resolution

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sybil/internal/models"
	"sybil/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. Engine tests exercise the resolution and
// outcome paths; the rest of the interface is inert.
type stubRepo struct {
	events      map[string]*models.Event
	outcomes    map[string]*models.Outcome
	resolutions map[string]*models.EventResolution
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		events:      map[string]*models.Event{},
		outcomes:    map[string]*models.Outcome{},
		resolutions: map[string]*models.EventResolution{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) UpsertSource(ctx context.Context, item *models.Source) error { return nil }
func (s *stubRepo) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	return nil, nil
}
func (s *stubRepo) ListSources(ctx context.Context) ([]models.Source, error) { return nil, nil }
func (s *stubRepo) TouchSource(ctx context.Context, id string, fetchedAt time.Time, health string) error {
	return nil
}

func (s *stubRepo) UpsertRawItem(ctx context.Context, item *models.RawItem) (*models.RawItem, bool, error) {
	return item, false, nil
}
func (s *stubRepo) GetRawItemByID(ctx context.Context, id string) (*models.RawItem, error) {
	return nil, nil
}
func (s *stubRepo) ListRawItemsByIDs(ctx context.Context, ids []string) ([]models.RawItem, error) {
	return nil, nil
}
func (s *stubRepo) ListRawItems(ctx context.Context, params repository.ListRawItemsParams) ([]models.RawItem, error) {
	return nil, nil
}

func (s *stubRepo) CreateProposal(ctx context.Context, item *models.EventProposal) error { return nil }
func (s *stubRepo) GetProposalByID(ctx context.Context, id string) (*models.EventProposal, error) {
	return nil, nil
}
func (s *stubRepo) ListProposals(ctx context.Context, params repository.ListProposalsParams) ([]models.EventProposal, error) {
	return nil, nil
}
func (s *stubRepo) SaveProposalTx(ctx context.Context, tx *gorm.DB, item *models.EventProposal) error {
	return nil
}

func (s *stubRepo) GetOrCreateEventByKey(ctx context.Context, key string, seed *models.Event) (*models.Event, bool, error) {
	return nil, false, nil
}
func (s *stubRepo) CreateEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	s.events[item.ID] = item
	return nil
}
func (s *stubRepo) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return s.events[id], nil
}
func (s *stubRepo) GetEventByKey(ctx context.Context, key string) (*models.Event, error) {
	return nil, nil
}
func (s *stubRepo) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	return nil, nil
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
	return nil, nil
}

func (s *stubRepo) UpsertMarketListing(ctx context.Context, item *models.MarketListing) error {
	return nil
}
func (s *stubRepo) ListMarketListingsByEventID(ctx context.Context, eventID string) ([]models.MarketListing, error) {
	return nil, nil
}
func (s *stubRepo) ListActiveMarketListings(ctx context.Context, limit int) ([]models.MarketListing, error) {
	return nil, nil
}

func (s *stubRepo) UpsertProtocol(ctx context.Context, item *models.Protocol) error { return nil }
func (s *stubRepo) GetProtocolByID(ctx context.Context, id string) (*models.Protocol, error) {
	return nil, nil
}
func (s *stubRepo) GetProtocol(ctx context.Context, name, version string) (*models.Protocol, error) {
	return nil, nil
}
func (s *stubRepo) ListProtocols(ctx context.Context) ([]models.Protocol, error) { return nil, nil }

func (s *stubRepo) CreateRun(ctx context.Context, item *models.WorkflowRun) error { return nil }
func (s *stubRepo) GetRunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	return nil, nil
}
func (s *stubRepo) CountRunningRuns(ctx context.Context, eventID string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) FinishRun(ctx context.Context, id string, status models.RunStatus, endedAt time.Time) error {
	return nil
}

func (s *stubRepo) AppendToolCall(ctx context.Context, item *models.ToolCall) error { return nil }
func (s *stubRepo) ListToolCallsByRunID(ctx context.Context, runID string) ([]models.ToolCall, error) {
	return nil, nil
}
func (s *stubRepo) MaxStepNumber(ctx context.Context, runID string) (int, error) { return 0, nil }

func (s *stubRepo) CreatePredictionTx(ctx context.Context, tx *gorm.DB, item *models.Prediction, attrs []models.PredictionAttribution) error {
	return nil
}
func (s *stubRepo) GetPredictionByID(ctx context.Context, id string) (*models.Prediction, error) {
	return nil, nil
}
func (s *stubRepo) ListRecentPredictions(ctx context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	return nil, nil
}
func (s *stubRepo) ListAttributionsByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error) {
	return nil, nil
}
func (s *stubRepo) ListPredictionsByEventID(ctx context.Context, eventID string) ([]models.Prediction, error) {
	return nil, nil
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

func (s *stubRepo) InsertScore(ctx context.Context, item *models.PredictionScore) error { return nil }
func (s *stubRepo) ListScoresByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionScore, error) {
	return nil, nil
}
func (s *stubRepo) ProtocolScoreAverages(ctx context.Context, protocolID string, since time.Time) ([]repository.ScoreAverageRow, error) {
	return nil, nil
}
