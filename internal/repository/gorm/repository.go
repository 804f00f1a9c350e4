package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sybil/internal/models"
	"sybil/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Sources ----------------------------------------------------------------

func (s *Store) UpsertSource(ctx context.Context, item *models.Source) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind",
			"endpoint",
			"active",
			"fetch_config",
		}),
	}).Create(item).Error
}

func (s *Store) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Source
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Source
	if err := s.db.WithContext(ctx).Order("name asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) TouchSource(ctx context.Context, id string, fetchedAt time.Time, health string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_fetch_at": fetchedAt,
			"health_status": health,
		}).Error
}

// --- Raw items (dedup index) ------------------------------------------------

func (s *Store) UpsertRawItem(ctx context.Context, item *models.RawItem) (*models.RawItem, bool, error) {
	if s == nil || s.db == nil || item == nil {
		return nil, false, nil
	}
	existing, err := s.getRawItemByHash(ctx, item.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	err = s.db.WithContext(ctx).Create(item).Error
	if err == nil {
		return item, false, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}
	// Lost a race against a concurrent writer with the same hash. One
	// re-read is allowed; a second miss means something other than the
	// hash collided and the write is genuinely invalid.
	existing, rerr := s.getRawItemByHash(ctx, item.ContentHash)
	if rerr != nil {
		return nil, false, rerr
	}
	if existing != nil {
		return existing, true, nil
	}
	return nil, false, &repository.IntegrityError{Entity: "raw_item", Key: item.ContentHash, Err: err}
}

func (s *Store) getRawItemByHash(ctx context.Context, hash string) (*models.RawItem, error) {
	var item models.RawItem
	err := s.db.WithContext(ctx).Where("content_hash = ?", hash).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetRawItemByID(ctx context.Context, id string) (*models.RawItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.RawItem
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRawItemsByIDs(ctx context.Context, ids []string) ([]models.RawItem, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.RawItem
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRawItems(ctx context.Context, params repository.ListRawItemsParams) ([]models.RawItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.RawItem{})
	if params.SourceID != nil && *params.SourceID != "" {
		query = query.Where("source_id = ?", *params.SourceID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("fetched_at >= ?", *params.Since)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.RawItem
	if err := query.Order("fetched_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Proposals --------------------------------------------------------------

func (s *Store) CreateProposal(ctx context.Context, item *models.EventProposal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetProposalByID(ctx context.Context, id string) (*models.EventProposal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.EventProposal
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProposals(ctx context.Context, params repository.ListProposalsParams) ([]models.EventProposal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.EventProposal{})
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.EventKey != nil && *params.EventKey != "" {
		query = query.Where("event_key = ?", *params.EventKey)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.EventProposal
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveProposalTx(ctx context.Context, tx *gorm.DB, item *models.EventProposal) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

// --- Events -----------------------------------------------------------------

func (s *Store) GetOrCreateEventByKey(ctx context.Context, key string, seed *models.Event) (*models.Event, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	existing, err := s.GetEventByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	if seed == nil {
		seed = &models.Event{}
	}
	seed.Key = key
	if seed.State == "" {
		seed.State = models.EventDraft
	}
	err = s.db.WithContext(ctx).Create(seed).Error
	if err == nil {
		return seed, false, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}
	existing, rerr := s.GetEventByKey(ctx, key)
	if rerr != nil {
		return nil, false, rerr
	}
	if existing != nil {
		return existing, true, nil
	}
	return nil, false, &repository.IntegrityError{Entity: "event", Key: key, Err: err}
}

func (s *Store) CreateEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	if tx == nil || item == nil {
		return nil
	}
	err := tx.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &repository.IntegrityError{Entity: "event", Key: item.Key, Err: err}
	}
	return err
}

func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Event
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetEventByKey(ctx context.Context, key string) (*models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Event
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Event{})
	if params.State != nil && *params.State != "" {
		query = query.Where("state = ?", *params.State)
	} else if !params.IncludeArchived {
		query = query.Where("state <> ?", models.EventArchived)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Event
	if err := query.Order("updated_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateEventState(ctx context.Context, id string, state models.EventState) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", id).
		Update("state", state).Error
}

func (s *Store) UpdateEventStateTx(ctx context.Context, tx *gorm.DB, id string, state models.EventState) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", id).
		Update("state", state).Error
}

func (s *Store) ListEventsDueForResolution(ctx context.Context, asOf time.Time, limit int) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 50)
	var items []models.Event
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("state IN ?", []models.EventState{models.EventActive, models.EventLocked}).
		Where("expected_resolution IS NOT NULL").
		Where("expected_resolution <= ?", asOf).
		Order("expected_resolution asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Market listings --------------------------------------------------------

func (s *Store) UpsertMarketListing(ctx context.Context, item *models.MarketListing) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "market_name"}, {Name: "market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market_url",
			"current_price",
			"volume",
			"active",
			"last_sync_at",
			"meta",
		}),
	}).Create(item).Error
}

func (s *Store) ListMarketListingsByEventID(ctx context.Context, eventID string) ([]models.MarketListing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.MarketListing
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Where("active = ?", true).
		Order("market_name asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveMarketListings(ctx context.Context, limit int) ([]models.MarketListing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 100)
	var items []models.MarketListing
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_sync_at asc nulls first").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Protocols --------------------------------------------------------------

func (s *Store) UpsertProtocol(ctx context.Context, item *models.Protocol) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "description"}),
	}).Create(item).Error
}

func (s *Store) GetProtocolByID(ctx context.Context, id string) (*models.Protocol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Protocol
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetProtocol(ctx context.Context, name, version string) (*models.Protocol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Protocol
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProtocols(ctx context.Context) ([]models.Protocol, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Protocol
	if err := s.db.WithContext(ctx).Order("name asc, version asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Workflow runs and tool calls -------------------------------------------

func (s *Store) CreateRun(ctx context.Context, item *models.WorkflowRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetRunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.WorkflowRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CountRunningRuns(ctx context.Context, eventID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WorkflowRun{}).
		Where("event_id = ?", eventID).
		Where("status = ?", models.RunRunning).
		Count(&count).Error
	return count, err
}

func (s *Store) FinishRun(ctx context.Context, id string, status models.RunStatus, endedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.WorkflowRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   status,
			"ended_at": endedAt,
		}).Error
}

func (s *Store) AppendToolCall(ctx context.Context, item *models.ToolCall) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &repository.IntegrityError{Entity: "tool_call", Key: item.RunID, Err: err}
			}
			return err
		}
		return tx.Model(&models.WorkflowRun{}).
			Where("id = ?", item.RunID).
			Updates(map[string]any{
				"total_tokens_in":  gorm.Expr("total_tokens_in + ?", item.TokensIn),
				"total_tokens_out": gorm.Expr("total_tokens_out + ?", item.TokensOut),
				"total_cost_usd":   gorm.Expr("total_cost_usd + ?", item.CostUSD),
				"total_latency_ms": gorm.Expr("total_latency_ms + ?", item.LatencyMs),
			}).Error
	})
}

func (s *Store) ListToolCallsByRunID(ctx context.Context, runID string) ([]models.ToolCall, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ToolCall
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("step_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MaxStepNumber(ctx context.Context, runID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var max *int
	err := s.db.WithContext(ctx).Model(&models.ToolCall{}).
		Where("run_id = ?", runID).
		Select("MAX(step_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// --- Predictions and attributions -------------------------------------------

func (s *Store) CreatePredictionTx(ctx context.Context, tx *gorm.DB, item *models.Prediction, attrs []models.PredictionAttribution) error {
	if tx == nil || item == nil {
		return nil
	}
	if err := tx.WithContext(ctx).Create(item).Error; err != nil {
		return err
	}
	for i := range attrs {
		attrs[i].PredictionID = item.ID
		// Re-submitting the same (prediction, item) pair re-ranks the
		// existing row instead of duplicating it.
		err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prediction_id"}, {Name: "raw_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rank", "relevance"}),
		}).Create(&attrs[i]).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetPredictionByID(ctx context.Context, id string) (*models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Prediction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRecentPredictions(ctx context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Prediction{})
	if params.ProtocolID != nil && *params.ProtocolID != "" {
		query = query.Where("protocol_id = ?", *params.ProtocolID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Prediction
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAttributionsByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PredictionAttribution
	err := s.db.WithContext(ctx).
		Where("prediction_id = ?", predictionID).
		Order("rank asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPredictionsByEventID(ctx context.Context, eventID string) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Prediction
	err := s.db.WithContext(ctx).
		Joins("JOIN workflow_runs ON workflow_runs.id = predictions.run_id").
		Where("workflow_runs.event_id = ?", eventID).
		Order("predictions.created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Outcomes ---------------------------------------------------------------

func (s *Store) GetOutcomeByEventID(ctx context.Context, eventID string) (*models.Outcome, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Outcome
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertOutcomeTx(ctx context.Context, tx *gorm.DB, item *models.Outcome) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"resolved",
			"outcome_value",
			"resolved_at",
			"resolution_source",
			"notes",
		}),
	}).Create(item).Error
}

// --- Resolutions ------------------------------------------------------------

func (s *Store) GetResolutionByEventID(ctx context.Context, eventID string) (*models.EventResolution, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.EventResolution
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.EventResolution) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"confidence",
			"confirming_count",
			"contradicting_count",
			"total_examined",
			"summary",
			"key_evidence",
			"contradicting_evidence",
			"resolved_by",
			"resolved_at",
			"overridden_by",
			"override_notes",
			"overridden_at",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- Scores -----------------------------------------------------------------

func (s *Store) InsertScore(ctx context.Context, item *models.PredictionScore) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListScoresByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionScore, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PredictionScore
	err := s.db.WithContext(ctx).
		Where("prediction_id = ?", predictionID).
		Order("as_of desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ProtocolScoreAverages(ctx context.Context, protocolID string, since time.Time) ([]repository.ScoreAverageRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.ScoreAverageRow
	err := s.db.WithContext(ctx).
		Table("prediction_scores AS ps").
		Select("ps.score_type AS score_type, COUNT(*) AS count, AVG(ps.value) AS average").
		Joins("JOIN predictions p ON p.id = ps.prediction_id").
		Where("p.protocol_id = ?", protocolID).
		Where("ps.as_of >= ?", since).
		Group("ps.score_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
