package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"sybil/internal/models"
)

// IntegrityError reports a constraint violation the dedup retry path
// could not absorb: a natural key that still collides after one
// re-read, or a dangling foreign key. Fatal, never retried.
type IntegrityError struct {
	Entity string
	Key    string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s (%s): %v", e.Entity, e.Key, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Repository is the ledger store. Mutations to a single entity are
// expected to run inside one transaction; InTx plus the *Tx variants
// compose multi-row writes atomically.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Sources
	UpsertSource(ctx context.Context, item *models.Source) error
	GetSourceByName(ctx context.Context, name string) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	TouchSource(ctx context.Context, id string, fetchedAt time.Time, health string) error

	// Raw items (dedup index). UpsertRawItem returns the stored row and
	// whether it already existed; content hash is the sole dedup key.
	UpsertRawItem(ctx context.Context, item *models.RawItem) (*models.RawItem, bool, error)
	GetRawItemByID(ctx context.Context, id string) (*models.RawItem, error)
	ListRawItemsByIDs(ctx context.Context, ids []string) ([]models.RawItem, error)
	ListRawItems(ctx context.Context, params ListRawItemsParams) ([]models.RawItem, error)

	// Proposals
	CreateProposal(ctx context.Context, item *models.EventProposal) error
	GetProposalByID(ctx context.Context, id string) (*models.EventProposal, error)
	ListProposals(ctx context.Context, params ListProposalsParams) ([]models.EventProposal, error)
	SaveProposalTx(ctx context.Context, tx *gorm.DB, item *models.EventProposal) error

	// Events. GetOrCreateEventByKey returns the existing event for the
	// key or creates a draft one; the bool reports pre-existence.
	GetOrCreateEventByKey(ctx context.Context, key string, seed *models.Event) (*models.Event, bool, error)
	CreateEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetEventByKey(ctx context.Context, key string) (*models.Event, error)
	ListEvents(ctx context.Context, params ListEventsParams) ([]models.Event, error)
	UpdateEventState(ctx context.Context, id string, state models.EventState) error
	UpdateEventStateTx(ctx context.Context, tx *gorm.DB, id string, state models.EventState) error
	ListEventsDueForResolution(ctx context.Context, asOf time.Time, limit int) ([]models.Event, error)

	// Market listings
	UpsertMarketListing(ctx context.Context, item *models.MarketListing) error
	ListMarketListingsByEventID(ctx context.Context, eventID string) ([]models.MarketListing, error)
	ListActiveMarketListings(ctx context.Context, limit int) ([]models.MarketListing, error)

	// Protocols
	UpsertProtocol(ctx context.Context, item *models.Protocol) error
	GetProtocolByID(ctx context.Context, id string) (*models.Protocol, error)
	GetProtocol(ctx context.Context, name, version string) (*models.Protocol, error)
	ListProtocols(ctx context.Context) ([]models.Protocol, error)

	// Workflow runs and tool calls
	CreateRun(ctx context.Context, item *models.WorkflowRun) error
	GetRunByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	CountRunningRuns(ctx context.Context, eventID string) (int64, error)
	FinishRun(ctx context.Context, id string, status models.RunStatus, endedAt time.Time) error
	// AppendToolCall inserts the step and folds its usage metrics into
	// the run's aggregate counters in one transaction.
	AppendToolCall(ctx context.Context, item *models.ToolCall) error
	ListToolCallsByRunID(ctx context.Context, runID string) ([]models.ToolCall, error)
	MaxStepNumber(ctx context.Context, runID string) (int, error)

	// Predictions and attributions
	CreatePredictionTx(ctx context.Context, tx *gorm.DB, item *models.Prediction, attrs []models.PredictionAttribution) error
	GetPredictionByID(ctx context.Context, id string) (*models.Prediction, error)
	ListRecentPredictions(ctx context.Context, params ListPredictionsParams) ([]models.Prediction, error)
	ListAttributionsByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error)

	// Outcomes
	GetOutcomeByEventID(ctx context.Context, eventID string) (*models.Outcome, error)
	UpsertOutcomeTx(ctx context.Context, tx *gorm.DB, item *models.Outcome) error

	// Resolutions
	GetResolutionByEventID(ctx context.Context, eventID string) (*models.EventResolution, error)
	UpsertResolutionTx(ctx context.Context, tx *gorm.DB, item *models.EventResolution) error

	// Scores
	InsertScore(ctx context.Context, item *models.PredictionScore) error
	ListScoresByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionScore, error)
	ProtocolScoreAverages(ctx context.Context, protocolID string, since time.Time) ([]ScoreAverageRow, error)
	ListPredictionsByEventID(ctx context.Context, eventID string) ([]models.Prediction, error)
}

type ListRawItemsParams struct {
	Limit    int
	Offset   int
	SourceID *string
	Since    *time.Time
}

type ListProposalsParams struct {
	Limit    int
	Offset   int
	Status   *models.ProposalStatus
	EventKey *string
}

type ListEventsParams struct {
	Limit  int
	Offset int
	State  *models.EventState
	// IncludeArchived widens by-state listings; archived events are
	// hidden from active queries by default.
	IncludeArchived bool
}

type ListPredictionsParams struct {
	Limit      int
	Offset     int
	ProtocolID *string
	Since      *time.Time
}

type ScoreAverageRow struct {
	ScoreType models.ScoreType
	Count     int64
	Average   decimal.Decimal
}
