package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/lifecycle"
	"sybil/internal/models"
	"sybil/internal/protocol"
	"sybil/internal/repository"
)

// ErrRunInProgress is returned when a new run is requested for an event
// that already has a running workflow. One run per event at a time is a
// service-level rule, not a store constraint.
var ErrRunInProgress = errors.New("event already has a running workflow")

// WorkflowService owns workflow run sessions and their append-only tool
// call trace.
type WorkflowService struct {
	Repo        repository.Repository
	Predictions *PredictionService
	Config      config.WorkflowConfig
	Logger      *zap.Logger
}

// StartRun opens a reasoning session for an event. The event must still
// be predictable (active or locked), and no other run for it may still
// be running.
func (s *WorkflowService) StartRun(ctx context.Context, eventID, protocolID string, meta map[string]any) (*models.WorkflowRun, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	event, err := s.Repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	if event.State != models.EventActive && event.State != models.EventLocked {
		return nil, &lifecycle.StateConflictError{Entity: "event", Current: string(event.State), Attempted: "start_run"}
	}
	proto, err := s.Repo.GetProtocolByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if proto == nil {
		return nil, &repository.IntegrityError{Entity: "protocol", Key: protocolID, Err: fmt.Errorf("unknown protocol")}
	}
	running, err := s.Repo.CountRunningRuns(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if running > 0 {
		return nil, ErrRunInProgress
	}

	run := &models.WorkflowRun{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		ProtocolID: proto.ID,
		Status:     models.RunRunning,
		StartedAt:  time.Now().UTC(),
		Meta:       marshalMeta(meta),
	}
	if err := s.Repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

type AppendToolCallParams struct {
	RunID      string
	StepNumber int
	Kind       models.ToolCallKind
	Name       string
	Args       map[string]any
	Result     map[string]any

	TokensIn  int
	TokensOut int
	CostUSD   decimal.Decimal
	LatencyMs int

	Success      bool
	ErrorMessage *string
}

// AppendToolCall records one step of a running session. Step numbers
// must strictly increase; the aggregate counters on the run are bumped
// in the same transaction as the insert.
func (s *WorkflowService) AppendToolCall(ctx context.Context, params AppendToolCallParams) (*models.ToolCall, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	run, err := s.Repo.GetRunByID(ctx, params.RunID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", params.RunID)
	}
	if run.Status != models.RunRunning {
		return nil, &lifecycle.StateConflictError{Entity: "workflow_run", Current: string(run.Status), Attempted: "append_tool_call"}
	}
	max, err := s.Repo.MaxStepNumber(ctx, params.RunID)
	if err != nil {
		return nil, err
	}
	if params.StepNumber <= max {
		return nil, &repository.IntegrityError{
			Entity: "tool_call",
			Key:    fmt.Sprintf("%s/%d", params.RunID, params.StepNumber),
			Err:    fmt.Errorf("step number must exceed %d", max),
		}
	}
	if s.Config.MaxToolCalls > 0 && max >= s.Config.MaxToolCalls {
		return nil, fmt.Errorf("run %s exceeded tool call limit %d", params.RunID, s.Config.MaxToolCalls)
	}

	call := &models.ToolCall{
		ID:           uuid.NewString(),
		RunID:        params.RunID,
		StepNumber:   params.StepNumber,
		Kind:         params.Kind,
		Name:         params.Name,
		Args:         marshalMeta(params.Args),
		Result:       marshalMeta(params.Result),
		TokensIn:     params.TokensIn,
		TokensOut:    params.TokensOut,
		CostUSD:      params.CostUSD,
		LatencyMs:    params.LatencyMs,
		Success:      params.Success,
		ErrorMessage: params.ErrorMessage,
	}
	if err := s.Repo.AppendToolCall(ctx, call); err != nil {
		return nil, err
	}
	return call, nil
}

// CompleteRun closes a running session as completed.
func (s *WorkflowService) CompleteRun(ctx context.Context, runID string) error {
	return s.finishRun(ctx, runID, models.RunCompleted)
}

// FailRun closes a running session as failed.
func (s *WorkflowService) FailRun(ctx context.Context, runID string) error {
	return s.finishRun(ctx, runID, models.RunFailed)
}

func (s *WorkflowService) finishRun(ctx context.Context, runID string, status models.RunStatus) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	run, err := s.Repo.GetRunByID(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if err := lifecycle.CheckRun(run.Status, status); err != nil {
		return err
	}
	return s.Repo.FinishRun(ctx, runID, status, time.Now().UTC())
}

// RunProtocol executes one full session: start a run, produce a
// judgment over the given evidence items, trace the step, persist the
// prediction, and close the run. A run that produced no prediction is
// failed; a degraded judgment still completes.
func (s *WorkflowService) RunProtocol(ctx context.Context, eventID string, proto *models.Protocol, impl protocol.Protocol, items []models.RawItem) (*models.Prediction, error) {
	if s == nil || s.Repo == nil || s.Predictions == nil {
		return nil, nil
	}
	event, err := s.Repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	run, err := s.StartRun(ctx, eventID, proto.ID, map[string]any{"protocol": proto.Name, "version": proto.Version})
	if err != nil {
		return nil, err
	}

	started := time.Now()
	judgment, jerr := impl.Produce(ctx, event, items)
	if jerr != nil {
		if ferr := s.FailRun(ctx, run.ID); ferr != nil && s.Logger != nil {
			s.Logger.Warn("fail run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, jerr
	}

	stepResult := map[string]any{"p": judgment.P, "degraded": judgment.Degraded}
	var stepErr *string
	if judgment.Degraded {
		msg := "reasoner unavailable, fallback judgment"
		stepErr = &msg
	}
	_, err = s.AppendToolCall(ctx, AppendToolCallParams{
		RunID:        run.ID,
		StepNumber:   1,
		Kind:         stepKind(proto.Kind),
		Name:         proto.Name,
		Args:         map[string]any{"event_key": event.Key, "items": len(items)},
		Result:       stepResult,
		TokensIn:     judgment.Usage.TokensIn,
		TokensOut:    judgment.Usage.TokensOut,
		CostUSD:      judgment.Usage.CostUSD,
		LatencyMs:    int(time.Since(started).Milliseconds()),
		Success:      !judgment.Degraded,
		ErrorMessage: stepErr,
	})
	if err != nil {
		return nil, err
	}

	prediction, err := s.Predictions.CreatePrediction(ctx, CreatePredictionParams{
		RunID:         run.ID,
		ProtocolID:    proto.ID,
		P:             judgment.P,
		HorizonHours:  judgment.HorizonHours,
		Rationale:     judgment.Rationale,
		RankedItemIDs: judgment.RankedItemIDs,
		Relevance:     judgment.Relevance,
		RequireAttrib: impl.RequiresCitations(),
	})
	if err != nil {
		if ferr := s.FailRun(ctx, run.ID); ferr != nil && s.Logger != nil {
			s.Logger.Warn("fail run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, err
	}
	if err := s.CompleteRun(ctx, run.ID); err != nil {
		return nil, err
	}
	return prediction, nil
}

func stepKind(kind models.ProtocolKind) models.ToolCallKind {
	switch kind {
	case models.ProtocolAgent:
		return models.ToolCallLLM
	default:
		return models.ToolCallCalculation
	}
}
