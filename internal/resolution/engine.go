package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sybil/internal/config"
	"sybil/internal/lifecycle"
	"sybil/internal/models"
	"sybil/internal/repository"
)

const resolvedBy = "resolution-engine"

// Evidence is one corroborating or contradicting fact about an event's
// outcome. Reliability, relevance, and the supports flag come from the
// external reasoner; the engine consumes them as data.
type Evidence struct {
	SourceURL       string     `json:"url"`
	SourceDomain    string     `json:"domain"`
	Title           string     `json:"title"`
	Fact            string     `json:"fact"`
	Relevance       float64    `json:"relevance_score"`
	Reliability     float64    `json:"reliability_score"`
	SupportsOutcome bool       `json:"supports_outcome"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Gatherer collects evidence for an event. Implementations are expected
// to tolerate partial failure and return whatever they found; a nil
// slice with a nil error means no evidence could be gathered at all.
type Gatherer interface {
	Gather(ctx context.Context, event *models.Event) ([]Evidence, error)
}

// Engine turns evidence into a resolution record and, when the decision
// is resolved, moves the event to its terminal resolved state.
type Engine struct {
	Repo     repository.Repository
	Gatherer Gatherer
	Config   config.ResolutionConfig
	Logger   *zap.Logger

	// Serializes resolution per event. Concurrent resolutions across
	// different events are fine; a second run for the same event is
	// skipped rather than queued.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewEngine(repo repository.Repository, gatherer Gatherer, cfg config.ResolutionConfig, logger *zap.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.MinReliability <= 0 {
		cfg.MinReliability = 0.7
	}
	return &Engine{
		Repo:     repo,
		Gatherer: gatherer,
		Config:   cfg,
		Logger:   logger,
		inflight: map[string]struct{}{},
	}
}

// Resolve gathers evidence for the event and applies the resolution
// decision. A total gathering failure is not an error: it produces an
// explicit open record with confidence 0 and a summary citing the
// failure.
func (e *Engine) Resolve(ctx context.Context, event *models.Event) (*models.EventResolution, error) {
	if e == nil || event == nil {
		return nil, nil
	}
	if !e.begin(event.ID) {
		if e.Logger != nil {
			e.Logger.Info("resolution already running, skipping", zap.String("event_id", event.ID))
		}
		return nil, nil
	}
	defer e.end(event.ID)

	var evidence []Evidence
	var gatherErr error
	if e.Gatherer != nil {
		evidence, gatherErr = e.Gatherer.Gather(ctx, event)
	}
	if gatherErr != nil && len(evidence) == 0 {
		if e.Logger != nil {
			e.Logger.Warn("evidence gathering failed entirely",
				zap.String("event_id", event.ID), zap.Error(gatherErr))
		}
		return e.persistFailed(ctx, event, gatherErr)
	}
	return e.ResolveWith(ctx, event, evidence)
}

// ResolveWith applies the decision procedure to caller-supplied evidence
// and upserts the event's resolution record. Re-running replaces the
// prior record.
func (e *Engine) ResolveWith(ctx context.Context, event *models.Event, evidence []Evidence) (*models.EventResolution, error) {
	if e == nil || event == nil {
		return nil, nil
	}
	d := e.decide(evidence)

	now := time.Now().UTC()
	record := &models.EventResolution{
		ID:                    uuid.NewString(),
		EventID:               event.ID,
		Status:                d.status,
		Confidence:            d.confidence,
		ConfirmingCount:       len(d.confirming),
		ContradictingCount:    len(d.contradicting),
		TotalExamined:         len(evidence),
		Summary:               e.summary(d),
		KeyEvidence:           marshalEvidence(d.confirming),
		ContradictingEvidence: marshalEvidence(d.contradicting),
		ResolvedBy:            resolvedBy,
	}
	if d.status == models.ResolutionResolved {
		record.ResolvedAt = &now
	}

	prior, err := e.Repo.GetResolutionByEventID(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		record.ID = prior.ID
		// The engine may never move a contradicted record on its own;
		// that path belongs to the human override.
		if err := lifecycle.CheckResolution(prior.Status, record.Status); err != nil {
			return nil, err
		}
	}

	err = e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.Repo.UpsertResolutionTx(ctx, tx, record); err != nil {
			return err
		}
		if d.status != models.ResolutionResolved {
			return nil
		}
		// Re-resolving an already resolved event only refreshes the
		// record; the event transition and outcome were written before.
		if event.State == models.EventResolved {
			return nil
		}
		if err := lifecycle.CheckEvent(event.State, models.EventResolved); err != nil {
			return err
		}
		if err := e.Repo.UpdateEventStateTx(ctx, tx, event.ID, models.EventResolved); err != nil {
			return err
		}
		value := "true"
		source := resolvedBy
		return e.Repo.UpsertOutcomeTx(ctx, tx, &models.Outcome{
			ID:               uuid.NewString(),
			EventID:          event.ID,
			Resolved:         true,
			OutcomeValue:     &value,
			ResolvedAt:       &now,
			ResolutionSource: &source,
		})
	})
	if err != nil {
		return nil, err
	}

	if e.Logger != nil {
		e.Logger.Info("resolution decided",
			zap.String("event_id", event.ID),
			zap.String("status", string(d.status)),
			zap.Float64("confidence", d.confidence),
			zap.Int("confirming", len(d.confirming)),
			zap.Int("contradicting", len(d.contradicting)),
			zap.Int("examined", len(evidence)),
		)
	}
	return record, nil
}

// Override moves a contradicted resolution to resolved or open. Notes
// are mandatory: the escape hatch must leave an audit trail.
func (e *Engine) Override(ctx context.Context, eventID string, newStatus models.ResolutionStatus, notes, overriddenBy string) (*models.EventResolution, error) {
	if e == nil {
		return nil, nil
	}
	if notes == "" {
		return nil, fmt.Errorf("override notes are required")
	}
	if overriddenBy == "" {
		return nil, fmt.Errorf("override author is required")
	}
	record, err := e.Repo.GetResolutionByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no resolution record for event %s", eventID)
	}
	if err := lifecycle.CheckResolutionOverride(record.Status, newStatus); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record.Status = newStatus
	record.OverriddenBy = &overriddenBy
	record.OverrideNotes = &notes
	record.OverriddenAt = &now
	if newStatus == models.ResolutionResolved {
		record.ResolvedAt = &now
	}

	err = e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.Repo.UpsertResolutionTx(ctx, tx, record); err != nil {
			return err
		}
		if newStatus != models.ResolutionResolved {
			return nil
		}
		event, err := e.Repo.GetEventByID(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return fmt.Errorf("event %s not found", eventID)
		}
		if event.State == models.EventResolved {
			return nil
		}
		if err := lifecycle.CheckEvent(event.State, models.EventResolved); err != nil {
			return err
		}
		if err := e.Repo.UpdateEventStateTx(ctx, tx, eventID, models.EventResolved); err != nil {
			return err
		}
		value := "true"
		source := "manual_override"
		return e.Repo.UpsertOutcomeTx(ctx, tx, &models.Outcome{
			ID:               uuid.NewString(),
			EventID:          eventID,
			Resolved:         true,
			OutcomeValue:     &value,
			ResolvedAt:       &now,
			ResolutionSource: &source,
			Notes:            &notes,
		})
	})
	if err != nil {
		return nil, err
	}

	if e.Logger != nil {
		e.Logger.Info("resolution overridden",
			zap.String("event_id", eventID),
			zap.String("new_status", string(newStatus)),
			zap.String("overridden_by", overriddenBy),
		)
	}
	return record, nil
}

// decision is the outcome of the pure decision procedure.
type decision struct {
	status        models.ResolutionStatus
	confidence    float64
	confirming    []Evidence
	contradicting []Evidence
}

func (e *Engine) decide(evidence []Evidence) decision {
	qualified := filterReliable(evidence, e.Config.MinReliability)
	confirming, contradicting := split(qualified)
	confirming = independent(confirming)
	contradicting = independent(contradicting)

	status := e.status(len(confirming), len(contradicting))
	conf := 0.0
	if status != models.ResolutionOpen {
		conf = confidence(confirming, contradicting, e.Config.Threshold)
	}
	return decision{
		status:        status,
		confidence:    conf,
		confirming:    confirming,
		contradicting: contradicting,
	}
}

func (e *Engine) status(confirming, contradicting int) models.ResolutionStatus {
	if confirming >= e.Config.Threshold {
		if contradicting == 0 {
			return models.ResolutionResolved
		}
		return models.ResolutionContradicted
	}
	return models.ResolutionOpen
}

// confidence combines evidence quantity, quality, and contradiction:
// clamp(min(C/T,1) * mean(reliability of confirming) - min(0.1*X, 0.5)).
func confidence(confirming, contradicting []Evidence, threshold int) float64 {
	if len(confirming) == 0 {
		return 0.0
	}
	base := float64(len(confirming)) / float64(threshold)
	if base > 1.0 {
		base = 1.0
	}
	var sum float64
	for _, ev := range confirming {
		sum += ev.Reliability
	}
	quality := sum / float64(len(confirming))

	penalty := 0.1 * float64(len(contradicting))
	if penalty > 0.5 {
		penalty = 0.5
	}

	c := base*quality - penalty
	if c < 0.0 {
		c = 0.0
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func filterReliable(evidence []Evidence, minReliability float64) []Evidence {
	out := make([]Evidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Reliability >= minReliability {
			out = append(out, ev)
		}
	}
	return out
}

func split(evidence []Evidence) (confirming, contradicting []Evidence) {
	for _, ev := range evidence {
		if ev.SupportsOutcome {
			confirming = append(confirming, ev)
		} else {
			contradicting = append(contradicting, ev)
		}
	}
	return confirming, contradicting
}

// independent keeps the single highest-reliability item per domain
// category, yielding at most one vote per category.
func independent(evidence []Evidence) []Evidence {
	if len(evidence) == 0 {
		return nil
	}
	best := map[Category]Evidence{}
	order := []Category{}
	for _, ev := range evidence {
		domain := ev.SourceDomain
		if domain == "" {
			domain = ExtractDomain(ev.SourceURL)
		}
		cat := Classify(domain)
		prev, seen := best[cat]
		if !seen {
			best[cat] = ev
			order = append(order, cat)
			continue
		}
		if ev.Reliability > prev.Reliability {
			best[cat] = ev
		}
	}
	out := make([]Evidence, 0, len(best))
	for _, cat := range order {
		out = append(out, best[cat])
	}
	return out
}

func (e *Engine) summary(d decision) string {
	switch d.status {
	case models.ResolutionResolved:
		return fmt.Sprintf("Event resolved with %d independent sources confirming the outcome. No contradicting evidence found.", len(d.confirming))
	case models.ResolutionContradicted:
		return fmt.Sprintf("Conflicting evidence found: %d sources confirm, %d sources contradict. Human review required.", len(d.confirming), len(d.contradicting))
	default:
		return fmt.Sprintf("Insufficient evidence for resolution: %d confirming sources (need %d), %d contradicting sources.", len(d.confirming), e.Config.Threshold, len(d.contradicting))
	}
}

func (e *Engine) persistFailed(ctx context.Context, event *models.Event, cause error) (*models.EventResolution, error) {
	record := &models.EventResolution{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		Status:     models.ResolutionOpen,
		Confidence: 0.0,
		Summary:    fmt.Sprintf("Resolution failed: %v", cause),
		ResolvedBy: resolvedBy,
	}
	prior, err := e.Repo.GetResolutionByEventID(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if err := lifecycle.CheckResolution(prior.Status, models.ResolutionOpen); err != nil {
			// A failed gather never downgrades an established record.
			return prior, nil
		}
		record.ID = prior.ID
	}
	err = e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return e.Repo.UpsertResolutionTx(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Engine) begin(eventID string) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	if _, ok := e.inflight[eventID]; ok {
		return false
	}
	e.inflight[eventID] = struct{}{}
	return true
}

func (e *Engine) end(eventID string) {
	e.inflightMu.Lock()
	delete(e.inflight, eventID)
	e.inflightMu.Unlock()
}

func marshalEvidence(evidence []Evidence) datatypes.JSON {
	payload := map[string]any{
		"sources": evidence,
		"count":   len(evidence),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}
