package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sybil/internal/lifecycle"
	"sybil/internal/models"
	"sybil/internal/repository"
)

// ProposalService owns the proposal review workflow. Accepting a
// proposal is the only path that creates a canonical event, and the
// two writes happen in one transaction.
type ProposalService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type CreateProposalParams struct {
	RawItemID   string
	EventKey    string
	Title       string
	Description string
	ProposedBy  string
	Confidence  *float64
	Meta        map[string]any
}

func (s *ProposalService) CreateProposal(ctx context.Context, params CreateProposalParams) (*models.EventProposal, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	if strings.TrimSpace(params.EventKey) == "" || strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("event key and title are required")
	}
	item, err := s.Repo.GetRawItemByID(ctx, params.RawItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &repository.IntegrityError{Entity: "raw_item", Key: params.RawItemID, Err: fmt.Errorf("unknown raw item")}
	}
	proposal := &models.EventProposal{
		ID:          uuid.NewString(),
		RawItemID:   item.ID,
		EventKey:    params.EventKey,
		Title:       params.Title,
		Description: params.Description,
		ProposedBy:  params.ProposedBy,
		Status:      models.ProposalPending,
		Meta:        marshalMeta(params.Meta),
	}
	if params.Confidence != nil {
		c := decimal.NewFromFloat(clampUnit(*params.Confidence)).Round(2)
		proposal.Confidence = &c
	}
	if err := s.Repo.CreateProposal(ctx, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

type ReviewProposalParams struct {
	ProposalID string
	Status     models.ProposalStatus
	ReviewedBy string
	Notes      *string

	// Optional event fields applied when the proposal is accepted.
	ResolutionCriteria *string
	ExpectedResolution *time.Time
}

// ReviewProposal moves a pending proposal to a terminal review status.
// On accept, the canonical event is created in the same transaction; a
// second review of the same proposal is a state conflict.
func (s *ProposalService) ReviewProposal(ctx context.Context, params ReviewProposalParams) (*models.EventProposal, *models.Event, error) {
	if s == nil || s.Repo == nil {
		return nil, nil, nil
	}
	proposal, err := s.Repo.GetProposalByID(ctx, params.ProposalID)
	if err != nil {
		return nil, nil, err
	}
	if proposal == nil {
		return nil, nil, fmt.Errorf("proposal %s not found", params.ProposalID)
	}
	if err := lifecycle.CheckProposal(proposal.Status, params.Status); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	proposal.Status = params.Status
	proposal.ReviewedAt = &now
	proposal.ReviewedBy = &params.ReviewedBy
	proposal.ReviewNotes = params.Notes

	var event *models.Event
	if params.Status == models.ProposalAccepted {
		event = &models.Event{
			ID:                 uuid.NewString(),
			ProposalID:         &proposal.ID,
			Key:                proposal.EventKey,
			Title:              proposal.Title,
			Description:        proposal.Description,
			State:              models.EventDraft,
			ResolutionCriteria: params.ResolutionCriteria,
			ExpectedResolution: params.ExpectedResolution,
		}
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.SaveProposalTx(ctx, tx, proposal); err != nil {
			return err
		}
		if event != nil {
			if err := s.Repo.CreateEventTx(ctx, tx, event); err != nil {
				if isDuplicate(err) {
					return &repository.IntegrityError{Entity: "event", Key: event.Key, Err: err}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("proposal reviewed",
			zap.String("proposal_id", proposal.ID),
			zap.String("status", string(proposal.Status)),
			zap.String("reviewed_by", params.ReviewedBy))
	}
	return proposal, event, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
