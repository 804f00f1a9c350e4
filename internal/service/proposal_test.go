package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sybil/internal/lifecycle"
	"sybil/internal/models"
	"sybil/internal/repository"
)

func seedRawItem(repo *stubRepo, id string) *models.RawItem {
	item := &models.RawItem{
		ID:          id,
		SourceID:    "src-1",
		URL:         "https://example.com/" + id,
		ContentHash: "hash-" + id,
		FetchedAt:   time.Now().UTC(),
	}
	repo.rawItems[id] = item
	return item
}

func seedProposal(t *testing.T, repo *stubRepo, svc *ProposalService, key string) *models.EventProposal {
	t.Helper()
	seedRawItem(repo, "raw-"+key)
	proposal, err := svc.CreateProposal(context.Background(), CreateProposalParams{
		RawItemID:   "raw-" + key,
		EventKey:    key,
		Title:       "Candidate wins the race",
		Description: "derived from wire coverage",
		ProposedBy:  "miner",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	return proposal
}

func TestCreateProposalStartsPending(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	proposal := seedProposal(t, repo, svc, "race-2026")
	if proposal.Status != models.ProposalPending {
		t.Fatalf("status = %s, want pending", proposal.Status)
	}
}

func TestCreateProposalUnknownRawItem(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	_, err := svc.CreateProposal(context.Background(), CreateProposalParams{
		RawItemID:  "missing",
		EventKey:   "k",
		Title:      "t",
		ProposedBy: "miner",
	})
	var integrity *repository.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestReviewAcceptCreatesEvent(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	proposal := seedProposal(t, repo, svc, "race-2026")

	reviewed, event, err := svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: proposal.ID,
		Status:     models.ProposalAccepted,
		ReviewedBy: "reviewer",
	})
	if err != nil {
		t.Fatalf("ReviewProposal: %v", err)
	}
	if reviewed.Status != models.ProposalAccepted || reviewed.ReviewedAt == nil {
		t.Fatalf("proposal not marked reviewed: %#v", reviewed)
	}
	if event == nil {
		t.Fatalf("accept produced no event")
	}
	if event.Key != "race-2026" || event.State != models.EventDraft {
		t.Fatalf("event = %#v, want draft with proposal key", event)
	}
	if event.ProposalID == nil || *event.ProposalID != proposal.ID {
		t.Fatalf("event not linked to proposal")
	}
	if repo.eventsByKey["race-2026"] == nil {
		t.Fatalf("event not persisted")
	}
}

func TestReviewRejectCreatesNoEvent(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	proposal := seedProposal(t, repo, svc, "race-2026")

	_, event, err := svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: proposal.ID,
		Status:     models.ProposalRejected,
		ReviewedBy: "reviewer",
	})
	if err != nil {
		t.Fatalf("ReviewProposal: %v", err)
	}
	if event != nil {
		t.Fatalf("reject must not create an event")
	}
	if len(repo.events) != 0 {
		t.Fatalf("event persisted on reject")
	}
}

func TestReviewTwiceIsStateConflict(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	proposal := seedProposal(t, repo, svc, "race-2026")

	_, _, err := svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: proposal.ID,
		Status:     models.ProposalRejected,
		ReviewedBy: "reviewer",
	})
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, _, err = svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: proposal.ID,
		Status:     models.ProposalAccepted,
		ReviewedBy: "reviewer",
	})
	var conflict *lifecycle.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReviewAcceptDuplicateKey(t *testing.T) {
	repo := newStubRepo()
	svc := &ProposalService{Repo: repo, Logger: zap.NewNop()}
	first := seedProposal(t, repo, svc, "race-2026")
	if _, _, err := svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: first.ID,
		Status:     models.ProposalAccepted,
		ReviewedBy: "reviewer",
	}); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	seedRawItem(repo, "raw-dup")
	second, err := svc.CreateProposal(context.Background(), CreateProposalParams{
		RawItemID:  "raw-dup",
		EventKey:   "race-2026",
		Title:      "Candidate wins the race",
		ProposedBy: "miner",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	_, _, err = svc.ReviewProposal(context.Background(), ReviewProposalParams{
		ProposalID: second.ID,
		Status:     models.ProposalAccepted,
		ReviewedBy: "reviewer",
	})
	var integrity *repository.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected integrity error for colliding key, got %v", err)
	}
}
