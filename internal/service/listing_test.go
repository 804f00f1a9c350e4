package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/models"
	"sybil/internal/repository"
)

type fakeFetcher struct {
	price   decimal.Decimal
	failFor string
}

func (f *fakeFetcher) FetchQuote(ctx context.Context, listing *models.MarketListing) (*Quote, error) {
	if listing.MarketID == f.failFor {
		return nil, errors.New("market api unreachable")
	}
	return &Quote{Price: f.price, Volume: 1000}, nil
}

func TestUpsertListingRequiresEvent(t *testing.T) {
	repo := newStubRepo()
	svc := &ListingService{Repo: repo, Logger: zap.NewNop()}

	_, err := svc.UpsertListing(context.Background(), UpsertListingParams{
		EventID:    "ghost",
		MarketName: "polymarket",
		MarketID:   "m-1",
	})
	var integrity *repository.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestRefreshAllToleratesPerListingFailure(t *testing.T) {
	repo := newStubRepo()
	seedActiveEvent(repo, "ev-1")
	svc := &ListingService{
		Repo:    repo,
		Fetcher: &fakeFetcher{price: decimal.NewFromFloat(0.62), failFor: "m-2"},
		Config:  config.MarketSyncConfig{BatchSize: 10},
		Logger:  zap.NewNop(),
	}
	for _, marketID := range []string{"m-1", "m-2"} {
		if _, err := svc.UpsertListing(context.Background(), UpsertListingParams{
			EventID:    "ev-1",
			MarketName: "polymarket",
			MarketID:   marketID,
		}); err != nil {
			t.Fatalf("UpsertListing: %v", err)
		}
	}

	refreshed, err := svc.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("refreshed = %d, want the one healthy listing", refreshed)
	}
	healthy := repo.listings["polymarket/m-1"]
	if healthy.CurrentPrice == nil || !healthy.CurrentPrice.Equal(decimal.NewFromFloat(0.62)) {
		t.Fatalf("price = %#v, want 0.62", healthy.CurrentPrice)
	}
	if healthy.LastSyncAt == nil {
		t.Fatalf("sync timestamp missing")
	}
	broken := repo.listings["polymarket/m-2"]
	if broken.CurrentPrice != nil {
		t.Fatalf("failed listing got a price")
	}
}
