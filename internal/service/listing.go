package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sybil/internal/config"
	"sybil/internal/models"
	"sybil/internal/repository"
)

// Quote is one market snapshot for a listing.
type Quote struct {
	Price  decimal.Decimal
	Volume int64
}

// QuoteFetcher pulls the current quote for one listing from its market.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, listing *models.MarketListing) (*Quote, error)
}

// ListingService mirrors events onto external prediction markets.
// Listings inform humans; they never resolve events.
type ListingService struct {
	Repo    repository.Repository
	Fetcher QuoteFetcher
	Config  config.MarketSyncConfig
	Logger  *zap.Logger
}

type UpsertListingParams struct {
	EventID    string
	MarketName string
	MarketID   string
	MarketURL  string
	Meta       map[string]any
}

func (s *ListingService) UpsertListing(ctx context.Context, params UpsertListingParams) (*models.MarketListing, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	if strings.TrimSpace(params.MarketName) == "" || strings.TrimSpace(params.MarketID) == "" {
		return nil, fmt.Errorf("market name and id are required")
	}
	event, err := s.Repo.GetEventByID(ctx, params.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, &repository.IntegrityError{Entity: "event", Key: params.EventID, Err: fmt.Errorf("unknown event")}
	}
	listing := &models.MarketListing{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		MarketName: params.MarketName,
		MarketID:   params.MarketID,
		MarketURL:  params.MarketURL,
		Active:     true,
		Meta:       marshalMeta(params.Meta),
	}
	if err := s.Repo.UpsertMarketListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// RefreshAll refreshes prices for active listings. Fetch failures are
// logged per listing and do not stop the pass.
func (s *ListingService) RefreshAll(ctx context.Context) (int, error) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return 0, nil
	}
	limit := s.Config.BatchSize
	if limit <= 0 {
		limit = 100
	}
	listings, err := s.Repo.ListActiveMarketListings(ctx, limit)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for i := range listings {
		listing := &listings[i]
		quote, err := s.Fetcher.FetchQuote(ctx, listing)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("listing refresh failed",
					zap.String("market", listing.MarketName),
					zap.String("market_id", listing.MarketID),
					zap.Error(err))
			}
			continue
		}
		now := time.Now().UTC()
		price := quote.Price.Round(2)
		listing.CurrentPrice = &price
		listing.Volume = &quote.Volume
		listing.LastSyncAt = &now
		if err := s.Repo.UpsertMarketListing(ctx, listing); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}
