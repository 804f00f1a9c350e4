package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"sybil/internal/models"
	"sybil/internal/service"
)

// Client pulls quotes for mirrored listings from an external prediction
// market API. It satisfies service.QuoteFetcher.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

type quoteResponse struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

func (c *Client) FetchQuote(ctx context.Context, listing *models.MarketListing) (*service.Quote, error) {
	if c == nil || c.httpClient == nil || c.host == "" {
		return nil, fmt.Errorf("market client not configured")
	}
	if listing == nil || listing.MarketID == "" {
		return nil, fmt.Errorf("market_id is required")
	}
	params := url.Values{}
	params.Set("market_id", listing.MarketID)
	fullURL := c.host + "/v1/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	return &service.Quote{Price: quote.Price, Volume: quote.Volume}, nil
}
