package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sybil/internal/models"
)

// Client calls an external judgment backend over HTTP. It satisfies
// Reasoner; callers are expected to substitute Fallback on error.
type Client struct {
	host       string
	apiKey     string
	model      string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reasoner API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey, model string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type judgeItem struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type judgeRequest struct {
	Model              string      `json:"model,omitempty"`
	EventTitle         string      `json:"event_title"`
	EventDescription   string      `json:"event_description"`
	ResolutionCriteria string      `json:"resolution_criteria,omitempty"`
	Items              []judgeItem `json:"items"`
}

type judgeResponse struct {
	Probability   float64            `json:"probability"`
	Rationale     string             `json:"rationale"`
	RankedItemIDs []string           `json:"ranked_item_ids"`
	Relevance     map[string]float64 `json:"relevance"`
	TokensIn      int                `json:"tokens_in"`
	TokensOut     int                `json:"tokens_out"`
	CostUSD       decimal.Decimal    `json:"cost_usd"`
}

func (c *Client) Judge(ctx context.Context, input Input) (Result, Usage, error) {
	if c == nil || c.httpClient == nil || c.host == "" {
		return Result{}, Usage{}, fmt.Errorf("reasoner client not configured")
	}
	req := judgeRequest{
		Model:              c.model,
		EventTitle:         input.EventTitle,
		EventDescription:   input.EventDescription,
		ResolutionCriteria: input.ResolutionCriteria,
		Items:              make([]judgeItem, 0, len(input.Items)),
	}
	for _, item := range input.Items {
		req.Items = append(req.Items, toJudgeItem(item))
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, Usage{}, fmt.Errorf("failed to encode judge request: %w", err)
	}

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/v1/judge", bytes.NewReader(payload))
	if err != nil {
		return Result{}, Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, Usage{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, Usage{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, Usage{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var decoded judgeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, Usage{}, fmt.Errorf("failed to decode judge response: %w", err)
	}

	result := Result{
		Probability:   decoded.Probability,
		Rationale:     decoded.Rationale,
		RankedItemIDs: decoded.RankedItemIDs,
		Relevance:     decoded.Relevance,
	}
	usage := Usage{
		TokensIn:  decoded.TokensIn,
		TokensOut: decoded.TokensOut,
		CostUSD:   decoded.CostUSD,
		LatencyMs: int(time.Since(started).Milliseconds()),
	}
	return result, usage, nil
}

func toJudgeItem(item models.RawItem) judgeItem {
	out := judgeItem{ID: item.ID, URL: item.URL}
	if item.Title != nil {
		out.Title = *item.Title
	}
	if item.ContentText != nil {
		out.Body = *item.ContentText
	}
	return out
}
