package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sybil/internal/models"
	"sybil/internal/repository"
)

// citationRepo stubs only the prediction read path; every other
// Repository call would panic through the embedded nil interface.
type citationRepo struct {
	repository.Repository
	predictions []models.Prediction
	attrs       map[string][]models.PredictionAttribution
	items       map[string]models.RawItem
}

func (r *citationRepo) ListRecentPredictions(ctx context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	return r.predictions, nil
}

func (r *citationRepo) GetPredictionByID(ctx context.Context, id string) (*models.Prediction, error) {
	for i := range r.predictions {
		if r.predictions[i].ID == id {
			return &r.predictions[i], nil
		}
	}
	return nil, nil
}

func (r *citationRepo) ListAttributionsByPredictionID(ctx context.Context, predictionID string) ([]models.PredictionAttribution, error) {
	return r.attrs[predictionID], nil
}

func (r *citationRepo) ListRawItemsByIDs(ctx context.Context, ids []string) ([]models.RawItem, error) {
	out := make([]models.RawItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func citationFixture() *citationRepo {
	return &citationRepo{
		predictions: []models.Prediction{
			{ID: "pred-1", RunID: "run-1", ProtocolID: "proto-1", P: decimal.NewFromFloat(0.8), Rationale: "two confirmations"},
		},
		attrs: map[string][]models.PredictionAttribution{
			"pred-1": {
				{PredictionID: "pred-1", RawItemID: "item-1", Rank: 0},
				{PredictionID: "pred-1", RawItemID: "item-2", Rank: 1},
			},
		},
		items: map[string]models.RawItem{
			"item-1": {ID: "item-1", URL: "https://reuters.com/a"},
			"item-2": {ID: "item-2", URL: "https://senate.gov/b"},
		},
	}
}

type citationEntry struct {
	Prediction   models.Prediction              `json:"prediction"`
	Attributions []models.PredictionAttribution `json:"attributions"`
	Items        []models.RawItem               `json:"items"`
}

func predictionRouter(repo *citationRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	(&PredictionHandler{Repo: repo}).Register(router)
	return router
}

func TestListPredictionsIncludesCitations(t *testing.T) {
	router := predictionRouter(citationFixture())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []citationEntry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("got %d entries, want 1", len(resp.Data))
	}
	entry := resp.Data[0]
	if entry.Prediction.ID != "pred-1" {
		t.Fatalf("prediction id = %q", entry.Prediction.ID)
	}
	if len(entry.Attributions) != 2 || entry.Attributions[0].RawItemID != "item-1" {
		t.Fatalf("attributions = %+v", entry.Attributions)
	}
	if len(entry.Items) != 2 {
		t.Fatalf("items = %+v, want both cited raw items", entry.Items)
	}
}

func TestGetPredictionIncludesCitedItems(t *testing.T) {
	router := predictionRouter(citationFixture())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions/pred-1", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data citationEntry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Prediction.ID != "pred-1" {
		t.Fatalf("prediction id = %q", resp.Data.Prediction.ID)
	}
	if len(resp.Data.Items) != 2 || resp.Data.Items[0].ID != "item-1" {
		t.Fatalf("items = %+v", resp.Data.Items)
	}
}
