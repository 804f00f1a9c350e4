package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sybil/internal/models"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type PredictionHandler struct {
	Repo        repository.Repository
	Predictions *service.PredictionService
	Scoring     *service.ScoringService
}

func (h *PredictionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/predictions")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("", h.create)
	group.POST("/:id/scores", h.recordScore)
	group.GET("/:id/scores", h.listScores)
}

type createPredictionRequest struct {
	RunID        string  `json:"run_id" binding:"required"`
	ProtocolID   string  `json:"protocol_id" binding:"required"`
	P            float64 `json:"p"`
	HorizonHours *int    `json:"horizon_hours"`
	Rationale    string  `json:"rationale" binding:"required"`

	RankedItemIDs []string           `json:"ranked_item_ids"`
	Relevance     map[string]float64 `json:"relevance"`
}

func (h *PredictionHandler) create(c *gin.Context) {
	if h.Predictions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req createPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	prediction, err := h.Predictions.CreatePrediction(c.Request.Context(), service.CreatePredictionParams{
		RunID:         req.RunID,
		ProtocolID:    req.ProtocolID,
		P:             req.P,
		HorizonHours:  req.HorizonHours,
		Rationale:     req.Rationale,
		RankedItemIDs: req.RankedItemIDs,
		Relevance:     req.Relevance,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, prediction, nil)
}

func (h *PredictionHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListRecentPredictions(ctx, repository.ListPredictionsParams{
		Limit:      limit,
		Offset:     offset,
		ProtocolID: strQueryPtr(c, "protocol_id"),
		Since:      timeQueryPtr(c, "since"),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		entry, err := h.withCitations(ctx, &items[i])
		if err != nil {
			Fail(c, err)
			return
		}
		out = append(out, entry)
	}
	Ok(c, out, paginationMeta(limit, offset, int64(len(out))))
}

// get returns the prediction with its citation list ordered by rank.
func (h *PredictionHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	prediction, err := h.Repo.GetPredictionByID(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if prediction == nil {
		Error(c, http.StatusNotFound, "prediction not found", nil)
		return
	}
	entry, err := h.withCitations(ctx, prediction)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, entry, nil)
}

// withCitations bundles a prediction with its ranked attributions and
// the raw items they cite.
func (h *PredictionHandler) withCitations(ctx context.Context, prediction *models.Prediction) (map[string]any, error) {
	attrs, err := h.Repo.ListAttributionsByPredictionID(ctx, prediction.ID)
	if err != nil {
		return nil, err
	}
	var items []models.RawItem
	if len(attrs) > 0 {
		ids := make([]string, 0, len(attrs))
		for _, attr := range attrs {
			ids = append(ids, attr.RawItemID)
		}
		items, err = h.Repo.ListRawItemsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"prediction":   prediction,
		"attributions": attrs,
		"items":        items,
	}, nil
}

type recordScoreRequest struct {
	ScoreType    string  `json:"score_type" binding:"required"`
	Value        float64 `json:"value"`
	HorizonHours *int    `json:"horizon_hours"`
}

func (h *PredictionHandler) recordScore(c *gin.Context) {
	if h.Scoring == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req recordScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	score, err := h.Scoring.RecordScore(c.Request.Context(), service.RecordScoreParams{
		PredictionID: c.Param("id"),
		ScoreType:    models.ScoreType(req.ScoreType),
		Value:        req.Value,
		HorizonHours: req.HorizonHours,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, score, nil)
}

func (h *PredictionHandler) listScores(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListScoresByPredictionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}
