package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sybil/internal/models"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type IngestHandler struct {
	Repo   repository.Repository
	Ingest *service.IngestService
}

func (h *IngestHandler) Register(r *gin.Engine) {
	sources := r.Group("/api/v1/sources")
	sources.GET("", h.listSources)
	sources.POST("", h.registerSource)

	items := r.Group("/api/v1/raw-items")
	items.GET("", h.listRawItems)
	items.GET("/:id", h.getRawItem)
	items.POST("", h.submitRawItem)
}

type registerSourceRequest struct {
	Name     string         `json:"name" binding:"required"`
	Kind     string         `json:"kind" binding:"required"`
	Endpoint string         `json:"endpoint"`
	Config   map[string]any `json:"config"`
}

func (h *IngestHandler) registerSource(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req registerSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	source, err := h.Ingest.RegisterSource(c.Request.Context(), service.RegisterSourceParams{
		Name:     req.Name,
		Kind:     models.SourceKind(req.Kind),
		Endpoint: req.Endpoint,
		Config:   req.Config,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, source, nil)
}

func (h *IngestHandler) listSources(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSources(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

type submitRawItemRequest struct {
	Source      string         `json:"source" binding:"required"`
	ExternalID  *string        `json:"external_id"`
	URL         string         `json:"url" binding:"required"`
	Title       *string        `json:"title"`
	Body        *string        `json:"body"`
	ContentHash string         `json:"content_hash"`
	FetchedAt   *time.Time     `json:"fetched_at"`
	Meta        map[string]any `json:"meta"`
}

func (h *IngestHandler) submitRawItem(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req submitRawItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	params := service.SubmitRawItemParams{
		SourceName:  req.Source,
		ExternalID:  req.ExternalID,
		URL:         req.URL,
		Title:       req.Title,
		Body:        req.Body,
		ContentHash: req.ContentHash,
		Meta:        req.Meta,
	}
	if req.FetchedAt != nil {
		params.FetchedAt = req.FetchedAt.UTC()
	}
	item, existed, err := h.Ingest.SubmitRawItem(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, map[string]any{"existed": existed})
}

func (h *IngestHandler) listRawItems(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListRawItems(c.Request.Context(), repository.ListRawItemsParams{
		Limit:    limit,
		Offset:   offset,
		SourceID: strQueryPtr(c, "source_id"),
		Since:    timeQueryPtr(c, "since"),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

func (h *IngestHandler) getRawItem(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetRawItemByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "raw item not found", nil)
		return
	}
	Ok(c, item, nil)
}
