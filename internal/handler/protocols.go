package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sybil/internal/models"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type ProtocolHandler struct {
	Repo    repository.Repository
	Scoring *service.ScoringService
}

func (h *ProtocolHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/protocols")
	group.GET("", h.list)
	group.POST("", h.create)
	group.GET("/:id/performance", h.performance)
}

type createProtocolRequest struct {
	Name        string  `json:"name" binding:"required"`
	Version     string  `json:"version" binding:"required"`
	Kind        string  `json:"kind" binding:"required"`
	Description *string `json:"description"`
}

func (h *ProtocolHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	proto := &models.Protocol{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Version:     req.Version,
		Kind:        models.ProtocolKind(req.Kind),
		Description: req.Description,
	}
	if err := h.Repo.UpsertProtocol(c.Request.Context(), proto); err != nil {
		Fail(c, err)
		return
	}
	stored, err := h.Repo.GetProtocol(c.Request.Context(), req.Name, req.Version)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, stored, nil)
}

func (h *ProtocolHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListProtocols(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

func (h *ProtocolHandler) performance(c *gin.Context) {
	if h.Scoring == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	window := intQuery(c, "window_days", 0)
	perf, err := h.Scoring.Performance(c.Request.Context(), c.Param("id"), window)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, perf, nil)
}
