package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sybil/internal/models"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type ProposalHandler struct {
	Repo      repository.Repository
	Proposals *service.ProposalService
}

func (h *ProposalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/proposals")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("", h.create)
	group.POST("/:id/review", h.review)
}

type createProposalRequest struct {
	RawItemID   string         `json:"raw_item_id" binding:"required"`
	EventKey    string         `json:"event_key" binding:"required"`
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	ProposedBy  string         `json:"proposed_by" binding:"required"`
	Confidence  *float64       `json:"confidence"`
	Meta        map[string]any `json:"meta"`
}

func (h *ProposalHandler) create(c *gin.Context) {
	if h.Proposals == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	proposal, err := h.Proposals.CreateProposal(c.Request.Context(), service.CreateProposalParams{
		RawItemID:   req.RawItemID,
		EventKey:    req.EventKey,
		Title:       req.Title,
		Description: req.Description,
		ProposedBy:  req.ProposedBy,
		Confidence:  req.Confidence,
		Meta:        req.Meta,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, proposal, nil)
}

func (h *ProposalHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var status *models.ProposalStatus
	if v := strQueryPtr(c, "status"); v != nil {
		s := models.ProposalStatus(*v)
		status = &s
	}
	items, err := h.Repo.ListProposals(c.Request.Context(), repository.ListProposalsParams{
		Limit:    limit,
		Offset:   offset,
		Status:   status,
		EventKey: strQueryPtr(c, "event_key"),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

func (h *ProposalHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	proposal, err := h.Repo.GetProposalByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if proposal == nil {
		Error(c, http.StatusNotFound, "proposal not found", nil)
		return
	}
	Ok(c, proposal, nil)
}

type reviewProposalRequest struct {
	Status             string     `json:"status" binding:"required"`
	ReviewedBy         string     `json:"reviewed_by" binding:"required"`
	Notes              *string    `json:"notes"`
	ResolutionCriteria *string    `json:"resolution_criteria"`
	ExpectedResolution *time.Time `json:"expected_resolution"`
}

func (h *ProposalHandler) review(c *gin.Context) {
	if h.Proposals == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req reviewProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	proposal, event, err := h.Proposals.ReviewProposal(c.Request.Context(), service.ReviewProposalParams{
		ProposalID:         c.Param("id"),
		Status:             models.ProposalStatus(req.Status),
		ReviewedBy:         req.ReviewedBy,
		Notes:              req.Notes,
		ResolutionCriteria: req.ResolutionCriteria,
		ExpectedResolution: req.ExpectedResolution,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"proposal": proposal, "event": event}, nil)
}
