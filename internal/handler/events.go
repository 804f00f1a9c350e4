package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sybil/internal/lifecycle"
	"sybil/internal/models"
	"sybil/internal/repository"
	"sybil/internal/resolution"
	"sybil/internal/service"
)

type EventHandler struct {
	Repo     repository.Repository
	Engine   *resolution.Engine
	Scoring  *service.ScoringService
	Listings *service.ListingService
}

func (h *EventHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/events")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/state", h.transition)
	group.POST("/:id/resolve", h.resolve)
	group.POST("/:id/resolution/override", h.override)
	group.POST("/:id/score", h.score)
	group.GET("/:id/predictions", h.predictions)
	group.POST("/:id/listings", h.addListing)
}

func (h *EventHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	var state *models.EventState
	if v := strQueryPtr(c, "state"); v != nil {
		s := models.EventState(*v)
		state = &s
	}
	items, err := h.Repo.ListEvents(c.Request.Context(), repository.ListEventsParams{
		Limit:           limit,
		Offset:          offset,
		State:           state,
		IncludeArchived: boolQueryDefault(c, "include_archived", false),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// get returns the event with its market listings, outcome, and
// resolution record, absent parts omitted.
func (h *EventHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	event, err := h.Repo.GetEventByID(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if event == nil {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	listings, err := h.Repo.ListMarketListingsByEventID(ctx, event.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	outcome, err := h.Repo.GetOutcomeByEventID(ctx, event.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	record, err := h.Repo.GetResolutionByEventID(ctx, event.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"event":      event,
		"listings":   listings,
		"outcome":    outcome,
		"resolution": record,
	}, nil)
}

type transitionRequest struct {
	State string `json:"state" binding:"required"`
}

func (h *EventHandler) transition(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	ctx := c.Request.Context()
	event, err := h.Repo.GetEventByID(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if event == nil {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	next := models.EventState(req.State)
	if err := lifecycle.CheckEvent(event.State, next); err != nil {
		Fail(c, err)
		return
	}
	if err := h.Repo.UpdateEventState(ctx, event.ID, next); err != nil {
		Fail(c, err)
		return
	}
	event.State = next
	Ok(c, event, nil)
}

type resolveRequest struct {
	// Evidence, when present, bypasses the gatherer and feeds the
	// decision directly.
	Evidence []resolution.Evidence `json:"evidence"`
}

func (h *EventHandler) resolve(c *gin.Context) {
	if h.Repo == nil || h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	var req resolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	ctx := c.Request.Context()
	event, err := h.Repo.GetEventByID(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if event == nil {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	var record *models.EventResolution
	if len(req.Evidence) > 0 {
		record, err = h.Engine.ResolveWith(ctx, event, req.Evidence)
	} else {
		record, err = h.Engine.Resolve(ctx, event)
	}
	if err != nil {
		Fail(c, err)
		return
	}
	if record == nil {
		Error(c, http.StatusConflict, "resolution already running", nil)
		return
	}
	Ok(c, record, nil)
}

type overrideRequest struct {
	Status       string `json:"status" binding:"required"`
	Notes        string `json:"notes" binding:"required"`
	OverriddenBy string `json:"overridden_by" binding:"required"`
}

func (h *EventHandler) override(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	record, err := h.Engine.Override(c.Request.Context(), c.Param("id"),
		models.ResolutionStatus(req.Status), req.Notes, req.OverriddenBy)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, record, nil)
}

func (h *EventHandler) score(c *gin.Context) {
	if h.Scoring == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	scored, err := h.Scoring.ScoreEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"predictions_scored": scored}, nil)
}

func (h *EventHandler) predictions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListPredictionsByEventID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

type addListingRequest struct {
	MarketName string         `json:"market_name" binding:"required"`
	MarketID   string         `json:"market_id" binding:"required"`
	MarketURL  string         `json:"market_url"`
	Meta       map[string]any `json:"meta"`
}

func (h *EventHandler) addListing(c *gin.Context) {
	if h.Listings == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req addListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	listing, err := h.Listings.UpsertListing(c.Request.Context(), service.UpsertListingParams{
		EventID:    c.Param("id"),
		MarketName: req.MarketName,
		MarketID:   req.MarketID,
		MarketURL:  req.MarketURL,
		Meta:       req.Meta,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, listing, nil)
}
