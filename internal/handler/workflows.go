package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sybil/internal/models"
	"sybil/internal/protocol"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type WorkflowHandler struct {
	Repo      repository.Repository
	Workflows *service.WorkflowService
	Protocols *protocol.Registry
}

func (h *WorkflowHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/events/:id/runs", h.startRun)
	r.POST("/api/v1/events/:id/run-protocol", h.runProtocol)

	group := r.Group("/api/v1/runs")
	group.GET("/:id", h.get)
	group.POST("/:id/tool-calls", h.appendToolCall)
	group.POST("/:id/complete", h.complete)
	group.POST("/:id/fail", h.fail)
}

type startRunRequest struct {
	ProtocolID string         `json:"protocol_id" binding:"required"`
	Meta       map[string]any `json:"meta"`
}

func (h *WorkflowHandler) startRun(c *gin.Context) {
	if h.Workflows == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	run, err := h.Workflows.StartRun(c.Request.Context(), c.Param("id"), req.ProtocolID, req.Meta)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, run, nil)
}

type runProtocolRequest struct {
	ProtocolID string `json:"protocol_id" binding:"required"`
	// ItemIDs selects the evidence bundle. Empty means the most recent
	// raw items are used.
	ItemIDs   []string `json:"item_ids"`
	ItemLimit int      `json:"item_limit"`
}

// runProtocol executes one full session synchronously: start a run,
// produce a judgment, trace it, persist the prediction, close the run.
func (h *WorkflowHandler) runProtocol(c *gin.Context) {
	if h.Workflows == nil || h.Protocols == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req runProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	ctx := c.Request.Context()
	proto, err := h.Repo.GetProtocolByID(ctx, req.ProtocolID)
	if err != nil {
		Fail(c, err)
		return
	}
	if proto == nil {
		Error(c, http.StatusNotFound, "protocol not found", nil)
		return
	}
	impl, err := h.Protocols.For(proto.Kind)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var items []models.RawItem
	if len(req.ItemIDs) > 0 {
		items, err = h.Repo.ListRawItemsByIDs(ctx, req.ItemIDs)
	} else {
		limit := req.ItemLimit
		if limit <= 0 {
			limit = 50
		}
		items, err = h.Repo.ListRawItems(ctx, repository.ListRawItemsParams{Limit: limit})
	}
	if err != nil {
		Fail(c, err)
		return
	}

	prediction, err := h.Workflows.RunProtocol(ctx, c.Param("id"), proto, impl, items)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, prediction, nil)
}

// get returns the run with its ordered tool call trace.
func (h *WorkflowHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	run, err := h.Repo.GetRunByID(ctx, c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if run == nil {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	calls, err := h.Repo.ListToolCallsByRunID(ctx, run.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"run": run, "tool_calls": calls}, nil)
}

type appendToolCallRequest struct {
	StepNumber int            `json:"step_number" binding:"required"`
	Kind       string         `json:"kind" binding:"required"`
	Name       string         `json:"name" binding:"required"`
	Args       map[string]any `json:"args"`
	Result     map[string]any `json:"result"`

	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	CostUSD   *string `json:"cost_usd"`
	LatencyMs int     `json:"latency_ms"`

	Success      *bool   `json:"success"`
	ErrorMessage *string `json:"error_message"`
}

func (h *WorkflowHandler) appendToolCall(c *gin.Context) {
	if h.Workflows == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req appendToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	cost := decimal.Zero
	if req.CostUSD != nil {
		parsed, err := decimal.NewFromString(*req.CostUSD)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid cost_usd", nil)
			return
		}
		cost = parsed
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}
	call, err := h.Workflows.AppendToolCall(c.Request.Context(), service.AppendToolCallParams{
		RunID:        c.Param("id"),
		StepNumber:   req.StepNumber,
		Kind:         models.ToolCallKind(req.Kind),
		Name:         req.Name,
		Args:         req.Args,
		Result:       req.Result,
		TokensIn:     req.TokensIn,
		TokensOut:    req.TokensOut,
		CostUSD:      cost,
		LatencyMs:    req.LatencyMs,
		Success:      success,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, call, nil)
}

func (h *WorkflowHandler) complete(c *gin.Context) {
	if h.Workflows == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Workflows.CompleteRun(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"id": c.Param("id"), "status": string(models.RunCompleted)}, nil)
}

func (h *WorkflowHandler) fail(c *gin.Context) {
	if h.Workflows == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Workflows.FailRun(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"id": c.Param("id"), "status": string(models.RunFailed)}, nil)
}
