package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sybil/internal/lifecycle"
	"sybil/internal/protocol"
	"sybil/internal/repository"
	"sybil/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps service errors onto HTTP statuses: lifecycle and integrity
// violations are conflicts, everything else is a gateway error.
func Fail(c *gin.Context, err error) {
	var conflict *lifecycle.StateConflictError
	if errors.As(err, &conflict) {
		Error(c, http.StatusConflict, conflict.Error(), nil)
		return
	}
	var integrity *repository.IntegrityError
	if errors.As(err, &integrity) {
		Error(c, http.StatusConflict, integrity.Error(), nil)
		return
	}
	if errors.Is(err, service.ErrRunInProgress) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if errors.Is(err, protocol.ErrAwaitingInput) {
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	Error(c, http.StatusBadGateway, err.Error(), nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func boolQueryDefault(c *gin.Context, key string, def bool) bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

func timeQueryPtr(c *gin.Context, key string) *time.Time {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if parsed, err := time.Parse(time.RFC3339, val); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
