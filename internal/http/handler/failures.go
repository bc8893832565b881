package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/http/dto"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

type FailureLister interface {
	List(ctx context.Context, limit int32) ([]model.ImportFailure, error)
}

type FailureHandler struct {
	failures FailureLister
}

func NewFailureHandler(failures FailureLister) *FailureHandler {
	return &FailureHandler{failures: failures}
}

func (h *FailureHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ListFailuresRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	rows, err := h.failures.List(ctx, req.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list import failures", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list import failures"})
		return
	}
	c.JSON(http.StatusOK, dto.ToFailuresResponse(rows))
}
