package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/http/dto"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/queue"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/store"
)

type LatestRunReader interface {
	Latest(ctx context.Context) (*model.CollectorRun, error)
}

type RunEventReader interface {
	Recent(ctx context.Context, count int64) ([]queue.RunEvent, error)
}

type RunHandler struct {
	runs   LatestRunReader
	events RunEventReader
}

// NewRunHandler accepts a nil events reader when no Redis stream is configured.
func NewRunHandler(runs LatestRunReader, events RunEventReader) *RunHandler {
	return &RunHandler{runs: runs, events: events}
}

func (h *RunHandler) Latest(c *gin.Context) {
	ctx := c.Request.Context()

	run, err := h.runs.Latest(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no successful run recorded yet"})
			return
		}
		slog.ErrorContext(ctx, "failed to get latest collector run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get latest run"})
		return
	}
	c.JSON(http.StatusOK, dto.ToLatestRunResponse(run))
}

func (h *RunHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not configured"})
		return
	}

	var req dto.ListRunEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count == 0 {
		req.Count = 20
	}

	events, err := h.events.Recent(ctx, req.Count)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read run events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run events"})
		return
	}
	c.JSON(http.StatusOK, dto.ToRunEventsResponse(events))
}
