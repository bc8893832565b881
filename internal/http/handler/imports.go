package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/http/dto"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const defaultListLimit = 50

type ImportLister interface {
	List(ctx context.Context, status *model.ImportStatus, limit int32) ([]model.ImportProgress, error)
}

type ImportHandler struct {
	imports ImportLister
}

func NewImportHandler(imports ImportLister) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// List returns import lineages, most recently active first. Failed lineages keep the
// cursor of their last good page.
func (h *ImportHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ListImportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	var status *model.ImportStatus
	if req.Status != "" {
		s := model.ImportStatus(req.Status)
		status = &s
	}

	rows, err := h.imports.List(ctx, status, req.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list imports", "error", err, "status", req.Status)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list imports"})
		return
	}
	c.JSON(http.StatusOK, dto.ToImportsResponse(rows))
}
