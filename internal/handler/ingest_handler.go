package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/errcode"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
	"github.com/xxxsen/pdfqa/internal/service"
)

type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*model.IngestSummary, error)
	Running() bool
	LastRunAt() int64
}

type IngestHandler struct {
	ingest Ingester
}

func NewIngestHandler(ingest Ingester) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestRequest struct {
	ForceReindex bool `json:"force_reindex"`
}

// Ingest runs synchronously. The run outlives a disconnected client.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	summary, err := h.ingest.Ingest(ctx, service.IngestRequest{ForceReindex: req.ForceReindex})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, summary)
}
