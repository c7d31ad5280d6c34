package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
)

type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]*model.Document, error)
}

type HealthHandler struct {
	summary map[string]interface{}
	ingest  Ingester
	docs    DocumentLister
}

// NewHealthHandler takes a config summary that must already be free of
// secrets.
func NewHealthHandler(summary map[string]interface{}, ingest Ingester, docs DocumentLister) *HealthHandler {
	return &HealthHandler{summary: summary, ingest: ingest, docs: docs}
}

type healthResponse struct {
	Status         string                 `json:"status"`
	Config         map[string]interface{} `json:"config"`
	IngestRunning  bool                   `json:"ingest_running"`
	LastIngestAt   int64                  `json:"last_ingest_at"`
	IndexedDocs    int                    `json:"indexed_documents"`
	IndexReachable bool                   `json:"index_reachable"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	resp := healthResponse{
		Status: "ok",
		Config: h.summary,
	}
	if h.ingest != nil {
		resp.IngestRunning = h.ingest.Running()
		resp.LastIngestAt = h.ingest.LastRunAt()
	}
	if h.docs != nil {
		docs, err := h.docs.ListDocuments(c.Request.Context())
		if err != nil {
			logger(c).Warn("health: list documents failed", zap.Error(err))
			resp.Status = "degraded"
		} else {
			resp.IndexReachable = true
			resp.IndexedDocs = len(docs)
		}
	}
	response.Success(c, resp)
}
