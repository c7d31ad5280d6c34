package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/filestore"
)

// FileHandler serves documents of the local store behind signed tokens.
// Stores that sign their own links, like s3, never route here.
type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Get(c *gin.Context) {
	verifier, ok := h.store.(filestore.TokenVerifier)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	name := c.Param("name")
	token := c.Query("token")
	if name == "" || token == "" {
		c.Status(http.StatusForbidden)
		return
	}
	if err := verifier.Verify(name, token); err != nil {
		logger(c).Info("reject file token", zap.String("document", name), zap.Error(err))
		c.Status(http.StatusForbidden)
		return
	}
	file, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	c.Header("Cache-Control", "private, no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		logger(c).Warn("stream file failed", zap.String("document", name), zap.Error(err))
	}
}
