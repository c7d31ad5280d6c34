package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/middleware"
	"github.com/xxxsen/pdfqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
	"github.com/xxxsen/pdfqa/internal/pkg/response"
	"github.com/xxxsen/pdfqa/internal/service"
)

var stageCodes = map[appErr.Stage]int{
	appErr.StageEmbedding:  errcode.ErrEmbeddingUnavailable,
	appErr.StageSearch:     errcode.ErrSearchUnavailable,
	appErr.StageGeneration: errcode.ErrGenerationUnavailable,
	appErr.StageStorage:    errcode.ErrStorageUnavailable,
}

func logger(c *gin.Context) *zap.Logger {
	return logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
}

// errorCode maps err onto an api code and a client safe message.
func errorCode(err error) (int, string) {
	if stage := appErr.StageOf(err); stage != "" {
		return stageCodes[stage], response.MsgUnavailable
	}
	switch {
	case errors.Is(err, service.ErrIngestRunning):
		return errcode.ErrIngestRunning, "ingest already running"
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrUnknown, response.MsgUnavailable
	default:
		return errcode.ErrInternal, "internal error"
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := errorCode(err)
	logger(c).Error("request failed", zap.Int("code", code), zap.Error(err))
	response.Error(c, code, msg)
}
