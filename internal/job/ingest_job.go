package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/service"
)

type ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*model.IngestSummary, error)
}

// IngestJob runs an incremental ingest. A run already in flight, started by
// the api or the cli, makes the tick a no-op.
type IngestJob struct {
	ingest ingester
}

func NewIngestJob(ingest ingester) *IngestJob {
	return &IngestJob{ingest: ingest}
}

func (j *IngestJob) Name() string {
	return "ingest"
}

func (j *IngestJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	summary, err := j.ingest.Ingest(ctx, service.IngestRequest{})
	if errors.Is(err, service.ErrIngestRunning) {
		logutil.GetLogger(ctx).Info("ingest already running, skip tick")
		return nil
	}
	if err != nil {
		return err
	}
	for _, f := range summary.Failures {
		logutil.GetLogger(ctx).Warn("scheduled ingest document failed",
			zap.String("document", f.Document), zap.String("reason", f.Reason))
	}
	return nil
}
