package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countJob) Name() string {
	return j.name
}

func (j *countJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	require.NoError(t, s.AddJob(&countJob{name: "ingest"}, ""))
	require.NotContains(t, s.entries, "ingest")
	require.Empty(t, s.cron.Entries())

	require.NoError(t, s.AddJob(&countJob{name: "ingest"}, "*/5 * * * *"))
	require.Contains(t, s.entries, "ingest")
	require.Error(t, s.AddJob(&countJob{name: "ingest"}, "@hourly"))
	require.Len(t, s.cron.Entries(), 1)

	require.Error(t, s.AddJob(&countJob{name: "bad"}, "not a spec"))
	require.NotContains(t, s.entries, "bad")
}

func TestRunOnceRecovers(t *testing.T) {
	s := NewCronScheduler()
	for _, j := range []*countJob{
		{name: "ok"},
		{name: "fail", err: errors.New("db down")},
		{name: "panic", panic: true},
	} {
		require.NotPanics(t, func() { s.runOnce(context.Background(), j, zap.NewNop()) })
		require.Equal(t, int32(1), j.runs.Load())
	}
}

func TestWrapRunsJob(t *testing.T) {
	s := NewCronScheduler()
	j := &countJob{name: "cleanup"}
	fn := s.wrap(j, "@daily")
	fn()
	fn()
	require.Equal(t, int32(2), j.runs.Load())
}
