package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/pdfqa/internal/filestore"
	"github.com/xxxsen/pdfqa/internal/handler"
	"github.com/xxxsen/pdfqa/internal/middleware"
	"github.com/xxxsen/pdfqa/internal/model"
	"github.com/xxxsen/pdfqa/internal/service"
)

type fakeChat struct {
	calls  int
	last   service.ChatRequest
	answer *model.Answer
	err    error
}

func (f *fakeChat) Chat(ctx context.Context, req service.ChatRequest) (*model.Answer, error) {
	f.calls++
	f.last = req
	return f.answer, f.err
}

type fakeIngest struct {
	calls   int
	last    service.IngestRequest
	summary *model.IngestSummary
	err     error
	running bool
	lastRun int64
}

func (f *fakeIngest) Ingest(ctx context.Context, req service.IngestRequest) (*model.IngestSummary, error) {
	f.calls++
	f.last = req
	return f.summary, f.err
}

func (f *fakeIngest) Running() bool {
	return f.running
}

func (f *fakeIngest) LastRunAt() int64 {
	return f.lastRun
}

type fakeDocs struct {
	docs []*model.Document
	err  error
}

func (f *fakeDocs) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	return f.docs, f.err
}

type testEnv struct {
	router http.Handler
	chat   *fakeChat
	ingest *fakeIngest
	docs   *fakeDocs
	store  filestore.Store
	dir    string
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store := filestore.NewLocalStore(dir, "http://pdfqa.local", []byte("test-secret"))
	env := &testEnv{
		chat:   &fakeChat{},
		ingest: &fakeIngest{summary: &model.IngestSummary{Failures: []model.IngestFailure{}}},
		docs:   &fakeDocs{},
		store:  store,
		dir:    dir,
	}
	deps := handler.RouterDeps{
		Chat:   handler.NewChatHandler(env.chat),
		Ingest: handler.NewIngestHandler(env.ingest),
		Health: handler.NewHealthHandler(map[string]interface{}{"index_type": "memory"}, env.ingest, env.docs),
		Files:  handler.NewFileHandler(store),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	env.router = engine
	return env
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get(middleware.HeaderRequestID))
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}
