package api

import (
	"context"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dataquay/dataquay/internal/converse"
	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/query"
	"github.com/dataquay/dataquay/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// scriptedModel plays back one text answer per call.
type scriptedModel struct {
	answers []string
	calls   int
}

func (c *scriptedModel) Converse(context.Context, model.Request) iter.Seq2[model.Event, error] {
	i := c.calls
	c.calls++
	return func(yield func(model.Event, error) bool) {
		if i < len(c.answers) {
			if !yield(model.Event{Kind: model.EventTextDelta, Fragment: c.answers[i]}, nil) {
				return
			}
		}
		yield(model.Event{Kind: model.EventMessageEnd}, nil)
	}
}

// instantQuery resolves every job immediately with one row of data.
type instantQuery struct{}

func (instantQuery) Submit(context.Context, query.Submission) (string, error) {
	return "job-1", nil
}

func (instantQuery) Status(context.Context, string) (query.Status, error) {
	return query.Status{State: query.StateSucceeded}, nil
}

func (instantQuery) Results(context.Context, string, string) (query.ResultPage, error) {
	return query.ResultPage{Rows: []query.Row{{"region", "total"}, {"north", "42"}}}, nil
}

// newTestServer wires a full server over scripted model answers.
func newTestServer(t *testing.T, answers ...string) *Server {
	t.Helper()
	logger := log.NewNop()

	loop, err := converse.NewLoop(converse.LoopConfig{
		Client:   &scriptedModel{answers: answers},
		Registry: tools.NewRegistry(logger),
		Logger:   logger,
	})
	require.NoError(t, err)

	router, err := converse.NewRouter(converse.RouterConfig{
		Loop:     loop,
		Database: "analytics",
		Table:    "sales",
		Logger:   logger,
	})
	require.NoError(t, err)

	pipeline, err := query.NewPipeline(query.Config{
		Client:       instantQuery{},
		PollInterval: time.Millisecond,
		Logger:       logger,
	})
	require.NoError(t, err)

	controller, err := converse.NewController(converse.ControllerConfig{
		Router:   router,
		Pipeline: pipeline,
		Database: "analytics",
		Logger:   logger,
	})
	require.NoError(t, err)

	server, err := NewServer(ServerConfig{Controller: controller, Logger: logger})
	require.NoError(t, err)
	return server
}

func postMessage(t *testing.T, server *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u-1")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestMessage_Heartbeat(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := postMessage(t, server, `{"session_id": "s-1", "event_type": "HEARTBEAT"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: heartbeat")
	assert.Contains(t, body, "event: done")
	assert.NotContains(t, body, "event: error")
}

func TestMessage_ConverseStreamsTurn(t *testing.T) {
	t.Parallel()

	server := newTestServer(t,
		"SELECT region, total FROM sales;",
		"chart",
		`{"labels": ["north"]}`,
	)
	rec := postMessage(t, server, `{"session_id": "s-1", "event_type": "CONVERSE", "message": "chart sales"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "event: text")
	assert.Contains(t, body, "SELECT region, total FROM sales;")
	assert.Contains(t, body, `event: loop`)
	assert.Contains(t, body, `"final":true`)
	assert.Contains(t, body, "event: done")
	assert.NotContains(t, body, "event: error")
}

func TestMessage_InternalErrorStaysOnStream(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := postMessage(t, server, `{"event_type": "CONVERSE", "message": "hi"}`)

	// Transport still succeeds; the failure is an SSE error frame.
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "session ID is required")
	assert.Contains(t, body, "event: done")
}

func TestMessage_MalformedBody(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	rec := postMessage(t, server, `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	for path, want := range map[string]string{"/health": "ok", "/ready": "ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicking)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
