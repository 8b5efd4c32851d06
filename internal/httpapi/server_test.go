package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/orchestrator"
	"github.com/fintelhq/fintel/internal/streaming"
)

type fakeRunner struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, query, timeframe string) (*orchestrator.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, runner Runner) (*Server, *streaming.Manager) {
	t.Helper()
	events := streaming.NewManager(16)
	return NewServer(runner, events, time.Minute, zaptest.NewLogger(t)), events
}

func TestQueryEndpoint(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.Result{
		Answer: &models.SynthesizedAnswer{Markdown: "Strong quarter for AAPL.", Confidence: 0.9},
		Context: &models.TaskContext{
			RunID:     "run-1",
			Intent:    models.IntentSnapshot,
			Entities:  []string{"AAPL"},
			Iteration: 1,
		},
	}}
	srv, _ := newTestServer(t, runner)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/query",
		strings.NewReader(`{"query": "how is AAPL doing"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 0.9, resp.Answer.Confidence)
	assert.Equal(t, []string{"AAPL"}, resp.Entities)
}

func TestQueryEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"GET rejected", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad JSON", http.MethodPost, "{", http.StatusBadRequest},
		{"empty query", http.MethodPost, `{"query": ""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/query", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryEndpointRunFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{err: errors.New("synthesis: model overloaded")})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query": "q"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSSERequiresRunID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/events", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSSEReplaysBacklog(t *testing.T) {
	srv, events := newTestServer(t, &fakeRunner{})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	for i := 0; i < 3; i++ {
		events.Publish("run-1", streaming.Event{Type: streaming.TypeObservation, Message: "obs"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/events?run_id=run-1&last_event_id=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		mux.ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Contains(t, body, ": connected to run run-1")
	assert.Contains(t, body, "id: 2")
	assert.NotContains(t, body, "id: 1\n", "events at or before last_event_id are not replayed")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
