package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const completionBody = `{"choices":[{"message":{"content":"all clear"}}]}`

func TestCompleteReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test",
		WorkerModel: "m",
		Timeout:     5 * time.Second,
	}, zaptest.NewLogger(t))

	got, err := c.Complete(context.Background(), Request{Purpose: "intent", System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "all clear", got)
}

func TestCompleteTimesOutOnHungUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test",
		WorkerModel: "m",
		Timeout:     50 * time.Millisecond,
	}, zaptest.NewLogger(t))

	start := time.Now()
	_, err := c.Complete(context.Background(), Request{Purpose: "synthesis", System: "s", User: "u"})

	require.Error(t, err, "per-call timeout must fail the call even with no caller deadline")
	assert.Less(t, time.Since(start), 5*time.Second)
}
