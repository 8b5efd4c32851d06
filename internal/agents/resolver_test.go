package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/fintelhq/fintel/internal/models"
)

func TestResolveSkipsWhenEntitiesKnown(t *testing.T) {
	filter := &fakeFilter{symbols: []string{"TSLA"}}
	r := NewEntityResolver(filter, zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-1", "q", "")
	tc.AddEntity("AAPL")

	r.Resolve(context.Background(), tc)

	assert.Equal(t, 0, filter.calls, "filter is a fallback, not a default")
	assert.Equal(t, []string{"AAPL"}, tc.Entities)
}

func TestResolveFallsBackToFilter(t *testing.T) {
	filter := &fakeFilter{symbols: []string{"NVDA", "AMD"}}
	r := NewEntityResolver(filter, zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-2", "best chip stocks", "")

	r.Resolve(context.Background(), tc)

	assert.Equal(t, 1, filter.calls)
	assert.Equal(t, []string{"NVDA", "AMD"}, tc.Entities)
}

func TestResolveFilterFailureIsSoft(t *testing.T) {
	r := NewEntityResolver(&fakeFilter{err: errors.New("kb down")}, zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-3", "q", "")

	r.Resolve(context.Background(), tc)

	assert.Empty(t, tc.Entities)
	assert.Len(t, tc.Uncertainties, 1)
}

func TestRetrievalMergesHints(t *testing.T) {
	searcher := &fakeSearcher{hits: []models.SearchHit{
		{Ticker: "AAPL", Company: "Apple Inc.", Text: "Apple beat estimates"},
		{Ticker: "AAPL", Company: "Apple Inc."},
		{Ticker: "MSFT", Company: "Microsoft"},
	}}
	a := NewKnowledgeRetrievalAgent(searcher, 8, zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-4", "tech earnings", "")

	got := a.Run(context.Background(), tc)

	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Entities)
	assert.Equal(t, "AAPL", got.Aliases["Apple Inc."])
	assert.Equal(t, []string{"Apple beat estimates"}, got.Summaries)
}

func TestRetrievalFailureIsSoft(t *testing.T) {
	a := NewKnowledgeRetrievalAgent(&fakeSearcher{err: errors.New("qdrant down")}, 8, zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-5", "q", "")

	got := a.Run(context.Background(), tc)

	assert.Empty(t, got.Entities)
	assert.Len(t, tc.Uncertainties, 1)
	assert.Contains(t, tc.Uncertainties[0], "knowledge retrieval failed")
}
