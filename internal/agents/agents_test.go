package agents

import (
	"context"
	"errors"

	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/models"
)

// Shared fakes for the agent tests.

type fakeCompleter struct {
	response string
	err      error
	lastReq  llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeSearcher struct {
	hits []models.SearchHit
	err  error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	return f.hits, f.err
}

type fakeSentiment struct {
	reports map[string]*models.SentimentReport
	failOn  map[string]error
}

func (f *fakeSentiment) Analyze(ctx context.Context, ticker string) (*models.SentimentReport, error) {
	if err, ok := f.failOn[ticker]; ok {
		return nil, err
	}
	if r, ok := f.reports[ticker]; ok {
		return r, nil
	}
	return nil, errors.New("no fixture for " + ticker)
}

type fakePerformance struct {
	reports map[string]*models.PerformanceReport
	failOn  map[string]error
}

func (f *fakePerformance) Analyze(ctx context.Context, ticker string) (*models.PerformanceReport, error) {
	if err, ok := f.failOn[ticker]; ok {
		return nil, err
	}
	if r, ok := f.reports[ticker]; ok {
		return r, nil
	}
	return nil, errors.New("no fixture for " + ticker)
}

type fakeFilter struct {
	symbols []string
	err     error
	calls   int
}

func (f *fakeFilter) FindRelevantSymbols(ctx context.Context, query string) ([]string, error) {
	f.calls++
	return f.symbols, f.err
}

func intPtr(v int) *int { return &v }

func sentimentFixture(rating int) *models.SentimentReport {
	return &models.SentimentReport{Rating: intPtr(rating), Label: "Positive", Rationale: "fixture"}
}

func performanceFixture(score int) *models.PerformanceReport {
	return &models.PerformanceReport{PerformanceScore: intPtr(score), Outlook: "Bullish", Justification: "fixture"}
}
