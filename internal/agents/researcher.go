package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/tools"
)

// ResearcherAgent fans out per-entity sentiment and performance lookups.
// Failures are isolated per entity per tool: a failed call becomes a
// ToolError on that entity's research and an uncertainty on the task
// context, and never aborts the batch. The result list preserves input
// order regardless of completion order.
type ResearcherAgent struct {
	sentiment   tools.SentimentAnalyzer
	performance tools.PerformanceAnalyzer
	workers     int
	limiter     *rate.Limiter
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewResearcherAgent wires the researcher. workers <= 0 defaults to 4;
// limiter may be nil for unthrottled fan-out; callTimeout bounds each tool
// call so one hung tool becomes that entity's ToolError instead of stalling
// the batch (<= 0 disables the bound).
func NewResearcherAgent(s tools.SentimentAnalyzer, p tools.PerformanceAnalyzer, workers int, limiter *rate.Limiter, callTimeout time.Duration, logger *zap.Logger) *ResearcherAgent {
	if workers <= 0 {
		workers = 4
	}
	return &ResearcherAgent{
		sentiment:   s,
		performance: p,
		workers:     workers,
		limiter:     limiter,
		callTimeout: callTimeout,
		logger:      logger.Named("researcher"),
	}
}

// Run researches every entity with a bounded worker pool. Appends to the
// task context's observation and uncertainty logs are serialized so the
// append order stays coherent under concurrency.
func (a *ResearcherAgent) Run(ctx context.Context, tc *models.TaskContext, entities []string) []models.CompanyResearch {
	results := make([]models.CompanyResearch, len(entities))
	if len(entities) == 0 {
		return results
	}

	var mu sync.Mutex // guards tc log appends
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for i, entity := range entities {
		wg.Add(1)
		go func(idx int, ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			tc.Observe(fmt.Sprintf("Researching %s...", ticker))
			mu.Unlock()

			results[idx] = a.researchOne(ctx, tc, &mu, ticker)
		}(i, entity)
	}
	wg.Wait()

	return results
}

func (a *ResearcherAgent) researchOne(ctx context.Context, tc *models.TaskContext, mu *sync.Mutex, ticker string) models.CompanyResearch {
	cr := models.CompanyResearch{Ticker: ticker}

	fail := func(tool string, err error) {
		cr.Errors = append(cr.Errors, models.ToolError{Entity: ticker, Tool: tool, Error: err.Error()})
		mu.Lock()
		tc.NoteUncertainty(fmt.Sprintf("%s failed for %s: %v", tool, ticker, err))
		mu.Unlock()
		a.logger.Warn("Tool call failed",
			zap.String("run_id", tc.RunID),
			zap.String("tool", tool),
			zap.String("ticker", ticker),
			zap.Error(err),
		)
	}

	if err := a.wait(ctx); err != nil {
		fail("sentiment", err)
	} else if sentiment, err := a.analyzeSentiment(ctx, ticker); err != nil {
		fail("sentiment", err)
	} else {
		cr.Sentiment = sentiment
		snippets := sentiment.References
		if len(snippets) > models.MaxNewsSnippets {
			snippets = snippets[:models.MaxNewsSnippets]
		}
		cr.NewsSnippets = snippets
	}

	if err := a.wait(ctx); err != nil {
		fail("performance", err)
	} else if performance, err := a.analyzePerformance(ctx, ticker); err != nil {
		fail("performance", err)
	} else {
		cr.Performance = performance
	}

	return cr
}

func (a *ResearcherAgent) analyzeSentiment(ctx context.Context, ticker string) (*models.SentimentReport, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	return a.sentiment.Analyze(ctx, ticker)
}

func (a *ResearcherAgent) analyzePerformance(ctx context.Context, ticker string) (*models.PerformanceReport, error) {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()
	return a.performance.Analyze(ctx, ticker)
}

func (a *ResearcherAgent) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.callTimeout)
}

func (a *ResearcherAgent) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}
