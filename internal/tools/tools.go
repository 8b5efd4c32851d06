// Package tools implements the research tools the orchestration loop fans
// out to: per-ticker sentiment analysis, per-ticker performance analysis,
// and query-driven company filtering. Every tool is independently fallible;
// callers record failures and continue.
package tools

import (
	"context"

	"github.com/fintelhq/fintel/internal/models"
)

// KnowledgeStore is the slice of the knowledge-base client the tools need.
type KnowledgeStore interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	FetchByTicker(ctx context.Context, ticker, datasetSource string, limit int) ([]models.SearchHit, error)
	ListSymbols(ctx context.Context) (map[string]string, error)
}

// SentimentAnalyzer rates news sentiment for one ticker.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.SentimentReport, error)
}

// PerformanceAnalyzer scores historical performance for one ticker.
type PerformanceAnalyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.PerformanceReport, error)
}

// CompanyFilter discovers tickers relevant to a free-text query.
type CompanyFilter interface {
	FindRelevantSymbols(ctx context.Context, query string) ([]string, error)
}

// Dataset sources recognized in knowledge-base payloads.
const (
	SourceNews        = "news"
	SourceStockMarket = "stock_market"
	SourceEarnings    = "earnings"
)
