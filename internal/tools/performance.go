package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/cache"
	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/metrics"
	"github.com/fintelhq/fintel/internal/models"
)

const performanceSystemPrompt = `You are a financial performance analyst.
Given historical price records, earnings records, and news for a single stock
ticker, score its recent performance. Return ONLY valid JSON (no markdown fences):

{
  "performance_score": <int 1-10, 1 = very poor, 10 = excellent>,
  "outlook": "<Bullish | Bearish | Volatile | Sideways>",
  "justification": "<2-3 sentence explanation grounded in the data>"
}
`

// PerformanceTool scores a ticker's historical performance from price,
// earnings, and news records. When the knowledge base has nothing for a
// ticker it degrades to a nil-score "Unknown" report instead of failing.
type PerformanceTool struct {
	kb     KnowledgeStore
	llm    llm.Completer
	cache  *cache.Cache
	model  string
	logger *zap.Logger
}

// NewPerformanceTool wires the performance tool.
func NewPerformanceTool(kb KnowledgeStore, completer llm.Completer, c *cache.Cache, model string, logger *zap.Logger) *PerformanceTool {
	return &PerformanceTool{kb: kb, llm: completer, cache: c, model: model, logger: logger.Named("performance")}
}

// Analyze implements PerformanceAnalyzer.
func (t *PerformanceTool) Analyze(ctx context.Context, ticker string) (*models.PerformanceReport, error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues("performance").Observe(time.Since(start).Seconds())
	}()

	key := "performance:" + ticker
	var cached models.PerformanceReport
	if t.cache.GetJSON(ctx, key, &cached) {
		metrics.ToolCalls.WithLabelValues("performance", "cached").Inc()
		return &cached, nil
	}

	prices, err := t.kb.FetchByTicker(ctx, ticker, SourceStockMarket, 30)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("performance", "error").Inc()
		return nil, fmt.Errorf("performance price lookup for %s: %w", ticker, err)
	}
	earnings, err := t.kb.FetchByTicker(ctx, ticker, SourceEarnings, 8)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("performance", "error").Inc()
		return nil, fmt.Errorf("performance earnings lookup for %s: %w", ticker, err)
	}
	news, err := t.kb.FetchByTicker(ctx, ticker, SourceNews, 10)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("performance", "error").Inc()
		return nil, fmt.Errorf("performance news lookup for %s: %w", ticker, err)
	}

	if len(prices) == 0 && len(earnings) == 0 && len(news) == 0 {
		metrics.ToolCalls.WithLabelValues("performance", "no_data").Inc()
		return &models.PerformanceReport{
			Outlook:       "Unknown",
			Justification: fmt.Sprintf("No data found for ticker %s in the knowledge base.", ticker),
		}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s\n", ticker)
	writeSection(&sb, "Price records", prices)
	writeSection(&sb, "Earnings records", earnings)
	writeSection(&sb, "News", news)

	raw, err := t.llm.Complete(ctx, llm.Request{
		Purpose:  "performance",
		Model:    t.model,
		System:   performanceSystemPrompt,
		User:     sb.String(),
		WantJSON: true,
	})
	if err != nil {
		metrics.ToolCalls.WithLabelValues("performance", "error").Inc()
		return nil, err
	}

	var parsed struct {
		PerformanceScore *int   `json:"performance_score"`
		Outlook          string `json:"outlook"`
		Justification    string `json:"justification"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripCodeFences(raw))), &parsed); err != nil {
		metrics.ToolCalls.WithLabelValues("performance", "error").Inc()
		return nil, fmt.Errorf("performance response for %s unparseable: %w", ticker, err)
	}

	report := &models.PerformanceReport{
		PerformanceScore: parsed.PerformanceScore,
		Outlook:          parsed.Outlook,
		Justification:    parsed.Justification,
	}
	t.cache.SetJSON(ctx, key, report)
	metrics.ToolCalls.WithLabelValues("performance", "ok").Inc()
	return report, nil
}

func writeSection(sb *strings.Builder, header string, hits []models.SearchHit) {
	if len(hits) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", header)
	for i, h := range hits {
		line := h.Text
		if line == "" {
			line = h.Title
		}
		if len(line) > 300 {
			line = line[:300]
		}
		fmt.Fprintf(sb, "%d. [%s] %s\n", i+1, h.Date, line)
	}
}
