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

const sentimentSystemPrompt = `You are a financial news sentiment analyst.
Given recent news items for a single stock ticker, rate the overall sentiment.
Return ONLY valid JSON (no markdown fences):

{
  "rating": <int 1-10, 1 = very negative, 10 = very positive>,
  "label": "<Very Negative | Negative | Neutral | Positive | Very Positive>",
  "rationale": "<2-3 sentence explanation citing the news>"
}
`

// SentimentTool rates news sentiment for a ticker using knowledge-base
// records and one LLM call. Results are cached per ticker.
type SentimentTool struct {
	kb     KnowledgeStore
	llm    llm.Completer
	cache  *cache.Cache
	model  string
	logger *zap.Logger
}

// NewSentimentTool wires the sentiment tool.
func NewSentimentTool(kb KnowledgeStore, completer llm.Completer, c *cache.Cache, model string, logger *zap.Logger) *SentimentTool {
	return &SentimentTool{kb: kb, llm: completer, cache: c, model: model, logger: logger.Named("sentiment")}
}

// Analyze implements SentimentAnalyzer.
func (t *SentimentTool) Analyze(ctx context.Context, ticker string) (*models.SentimentReport, error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues("sentiment").Observe(time.Since(start).Seconds())
	}()

	key := "sentiment:" + ticker
	var cached models.SentimentReport
	if t.cache.GetJSON(ctx, key, &cached) {
		metrics.ToolCalls.WithLabelValues("sentiment", "cached").Inc()
		return &cached, nil
	}

	hits, err := t.kb.FetchByTicker(ctx, ticker, SourceNews, 20)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("sentiment", "error").Inc()
		return nil, fmt.Errorf("sentiment news lookup for %s: %w", ticker, err)
	}
	if len(hits) == 0 {
		metrics.ToolCalls.WithLabelValues("sentiment", "no_data").Inc()
		return &models.SentimentReport{
			Label:     "Unknown",
			Rationale: fmt.Sprintf("No news found for ticker %s in the knowledge base.", ticker),
		}, nil
	}

	references := make([]string, 0, len(hits))
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s\n\nRecent news items:\n", ticker)
	for i, h := range hits {
		line := h.Title
		if line == "" {
			line = h.Text
		}
		if len(line) > 300 {
			line = line[:300]
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, h.Date, line)
		references = append(references, fmt.Sprintf("[%s | %s] %s", h.DatasetSource, h.Date, h.Title))
	}

	raw, err := t.llm.Complete(ctx, llm.Request{
		Purpose:  "sentiment",
		Model:    t.model,
		System:   sentimentSystemPrompt,
		User:     sb.String(),
		WantJSON: true,
	})
	if err != nil {
		metrics.ToolCalls.WithLabelValues("sentiment", "error").Inc()
		return nil, err
	}

	var parsed struct {
		Rating    *int   `json:"rating"`
		Label     string `json:"label"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripCodeFences(raw))), &parsed); err != nil {
		metrics.ToolCalls.WithLabelValues("sentiment", "error").Inc()
		return nil, fmt.Errorf("sentiment response for %s unparseable: %w", ticker, err)
	}

	report := &models.SentimentReport{
		Rating:     parsed.Rating,
		Label:      parsed.Label,
		Rationale:  parsed.Rationale,
		References: references,
	}
	t.cache.SetJSON(ctx, key, report)
	metrics.ToolCalls.WithLabelValues("sentiment", "ok").Inc()
	return report, nil
}
