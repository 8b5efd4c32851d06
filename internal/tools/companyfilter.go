package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/cache"
	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/metrics"
)

const companyFilterSystemPrompt = `You select stock tickers relevant to a user's
financial research question from a fixed universe. Only return tickers present
in the universe. Return ONLY valid JSON (no markdown fences):

{"symbols": ["TICKER1", "TICKER2"]}

Return an empty list if nothing in the universe matches.
`

// CompanyFilterTool maps a free-text query onto tickers present in the
// knowledge base. The symbol universe comes from the knowledge base (cached);
// an LLM narrows it to the query. If the LLM call fails the tool degrades to
// the full universe so downstream research still has entities to work with.
type CompanyFilterTool struct {
	kb     KnowledgeStore
	llm    llm.Completer
	cache  *cache.Cache
	model  string
	logger *zap.Logger
}

// NewCompanyFilterTool wires the company filter.
func NewCompanyFilterTool(kb KnowledgeStore, completer llm.Completer, c *cache.Cache, model string, logger *zap.Logger) *CompanyFilterTool {
	return &CompanyFilterTool{kb: kb, llm: completer, cache: c, model: model, logger: logger.Named("company_filter")}
}

// FindRelevantSymbols implements CompanyFilter.
func (t *CompanyFilterTool) FindRelevantSymbols(ctx context.Context, query string) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues("company_filter").Observe(time.Since(start).Seconds())
	}()

	universe, err := t.symbolUniverse(ctx)
	if err != nil {
		metrics.ToolCalls.WithLabelValues("company_filter", "error").Inc()
		return nil, fmt.Errorf("symbol universe: %w", err)
	}
	if len(universe) == 0 {
		metrics.ToolCalls.WithLabelValues("company_filter", "no_data").Inc()
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nUniverse:\n", query)
	for _, ticker := range sortedKeys(universe) {
		fmt.Fprintf(&sb, "%s: %s\n", ticker, universe[ticker])
	}

	raw, err := t.llm.Complete(ctx, llm.Request{
		Purpose:  "company_filter",
		Model:    t.model,
		System:   companyFilterSystemPrompt,
		User:     sb.String(),
		WantJSON: true,
	})
	if err != nil {
		t.logger.Warn("Company filter LLM call failed, using full universe",
			zap.Error(err))
		metrics.ToolCalls.WithLabelValues("company_filter", "degraded").Inc()
		return sortedKeys(universe), nil
	}

	var parsed struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripCodeFences(raw))), &parsed); err != nil {
		t.logger.Warn("Company filter response unparseable, using full universe",
			zap.Error(err))
		metrics.ToolCalls.WithLabelValues("company_filter", "degraded").Inc()
		return sortedKeys(universe), nil
	}

	// Intersect with the universe so hallucinated tickers never leak out.
	seen := make(map[string]bool, len(parsed.Symbols))
	var symbols []string
	for _, s := range parsed.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if _, ok := universe[s]; ok && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	metrics.ToolCalls.WithLabelValues("company_filter", "ok").Inc()
	return symbols, nil
}

func (t *CompanyFilterTool) symbolUniverse(ctx context.Context) (map[string]string, error) {
	const key = "symbols:universe"
	var cached map[string]string
	if t.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	universe, err := t.kb.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	t.cache.SetJSON(ctx, key, universe)
	return universe, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
