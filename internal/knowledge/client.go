package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/circuitbreaker"
	"github.com/fintelhq/fintel/internal/metrics"
	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/tracing"
)

// Config controls the Qdrant-backed knowledge base client.
type Config struct {
	Host       string
	Port       int
	Collection string
	TopK       int
	Timeout    time.Duration
	// Circuit breaker tuning
	BreakerFailureThreshold uint32
	BreakerResetTimeout     time.Duration
}

// Client is a minimal Qdrant HTTP client over the finance-news collection.
// All calls degrade by returning an error the caller records as an
// uncertainty; nothing here aborts an orchestration run.
type Client struct {
	cfg    Config
	base   string
	httpw  *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// NewClient builds a client with breaker protection.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.TopK == 0 {
		cfg.TopK = 8
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger = logger.Named("knowledge")

	bcfg := circuitbreaker.DefaultConfig()
	if cfg.BreakerFailureThreshold > 0 {
		bcfg.FailureThreshold = cfg.BreakerFailureThreshold
	}
	if cfg.BreakerResetTimeout > 0 {
		bcfg.Timeout = cfg.BreakerResetTimeout
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &Client{
		cfg:    cfg,
		base:   fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpw:  circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", bcfg, logger),
		logger: logger,
	}
}

// scroll payloads (Qdrant /points/scroll, simplified)
type scrollRequest struct {
	Filter      map[string]interface{} `json:"filter,omitempty"`
	Limit       int                    `json:"limit"`
	WithPayload interface{}            `json:"with_payload"`
	Offset      interface{}            `json:"offset,omitempty"`
}

type scrollPoint struct {
	ID      interface{}            `json:"id"`
	Payload map[string]interface{} `json:"payload"`
}

type scrollResponse struct {
	Result struct {
		Points         []scrollPoint `json:"points"`
		NextPageOffset interface{}   `json:"next_page_offset"`
	} `json:"result"`
	Status string `json:"status"`
}

func (c *Client) scroll(ctx context.Context, req scrollRequest) (*scrollResponse, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.base, c.cfg.Collection)

	ctx, span := tracing.StartSpan(ctx, "knowledge.scroll")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal scroll request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create scroll request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)

	resp, err := c.httpw.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("knowledge base scroll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("knowledge base scroll: HTTP %d", resp.StatusCode)
	}

	var out scrollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode scroll response: %w", err)
	}
	return &out, nil
}

// hitFromPayload maps a Qdrant payload onto a SearchHit.
func hitFromPayload(p map[string]interface{}) models.SearchHit {
	str := func(key string) string {
		if v, ok := p[key].(string); ok {
			return v
		}
		return ""
	}
	return models.SearchHit{
		Text:          str("text"),
		Title:         str("title"),
		Ticker:        str("ticker"),
		Company:       str("company"),
		DatasetSource: str("dataset_source"),
		Date:          str("date"),
	}
}

// Search runs a full-text match over the collection's text field and
// returns up to limit hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	req := scrollRequest{
		Filter: map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "text", "match": map[string]interface{}{"text": query}},
			},
		},
		Limit:       limit,
		WithPayload: true,
	}
	resp, err := c.scroll(ctx, req)
	if err != nil {
		metrics.KnowledgeSearches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.KnowledgeSearches.WithLabelValues("ok").Inc()

	hits := make([]models.SearchHit, 0, len(resp.Result.Points))
	for _, pt := range resp.Result.Points {
		hits = append(hits, hitFromPayload(pt.Payload))
	}
	return hits, nil
}

// FetchByTicker returns records for one ticker, optionally restricted to a
// dataset source (stock_market, earnings, news).
func (c *Client) FetchByTicker(ctx context.Context, ticker, datasetSource string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	must := []map[string]interface{}{
		{"key": "ticker", "match": map[string]interface{}{"value": ticker}},
	}
	if datasetSource != "" {
		must = append(must, map[string]interface{}{
			"key": "dataset_source", "match": map[string]interface{}{"value": datasetSource},
		})
	}
	resp, err := c.scroll(ctx, scrollRequest{
		Filter:      map[string]interface{}{"must": must},
		Limit:       limit,
		WithPayload: true,
	})
	if err != nil {
		metrics.KnowledgeSearches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.KnowledgeSearches.WithLabelValues("ok").Inc()

	hits := make([]models.SearchHit, 0, len(resp.Result.Points))
	for _, pt := range resp.Result.Points {
		hits = append(hits, hitFromPayload(pt.Payload))
	}
	return hits, nil
}

// ListSymbols pages through the collection and returns the ticker→company
// universe. This backs the company-filter tool.
func (c *Client) ListSymbols(ctx context.Context) (map[string]string, error) {
	symbols := make(map[string]string)
	var offset interface{}

	for page := 0; page < 100; page++ { // hard page cap against runaway collections
		resp, err := c.scroll(ctx, scrollRequest{
			Limit:       1000,
			WithPayload: []string{"ticker", "company"},
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		for _, pt := range resp.Result.Points {
			ticker, _ := pt.Payload["ticker"].(string)
			if ticker == "" {
				continue
			}
			if _, seen := symbols[ticker]; !seen {
				company, _ := pt.Payload["company"].(string)
				symbols[ticker] = company
			}
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	c.logger.Debug("Symbol universe loaded", zap.Int("symbols", len(symbols)))
	return symbols, nil
}
