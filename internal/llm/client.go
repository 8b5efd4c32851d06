package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/metrics"
)

// Request is one completion call.
type Request struct {
	Purpose  string // metric label: intent, synthesis, sentiment, performance, company_filter
	Model    string
	System   string
	User     string
	WantJSON bool
}

// Completer is the completion interface consumed by agents and tools.
// Production code uses Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL      string
	APIKey       string
	PlannerModel string
	WorkerModel  string
	// Timeout bounds each completion call; a hung upstream fails the call
	// instead of stalling the whole run. <= 0 disables the per-call bound.
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	api    openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a client for cfg.BaseURL.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:    openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger.Named("llm"),
	}
}

// PlannerModel returns the configured planner model name.
func (c *Client) PlannerModel() string { return c.cfg.PlannerModel }

// WorkerModel returns the configured worker model name.
func (c *Client) WorkerModel() string { return c.cfg.WorkerModel }

// Complete issues one chat completion and returns the assistant text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.WorkerModel
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(0),
	}
	if req.WantJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(req.Purpose, "error").Inc()
		c.logger.Warn("Completion failed",
			zap.String("purpose", req.Purpose),
			zap.String("model", model),
			zap.Error(err),
		)
		return "", fmt.Errorf("llm completion (%s): %w", req.Purpose, err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMCalls.WithLabelValues(req.Purpose, "error").Inc()
		return "", fmt.Errorf("llm completion (%s): empty choices", req.Purpose)
	}

	metrics.LLMCalls.WithLabelValues(req.Purpose, "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}
