// Package agents holds the sub-agents the orchestration loop sequences:
// intent classification, knowledge retrieval, entity resolution, research
// fan-out, synthesis, and the deterministic review gate.
package agents

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/models"
)

const intentSystemPrompt = `You classify financial research questions.
Return ONLY valid JSON (no markdown fences):

{
  "intent": "<rank | compare | snapshot | event_reaction | fundamentals | macro | mixed>",
  "entities": ["<ticker or company identifiers mentioned, may be empty>"],
  "timeframe": "<timeframe hint if stated, else empty string>",
  "sector": "<sector hint if stated, else empty string>"
}
`

// Classification is the structured reading of a user query.
type Classification struct {
	Intent    models.Intent
	Entities  []string
	Timeframe string
	Sector    string
}

// IntentClassifier maps free-text queries to a structured intent with one
// LLM call. Classification is a best-effort hint: every failure falls back
// to a mixed intent with no entities, logged but never surfaced.
type IntentClassifier struct {
	llm    llm.Completer
	model  string
	logger *zap.Logger
}

// NewIntentClassifier wires the classifier.
func NewIntentClassifier(completer llm.Completer, model string, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{llm: completer, model: model, logger: logger.Named("intent")}
}

// Classify reads the query. It never fails; on any LLM or parse error it
// returns the mixed-intent fallback with the caller's default timeframe.
func (c *IntentClassifier) Classify(ctx context.Context, query, defaultTimeframe string) Classification {
	fallback := Classification{Intent: models.IntentMixed, Timeframe: defaultTimeframe}

	raw, err := c.llm.Complete(ctx, llm.Request{
		Purpose:  "intent",
		Model:    c.model,
		System:   intentSystemPrompt,
		User:     query,
		WantJSON: true,
	})
	if err != nil {
		c.logger.Warn("Intent classification failed, using mixed fallback", zap.Error(err))
		return fallback
	}

	var parsed struct {
		Intent    string   `json:"intent"`
		Entities  []string `json:"entities"`
		Timeframe string   `json:"timeframe"`
		Sector    string   `json:"sector"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripCodeFences(raw))), &parsed); err != nil {
		c.logger.Warn("Intent response unparseable, using mixed fallback", zap.Error(err))
		return fallback
	}

	out := Classification{
		Intent:    models.ParseIntent(parsed.Intent),
		Timeframe: parsed.Timeframe,
		Sector:    parsed.Sector,
	}
	if out.Timeframe == "" {
		out.Timeframe = defaultTimeframe
	}
	// Uppercase via the same normalization the task context enforces.
	scratch := &models.TaskContext{}
	for _, e := range parsed.Entities {
		scratch.AddEntity(e)
	}
	out.Entities = scratch.Entities
	return out
}
