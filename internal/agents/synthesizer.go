package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/models"
)

const synthesizerSystemPrompt = `You are a financial research writer. Given a
user's question and structured per-company research (sentiment ratings,
performance scores, news), write the answer. Return ONLY valid JSON
(no markdown fences):

{
  "markdown": "<the full answer in markdown, directly addressing the question>",
  "confidence": <float 0.0-1.0, how well the research supports the answer>,
  "caveats": ["<limitations the reader should know, may be empty>"],
  "citations": ["<data points or news items the answer leans on, may be empty>"]
}

Base the answer strictly on the provided research. Lower the confidence when
data is missing or tools failed.
`

// SynthesizerAgent turns raw per-entity research into a single answer.
// Unlike every other agent, its failures are fatal to the run: without a
// synthesis step there is no partial answer worth returning.
type SynthesizerAgent struct {
	llm    llm.Completer
	model  string
	logger *zap.Logger
}

// NewSynthesizerAgent wires the synthesizer.
func NewSynthesizerAgent(completer llm.Completer, model string, logger *zap.Logger) *SynthesizerAgent {
	return &SynthesizerAgent{llm: completer, model: model, logger: logger.Named("synthesizer")}
}

// Run produces a SynthesizedAnswer. The returned answer always carries the
// input research unmodified in RawResearch so the reviewer can audit
// coverage against what was actually synthesized.
func (a *SynthesizerAgent) Run(ctx context.Context, tc *models.TaskContext, research []models.CompanyResearch) (*models.SynthesizedAnswer, error) {
	user, err := buildSynthesisInput(tc, research)
	if err != nil {
		return nil, fmt.Errorf("synthesis input: %w", err)
	}

	raw, err := a.llm.Complete(ctx, llm.Request{
		Purpose:  "synthesis",
		Model:    a.model,
		System:   synthesizerSystemPrompt,
		User:     user,
		WantJSON: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Markdown   string   `json:"markdown"`
		Confidence float64  `json:"confidence"`
		Caveats    []string `json:"caveats"`
		Citations  []string `json:"citations"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripCodeFences(raw))), &parsed); err != nil {
		return nil, fmt.Errorf("synthesis response unparseable: %w", err)
	}
	if strings.TrimSpace(parsed.Markdown) == "" {
		return nil, fmt.Errorf("synthesis produced an empty answer")
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.SynthesizedAnswer{
		Markdown:    parsed.Markdown,
		Confidence:  confidence,
		Caveats:     parsed.Caveats,
		Citations:   parsed.Citations,
		RawResearch: research,
	}, nil
}

func buildSynthesisInput(tc *models.TaskContext, research []models.CompanyResearch) (string, error) {
	blob, err := json.MarshalIndent(research, "", "  ")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", tc.UserQuery)
	fmt.Fprintf(&sb, "Intent: %s\n", tc.Intent)
	if tc.Timeframe != "" {
		fmt.Fprintf(&sb, "Timeframe: %s\n", tc.Timeframe)
	}
	if tc.Sector != "" {
		fmt.Fprintf(&sb, "Sector: %s\n", tc.Sector)
	}
	if len(tc.Uncertainties) > 0 {
		fmt.Fprintf(&sb, "Known data gaps: %s\n", strings.Join(tc.Uncertainties, "; "))
	}
	fmt.Fprintf(&sb, "\nResearch:\n%s\n", blob)
	return sb.String(), nil
}
