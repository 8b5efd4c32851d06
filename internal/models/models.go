package models

import "strings"

// Intent classifies what the user is asking for.
type Intent string

const (
	IntentRank          Intent = "rank"
	IntentCompare       Intent = "compare"
	IntentSnapshot      Intent = "snapshot"
	IntentEventReaction Intent = "event_reaction"
	IntentFundamentals  Intent = "fundamentals"
	IntentMacro         Intent = "macro"
	IntentMixed         Intent = "mixed"
)

// ParseIntent maps a raw intent string to an Intent, falling back to
// IntentMixed for anything unrecognized.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentRank, IntentCompare, IntentSnapshot, IntentEventReaction,
		IntentFundamentals, IntentMacro, IntentMixed:
		return Intent(strings.ToLower(strings.TrimSpace(s)))
	default:
		return IntentMixed
	}
}

// TaskContext is the per-query state threaded through every orchestration
// step. It is created once per Orchestrator.Run call and owned exclusively
// by the orchestrator; sub-agents mutate it only for the duration of their
// own step.
type TaskContext struct {
	RunID     string `json:"run_id"`
	UserQuery string `json:"user_query"`

	Intent    Intent `json:"intent"`
	Timeframe string `json:"timeframe,omitempty"`
	Sector    string `json:"sector,omitempty"`

	// Entities is an insertion-ordered set of uppercase identifiers.
	// It grows monotonically within a run and never shrinks.
	Entities []string `json:"entities"`

	Iteration int      `json:"iteration"`
	Plan      []string `json:"plan,omitempty"`

	// Observations is an append-only audit log of step outcomes. It is
	// used for debugging and event streaming, never for control decisions.
	Observations []string `json:"observations"`

	// Uncertainties accumulates soft-failure notes that are surfaced to
	// the user as caveats.
	Uncertainties []string `json:"uncertainties"`
}

// NewTaskContext creates a fresh context for one orchestration run.
func NewTaskContext(runID, userQuery, timeframe string) *TaskContext {
	return &TaskContext{
		RunID:     runID,
		UserQuery: userQuery,
		Intent:    IntentMixed,
		Timeframe: timeframe,
	}
}

// AddEntity appends an uppercase entity if it is not already present,
// preserving insertion order. Returns true when the entity was added.
func (c *TaskContext) AddEntity(entity string) bool {
	e := strings.ToUpper(strings.TrimSpace(entity))
	if e == "" {
		return false
	}
	for _, existing := range c.Entities {
		if existing == e {
			return false
		}
	}
	c.Entities = append(c.Entities, e)
	return true
}

// Observe appends one entry to the audit log.
func (c *TaskContext) Observe(msg string) {
	c.Observations = append(c.Observations, msg)
}

// NoteUncertainty records a soft failure for later surfacing as a caveat.
func (c *TaskContext) NoteUncertainty(msg string) {
	c.Uncertainties = append(c.Uncertainties, msg)
}

// ToolError records a single tool failure for one entity. Errors are kept
// as plain strings so they serialize cleanly into logs and caveats.
type ToolError struct {
	Entity string `json:"entity"`
	Tool   string `json:"tool"`
	Error  string `json:"error"`
}

// SentimentReport is the sentiment tool's output for one ticker.
type SentimentReport struct {
	Rating     *int     `json:"rating"` // 1-10, nil when unavailable
	Label      string   `json:"label"`
	Rationale  string   `json:"rationale"`
	References []string `json:"references,omitempty"`
}

// PerformanceReport is the performance tool's output for one ticker.
type PerformanceReport struct {
	PerformanceScore *int   `json:"performance_score"` // 1-10, nil when unavailable
	Outlook          string `json:"outlook"`
	Justification    string `json:"justification"`
}

// MaxNewsSnippets bounds how many reference snippets are carried per entity.
const MaxNewsSnippets = 5

// CompanyResearch holds everything gathered for one entity during one
// iteration. Tool failures accumulate in Errors; they never drop the
// entity from the result set.
type CompanyResearch struct {
	Ticker       string             `json:"ticker"`
	Sentiment    *SentimentReport   `json:"sentiment,omitempty"`
	Performance  *PerformanceReport `json:"performance,omitempty"`
	NewsSnippets []string           `json:"news_snippets,omitempty"`
	Errors       []ToolError        `json:"errors,omitempty"`
}

// SynthesizedAnswer is the final product of one iteration; the last one
// produced is returned to the caller.
type SynthesizedAnswer struct {
	Markdown   string   `json:"markdown"`
	Confidence float64  `json:"confidence"` // 0.0-1.0
	Caveats    []string `json:"caveats,omitempty"`
	Citations  []string `json:"citations,omitempty"`

	// RawResearch is exactly the research list handed to the synthesizer,
	// kept so the reviewer can audit coverage against what was actually
	// synthesized.
	RawResearch []CompanyResearch `json:"raw_research,omitempty"`
}

// ReviewFeedback is the reviewer's verdict for one iteration.
type ReviewFeedback struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
	Notes   string   `json:"notes"`
}

// SearchHit is one knowledge-base result.
type SearchHit struct {
	Text          string  `json:"text,omitempty"`
	Title         string  `json:"title,omitempty"`
	Ticker        string  `json:"ticker,omitempty"`
	Company       string  `json:"company,omitempty"`
	DatasetSource string  `json:"dataset_source,omitempty"`
	Date          string  `json:"date,omitempty"`
	Score         float64 `json:"score,omitempty"`
}
