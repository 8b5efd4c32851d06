package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fintel_runs_started_total",
			Help: "Total number of orchestration runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_runs_completed_total",
			Help: "Total number of orchestration runs completed",
		},
		[]string{"status"}, // ok, no_entities, exhausted, synthesis_error
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fintel_run_duration_seconds",
			Help:    "Orchestration run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RunIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fintel_run_iterations",
			Help:    "Number of loop iterations per run",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	AnswerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fintel_answer_confidence",
			Help:    "Confidence of returned answers",
			Buckets: []float64{0, 0.2, 0.4, 0.6, 0.8, 0.9, 1.0},
		},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_tool_calls_total",
			Help: "Total number of research tool invocations",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fintel_tool_call_duration_seconds",
			Help:    "Research tool call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tool"},
	)

	// LLM metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_llm_calls_total",
			Help: "Total number of LLM completion calls",
		},
		[]string{"purpose", "status"},
	)

	// Knowledge-base metrics
	KnowledgeSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_knowledge_searches_total",
			Help: "Total number of knowledge-base searches",
		},
		[]string{"status"},
	)

	// Review metrics
	ReviewFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_review_failures_total",
			Help: "Review check failures by check kind",
		},
		[]string{"check"}, // coverage, completeness, length, confidence
	)

	// Cache metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintel_cache_requests_total",
			Help: "Research cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)
)
