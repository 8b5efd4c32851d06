// Package orchestrator implements the plan -> act -> observe -> reflect
// control loop that sequences the research sub-agents, decides when to stop
// or retry, and composes the final answer.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/agents"
	"github.com/fintelhq/fintel/internal/config"
	"github.com/fintelhq/fintel/internal/metrics"
	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/streaming"
	"github.com/fintelhq/fintel/internal/tracing"
)

// Collaborator interfaces, satisfied by the agents package in production
// and by fakes in tests.
type (
	// Classifier reads the query's intent. Never fails.
	Classifier interface {
		Classify(ctx context.Context, query, defaultTimeframe string) agents.Classification
	}

	// Retriever gathers entity hints and context from the knowledge base.
	Retriever interface {
		Run(ctx context.Context, tc *models.TaskContext) agents.RetrievalResult
	}

	// Resolver fills the entity list from the company filter when empty.
	Resolver interface {
		Resolve(ctx context.Context, tc *models.TaskContext)
	}

	// Researcher fans out per-entity tool calls.
	Researcher interface {
		Run(ctx context.Context, tc *models.TaskContext, entities []string) []models.CompanyResearch
	}

	// Synthesizer writes the answer. Its errors are fatal to the run.
	Synthesizer interface {
		Run(ctx context.Context, tc *models.TaskContext, research []models.CompanyResearch) (*models.SynthesizedAnswer, error)
	}

	// Reviewer is the deterministic quality gate.
	Reviewer interface {
		Run(tc *models.TaskContext, answer *models.SynthesizedAnswer, threshold float64) models.ReviewFeedback
	}
)

// Deps bundles the collaborators the loop sequences. Events may be nil when
// no streaming surface is attached.
type Deps struct {
	Classifier  Classifier
	Retriever   Retriever
	Resolver    Resolver
	Researcher  Researcher
	Synthesizer Synthesizer
	Reviewer    Reviewer
	Events      *streaming.Manager
}

// Result is what one run produces: the answer plus the task context that
// backs it (observations, uncertainties, final entity list).
type Result struct {
	Answer  *models.SynthesizedAnswer
	Context *models.TaskContext
}

const exhaustedCaveat = "Maximum analysis iterations reached; some data may be incomplete."

const noEntitiesMarkdown = "I could not identify any companies or tickers to research for this query. " +
	"Please restate the question with explicit ticker symbols (for example: AAPL, MSFT)."

// Orchestrator owns one TaskContext per Run call; concurrent Run calls share
// nothing but the injected collaborators.
type Orchestrator struct {
	deps     Deps
	tunables func() config.Tunables
	logger   *zap.Logger
}

// New builds the orchestrator. tunables is read at the start of every run so
// hot-reloaded limits apply to new runs; nil falls back to the defaults.
func New(deps Deps, tunables func() config.Tunables, logger *zap.Logger) *Orchestrator {
	if tunables == nil {
		tunables = func() config.Tunables {
			return config.Tunables{MaxIterations: 2, QualityThreshold: agents.DefaultQualityThreshold}
		}
	}
	return &Orchestrator{deps: deps, tunables: tunables, logger: logger.Named("orchestrator")}
}

// Run executes the full control loop for one query.
//
// Soft failures (tool errors, retrieval errors, classification errors) are
// absorbed into the context's uncertainty log and surfaced as caveats. Only
// two outcomes break that rule: the no-entities hard stop returns a
// confidence-zero answer, and a synthesizer failure returns an error.
func (o *Orchestrator) Run(ctx context.Context, query, defaultTimeframe string) (*Result, error) {
	runID := uuid.NewString()
	tc := models.NewTaskContext(runID, query, defaultTimeframe)
	logger := o.logger.With(zap.String("run_id", runID))

	metrics.RunsStarted.Inc()
	start := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
		metrics.RunIterations.Observe(float64(tc.Iteration))
	}()

	tun := o.tunables()
	logger.Info("Run started",
		zap.String("query", query),
		zap.Int("max_iterations", tun.MaxIterations),
		zap.Float64("quality_threshold", tun.QualityThreshold),
	)

	// Uncertainties accumulate on the context as agents work; each new one
	// is streamed exactly once, by index.
	uncertaintiesPublished := 0
	flushUncertainties := func() {
		for ; uncertaintiesPublished < len(tc.Uncertainties); uncertaintiesPublished++ {
			o.publish(tc, streaming.Event{Type: streaming.TypeUncertainty,
				Message: tc.Uncertainties[uncertaintiesPublished]})
		}
	}

	o.step(tc, "intent_parse")
	spanCtx, span := tracing.StartStepSpan(ctx, "intent_parse", runID, 0)
	cls := o.deps.Classifier.Classify(spanCtx, query, defaultTimeframe)
	span.End()

	tc.Intent = cls.Intent
	tc.Timeframe = cls.Timeframe
	tc.Sector = cls.Sector
	for _, e := range cls.Entities {
		tc.AddEntity(e)
	}
	o.observe(tc, fmt.Sprintf("Intent: %s; entities: [%s]; timeframe: %q; sector: %q",
		tc.Intent, strings.Join(tc.Entities, ", "), tc.Timeframe, tc.Sector))

	answer := &models.SynthesizedAnswer{}

	for iteration := 1; iteration <= tun.MaxIterations; iteration++ {
		tc.Iteration = iteration
		logger.Info("Iteration started", zap.Int("iteration", iteration))

		o.step(tc, "planning")
		tc.Plan = BuildPlan(tc)
		o.observe(tc, "Plan: "+strings.Join(tc.Plan, " | "))

		o.step(tc, "knowledge_retrieval")
		spanCtx, span = tracing.StartStepSpan(ctx, "knowledge_retrieval", runID, iteration)
		retrieval := o.deps.Retriever.Run(spanCtx, tc)
		span.End()
		added := 0
		for _, e := range retrieval.Entities {
			if tc.AddEntity(e) {
				added++
			}
		}
		if len(retrieval.Aliases) > 0 {
			pairs := make([]string, 0, len(retrieval.Aliases))
			for company, ticker := range retrieval.Aliases {
				pairs = append(pairs, company+"="+ticker)
			}
			o.observe(tc, fmt.Sprintf("Knowledge aliases: %s", strings.Join(pairs, ", ")))
		}
		o.observe(tc, fmt.Sprintf("Knowledge retrieval added %d entities (%d total)", added, len(tc.Entities)))

		if len(tc.Entities) == 0 {
			o.step(tc, "company_retrieval")
			spanCtx, span = tracing.StartStepSpan(ctx, "company_retrieval", runID, iteration)
			o.deps.Resolver.Resolve(spanCtx, tc)
			span.End()
		}
		if len(tc.Entities) == 0 {
			return o.hardStopNoEntities(tc, logger), nil
		}

		o.step(tc, "research_fanout")
		spanCtx, span = tracing.StartStepSpan(ctx, "research_fanout", runID, iteration)
		research := o.deps.Researcher.Run(spanCtx, tc, tc.Entities)
		span.End()
		o.observe(tc, fmt.Sprintf("Researched %d entities", len(research)))
		flushUncertainties()

		o.step(tc, "synthesizer")
		spanCtx, span = tracing.StartStepSpan(ctx, "synthesizer", runID, iteration)
		synthesized, err := o.deps.Synthesizer.Run(spanCtx, tc, research)
		span.End()
		if err != nil {
			metrics.RunsCompleted.WithLabelValues("synthesis_error").Inc()
			o.publish(tc, streaming.Event{Type: streaming.TypeFailed, Message: err.Error()})
			o.finishRun(tc)
			logger.Error("Synthesis failed", zap.Error(err))
			return nil, fmt.Errorf("synthesis: %w", err)
		}
		answer = synthesized

		o.step(tc, "reviewer")
		_, span = tracing.StartStepSpan(ctx, "reviewer", runID, iteration)
		feedback := o.deps.Reviewer.Run(tc, answer, tun.QualityThreshold)
		span.End()
		o.observe(tc, fmt.Sprintf("Review ok=%t: %s", feedback.OK, feedback.Notes))
		metrics.AnswerConfidence.Observe(answer.Confidence)

		if feedback.OK {
			metrics.RunsCompleted.WithLabelValues("ok").Inc()
			break
		}

		if iteration < tun.MaxIterations {
			o.step(tc, "reflection")
			adj := Reflect(feedback)
			switch adj.Action {
			case ActionRetryMissingEntities:
				o.observe(tc, fmt.Sprintf("Reflection: retrying missing entities (%s)",
					strings.Join(adj.Details, "; ")))
			case ActionBroadenSearch:
				o.observe(tc, "Reflection: broadening search for more supporting data")
			default:
				o.observe(tc, "Reflection: no actionable adjustment")
			}
			continue
		}

		answer.Caveats = append(answer.Caveats, exhaustedCaveat)
		metrics.RunsCompleted.WithLabelValues("exhausted").Inc()
		logger.Warn("Iteration budget exhausted", zap.Int("iterations", tun.MaxIterations))
	}

	mergeCaveats(answer, tc.Uncertainties)
	flushUncertainties()
	o.publish(tc, streaming.Event{Type: streaming.TypeCompleted,
		Message: fmt.Sprintf("confidence %.2f", answer.Confidence)})
	o.finishRun(tc)
	logger.Info("Run completed",
		zap.Float64("confidence", answer.Confidence),
		zap.Int("iterations", tc.Iteration),
		zap.Int("entities", len(tc.Entities)),
	)
	return &Result{Answer: answer, Context: tc}, nil
}

// hardStopNoEntities is the single early return inside the loop body: with
// no work list there is nothing to research, synthesize, or review.
func (o *Orchestrator) hardStopNoEntities(tc *models.TaskContext, logger *zap.Logger) *Result {
	tc.NoteUncertainty("No entities could be identified from the query.")
	answer := &models.SynthesizedAnswer{
		Markdown:   noEntitiesMarkdown,
		Confidence: 0.0,
		Caveats:    []string{"No entities could be identified from the query."},
	}
	metrics.RunsCompleted.WithLabelValues("no_entities").Inc()
	o.publish(tc, streaming.Event{Type: streaming.TypeUncertainty,
		Message: "No entities could be identified from the query."})
	o.publish(tc, streaming.Event{Type: streaming.TypeCompleted, Message: "no entities identified"})
	o.finishRun(tc)
	logger.Warn("Run stopped: no entities identified")
	return &Result{Answer: answer, Context: tc}
}

// mergeCaveats surfaces accumulated uncertainties as user-facing caveats,
// skipping duplicates the synthesizer already produced.
func mergeCaveats(answer *models.SynthesizedAnswer, uncertainties []string) {
	present := make(map[string]bool, len(answer.Caveats))
	for _, c := range answer.Caveats {
		present[c] = true
	}
	for _, u := range uncertainties {
		if !present[u] {
			present[u] = true
			answer.Caveats = append(answer.Caveats, u)
		}
	}
}

func (o *Orchestrator) step(tc *models.TaskContext, step string) {
	o.publish(tc, streaming.Event{Type: streaming.TypeStep, Step: step})
}

func (o *Orchestrator) observe(tc *models.TaskContext, msg string) {
	tc.Observe(msg)
	o.publish(tc, streaming.Event{Type: streaming.TypeObservation, Message: msg})
}

func (o *Orchestrator) publish(tc *models.TaskContext, evt streaming.Event) {
	if o.deps.Events == nil {
		return
	}
	evt.Iteration = tc.Iteration
	o.deps.Events.Publish(tc.RunID, evt)
}

// finishRun schedules the run's replay buffer for release once the terminal
// event has been published.
func (o *Orchestrator) finishRun(tc *models.TaskContext) {
	if o.deps.Events == nil {
		return
	}
	o.deps.Events.FinishRun(tc.RunID)
}
