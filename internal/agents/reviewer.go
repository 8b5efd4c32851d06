package agents

import (
	"fmt"
	"strings"

	"github.com/fintelhq/fintel/internal/metrics"
	"github.com/fintelhq/fintel/internal/models"
)

// DefaultQualityThreshold is the minimum answer confidence accepted by the
// reviewer when no threshold is configured.
const DefaultQualityThreshold = 0.6

// broadQueryEntityCount is the entity count above which coverage switches
// from all-entities-required to the relaxed ratio rule.
const broadQueryEntityCount = 10

// broadQueryCoverageRatio is the minimum researched fraction for broad
// queries.
const broadQueryCoverageRatio = 0.8

const maxNotedIssues = 5

// ReviewerAgent is the deterministic quality gate. It makes no external
// calls: given the same context and answer it always returns the same
// verdict, which is what makes the loop's stop condition testable.
type ReviewerAgent struct{}

// NewReviewerAgent returns the review gate.
func NewReviewerAgent() *ReviewerAgent { return &ReviewerAgent{} }

// Run checks entity coverage, score completeness, answer length, and the
// confidence threshold, in that order. threshold <= 0 uses
// DefaultQualityThreshold.
func (a *ReviewerAgent) Run(tc *models.TaskContext, answer *models.SynthesizedAnswer, threshold float64) models.ReviewFeedback {
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}

	var missing []string

	// 1. Entity coverage.
	researched := make(map[string]bool, len(answer.RawResearch))
	for _, cr := range answer.RawResearch {
		researched[cr.Ticker] = true
	}
	total := len(tc.Entities)
	if total > broadQueryEntityCount {
		notResearched := 0
		for _, e := range tc.Entities {
			if !researched[e] {
				notResearched++
			}
		}
		ratio := 1 - float64(notResearched)/float64(total)
		if ratio < broadQueryCoverageRatio {
			missing = append(missing, fmt.Sprintf(
				"Coverage %.2f below %.2f: %d of %d entities not researched",
				ratio, broadQueryCoverageRatio, notResearched, total))
			metrics.ReviewFailures.WithLabelValues("coverage").Inc()
		}
	} else {
		for _, e := range tc.Entities {
			if !researched[e] {
				missing = append(missing, fmt.Sprintf("Entity %s not researched", e))
				metrics.ReviewFailures.WithLabelValues("coverage").Inc()
			}
		}
	}

	// 2. Score completeness.
	for _, cr := range answer.RawResearch {
		if cr.Sentiment == nil || cr.Sentiment.Rating == nil {
			missing = append(missing, fmt.Sprintf("%s: missing sentiment rating", cr.Ticker))
			metrics.ReviewFailures.WithLabelValues("completeness").Inc()
		}
		if cr.Performance == nil || cr.Performance.PerformanceScore == nil {
			missing = append(missing, fmt.Sprintf("%s: missing performance score", cr.Ticker))
			metrics.ReviewFailures.WithLabelValues("completeness").Inc()
		}
	}

	// 3. Answer quality.
	if len(answer.Markdown) < 50 {
		missing = append(missing, "Answer text too short")
		metrics.ReviewFailures.WithLabelValues("length").Inc()
	}

	// 4. Confidence.
	if answer.Confidence < threshold {
		missing = append(missing, fmt.Sprintf(
			"Confidence %.2f below threshold %.2f", answer.Confidence, threshold))
		metrics.ReviewFailures.WithLabelValues("confidence").Inc()
	}

	feedback := models.ReviewFeedback{OK: len(missing) == 0, Missing: missing}
	if feedback.OK {
		feedback.Notes = "All checks passed."
	} else {
		noted := missing
		if len(noted) > maxNotedIssues {
			noted = noted[:maxNotedIssues]
		}
		feedback.Notes = fmt.Sprintf("%d issue(s) found: %s", len(missing), strings.Join(noted, "; "))
	}
	return feedback
}
