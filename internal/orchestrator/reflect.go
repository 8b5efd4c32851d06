package orchestrator

import (
	"strings"

	"github.com/fintelhq/fintel/internal/models"
)

// Action is the reflection verdict after a failed review.
type Action string

const (
	// ActionNone means nothing actionable was found in the feedback.
	ActionNone Action = "none"
	// ActionRetryMissingEntities flags entities the next iteration should
	// cover; the unconditional re-run of retrieval and research picks them
	// up automatically.
	ActionRetryMissingEntities Action = "retry_missing_entities"
	// ActionBroadenSearch is a log-only marker that confidence was the
	// blocker; it does not change the knowledge-base query shape.
	ActionBroadenSearch Action = "broaden_search"
)

// Adjustments is the reflection output.
type Adjustments struct {
	Action  Action
	Details []string
}

// Reflect inspects failed review feedback and decides how the next
// iteration should differ. Pure function: no side effects, no calls.
func Reflect(feedback models.ReviewFeedback) Adjustments {
	var notResearched []string
	confidenceIssue := false
	for _, msg := range feedback.Missing {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "not researched") {
			notResearched = append(notResearched, msg)
		} else if strings.Contains(lower, "confidence") {
			confidenceIssue = true
		}
	}

	if len(notResearched) > 0 {
		return Adjustments{Action: ActionRetryMissingEntities, Details: notResearched}
	}
	if confidenceIssue {
		return Adjustments{Action: ActionBroadenSearch}
	}
	return Adjustments{Action: ActionNone}
}
