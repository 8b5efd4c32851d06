package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fintelhq/fintel/internal/models"
)

// BuildPlan produces the human-readable step list for the current iteration.
// The plan is an audit trail only: the loop always executes retrieval,
// research, synthesis, and review regardless of plan content.
func BuildPlan(tc *models.TaskContext) []string {
	var plan []string

	if len(tc.Entities) == 0 {
		plan = append(plan, "Identify relevant companies or tickers for the query")
	} else {
		plan = append(plan, fmt.Sprintf("Research %d known entities: %s",
			len(tc.Entities), strings.Join(tc.Entities, ", ")))
	}

	switch tc.Intent {
	case models.IntentRank, models.IntentCompare:
		plan = append(plan, "Fetch sentiment and performance data for each entity, then score and rank")
	case models.IntentSnapshot:
		plan = append(plan, "Fetch the latest data for each entity")
	case models.IntentEventReaction:
		plan = append(plan, "Fetch recent news and price reaction for each entity")
	default:
		plan = append(plan, "Fetch sentiment and performance data for each entity")
	}

	plan = append(plan,
		"Synthesize answer from gathered research",
		"Review for quality and coverage",
	)
	return plan
}
