package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintelhq/fintel/internal/models"
)

func TestBuildPlanByIntent(t *testing.T) {
	tests := []struct {
		intent models.Intent
		want   string
	}{
		{models.IntentRank, "score and rank"},
		{models.IntentCompare, "score and rank"},
		{models.IntentSnapshot, "latest data"},
		{models.IntentEventReaction, "price reaction"},
		{models.IntentMixed, "sentiment and performance"},
		{models.IntentMacro, "sentiment and performance"},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			tc := &models.TaskContext{Intent: tt.intent, Entities: []string{"AAPL"}}
			plan := BuildPlan(tc)

			require.Len(t, plan, 4)
			assert.Contains(t, plan[1], tt.want)
			assert.Equal(t, "Synthesize answer from gathered research", plan[len(plan)-2])
			assert.Equal(t, "Review for quality and coverage", plan[len(plan)-1])
		})
	}
}

func TestBuildPlanWithoutEntities(t *testing.T) {
	plan := BuildPlan(&models.TaskContext{Intent: models.IntentMixed})
	assert.Contains(t, plan[0], "Identify relevant companies")
}

func TestReflectActions(t *testing.T) {
	tests := []struct {
		name    string
		missing []string
		want    Action
	}{
		{"missing entity wins", []string{"Entity MSFT not researched", "Confidence 0.50 below threshold 0.60"}, ActionRetryMissingEntities},
		{"broad coverage message counts as missing entities", []string{"Coverage 0.75 below 0.80: 3 of 12 entities not researched"}, ActionRetryMissingEntities},
		{"confidence only", []string{"Confidence 0.50 below threshold 0.60"}, ActionBroadenSearch},
		{"nothing actionable", []string{"Answer text too short"}, ActionNone},
		{"empty feedback", nil, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reflect(models.ReviewFeedback{OK: false, Missing: tt.missing})
			assert.Equal(t, tt.want, got.Action)
		})
	}
}

func TestReflectDetailsListMatchingMessages(t *testing.T) {
	got := Reflect(models.ReviewFeedback{OK: false, Missing: []string{
		"Entity MSFT not researched",
		"Entity TSLA not researched",
		"Answer text too short",
	}})

	require.Equal(t, ActionRetryMissingEntities, got.Action)
	assert.Equal(t, []string{"Entity MSFT not researched", "Entity TSLA not researched"}, got.Details)
}
