package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Intent
	}{
		{"rank", "rank", IntentRank},
		{"compare uppercase", "COMPARE", IntentCompare},
		{"snapshot padded", "  snapshot ", IntentSnapshot},
		{"event reaction", "event_reaction", IntentEventReaction},
		{"unknown falls back to mixed", "prophecy", IntentMixed},
		{"empty falls back to mixed", "", IntentMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseIntent(tt.input))
		})
	}
}

func TestTaskContextAddEntity(t *testing.T) {
	ctx := NewTaskContext("run-1", "top tech stocks", "")

	assert.True(t, ctx.AddEntity("aapl"))
	assert.True(t, ctx.AddEntity("MSFT"))
	assert.False(t, ctx.AddEntity("AAPL"), "duplicate must not be added")
	assert.False(t, ctx.AddEntity("  "), "blank must not be added")

	// Uppercased, deduped, insertion order preserved.
	assert.Equal(t, []string{"AAPL", "MSFT"}, ctx.Entities)
}

func TestTaskContextAppendOnlyLogs(t *testing.T) {
	ctx := NewTaskContext("run-1", "q", "")
	ctx.Observe("first")
	ctx.Observe("second")
	ctx.NoteUncertainty("kb lookup failed")

	assert.Equal(t, []string{"first", "second"}, ctx.Observations)
	assert.Equal(t, []string{"kb lookup failed"}, ctx.Uncertainties)
	assert.Equal(t, IntentMixed, ctx.Intent, "intent defaults to mixed")
}
