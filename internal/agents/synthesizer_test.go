package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fintelhq/fintel/internal/models"
)

func TestSynthesizerPreservesRawResearch(t *testing.T) {
	research := completeResearch("AAPL", "MSFT")
	completer := &fakeCompleter{response: `{
		"markdown": "Apple and Microsoft both delivered strong quarters with positive sentiment.",
		"confidence": 0.85,
		"caveats": ["Data limited to the knowledge base"],
		"citations": ["AAPL Q3 earnings"]
	}`}
	a := NewSynthesizerAgent(completer, "m", zaptest.NewLogger(t))
	tc := models.NewTaskContext("run-1", "compare AAPL and MSFT", "")

	answer, err := a.Run(context.Background(), tc, research)
	require.NoError(t, err)

	assert.Equal(t, research, answer.RawResearch, "reviewer must audit exactly what was synthesized")
	assert.Equal(t, 0.85, answer.Confidence)
	assert.Equal(t, []string{"Data limited to the knowledge base"}, answer.Caveats)
	assert.Contains(t, completer.lastReq.User, "compare AAPL and MSFT")
}

func TestSynthesizerClampsConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"above one", `{"markdown": "` + strings.Repeat("x", 60) + `", "confidence": 1.7}`, 1},
		{"below zero", `{"markdown": "` + strings.Repeat("x", 60) + `", "confidence": -0.2}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSynthesizerAgent(&fakeCompleter{response: tt.raw}, "m", zaptest.NewLogger(t))
			answer, err := a.Run(context.Background(), models.NewTaskContext("r", "q", ""), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer.Confidence)
		})
	}
}

func TestSynthesizerErrorsPropagate(t *testing.T) {
	a := NewSynthesizerAgent(&fakeCompleter{err: errors.New("model overloaded")}, "m", zaptest.NewLogger(t))

	_, err := a.Run(context.Background(), models.NewTaskContext("r", "q", ""), nil)
	assert.Error(t, err, "synthesis failure is fatal, never swallowed")
}

func TestSynthesizerRejectsEmptyMarkdown(t *testing.T) {
	a := NewSynthesizerAgent(&fakeCompleter{response: `{"markdown": "  ", "confidence": 0.9}`}, "m", zaptest.NewLogger(t))

	_, err := a.Run(context.Background(), models.NewTaskContext("r", "q", ""), nil)
	assert.Error(t, err)
}
