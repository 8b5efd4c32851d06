package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/fintelhq/fintel/internal/models"
)

func TestClassifyParsesFencedJSON(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n" +
		`{"intent": "RANK", "entities": ["aapl", "msft", "aapl"], "timeframe": "Q3 2024", "sector": "tech"}` +
		"\n```"}
	c := NewIntentClassifier(completer, "m", zaptest.NewLogger(t))

	got := c.Classify(context.Background(), "rank apple vs microsoft", "")

	assert.Equal(t, models.IntentRank, got.Intent)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Entities, "uppercase, deduped, order kept")
	assert.Equal(t, "Q3 2024", got.Timeframe)
	assert.Equal(t, "tech", got.Sector)
	assert.True(t, completer.lastReq.WantJSON)
}

func TestClassifyFallsBackOnLLMError(t *testing.T) {
	c := NewIntentClassifier(&fakeCompleter{err: errors.New("boom")}, "m", zaptest.NewLogger(t))

	got := c.Classify(context.Background(), "anything", "last quarter")

	assert.Equal(t, models.IntentMixed, got.Intent)
	assert.Empty(t, got.Entities)
	assert.Equal(t, "last quarter", got.Timeframe, "caller default survives the fallback")
}

func TestClassifyFallsBackOnBadJSON(t *testing.T) {
	c := NewIntentClassifier(&fakeCompleter{response: "I think the intent is rank"}, "m", zaptest.NewLogger(t))

	got := c.Classify(context.Background(), "anything", "")

	assert.Equal(t, models.IntentMixed, got.Intent)
	assert.Empty(t, got.Entities)
}

func TestClassifyUnknownIntentBecomesMixed(t *testing.T) {
	c := NewIntentClassifier(&fakeCompleter{response: `{"intent": "prophecy", "entities": []}`}, "m", zaptest.NewLogger(t))

	got := c.Classify(context.Background(), "anything", "")
	assert.Equal(t, models.IntentMixed, got.Intent)
}
