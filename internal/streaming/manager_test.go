package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-1", 4)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Type: TypeStep, Step: "planning", Iteration: 1})
	m.Publish("run-2", Event{Type: TypeStep, Step: "planning"})

	ev := <-ch
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "planning", ev.Step)
	assert.Equal(t, uint64(0), ev.Seq)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Empty(t, ch, "events for other runs are not delivered")
}

func TestReplaySince(t *testing.T) {
	m := NewManager(16)
	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Type: TypeObservation})
	}

	replayed := m.ReplaySince("run-1", 2)
	require.Len(t, replayed, 2)
	assert.Equal(t, uint64(3), replayed[0].Seq)
	assert.Equal(t, uint64(4), replayed[1].Seq)

	assert.Nil(t, m.ReplaySince("unknown", 0))
}

func TestRingOverwritesOldest(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Type: TypeObservation})
	}

	replayed := m.ReplaySince("run-1", 0)
	require.Len(t, replayed, 3, "only the newest capacity events survive")
	assert.Equal(t, uint64(2), replayed[0].Seq)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-1", 1)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Type: TypeObservation, Message: "first"})
	m.Publish("run-1", Event{Type: TypeObservation, Message: "dropped"})

	ev := <-ch
	assert.Equal(t, "first", ev.Message)
	assert.Empty(t, ch)
}

func TestForgetDropsHistory(t *testing.T) {
	m := NewManager(16)
	m.Publish("run-1", Event{Type: TypeObservation})
	m.Forget("run-1")
	assert.Nil(t, m.ReplaySince("run-1", 0))
}

func TestFinishRunDropsHistoryImmediatelyWithoutRetention(t *testing.T) {
	m := NewManager(16)
	m.SetRetention(0)
	m.Publish("run-1", Event{Type: TypeCompleted})

	m.FinishRun("run-1")
	assert.Nil(t, m.ReplaySince("run-1", 0))
}

func TestFinishRunKeepsHistoryForRetentionWindow(t *testing.T) {
	m := NewManager(16)
	m.SetRetention(20 * time.Millisecond)
	m.Publish("run-1", Event{Type: TypeCompleted})

	m.FinishRun("run-1")
	require.Len(t, m.ReplaySince("run-1", 0), 1, "late reconnects can still replay the terminal event")

	assert.Eventually(t, func() bool {
		return m.ReplaySince("run-1", 0) == nil
	}, time.Second, 5*time.Millisecond)
}
