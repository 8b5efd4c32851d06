package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type report struct {
	Rating int    `json:"rating"`
	Label  string `json:"label"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(Config{Enabled: true, Addr: mr.Addr(), TTL: time.Minute}, zaptest.NewLogger(t))
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var out report
	assert.False(t, c.GetJSON(ctx, "sentiment:AAPL", &out), "cold cache must miss")

	c.SetJSON(ctx, "sentiment:AAPL", report{Rating: 8, Label: "Positive"})

	require.True(t, c.GetJSON(ctx, "sentiment:AAPL", &out))
	assert.Equal(t, report{Rating: 8, Label: "Positive"}, out)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(Config{Enabled: true, Addr: mr.Addr(), TTL: time.Minute}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, mr.Set("sentiment:AAPL", "{not json"))

	var out report
	assert.False(t, c.GetJSON(context.Background(), "sentiment:AAPL", &out))
}

func TestDisabledCacheIsNilSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var out report
	assert.False(t, c.GetJSON(ctx, "k", &out))
	c.SetJSON(ctx, "k", report{Rating: 1})
	assert.NoError(t, c.Close())

	assert.Nil(t, New(Config{Enabled: false}, zaptest.NewLogger(t)))
}
