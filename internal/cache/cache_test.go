package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, OutcomeKey("abc"), []byte("v1"), time.Minute))
	got, err := c.Get(ctx, OutcomeKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete(ctx, OutcomeKey("abc")))
	_, err = c.Get(ctx, OutcomeKey("abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	type payload struct {
		Valid  bool   `json:"valid"`
		Digest string `json:"digest"`
	}
	require.NoError(t, SetJSON(ctx, c, "k", payload{Valid: true, Digest: "d"}, time.Minute))

	var got payload
	require.NoError(t, GetJSON(ctx, c, "k", &got))
	assert.Equal(t, payload{Valid: true, Digest: "d"}, got)

	require.NoError(t, c.Clear(ctx))
	assert.ErrorIs(t, GetJSON(ctx, c, "k", &got), ErrNotFound)
}
