package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := NewRistrettoCache[string](128)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("greeting", "hello", time.Minute))

	got, err := c.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCacheDelete(t *testing.T) {
	c, err := NewRistrettoCache[int](128)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("n", 42, time.Minute))
	c.Delete("n")

	_, err = c.Get("n")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCacheTTLExpiry(t *testing.T) {
	c, err := NewRistrettoCache[string](128)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("shortlived", "value", 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	_, err = c.Get("shortlived")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCacheFlush(t *testing.T) {
	c, err := NewRistrettoCache[string](128)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "1", time.Minute))
	require.NoError(t, c.Set("b", "2", time.Minute))
	c.Flush()

	_, err = c.Get("a")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = c.Get("b")
	assert.True(t, errors.Is(err, ErrNotFound))
}
