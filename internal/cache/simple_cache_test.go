package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimpleCache_SetGet(t *testing.T) {
	c := NewSimpleCache[string, int]()
	c.Set("a", 1, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestSimpleCache_TTLExpiry(t *testing.T) {
	c := NewSimpleCache[string, string]()
	c.Set("k", "v", time.Minute)

	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, ok := c.Get("k")
	require.False(t, ok)
	require.False(t, c.Has("k"))
	require.Equal(t, 0, c.Len())
}

func TestSimpleCache_DeleteAndClear(t *testing.T) {
	c := NewSimpleCache[string, int]()
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	require.False(t, c.Has("a"))
	require.Equal(t, 1, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestSimpleCache_PurgeExpired(t *testing.T) {
	c := NewSimpleCache[string, int]()
	c.Set("keep", 1, 0)
	c.Set("drop", 2, time.Minute)

	orig := now
	defer func() { now = orig }()
	now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	c.PurgeExpired()
	require.True(t, c.Has("keep"))
	require.False(t, c.Has("drop"))
}
