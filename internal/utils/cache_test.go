package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[int](10, time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string](10, time.Millisecond)

	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Eviction(t *testing.T) {
	c := NewTTLCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestTTLCache_RemoveWhere(t *testing.T) {
	c := NewTTLCache[uint](10, time.Minute)
	c.Set("t1", 1)
	c.Set("t2", 2)
	c.Set("t3", 1)

	removed := c.RemoveWhere(func(_ string, userID uint) bool { return userID == 1 })

	assert.Equal(t, 2, removed)
	_, ok := c.Get("t2")
	assert.True(t, ok)
	_, ok = c.Get("t1")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestNewCache(t *testing.T) {
	c := NewCache(time.Minute)
	c.SetDefault("k", 1)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
