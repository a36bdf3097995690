// ABOUTME: Tests for the TTL dedupe cache
// ABOUTME: Covers hits, misses, expiry, capacity eviction, and close

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetPut(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	_, ok := c.Get("msg-1")
	assert.False(t, ok, "unseen key misses")

	c.Put("msg-1", "reply-1")
	v, ok := c.Get("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "reply-1", v)

	_, ok = c.Get("msg-2")
	assert.False(t, ok, "distinct keys are independent")
}

func TestGet_Expiry(t *testing.T) {
	c := New(20*time.Millisecond, 100)
	defer c.Close()

	c.Put("msg-1", "reply")
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("msg-1")
	assert.False(t, ok, "expired keys are forgotten")
}

func TestPut_Overwrite(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	c.Put("msg-1", "old")
	c.Put("msg-1", "new")
	v, _ := c.Get("msg-1")
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestPut_CapacityEviction(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Put("a", 1)
	time.Sleep(time.Millisecond)
	c.Put("b", 2)
	time.Sleep(time.Millisecond)
	c.Put("c", 3) // evicts "a", the oldest

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "evicted key is forgotten")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestClose_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
