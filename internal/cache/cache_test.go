package cache

import (
	"testing"
	"time"
)

func TestSetGet_RoundTrips(t *testing.T) {
	c := New()
	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("Get = %v, %v; want 42, true", v, ok)
	}
}

func TestGet_MissingKey(t *testing.T) {
	c := New()
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unset key")
	}
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	c := New()
	c.Set("k", "v", -time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestInvalidate_RemovesKey(t *testing.T) {
	c := New()
	c.Set("k", 1, time.Minute)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected key removed after Invalidate")
	}
}

func TestCleanup_DropsOnlyExpired(t *testing.T) {
	c := New()
	c.Set("stale", 1, -time.Second)
	c.Set("fresh", 2, time.Minute)
	dropped := c.Cleanup()
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry should survive Cleanup")
	}
}

func TestClear_EmptiesCache(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after Clear", c.Len())
	}
}
