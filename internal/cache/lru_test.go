package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a is now most recently used
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("short", "x")
	c.SetWithTTL("long", "y", time.Hour)

	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Error("short should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long should still be cached")
	}

	clock.Advance(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_SetIfAbsent(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	if !c.SetIfAbsent("k", "first") {
		t.Fatal("first SetIfAbsent should store")
	}
	if c.SetIfAbsent("k", "second") {
		t.Error("second SetIfAbsent should not overwrite")
	}
	if v, _ := c.Get("k"); v != "first" {
		t.Errorf("Get(k) = %q, want first", v)
	}

	clock.Advance(2 * time.Minute)
	if !c.SetIfAbsent("k", "third") {
		t.Error("SetIfAbsent should store over an expired entry")
	}
}

func TestLRUCache_Replace(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	if c.Replace("k", "ghost", time.Minute) {
		t.Fatal("Replace should not create a missing key")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("Replace stored a missing key")
	}

	c.Set("k", "old")
	if !c.Replace("k", "new", time.Hour) {
		t.Fatal("Replace should overwrite a live key")
	}
	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Get(k) = %q, want new", v)
	}

	// the replaced value carries its own expiry
	clock.Advance(30 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("replaced key should live for its new ttl")
	}

	c.Set("short", "x")
	clock.Advance(2 * time.Minute)
	if c.Replace("short", "y", time.Hour) {
		t.Error("Replace should not revive an expired key")
	}

	c.Delete("k")
	if c.Replace("k", "again", time.Hour) {
		t.Error("Replace should not revive a deleted key")
	}
}

func TestManager_CleanNowAndStop(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.Advance(time.Hour)

	m := NewManager(nil)
	m.Register("test", c)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("CleanNow() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}
