package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/readpath-cache/internal/testutil"
	"github.com/rs/zerolog"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(clock *fakeClock) Config {
	return Config{
		SweepInterval: time.Hour,
		Logger:        zerolog.Nop(),
		Now:           clock.Now,
	}
}

type topicCounts struct {
	Opinions int `json:"opinions"`
	Votes    int `json:"votes"`
}

func TestStore_SetAndGet(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(nil, testConfig(clock))
	ctx := context.Background()

	want := topicCounts{Opinions: 3, Votes: 10}
	if err := store.Set(ctx, "topic:1:counts", want, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got topicCounts
	if !store.Get(ctx, "topic:1:counts", &got) {
		t.Fatal("Get after Set should hit")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(nil, testConfig(clock))
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(29 * time.Second)
	var v string
	if !store.Get(ctx, "k", &v) || v != "v" {
		t.Fatalf("Get before expiry = %q, want hit with %q", v, "v")
	}

	clock.Advance(1 * time.Second)
	v = ""
	if store.Get(ctx, "k", &v) {
		t.Errorf("Get at expiry should miss, got %q", v)
	}

	// Stale entry is deleted on read
	store.mu.RLock()
	_, present := store.entries["k"]
	store.mu.RUnlock()
	if present {
		t.Error("stale entry should be deleted on read")
	}
}

func TestStore_Get_MissLeavesDestination(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))

	got := topicCounts{Opinions: 7}
	if store.Get(context.Background(), "absent", &got) {
		t.Fatal("Get on empty store should miss")
	}
	if got.Opinions != 7 {
		t.Errorf("destination modified on miss: %+v", got)
	}
}

func TestStore_Set_NonPositiveTTL(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	for _, ttl := range []time.Duration{0, -time.Second} {
		if err := store.Set(ctx, "k", 1, ttl); err != nil {
			t.Fatalf("Set(ttl=%v) error = %v", ttl, err)
		}
	}

	var v int
	if store.Get(ctx, "k", &v) {
		t.Error("non-positive TTL should not store anything")
	}
	if s := store.Stats(); s.Sets != 0 {
		t.Errorf("Sets = %d, want 0", s.Sets)
	}
}

func TestStore_Set_Unserializable(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))

	err := store.Set(context.Background(), "k", make(chan int), time.Minute)
	if !errors.Is(err, ErrUnserializable) {
		t.Fatalf("Set error = %v, want ErrUnserializable", err)
	}
	if store.Len() != 0 {
		t.Error("unserializable value should not be stored")
	}
}

func TestStore_SetRaw(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	if err := store.SetRaw(ctx, "raw", []byte(`{"opinions":1,"votes":2}`), time.Minute); err != nil {
		t.Fatalf("SetRaw failed: %v", err)
	}
	var got topicCounts
	if !store.Get(ctx, "raw", &got) || got.Votes != 2 {
		t.Errorf("Get after SetRaw = %+v", got)
	}

	if err := store.SetRaw(ctx, "bad", []byte(`{not json`), time.Minute); !errors.Is(err, ErrUnserializable) {
		t.Errorf("SetRaw invalid JSON error = %v, want ErrUnserializable", err)
	}
}

func TestStore_Get_CorruptEntry(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	if err := store.Set(ctx, "k", "a string", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Decoding into the wrong type is treated as a corrupt entry
	var counts topicCounts
	if store.Get(ctx, "k", &counts) {
		t.Fatal("Get with mismatched type should miss")
	}
	if store.Len() != 0 {
		t.Error("corrupt entry should be discarded")
	}
}

func TestStore_Get_NilDestination(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()
	_ = store.Set(ctx, "k", 1, time.Minute)

	if store.Get(ctx, "k", nil) {
		t.Error("Get with nil destination should miss")
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	_ = store.Set(ctx, "k", 1, time.Minute)
	store.Delete(ctx, "k")

	var v int
	if store.Get(ctx, "k", &v) {
		t.Error("Get after Delete should miss")
	}

	// Deleting an absent key is a no-op
	store.Delete(ctx, "never-set")
}

func TestStore_InvalidatePattern(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		pattern   string
		wantGone  []string
		wantKept  []string
		wantCount int
	}{
		{
			name:      "prefix scope",
			keys:      []string{"topic:1:counts", "topic:2:counts"},
			pattern:   "topic:1:*",
			wantGone:  []string{"topic:1:counts"},
			wantKept:  []string{"topic:2:counts"},
			wantCount: 1,
		},
		{
			name:      "prefix does not bleed into longer ids",
			keys:      []string{"topic:1:full", "topic:10:full", "topic:1:opinions:page:1"},
			pattern:   "topic:1:*",
			wantGone:  []string{"topic:1:full", "topic:1:opinions:page:1"},
			wantKept:  []string{"topic:10:full"},
			wantCount: 2,
		},
		{
			name:      "prefix is delimiter agnostic",
			keys:      []string{"topics:list:all", "topics:listing", "topics:search:x"},
			pattern:   "topics:list*",
			wantGone:  []string{"topics:list:all", "topics:listing"},
			wantKept:  []string{"topics:search:x"},
			wantCount: 2,
		},
		{
			name:      "exact key without wildcard",
			keys:      []string{"opinion:5", "opinion:5:vote:u1", "opinion:55"},
			pattern:   "opinion:5",
			wantGone:  []string{"opinion:5"},
			wantKept:  []string{"opinion:5:vote:u1", "opinion:55"},
			wantCount: 1,
		},
		{
			name:      "empty namespace is a no-op",
			keys:      []string{"user:1:profile"},
			pattern:   "topic:9:*",
			wantKept:  []string{"user:1:profile"},
			wantCount: 0,
		},
		{
			name:      "bare wildcard removes everything",
			keys:      []string{"a", "b:c"},
			pattern:   "*",
			wantGone:  []string{"a", "b:c"},
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(nil, testConfig(newFakeClock()))
			ctx := context.Background()

			for _, k := range tt.keys {
				if err := store.Set(ctx, k, k, time.Minute); err != nil {
					t.Fatalf("Set(%q) failed: %v", k, err)
				}
			}

			if got := store.InvalidatePattern(ctx, tt.pattern); got != tt.wantCount {
				t.Errorf("InvalidatePattern(%q) = %d, want %d", tt.pattern, got, tt.wantCount)
			}

			for _, k := range tt.wantGone {
				var v string
				if store.Get(ctx, k, &v) {
					t.Errorf("key %q should be invalidated", k)
				}
			}
			for _, k := range tt.wantKept {
				var v string
				if !store.Get(ctx, k, &v) || v != k {
					t.Errorf("key %q should still be retrievable", k)
				}
			}

			if got := store.Stats().Invalidations; got != uint64(tt.wantCount) {
				t.Errorf("Invalidations = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	_ = store.Set(ctx, "a", 1, time.Minute)
	_ = store.Set(ctx, "b", 2, time.Minute)
	var v int
	store.Get(ctx, "a", &v)
	store.Get(ctx, "missing", &v)

	store.Clear(ctx)

	if store.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", store.Len())
	}
	if s := store.Stats(); s != (Stats{}) {
		t.Errorf("Stats after Clear = %+v, want zero", s)
	}
}

func TestStore_Stats(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(nil, testConfig(clock))
	ctx := context.Background()

	if s := store.Stats(); s.HitRate != 0 {
		t.Errorf("HitRate before lookups = %v, want 0", s.HitRate)
	}

	_ = store.Set(ctx, "a", 1, time.Minute)
	_ = store.Set(ctx, "b", 2, 10*time.Second)

	var v int
	store.Get(ctx, "a", &v)       // hit
	store.Get(ctx, "a", &v)       // hit
	store.Get(ctx, "missing", &v) // miss

	s := store.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Sets != 2 {
		t.Errorf("Stats = %+v, want hits=2 misses=1 sets=2", s)
	}
	if s.HitRate != 66.67 {
		t.Errorf("HitRate = %v, want 66.67", s.HitRate)
	}
	if s.MemorySize != 2 {
		t.Errorf("MemorySize = %d, want 2", s.MemorySize)
	}

	// Expired but unswept entries are not counted as live
	clock.Advance(15 * time.Second)
	if got := store.Stats().MemorySize; got != 1 {
		t.Errorf("MemorySize after expiry = %d, want 1", got)
	}
}

// TestStore_StatsMonotonic checks counters never decrease and the hit rate
// stays a percentage over a mixed workload.
func TestStore_StatsMonotonic(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(nil, testConfig(clock))
	ctx := context.Background()

	prev := store.Stats()
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("k:%d", i%7)
		switch i % 4 {
		case 0:
			_ = store.Set(ctx, key, i, time.Duration(i%5+1)*time.Second)
		case 1, 2:
			var v int
			store.Get(ctx, key, &v)
		case 3:
			store.InvalidatePattern(ctx, "k:"+fmt.Sprint(i%3)+"*")
			clock.Advance(time.Second)
		}

		cur := store.Stats()
		if cur.Hits < prev.Hits || cur.Misses < prev.Misses || cur.Sets < prev.Sets || cur.Invalidations < prev.Invalidations {
			t.Fatalf("step %d: counters decreased: %+v -> %+v", i, prev, cur)
		}
		if cur.HitRate < 0 || cur.HitRate > 100 {
			t.Fatalf("step %d: HitRate %v out of [0,100]", i, cur.HitRate)
		}
		prev = cur
	}
}

func TestStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(nil, testConfig(clock))
	ctx := context.Background()

	_ = store.Set(ctx, "short", 1, 5*time.Second)
	_ = store.Set(ctx, "long", 2, time.Hour)

	if got := store.Sweep(); got != 0 {
		t.Errorf("Sweep before expiry removed %d, want 0", got)
	}

	clock.Advance(10 * time.Second)
	if got := store.Sweep(); got != 1 {
		t.Errorf("Sweep after expiry removed %d, want 1", got)
	}

	store.mu.RLock()
	n := len(store.entries)
	store.mu.RUnlock()
	if n != 1 {
		t.Errorf("entries after sweep = %d, want 1", n)
	}
}

func TestStore_StartAndClose(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig(clock)
	cfg.SweepInterval = 5 * time.Millisecond
	store := NewStore(nil, cfg)
	ctx := context.Background()

	_ = store.Set(ctx, "k", 1, time.Second)
	clock.Advance(2 * time.Second)

	store.Start(ctx)
	store.Start(ctx) // no-op

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.RLock()
		n := len(store.entries)
		store.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		store.Close()
		store.Close() // idempotent
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the sweeper")
	}
}

func TestStore_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(newFakeClock())
	cfg.SweepInterval = time.Millisecond
	store := NewStore(nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	store.Start(ctx)
	cancel()

	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func TestStore_Close_WithoutStart(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	store.Close()
}

// TestStore_Degradation runs the local-tier properties against a backend that
// always fails.
func TestStore_Degradation(t *testing.T) {
	clock := newFakeClock()
	backend := &testutil.FailingBackend{}
	store := NewStore(backend, testConfig(clock))
	ctx := context.Background()

	// TTL correctness
	if err := store.Set(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("Set with failing backend returned error: %v", err)
	}
	var v string
	if !store.Get(ctx, "k", &v) || v != "v" {
		t.Fatalf("Get with failing backend = %q, want hit", v)
	}
	clock.Advance(11 * time.Second)
	if store.Get(ctx, "k", &v) {
		t.Error("expired key should miss with failing backend")
	}

	// Pattern invalidation scope
	_ = store.Set(ctx, "topic:1:counts", 1, time.Minute)
	_ = store.Set(ctx, "topic:2:counts", 2, time.Minute)
	if n := store.InvalidatePattern(ctx, "topic:1:*"); n != 1 {
		t.Errorf("InvalidatePattern = %d, want 1", n)
	}
	var n int
	if store.Get(ctx, "topic:1:counts", &n) {
		t.Error("topic:1:counts should be invalidated")
	}
	if !store.Get(ctx, "topic:2:counts", &n) || n != 2 {
		t.Error("topic:2:counts should survive")
	}

	store.InvalidatePattern(ctx, "topic:2:counts")
	store.Delete(ctx, "topic:2:counts")
	store.Clear(ctx)

	if backend.Calls() == 0 {
		t.Error("backend should have been consulted")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(nil, testConfig(newFakeClock()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Key("topic", i%10, "counts")
				_ = store.Set(ctx, key, topicCounts{Opinions: i}, time.Minute)
				var c topicCounts
				store.Get(ctx, key, &c)
				if i%25 == 0 {
					store.InvalidatePattern(ctx, Key("topic", g, Wildcard))
					store.Sweep()
				}
			}
		}(g)
	}
	wg.Wait()

	s := store.Stats()
	if s.Sets != 8*200 {
		t.Errorf("Sets = %d, want %d", s.Sets, 8*200)
	}
}

func TestNewStore_NilRedisBackend(t *testing.T) {
	var rb *RedisBackend
	store := NewStore(rb, testConfig(newFakeClock()))

	if store.HasBackend() {
		t.Error("Expected a nil *RedisBackend to leave the store local-only")
	}
	if err := store.Set(context.Background(), "k", 1, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var v int
	if !store.Get(context.Background(), "k", &v) || v != 1 {
		t.Errorf("Get() = %d, want 1", v)
	}
}
