package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestStore(max int, ttl time.Duration) (*Store, *time.Time) {
	s := NewStore(max, ttl)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	want := Answer{Text: "Barcelona has 10 districts.", Source: "precompiled", ExecutionTime: 3 * time.Millisecond}
	s.Put("k1", want, 0)

	got, ok := s.Get("k1")
	if !ok {
		t.Fatalf("Get() miss after Put")
	}
	if got != want {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s, now := newTestStore(10, time.Hour)

	s.Put("k1", Answer{Text: "x"}, 30*time.Minute)

	*now = now.Add(29 * time.Minute)
	if _, ok := s.Get("k1"); !ok {
		t.Fatalf("entry expired early")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := s.Get("k1"); ok {
		t.Fatalf("expired entry served past its ttl")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry not purged on access, Len = %d", s.Len())
	}
}

func TestStore_OverwriteResetsCreationTime(t *testing.T) {
	s, now := newTestStore(10, time.Hour)

	s.Put("k1", Answer{Text: "old"}, 10*time.Minute)
	*now = now.Add(9 * time.Minute)
	s.Put("k1", Answer{Text: "new"}, 10*time.Minute)

	*now = now.Add(9 * time.Minute)
	got, ok := s.Get("k1")
	if !ok {
		t.Fatalf("overwritten entry should still be fresh")
	}
	if got.Text != "new" {
		t.Fatalf("Get() = %q, want overwritten value", got.Text)
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(3, time.Hour)

	s.Put("a", Answer{Text: "a"}, 0)
	s.Put("b", Answer{Text: "b"}, 0)
	s.Put("c", Answer{Text: "c"}, 0)

	// Touch a and c so b becomes the LRU victim.
	s.Get("a")
	s.Get("c")

	s.Put("d", Answer{Text: "d"}, 0)

	if _, ok := s.Get("b"); ok {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := s.Get(k); !ok {
			t.Fatalf("entry %q should have survived eviction", k)
		}
	}
}

func TestStore_NeverExceedsMaxEntries(t *testing.T) {
	s, _ := newTestStore(5, time.Hour)

	for i := 0; i < 50; i++ {
		s.Put(fmt.Sprintf("k%d", i), Answer{Text: "v"}, 0)
		if s.Len() > 5 {
			t.Fatalf("store grew to %d entries, max is 5", s.Len())
		}
	}
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	s.Put("k1", Answer{Text: "x"}, 0)
	s.Put("k2", Answer{Text: "y"}, 0)

	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("Len() = %d after Clear", s.Len())
	}
	if _, ok := s.Get("k1"); ok {
		t.Fatalf("cleared entry still served")
	}
}

func TestStore_Stats(t *testing.T) {
	s, now := newTestStore(10, time.Hour)

	s.Put("fresh", Answer{Text: "x"}, time.Hour)
	s.Put("stale", Answer{Text: "y"}, time.Minute)
	*now = now.Add(30 * time.Minute)

	s.Get("fresh")   // hit
	s.Get("unknown") // miss

	st := s.Stats()
	if st.TotalEntries != 2 {
		t.Fatalf("TotalEntries = %d, want 2", st.TotalEntries)
	}
	if st.ValidEntries != 1 || st.ExpiredEntries != 1 {
		t.Fatalf("valid/expired = %d/%d, want 1/1", st.ValidEntries, st.ExpiredEntries)
	}
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("hits/misses = %d/%d, want 1/1", st.Hits, st.Misses)
	}
	if st.HitRate != 0.5 {
		t.Fatalf("HitRate = %v, want 0.5", st.HitRate)
	}
	if st.MaxEntries != 10 {
		t.Fatalf("MaxEntries = %d, want 10", st.MaxEntries)
	}
}
