package cache

import (
	"container/list"
	"sync"
	"time"
)

// Answer is the cached payload for one resolved question.
type Answer struct {
	Text          string        `json:"text"`
	Source        string        `json:"source"` // precompiled or agent at insert time
	ExecutionTime time.Duration `json:"execution_time"`
}

// Stats is the observable state of the store.
type Stats struct {
	TotalEntries   int     `json:"total_entries"`
	ValidEntries   int     `json:"valid_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	MaxEntries     int     `json:"max_entries"`
	TTLSeconds     float64 `json:"ttl_seconds"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
}

type entry struct {
	key     string
	value   Answer
	expires time.Time
	element *list.Element
}

// Store is a TTL + LRU answer cache. One mutex serializes all operations;
// contention is low because entries are small and lookups are hash-cheap.
type Store struct {
	mu     sync.Mutex
	max    int
	ttl    time.Duration
	items  map[string]*entry
	order  *list.List // front = most recently used
	hits   uint64
	misses uint64
	now    func() time.Time
}

// NewStore creates a store bounded to maxEntries with a default TTL.
func NewStore(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		max:   maxEntries,
		ttl:   ttl,
		items: make(map[string]*entry, maxEntries),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns the answer for key, treating expired entries as absent and
// purging them on access. A hit refreshes recency.
func (s *Store) Get(key string) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[key]; ok {
		if s.now().Before(ent.expires) {
			s.order.MoveToFront(ent.element)
			s.hits++
			return ent.value, true
		}
		s.removeEntry(ent)
	}
	s.misses++
	return Answer{}, false
}

// Put stores value under key with the given ttl (<=0 uses the store default).
// An existing entry is overwritten with a fresh creation time. Inserting past
// the maximum entry count evicts least-recently-used entries first.
func (s *Store) Put(key string, value Answer, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[key]; ok {
		ent.value = value
		ent.expires = s.now().Add(ttl)
		s.order.MoveToFront(ent.element)
		return
	}

	for len(s.items) >= s.max {
		s.evictOldest()
	}

	elem := s.order.PushFront(key)
	s.items[key] = &entry{
		key:     key,
		value:   value,
		expires: s.now().Add(ttl),
		element: elem,
	}
}

// Clear removes all entries. Hit/miss counters survive so operators can still
// read lifetime rates after a manual flush.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*entry, s.max)
	s.order.Init()
}

// Len reports the number of physically present entries, expired included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats snapshots the store without sweeping expired entries.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := 0
	now := s.now()
	for _, ent := range s.items {
		if now.Before(ent.expires) {
			valid++
		}
	}

	st := Stats{
		TotalEntries:   len(s.items),
		ValidEntries:   valid,
		ExpiredEntries: len(s.items) - valid,
		MaxEntries:     s.max,
		TTLSeconds:     s.ttl.Seconds(),
		Hits:           s.hits,
		Misses:         s.misses,
	}
	if lookups := s.hits + s.misses; lookups > 0 {
		st.HitRate = float64(s.hits) / float64(lookups)
	}
	return st
}

func (s *Store) evictOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := s.items[key]; ok {
		s.removeEntry(ent)
	}
}

func (s *Store) removeEntry(ent *entry) {
	if ent.element != nil {
		s.order.Remove(ent.element)
	}
	delete(s.items, ent.key)
}
