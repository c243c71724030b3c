// Package history keeps bounded time-series for sparkline display: one
// fixed-capacity ring buffer per tracked metric, oldest value evicted on
// overflow.
package history

import (
	"sort"
	"sync"
)

// Ring is a fixed-capacity FIFO of float64 values.
type Ring struct {
	buf   []float64
	head  int // index of the oldest value
	count int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

func (r *Ring) Cap() int { return len(r.buf) }
func (r *Ring) Len() int { return r.count }

// Push appends a value, evicting the oldest when full.
func (r *Ring) Push(v float64) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Values returns a copy of the ring contents, oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Store holds one ring per metric id. Capacity is fixed at construction
// (window ÷ refresh interval); Reconfigure drops all existing series and
// starts over at the new capacity, which is the explicit policy when the
// refresh interval changes at runtime.
type Store struct {
	mu       sync.Mutex
	capacity int
	series   map[string]*Ring
}

func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity, series: make(map[string]*Ring)}
}

// Append pushes a value into the named series, creating it on first use.
func (s *Store) Append(id string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.series[id]
	if !ok {
		r = NewRing(s.capacity)
		s.series[id] = r
	}
	r.Push(v)
}

// Series returns the named series oldest-first, or nil if it never existed.
func (s *Store) Series(id string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.series[id]
	if !ok {
		return nil
	}
	return r.Values()
}

// IDs returns the tracked metric ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune deletes every series the keep predicate rejects. Used to drop
// series for devices that no longer exist, e.g. a hot-unplugged network
// interface, so the store does not accumulate dead entries for the life
// of the process.
func (s *Store) Prune(keep func(id string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.series {
		if !keep(id) {
			delete(s.series, id)
		}
	}
}

// Reconfigure reinitializes the store at a new capacity, dropping all
// accumulated history.
func (s *Store) Reconfigure(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = capacity
	s.series = make(map[string]*Ring)
}
