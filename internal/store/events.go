// Package store holds the in-process event buffer and the durable stores
// behind it.
package store

import (
	"sync"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// EventStore is a bounded in-memory buffer of decoded swap events in arrival
// order. When capacity is exceeded the oldest events are evicted; Append
// returns them so the caller can archive before they are gone. Safe for
// concurrent use.
type EventStore struct {
	mu       sync.RWMutex
	events   []domain.SwapEvent
	capacity int
	total    uint64
}

// NewEventStore creates a store holding at most capacity events. A
// non-positive capacity falls back to 2000.
func NewEventStore(capacity int) *EventStore {
	if capacity <= 0 {
		capacity = 2000
	}
	return &EventStore{
		events:   make([]domain.SwapEvent, 0, capacity),
		capacity: capacity,
	}
}

// Append adds ev to the buffer and returns any events evicted to stay within
// capacity (oldest first).
func (s *EventStore) Append(ev domain.SwapEvent) []domain.SwapEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	s.total++

	if len(s.events) <= s.capacity {
		return nil
	}

	n := len(s.events) - s.capacity
	evicted := make([]domain.SwapEvent, n)
	copy(evicted, s.events[:n])
	s.events = append(s.events[:0], s.events[n:]...)
	return evicted
}

// Snapshot returns up to limit of the most recent events whose block number
// is at least sinceBlock, oldest first. limit <= 0 means no limit; the
// returned slice is a copy.
func (s *EventStore) Snapshot(limit int, sinceBlock uint64) []domain.SwapEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.events
	if sinceBlock > 0 {
		matched = nil
		for _, ev := range s.events {
			if ev.BlockNumber >= sinceBlock {
				matched = append(matched, ev)
			}
		}
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]domain.SwapEvent, len(matched))
	copy(out, matched)
	return out
}

// Len returns the number of events currently buffered.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Total returns the number of events appended over the process lifetime,
// including evicted ones.
func (s *EventStore) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
