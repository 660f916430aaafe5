// Package memory is the in-process store.Store used by default and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ljubanic/parley-core/core/store"
)

type subscriber struct {
	ch   chan store.Record
	done chan struct{}
}

// 16 saved records of slack before a slow subscriber starts missing updates.
const subscriberBuffer = 16

type Store struct {
	mu sync.Mutex
	// records is keyed by record id, so iteration order is deliberately not
	// insertion order. Queries sort by timestamp.
	records     map[string]store.Record
	subscribers map[string][]*subscriber
}

func NewStore() *Store {
	return &Store{
		records:     map[string]store.Record{},
		subscribers: map[string][]*subscriber{},
	}
}

func (s *Store) Save(_ context.Context, record store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record

	// The send happens under the lock so a concurrent unsubscribe cannot
	// close the channel mid-send. Slow subscribers lose records rather than
	// stall the writer.
	for _, sub := range s.subscribers[record.SessionID] {
		select {
		case sub.ch <- record:
		default:
		}
	}
	return nil
}

func (s *Store) GetAll(_ context.Context, sessionID string) ([]store.Record, error) {
	s.mu.Lock()
	records := []store.Record{}
	for _, record := range s.records {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	s.mu.Unlock()

	sortChronologically(records)
	return records, nil
}

func (s *Store) GetRecent(ctx context.Context, sessionID string, limit int) ([]store.Record, error) {
	records, err := s.GetAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (s *Store) Subscribe(ctx context.Context, sessionID string) (<-chan store.Record, func()) {
	sub := &subscriber{
		ch:   make(chan store.Record, subscriberBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.subscribers[sessionID] = append(s.subscribers[sessionID], sub)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			remaining := []*subscriber{}
			for _, existing := range s.subscribers[sessionID] {
				if existing != sub {
					remaining = append(remaining, existing)
				}
			}
			if len(remaining) == 0 {
				delete(s.subscribers, sessionID)
			} else {
				s.subscribers[sessionID] = remaining
			}
			s.mu.Unlock()

			close(sub.done)
			close(sub.ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel
}

func sortChronologically(records []store.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
