package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps events in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	events []*CompactionEvent
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Migrate is a no-op for the in-memory store
func (s *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

// SaveCompactionEvent stores a copy of event
func (s *MemoryStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = s.now()

	stored := *event

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &stored)
	return nil
}

// GetCompactionHistory returns copies of the matching events, newest first
func (s *MemoryStore) GetCompactionHistory(ctx context.Context, sessionIDs ...string) ([]*CompactionEvent, error) {
	if len(sessionIDs) == 0 {
		return nil, ErrNoSessionID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*CompactionEvent
	// Walk backwards so equal timestamps keep newest-first insertion order.
	for i := len(s.events) - 1; i >= 0; i-- {
		if _, ok := wanted[s.events[i].SessionID]; !ok {
			continue
		}
		event := *s.events[i]
		events = append(events, &event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

var _ Store = (*MemoryStore)(nil)
