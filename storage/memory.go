package storage

import (
	"context"
	"sync"

	"rentwatch/models"
)

type seenKey struct {
	userID   int64
	sourceID string
}

// MemoryStore keeps seen state and criteria in process memory. State is lost
// on restart, which makes every source a first poll again.
type MemoryStore struct {
	mu       sync.Mutex
	seen     map[seenKey]string
	criteria map[int64]models.Criteria
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:     make(map[seenKey]string),
		criteria: make(map[int64]models.Criteria),
	}
}

func (s *MemoryStore) LastSeen(ctx context.Context, userID int64, sourceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[seenKey{userID, sourceID}], nil
}

func (s *MemoryStore) Advance(ctx context.Context, userID int64, sourceID, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[seenKey{userID, sourceID}] = link
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.seen {
		if k.userID == userID {
			delete(s.seen, k)
		}
	}
	return nil
}

func (s *MemoryStore) GetCriteria(ctx context.Context, userID int64) (models.Criteria, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.criteria[userID]; ok {
		return c, nil
	}
	return models.DefaultCriteria(), nil
}

func (s *MemoryStore) PutCriteria(ctx context.Context, userID int64, c models.Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Rooms = append([]models.Room(nil), c.Rooms...)
	s.criteria[userID] = c
	return nil
}
