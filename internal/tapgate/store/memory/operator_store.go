package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
)

type OperatorStore struct {
	mu        sync.RWMutex
	operators map[string]store.OperatorRecord
}

func NewOperatorStore() *OperatorStore {
	return &OperatorStore{operators: make(map[string]store.OperatorRecord)}
}

func (s *OperatorStore) GetByUsername(_ context.Context, username string) (store.OperatorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.operators[username]
	if !ok {
		return store.OperatorRecord{}, store.ErrOperatorNotFound
	}
	return rec, nil
}

func (s *OperatorStore) Create(_ context.Context, rec store.OperatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.operators[rec.Username]; ok {
		return store.ErrOperatorExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.operators[rec.Username] = rec
	return nil
}
