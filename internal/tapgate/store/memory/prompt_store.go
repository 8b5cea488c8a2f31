package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
)

type PromptStore struct {
	mu      sync.Mutex
	prompts map[string]*store.PromptRecord
}

func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[string]*store.PromptRecord)}
}

func (s *PromptStore) Create(_ context.Context, rec store.PromptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := clonePrompt(&rec)
	s.prompts[rec.Token] = &cp
	return nil
}

func (s *PromptStore) Get(_ context.Context, token string) (store.PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.prompts[token]
	if !ok {
		return store.PromptRecord{}, store.ErrPromptNotFound
	}
	return clonePrompt(rec), nil
}

// Redeem is the compare-and-swap on the consumed flag: the mutex makes the
// check-then-set atomic, so exactly one concurrent caller wins.
func (s *PromptStore) Redeem(_ context.Context, token string, now time.Time) (store.PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.prompts[token]
	if !ok {
		return store.PromptRecord{}, store.ErrPromptNotFound
	}
	if rec.ConsumedAt != nil {
		return clonePrompt(rec), store.ErrPromptConsumed
	}
	if now.After(rec.ExpiresAt) {
		return clonePrompt(rec), store.ErrPromptExpired
	}

	t := now.UTC()
	rec.ConsumedAt = &t
	return clonePrompt(rec), nil
}

func (s *PromptStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts, token)
	return nil
}

func (s *PromptStore) PruneExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for token, rec := range s.prompts {
		if rec.ExpiresAt.Before(cutoff) {
			delete(s.prompts, token)
			deleted++
		}
	}
	return deleted, nil
}

func clonePrompt(rec *store.PromptRecord) store.PromptRecord {
	cp := *rec
	if rec.ConsumedAt != nil {
		t := *rec.ConsumedAt
		cp.ConsumedAt = &t
	}
	return cp
}
