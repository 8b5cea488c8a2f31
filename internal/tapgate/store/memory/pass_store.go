package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
)

// PassStore is an in-memory pass store for tests and dev environments.
// The mutex is held across the whole Update closure, which is what gives
// the at-most-one-consuming-transition guarantee in this implementation.
type PassStore struct {
	mu    sync.Mutex
	byUID map[string]*store.PassRecord
	byID  map[string]*store.PassRecord
}

func NewPassStore() *PassStore {
	return &PassStore{
		byUID: make(map[string]*store.PassRecord),
		byID:  make(map[string]*store.PassRecord),
	}
}

func (s *PassStore) GetByUID(_ context.Context, uid string) (store.PassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byUID[uid]
	if !ok {
		return store.PassRecord{}, store.ErrPassNotFound
	}
	return clonePass(rec), nil
}

func (s *PassStore) GetByID(_ context.Context, passID string) (store.PassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[passID]
	if !ok {
		return store.PassRecord{}, store.ErrPassNotFound
	}
	return clonePass(rec), nil
}

func (s *PassStore) Create(_ context.Context, rec store.PassRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUID[rec.UID]; ok {
		return store.ErrDuplicateUID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt

	cp := clonePass(&rec)
	s.byUID[rec.UID] = &cp
	s.byID[rec.PassID] = &cp
	return nil
}

func (s *PassStore) Update(_ context.Context, uid string, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byUID[uid]
	if !ok {
		return store.PassRecord{}, store.ErrPassNotFound
	}
	return s.applyLocked(rec, fn)
}

func (s *PassStore) UpdateByID(_ context.Context, passID string, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[passID]
	if !ok {
		return store.PassRecord{}, store.ErrPassNotFound
	}
	return s.applyLocked(rec, fn)
}

func (s *PassStore) Delete(_ context.Context, passID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[passID]
	if !ok {
		return store.ErrPassNotFound
	}
	delete(s.byUID, rec.UID)
	delete(s.byID, passID)
	return nil
}

// applyLocked runs fn against a working copy and commits only on success,
// so a failed fn never leaves a half-mutated record behind.
func (s *PassStore) applyLocked(rec *store.PassRecord, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	work := clonePass(rec)
	if err := fn(&work); err != nil {
		return clonePass(rec), err
	}
	work.UpdatedAt = time.Now().UTC()
	*rec = work
	return clonePass(rec), nil
}

func clonePass(rec *store.PassRecord) store.PassRecord {
	cp := *rec
	if rec.LastUsedAt != nil {
		t := *rec.LastUsedAt
		cp.LastUsedAt = &t
	}
	if rec.LastScanAt != nil {
		t := *rec.LastScanAt
		cp.LastScanAt = &t
	}
	return cp
}
