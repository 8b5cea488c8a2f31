package memory

import (
	"context"
	"sync"

	"github.com/tapgate/server/internal/tapgate/store"
)

// ScanEventStore is an in-memory append-only log of scan decisions.
// It is intended for use in tests and dev environments.
type ScanEventStore struct {
	mu     sync.Mutex
	events []store.ScanEventRecord
}

func NewScanEventStore() *ScanEventStore {
	return &ScanEventStore{}
}

func (s *ScanEventStore) RecordScan(_ context.Context, rec store.ScanEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *ScanEventStore) Events() []store.ScanEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ScanEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
