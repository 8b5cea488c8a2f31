package store

import (
	"context"
	"time"
)

// ScanEventRecord captures one verification or consumption decision for the
// audit log.  PassID is empty when the uid resolved to nothing.
type ScanEventRecord struct {
	UID           string
	PassID        string
	GateID        string
	ScannedBy     string
	Outcome       string
	ConsumedCount int
	ReceivedAt    time.Time
	DecidedAt     time.Time
}

// ScanEventStore persists scan decisions as an append-only audit log.
type ScanEventStore interface {
	RecordScan(ctx context.Context, rec ScanEventRecord) error
}
