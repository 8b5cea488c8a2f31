package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/tapgate/server/internal/db"
	"github.com/tapgate/server/internal/tapgate/store"
)

type ScanEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanEventStore(db *sql.DB, writer *dbpkg.Worker) *ScanEventStore {
	return &ScanEventStore{db: db, writer: writer}
}

func (s *ScanEventStore) RecordScan(ctx context.Context, rec store.ScanEventRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	var passID any
	if rec.PassID != "" {
		passID = rec.PassID
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_events(
  uid, pass_id, gate_id, scanned_by, outcome, consumed_count,
  received_at_ms, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.UID, passID, rec.GateID, rec.ScannedBy, rec.Outcome, rec.ConsumedCount,
			rec.ReceivedAt.UTC().UnixMilli(), rec.DecidedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("RecordScan insert: %w", err)
		}
		return nil
	})
}
