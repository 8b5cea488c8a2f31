package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/tapgate/server/internal/db"
	"github.com/tapgate/server/internal/tapgate/store"
)

type PromptStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPromptStore(db *sql.DB, writer *dbpkg.Worker) *PromptStore {
	return &PromptStore{db: db, writer: writer}
}

func (s *PromptStore) Create(ctx context.Context, rec store.PromptRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO prompts(token, uid, remaining_uses, issued_at_ms, expires_at_ms, consumed_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.Token, rec.UID, rec.RemainingUses,
			rec.IssuedAt.UTC().UnixMilli(), rec.ExpiresAt.UTC().UnixMilli(), msPtr(rec.ConsumedAt),
		); err != nil {
			return fmt.Errorf("Create prompt: %w", err)
		}
		return nil
	})
}

func (s *PromptStore) Get(ctx context.Context, token string) (store.PromptRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, uid, remaining_uses, issued_at_ms, expires_at_ms, consumed_at_ms
FROM prompts WHERE token = ?;
`, strings.TrimSpace(token))
	return scanPrompt(row)
}

// Redeem marks the prompt consumed with a guarded UPDATE: the WHERE clause
// only matches an unconsumed row, so under the single-writer worker exactly
// one concurrent caller can flip the flag.
func (s *PromptStore) Redeem(ctx context.Context, token string, now time.Time) (store.PromptRecord, error) {
	token = strings.TrimSpace(token)
	var out store.PromptRecord

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT token, uid, remaining_uses, issued_at_ms, expires_at_ms, consumed_at_ms
FROM prompts WHERE token = ?;
`, token)
		rec, err := scanPrompt(row)
		if err != nil {
			return err
		}
		out = rec

		if rec.ConsumedAt != nil {
			return store.ErrPromptConsumed
		}
		if now.After(rec.ExpiresAt) {
			return store.ErrPromptExpired
		}

		nowMs := now.UTC().UnixMilli()
		res, err := tx.ExecContext(ctx, `
UPDATE prompts SET consumed_at_ms = ? WHERE token = ? AND consumed_at_ms IS NULL;
`, nowMs, token)
		if err != nil {
			return fmt.Errorf("Redeem update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrPromptConsumed
		}

		t := time.UnixMilli(nowMs).UTC()
		out.ConsumedAt = &t
		return nil
	})
	return out, err
}

func (s *PromptStore) Delete(ctx context.Context, token string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM prompts WHERE token = ?;`, strings.TrimSpace(token)); err != nil {
			return fmt.Errorf("Delete prompt: %w", err)
		}
		return nil
	})
}

// PruneExpired deletes prompt rows whose deadline passed before the cutoff.
// Uses the idx_prompts_expiry index for an efficient range scan.
func (s *PromptStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM prompts WHERE expires_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneExpired: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func scanPrompt(row rowScanner) (store.PromptRecord, error) {
	var rec store.PromptRecord
	var issuedMs, expiresMs int64
	var consumedMs sql.NullInt64

	err := row.Scan(&rec.Token, &rec.UID, &rec.RemainingUses, &issuedMs, &expiresMs, &consumedMs)
	if err == sql.ErrNoRows {
		return store.PromptRecord{}, store.ErrPromptNotFound
	}
	if err != nil {
		return store.PromptRecord{}, fmt.Errorf("scan prompt: %w", err)
	}

	rec.IssuedAt = time.UnixMilli(issuedMs).UTC()
	rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	rec.ConsumedAt = timeFromMs(consumedMs)
	return rec, nil
}
