package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/tapgate/server/internal/db"
	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/types"
)

type PassStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPassStore(db *sql.DB, writer *dbpkg.Worker) *PassStore {
	return &PassStore{db: db, writer: writer}
}

const passColumns = `pass_id, uid, pass_type, category, people_allowed,
max_uses, used_count, status, last_used_at_ms, last_scan_at_ms,
created_at_ms, updated_at_ms`

func (s *PassStore) GetByUID(ctx context.Context, uid string) (store.PassRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE uid = ?;`, strings.TrimSpace(uid))
	return scanPass(row)
}

func (s *PassStore) GetByID(ctx context.Context, passID string) (store.PassRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passColumns+` FROM passes WHERE pass_id = ?;`, strings.TrimSpace(passID))
	return scanPass(row)
}

func (s *PassStore) Create(ctx context.Context, rec store.PassRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM passes WHERE uid = ?;`, rec.UID).Scan(&exists)
		if err == nil {
			return store.ErrDuplicateUID
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("Create check uid: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO passes(
  pass_id, uid, pass_type, category, people_allowed,
  max_uses, used_count, status, last_used_at_ms, last_scan_at_ms,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.PassID, rec.UID, string(rec.PassType), rec.Category, rec.PeopleAllowed,
			rec.MaxUses, rec.UsedCount, string(rec.Status), msPtr(rec.LastUsedAt), msPtr(rec.LastScanAt),
			rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("Create insert: %w", err)
		}
		return nil
	})
}

// Update runs fn against the current row inside a single write transaction
// on the single-writer worker, so the whole read-modify-write is atomic
// with respect to concurrent scans of the same uid.
func (s *PassStore) Update(ctx context.Context, uid string, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	return s.update(ctx, "uid", strings.TrimSpace(uid), fn)
}

func (s *PassStore) UpdateByID(ctx context.Context, passID string, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	return s.update(ctx, "pass_id", strings.TrimSpace(passID), fn)
}

func (s *PassStore) update(ctx context.Context, keyCol, key string, fn func(*store.PassRecord) error) (store.PassRecord, error) {
	var out store.PassRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+passColumns+` FROM passes WHERE `+keyCol+` = ?;`, key)
		rec, err := scanPass(row)
		if err != nil {
			return err
		}

		if err := fn(&rec); err != nil {
			out = rec
			return err
		}
		rec.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `
UPDATE passes
SET pass_type = ?, category = ?, people_allowed = ?,
    max_uses = ?, used_count = ?, status = ?,
    last_used_at_ms = ?, last_scan_at_ms = ?, updated_at_ms = ?
WHERE pass_id = ?;
`,
			string(rec.PassType), rec.Category, rec.PeopleAllowed,
			rec.MaxUses, rec.UsedCount, string(rec.Status),
			msPtr(rec.LastUsedAt), msPtr(rec.LastScanAt), rec.UpdatedAt.UnixMilli(),
			rec.PassID,
		); err != nil {
			return fmt.Errorf("Update write: %w", err)
		}

		out = rec
		return nil
	})
	return out, err
}

func (s *PassStore) Delete(ctx context.Context, passID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM passes WHERE pass_id = ?;`, strings.TrimSpace(passID))
		if err != nil {
			return fmt.Errorf("Delete: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrPassNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPass(row rowScanner) (store.PassRecord, error) {
	var rec store.PassRecord
	var passType, status string
	var lastUsedMs, lastScanMs sql.NullInt64
	var createdMs, updatedMs int64

	err := row.Scan(
		&rec.PassID, &rec.UID, &passType, &rec.Category, &rec.PeopleAllowed,
		&rec.MaxUses, &rec.UsedCount, &status, &lastUsedMs, &lastScanMs,
		&createdMs, &updatedMs,
	)
	if err == sql.ErrNoRows {
		return store.PassRecord{}, store.ErrPassNotFound
	}
	if err != nil {
		return store.PassRecord{}, fmt.Errorf("scan pass: %w", err)
	}

	rec.PassType = types.PassType(passType)
	rec.Status = types.PassStatus(status)
	rec.LastUsedAt = timeFromMs(lastUsedMs)
	rec.LastScanAt = timeFromMs(lastScanMs)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

func msPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func timeFromMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
