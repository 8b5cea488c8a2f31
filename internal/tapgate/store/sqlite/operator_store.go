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

type OperatorStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewOperatorStore(db *sql.DB, writer *dbpkg.Worker) *OperatorStore {
	return &OperatorStore{db: db, writer: writer}
}

func (s *OperatorStore) GetByUsername(ctx context.Context, username string) (store.OperatorRecord, error) {
	var rec store.OperatorRecord
	var role string
	var createdMs int64

	err := s.db.QueryRowContext(ctx, `
SELECT username, password_hash, role, category, created_at_ms
FROM operators WHERE username = ?;
`, strings.TrimSpace(username)).Scan(&rec.Username, &rec.PasswordHash, &role, &rec.Category, &createdMs)

	if err == sql.ErrNoRows {
		return store.OperatorRecord{}, store.ErrOperatorNotFound
	}
	if err != nil {
		return store.OperatorRecord{}, fmt.Errorf("GetByUsername: %w", err)
	}

	rec.Role = types.Role(role)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return rec, nil
}

func (s *OperatorStore) Create(ctx context.Context, rec store.OperatorRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO operators(username, password_hash, role, category, created_at_ms)
VALUES (?, ?, ?, ?, ?);
`,
			rec.Username, rec.PasswordHash, string(rec.Role), rec.Category,
			rec.CreatedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("Create operator: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrOperatorExists
		}
		return nil
	})
}
