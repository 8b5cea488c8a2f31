package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SeedDev inserts a starter admin operator and a demo pass so a fresh dev
// database is immediately usable.  Safe to run repeatedly.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	// Dev-only credentials: admin / admin.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed admin hash: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO operators(username, password_hash, role, category, created_at_ms)
VALUES ('admin', ?, 'admin', '', ?);`, hash, now); err != nil {
		return fmt.Errorf("seed admin operator: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO passes(
  pass_id, uid, pass_type, category, people_allowed,
  max_uses, used_count, status, created_at_ms, updated_at_ms
) VALUES ('dev-pass-001', '04AABBCCDD2280', 'session', 'General', 1, 10, 0, 'active', ?, ?);`,
		now, now); err != nil {
		return fmt.Errorf("seed demo pass: %w", err)
	}

	return nil
}
