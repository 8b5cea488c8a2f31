package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/store/sqlite"
	"github.com/tapgate/server/internal/tapgate/types"
)

func TestPassStore_CreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	createTestPass(t, ps, store.PassRecord{
		PassID: "p1", UID: "tag-1", PassType: types.PassTypeSession,
		Category: "General", MaxUses: 4,
	})

	rec, err := ps.GetByUID(context.Background(), "tag-1")
	if err != nil {
		t.Fatalf("GetByUID: %v", err)
	}
	if rec.PassID != "p1" || rec.PassType != types.PassTypeSession {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Status != types.PassStatusActive {
		t.Errorf("expected active, got %q", rec.Status)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	byID, err := ps.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.UID != "tag-1" {
		t.Errorf("expected uid=tag-1, got %q", byID.UID)
	}
}

func TestPassStore_GetUnknown_NotFound(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	_, err := ps.GetByUID(context.Background(), "missing")
	if !errors.Is(err, store.ErrPassNotFound) {
		t.Fatalf("expected ErrPassNotFound, got %v", err)
	}
}

func TestPassStore_DuplicateUID_Rejected(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	createTestPass(t, ps, store.PassRecord{
		PassID: "p1", UID: "tag-1", PassType: types.PassTypeDaily,
		Category: "General", MaxUses: 1,
	})

	err := ps.Create(context.Background(), store.PassRecord{
		PassID: "p2", UID: "tag-1", PassType: types.PassTypeDaily,
		Category: "General", MaxUses: 1, Status: types.PassStatusActive, PeopleAllowed: 1,
	})
	if !errors.Is(err, store.ErrDuplicateUID) {
		t.Fatalf("expected ErrDuplicateUID, got %v", err)
	}
}

func TestPassStore_Update_PersistsMutation(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	createTestPass(t, ps, store.PassRecord{
		PassID: "p1", UID: "tag-1", PassType: types.PassTypeSession,
		Category: "General", MaxUses: 4,
	})

	now := time.Now().UTC()
	updated, err := ps.Update(context.Background(), "tag-1", func(p *store.PassRecord) error {
		p.UsedCount++
		p.LastUsedAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.UsedCount != 1 {
		t.Errorf("expected used_count=1, got %d", updated.UsedCount)
	}

	rec, err := ps.GetByUID(context.Background(), "tag-1")
	if err != nil {
		t.Fatalf("GetByUID: %v", err)
	}
	if rec.UsedCount != 1 {
		t.Errorf("mutation not persisted, used_count=%d", rec.UsedCount)
	}
	if rec.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}
	// Millisecond storage granularity.
	if diff := rec.LastUsedAt.Sub(now); diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("last_used_at drifted by %s", diff)
	}
}

func TestPassStore_Update_FnErrorRollsBack(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	createTestPass(t, ps, store.PassRecord{
		PassID: "p1", UID: "tag-1", PassType: types.PassTypeSession,
		Category: "General", MaxUses: 4,
	})

	wantErr := errors.New("abort")
	_, err := ps.Update(context.Background(), "tag-1", func(p *store.PassRecord) error {
		p.UsedCount = 99
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error, got %v", err)
	}

	rec, _ := ps.GetByUID(context.Background(), "tag-1")
	if rec.UsedCount != 0 {
		t.Errorf("failed fn leaked a mutation, used_count=%d", rec.UsedCount)
	}
}

func TestPassStore_Delete(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlite.NewPassStore(conn, newTestWriter(t, conn))

	createTestPass(t, ps, store.PassRecord{
		PassID: "p1", UID: "tag-1", PassType: types.PassTypeDaily,
		Category: "General", MaxUses: 1,
	})

	if err := ps.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := ps.GetByID(context.Background(), "p1")
	if !errors.Is(err, store.ErrPassNotFound) {
		t.Fatalf("expected ErrPassNotFound after delete, got %v", err)
	}

	if err := ps.Delete(context.Background(), "p1"); !errors.Is(err, store.ErrPassNotFound) {
		t.Fatalf("expected ErrPassNotFound on double delete, got %v", err)
	}
}
