package service_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/tapgate/server/internal/tapgate/service"
	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/store/memory"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestPromptReaper_DisabledWhenIntervalNegative(t *testing.T) {
	ps := memory.NewPromptStore()
	reaper := service.NewPromptReaper(ps, service.ReaperConfig{
		IntervalMinutes: -1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reaper.Start(ctx)
	// Stop should return immediately without error.
	reaper.Stop()
}

func TestPromptReaper_DeletesExpiredPrompts(t *testing.T) {
	ps := memory.NewPromptStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// An expired prompt (deadline 30 minutes ago).
	expired := store.PromptRecord{
		Token: "tok-old", UID: "tag-1", RemainingUses: 2,
		IssuedAt:  now.Add(-45 * time.Minute),
		ExpiresAt: now.Add(-30 * time.Minute),
	}
	if err := ps.Create(ctx, expired); err != nil {
		t.Fatalf("insert expired: %v", err)
	}

	// A live prompt (deadline 10 minutes out).
	live := store.PromptRecord{
		Token: "tok-live", UID: "tag-2", RemainingUses: 2,
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := ps.Create(ctx, live); err != nil {
		t.Fatalf("insert live: %v", err)
	}

	// Sweep directly via the store (same operation the reaper calls).
	deleted, err := ps.PruneExpired(ctx, now)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned, got %d", deleted)
	}

	// The live prompt should survive.
	if _, err := ps.Get(ctx, "tok-live"); err != nil {
		t.Errorf("live prompt was pruned: %v", err)
	}
	if _, err := ps.Get(ctx, "tok-old"); err == nil {
		t.Error("expired prompt survived the sweep")
	}
}

func TestPromptReaper_StopIsIdempotent(t *testing.T) {
	ps := memory.NewPromptStore()
	reaper := service.NewPromptReaper(ps, service.ReaperConfig{
		IntervalMinutes: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	reaper.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	reaper.Stop()
	reaper.Stop()
}
