package service

import (
	"context"
	"log"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
)

// PromptReaper periodically deletes prompts whose deadline has passed.
// Expiry itself is enforced at redemption time by the store; the reaper
// only keeps the table from accumulating dead rows.  It runs as a
// background goroutine and is safe to stop via its context or Stop.
type PromptReaper struct {
	store    store.PromptStore
	interval time.Duration
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// ReaperConfig holds the parameters for NewPromptReaper.
type ReaperConfig struct {
	// IntervalMinutes is how often the reaper runs.  Defaults to 5.
	// A negative value disables the reaper entirely.
	IntervalMinutes int
}

// NewPromptReaper creates a reaper but does not start it.
// Call Start to begin the background loop.
func NewPromptReaper(s store.PromptStore, cfg ReaperConfig, logger *log.Logger) *PromptReaper {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if cfg.IntervalMinutes == 0 {
		interval = 5 * time.Minute
	}

	return &PromptReaper{
		store:    s,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the background loop.  It runs an immediate sweep on
// startup, then repeats on the configured interval.  The loop exits when
// ctx is cancelled or Stop is called.
func (r *PromptReaper) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Printf("prompt reaper disabled")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)

	go r.loop(ctx)

	r.logger.Printf("prompt reaper started (interval=%s)", r.interval)
}

// Stop signals the reaper to exit and waits for it to finish.
func (r *PromptReaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *PromptReaper) loop(ctx context.Context) {
	defer close(r.done)

	// Sweep immediately on startup to clean up any backlog.
	r.reap(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *PromptReaper) reap(ctx context.Context) {
	now := time.Now().UTC()
	deleted, err := r.store.PruneExpired(ctx, now)
	if err != nil {
		r.logger.Printf("prompt reap error: %v", err)
		return
	}
	if deleted > 0 {
		r.logger.Printf("prompt reap: deleted %d expired prompts", deleted)
	}
}
