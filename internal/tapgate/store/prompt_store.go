package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPromptNotFound = errors.New("prompt not found")
	ErrPromptExpired  = errors.New("prompt expired")
	ErrPromptConsumed = errors.New("prompt already consumed")
)

// PromptRecord is the ephemeral server-side state behind a prompt_* outcome:
// one tap within the recency window, redeemable exactly once for up to
// RemainingUses admissions before ExpiresAt.
type PromptRecord struct {
	Token         string
	UID           string
	RemainingUses int
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
}

type PromptStore interface {
	Create(ctx context.Context, rec PromptRecord) error
	Get(ctx context.Context, token string) (PromptRecord, error)

	// Redeem atomically marks the prompt consumed.  Of N concurrent callers
	// exactly one succeeds; the rest get ErrPromptConsumed.  Expiry is
	// checked against now inside the same atomic step.
	Redeem(ctx context.Context, token string, now time.Time) (PromptRecord, error)

	// Delete discards a prompt (operator cancel).  Deleting an unknown
	// token is not an error.
	Delete(ctx context.Context, token string) error

	// PruneExpired deletes prompts whose deadline passed before cutoff.
	// Returns the number of rows deleted.
	PruneExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
