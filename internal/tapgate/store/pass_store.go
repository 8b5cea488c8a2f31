package store

import (
	"context"
	"errors"
	"time"

	"github.com/tapgate/server/internal/tapgate/types"
)

var (
	ErrPassNotFound = errors.New("pass not found")
	ErrDuplicateUID = errors.New("uid already enrolled")
)

type PassRecord struct {
	PassID        string
	UID           string
	PassType      types.PassType
	Category      string
	PeopleAllowed int
	MaxUses       int
	UsedCount     int
	Status        types.PassStatus
	LastUsedAt    *time.Time
	LastScanAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RemainingUses is max_uses - used_count, clamped at zero.
func (r PassRecord) RemainingUses() int {
	n := r.MaxUses - r.UsedCount
	if n < 0 {
		return 0
	}
	return n
}

// PassStore is the authoritative pass state.  Update and UpdateByID are the
// only mutating entry points for verification and consumption; both run fn
// as a single atomic read-modify-write so that concurrent scans of the same
// uid serialize (at-most-one consuming transition per logical admission).
type PassStore interface {
	GetByUID(ctx context.Context, uid string) (PassRecord, error)
	GetByID(ctx context.Context, passID string) (PassRecord, error)
	Create(ctx context.Context, rec PassRecord) error

	// Update locks the pass with the given uid, applies fn to it, and
	// persists the result.  If fn returns an error nothing is persisted and
	// the error is returned.  Returns ErrPassNotFound if the uid is unknown.
	Update(ctx context.Context, uid string, fn func(*PassRecord) error) (PassRecord, error)

	// UpdateByID is Update keyed by pass_id (admin reset path).
	UpdateByID(ctx context.Context, passID string, fn func(*PassRecord) error) (PassRecord, error)

	// Delete permanently removes a pass.  Irreversible, admin-only.
	Delete(ctx context.Context, passID string) error
}
