package store

import (
	"context"
	"errors"
	"time"

	"github.com/tapgate/server/internal/tapgate/types"
)

var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorExists   = errors.New("operator already exists")
)

type OperatorRecord struct {
	Username     string
	PasswordHash []byte
	Role         types.Role
	Category     string
	CreatedAt    time.Time
}

type OperatorStore interface {
	GetByUsername(ctx context.Context, username string) (OperatorRecord, error)
	Create(ctx context.Context, rec OperatorRecord) error
}
