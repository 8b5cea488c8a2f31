package service

import (
	"errors"

	"github.com/tapgate/server/internal/tapgate/store"
)

var (
	ErrInvalidUID           = errors.New("uid is required")
	ErrInvalidGateID        = errors.New("gate_id is required")
	ErrInvalidPromptToken   = errors.New("prompt_token is required")
	ErrInvalidPassType      = errors.New("unknown pass_type")
	ErrInvalidCategory      = errors.New("category is required")
	ErrInvalidPeopleAllowed = errors.New("people_allowed must be at least 1")

	// ErrCategoryMismatch is a distinct refusal: the operator is not
	// authorized for this pass's category.  It is surfaced before the
	// state machine runs, so nothing is consumed.
	ErrCategoryMismatch = errors.New("operator category does not match pass category")

	// ErrCountOutOfRange covers consume_count < 1 and
	// consume_count > remaining uses at prompt issuance.
	ErrCountOutOfRange = errors.New("consume_count out of range")
)

// Store sentinels surfaced through the service API so handlers only need
// this package for error dispatch.
var (
	ErrPassNotFound   = store.ErrPassNotFound
	ErrDuplicateUID   = store.ErrDuplicateUID
	ErrPromptNotFound = store.ErrPromptNotFound
	ErrPromptExpired  = store.ErrPromptExpired
	ErrPromptConsumed = store.ErrPromptConsumed
)
