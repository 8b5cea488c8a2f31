package types

import "time"

type PassType string

const (
	PassTypeDaily     PassType = "daily"
	PassTypeSeasonal  PassType = "seasonal"
	PassTypeUnlimited PassType = "unlimited"
	PassTypeSession   PassType = "session"
)

func (t PassType) Valid() bool {
	switch t {
	case PassTypeDaily, PassTypeSeasonal, PassTypeUnlimited, PassTypeSession:
		return true
	}
	return false
}

// MultiUse reports whether taps on this pass type are eligible for the
// recency-window prompt flow.
func (t PassType) MultiUse() bool {
	return t == PassTypeSession || t == PassTypeSeasonal
}

type PassStatus string

const (
	PassStatusActive   PassStatus = "active"
	PassStatusBlocked  PassStatus = "blocked"
	PassStatusConsumed PassStatus = "consumed"
)

// UnlimitedUses is the max_uses sentinel for unlimited passes.
const UnlimitedUses = 999999

type Pass struct {
	PassID        string     `json:"pass_id"`
	UID           string     `json:"uid"`
	PassType      PassType   `json:"pass_type"`
	Category      string     `json:"category"`
	PeopleAllowed int        `json:"people_allowed"`
	MaxUses       int        `json:"max_uses"`
	UsedCount     int        `json:"used_count"`
	Status        PassStatus `json:"status"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	LastScanAt    *time.Time `json:"last_scan_at,omitempty"`
}

// RemainingUses is max_uses - used_count, clamped at zero.
func (p Pass) RemainingUses() int {
	r := p.MaxUses - p.UsedCount
	if r < 0 {
		return 0
	}
	return r
}
