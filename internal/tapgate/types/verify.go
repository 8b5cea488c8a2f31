package types

import "time"

type VerifyRequest struct {
	UID    string `json:"uid"`
	GateID string `json:"gate_id"`
}

type VerifyStatus string

const (
	StatusValid                  VerifyStatus = "valid"
	StatusUsed                   VerifyStatus = "used"
	StatusBlocked                VerifyStatus = "blocked"
	StatusInvalid                VerifyStatus = "invalid"
	StatusPromptMultiUse         VerifyStatus = "prompt_multi_use"
	StatusPromptSeasonalMultiUse VerifyStatus = "prompt_seasonal_multi_use"
)

// Prompt reports whether the status is one of the non-terminal prompt
// outcomes awaiting operator confirmation.
func (s VerifyStatus) Prompt() bool {
	return s == StatusPromptMultiUse || s == StatusPromptSeasonalMultiUse
}

// VerificationResult is the engine's output for one scan.  All classified
// outcomes (valid/used/blocked/prompt_*) travel as HTTP 200 with the
// taxonomy in Status; only a truly unknown uid is a 404.
type VerificationResult struct {
	Status        VerifyStatus `json:"status"`
	Pass          *Pass        `json:"pass,omitempty"`
	RemainingUses int          `json:"remaining_uses"`
	PromptToken   string       `json:"prompt_token,omitempty"`
	LastUsedAt    *time.Time   `json:"last_used_at,omitempty"`
	ServerTime    string       `json:"server_time"`
}

type ConsumePromptRequest struct {
	PromptToken  string `json:"prompt_token"`
	ConsumeCount int    `json:"consume_count"`
	GateID       string `json:"gate_id"`
}

type CancelPromptRequest struct {
	PromptToken string `json:"prompt_token"`
}

type EnrollRequest struct {
	UID           string   `json:"uid"`
	PassType      PassType `json:"pass_type"`
	Category      string   `json:"category"`
	PeopleAllowed int      `json:"people_allowed,omitempty"`
	MaxUses       int      `json:"max_uses,omitempty"`
}

type ResetRequest struct {
	Reason string `json:"reason,omitempty"`
}
