package service

import (
	"context"
	"strings"
	"time"

	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/types"
)

// ConsumePrompt redeems a prompt token for consume_count admissions.
// A token is spent exactly once: of N concurrent confirmations, one
// succeeds and the rest fail with ErrPromptConsumed.
func (s *PassService) ConsumePrompt(ctx context.Context, req types.ConsumePromptRequest, op types.Operator) (types.VerificationResult, error) {
	now := time.Now().UTC()

	token := strings.TrimSpace(req.PromptToken)
	gateID := strings.TrimSpace(req.GateID)
	if token == "" {
		return types.VerificationResult{}, ErrInvalidPromptToken
	}
	if gateID == "" {
		return types.VerificationResult{}, ErrInvalidGateID
	}

	prompt, err := s.prompts.Get(ctx, token)
	if err != nil {
		return types.VerificationResult{}, err
	}

	// Expiry outranks every other refusal: a dead token reports
	// prompt_expired no matter what count came with it.
	if now.After(prompt.ExpiresAt) {
		return types.VerificationResult{}, ErrPromptExpired
	}

	// Count bounds are checked before the token is spent, so an
	// out-of-range pick can be corrected without a re-scan.
	if req.ConsumeCount < 1 || req.ConsumeCount > prompt.RemainingUses {
		return types.VerificationResult{}, ErrCountOutOfRange
	}

	prompt, err = s.prompts.Redeem(ctx, token, now)
	if err != nil {
		return types.VerificationResult{}, err
	}

	count := req.ConsumeCount
	updated, err := s.passes.Update(ctx, prompt.UID, func(p *store.PassRecord) error {
		// The pass may have been consumed through another path since the
		// prompt was issued; used_count must never pass max_uses.
		if p.UsedCount+count > p.MaxUses {
			return ErrCountOutOfRange
		}
		p.UsedCount += count
		p.LastUsedAt = &now
		if p.UsedCount >= p.MaxUses {
			p.Status = types.PassStatusConsumed
		}
		return nil
	})
	if err != nil {
		return types.VerificationResult{}, err
	}

	s.recordScan(ctx, prompt.UID, updated.PassID, gateID, op, "prompt_consumed", count, now)

	return resultFor(updated, types.StatusValid, now), nil
}

// CancelPrompt discards an unconfirmed prompt.  Purely hygienic — an
// abandoned token expires on its own either way — so cancelling an
// unknown token is not an error.
func (s *PassService) CancelPrompt(ctx context.Context, req types.CancelPromptRequest) error {
	token := strings.TrimSpace(req.PromptToken)
	if token == "" {
		return ErrInvalidPromptToken
	}
	return s.prompts.Delete(ctx, token)
}
