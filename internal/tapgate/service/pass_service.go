package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/types"
)

// DefaultPromptWindow is the recency window ("15-minute rule"): a repeat
// tap on a multi-use pass within this span of its last use yields a prompt
// instead of an immediate single consumption.  Issued prompt tokens expire
// after the same span.
const DefaultPromptWindow = 15 * time.Minute

const defaultAllAccessCategory = "All Access"

type Config struct {
	// PromptWindow overrides DefaultPromptWindow when > 0.
	PromptWindow time.Duration

	// Default max_uses for enrollment when the request leaves it unset.
	// Daily is always 1 and unlimited always the sentinel; only the
	// multi-use types are tunable.
	SessionDefaultUses  int
	SeasonalDefaultUses int

	// AllAccessCategory is the operator category that bypasses the gate
	// for bouncers.  Defaults to "All Access".
	AllAccessCategory string
}

type PassService struct {
	passes  store.PassStore
	prompts store.PromptStore
	events  store.ScanEventStore
	cfg     Config
}

func NewPassService(passes store.PassStore, prompts store.PromptStore, events store.ScanEventStore, cfg Config) *PassService {
	if cfg.PromptWindow <= 0 {
		cfg.PromptWindow = DefaultPromptWindow
	}
	if cfg.SessionDefaultUses <= 0 {
		cfg.SessionDefaultUses = 10
	}
	if cfg.SeasonalDefaultUses <= 0 {
		cfg.SeasonalDefaultUses = 30
	}
	if strings.TrimSpace(cfg.AllAccessCategory) == "" {
		cfg.AllAccessCategory = defaultAllAccessCategory
	}
	return &PassService{passes: passes, prompts: prompts, events: events, cfg: cfg}
}

// Verify classifies one scanned uid into exactly one outcome per tap:
// invalid, blocked, used, valid (consuming one use), or a prompt_* outcome
// that defers consumption to ConsumePrompt.
func (s *PassService) Verify(ctx context.Context, req types.VerifyRequest, op types.Operator) (types.VerificationResult, error) {
	now := time.Now().UTC()

	uid := strings.TrimSpace(req.UID)
	gateID := strings.TrimSpace(req.GateID)
	if uid == "" {
		return types.VerificationResult{}, ErrInvalidUID
	}
	if gateID == "" {
		return types.VerificationResult{}, ErrInvalidGateID
	}

	existing, err := s.passes.GetByUID(ctx, uid)
	if errors.Is(err, store.ErrPassNotFound) {
		s.recordScan(ctx, uid, "", gateID, op, string(types.StatusInvalid), 0, now)
		return types.VerificationResult{
			Status:     types.StatusInvalid,
			ServerTime: serverTime(now),
		}, nil
	}
	if err != nil {
		return types.VerificationResult{}, err
	}

	// The category gate runs before the state machine so an unauthorized
	// check never touches usage counters.
	if !s.categoryAllowed(op, existing.Category) {
		s.recordScan(ctx, uid, existing.PassID, gateID, op, "category_mismatch", 0, now)
		return types.VerificationResult{}, ErrCategoryMismatch
	}

	var outcome types.VerifyStatus
	var consumed int
	updated, err := s.passes.Update(ctx, uid, func(p *store.PassRecord) error {
		outcome, consumed = stepVerify(p, now, s.cfg.PromptWindow)
		return nil
	})
	if err != nil {
		return types.VerificationResult{}, err
	}

	result := resultFor(updated, outcome, now)

	if outcome.Prompt() {
		prompt := store.PromptRecord{
			Token:         uuid.NewString(),
			UID:           uid,
			RemainingUses: updated.RemainingUses(),
			IssuedAt:      now,
			ExpiresAt:     now.Add(s.cfg.PromptWindow),
		}
		if err := s.prompts.Create(ctx, prompt); err != nil {
			return types.VerificationResult{}, err
		}
		result.PromptToken = prompt.Token
	}

	s.recordScan(ctx, uid, updated.PassID, gateID, op, string(outcome), consumed, now)

	return result, nil
}

// stepVerify advances the pass through the verification state machine for
// one tap.  Returns the outcome and the number of uses consumed.  Runs
// inside the store's atomic update, so concurrent taps on the same uid
// serialize here.
func stepVerify(p *store.PassRecord, now time.Time, window time.Duration) (types.VerifyStatus, int) {
	p.LastScanAt = &now

	if p.Status == types.PassStatusBlocked {
		return types.StatusBlocked, 0
	}

	// Unlimited passes always admit and never count toward exhaustion.
	if p.PassType == types.PassTypeUnlimited {
		p.LastUsedAt = &now
		return types.StatusValid, 0
	}

	if p.RemainingUses() == 0 {
		return types.StatusUsed, 0
	}

	// Recency window: a repeat tap on a multi-use pass becomes a prompt
	// instead of an immediate consumption.  A first-ever use (no
	// last_used_at yet) always consumes directly.
	if p.PassType.MultiUse() && p.LastUsedAt != nil && now.Sub(*p.LastUsedAt) <= window {
		if p.PassType == types.PassTypeSeasonal {
			return types.StatusPromptSeasonalMultiUse, 0
		}
		return types.StatusPromptMultiUse, 0
	}

	p.UsedCount++
	p.LastUsedAt = &now
	if p.UsedCount >= p.MaxUses {
		p.Status = types.PassStatusConsumed
	}
	return types.StatusValid, 1
}

// categoryAllowed applies the gate rule: bouncers need an exact
// (normalized) category match or the all-access assignment; admin and
// manager bypass entirely.
func (s *PassService) categoryAllowed(op types.Operator, passCategory string) bool {
	if op.Role != types.RoleBouncer {
		return true
	}
	oc := normalizeCategory(op.Category)
	if oc == normalizeCategory(s.cfg.AllAccessCategory) {
		return true
	}
	return oc == normalizeCategory(passCategory)
}

func normalizeCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// recordScan persists the decision to the audit log.  Errors are
// intentionally not returned to the caller — a failed audit write should
// not prevent the operator from receiving the verification outcome.
func (s *PassService) recordScan(ctx context.Context, uid, passID, gateID string, op types.Operator, outcome string, consumed int, decidedAt time.Time) {
	_ = s.events.RecordScan(ctx, store.ScanEventRecord{
		UID:           uid,
		PassID:        passID,
		GateID:        gateID,
		ScannedBy:     op.Username,
		Outcome:       outcome,
		ConsumedCount: consumed,
		ReceivedAt:    decidedAt,
		DecidedAt:     decidedAt,
	})
}

func resultFor(rec store.PassRecord, outcome types.VerifyStatus, now time.Time) types.VerificationResult {
	snap := passSnapshot(rec)
	return types.VerificationResult{
		Status:        outcome,
		Pass:          &snap,
		RemainingUses: rec.RemainingUses(),
		LastUsedAt:    snap.LastUsedAt,
		ServerTime:    serverTime(now),
	}
}

func passSnapshot(rec store.PassRecord) types.Pass {
	return types.Pass{
		PassID:        rec.PassID,
		UID:           rec.UID,
		PassType:      rec.PassType,
		Category:      rec.Category,
		PeopleAllowed: rec.PeopleAllowed,
		MaxUses:       rec.MaxUses,
		UsedCount:     rec.UsedCount,
		Status:        rec.Status,
		LastUsedAt:    rec.LastUsedAt,
		LastScanAt:    rec.LastScanAt,
	}
}

func serverTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
