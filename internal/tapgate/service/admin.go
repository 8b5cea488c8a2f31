package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/types"
)

// Search resolves a uid to its pass snapshot without mutating anything.
func (s *PassService) Search(ctx context.Context, uid string) (types.Pass, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return types.Pass{}, ErrInvalidUID
	}
	rec, err := s.passes.GetByUID(ctx, uid)
	if err != nil {
		return types.Pass{}, err
	}
	return passSnapshot(rec), nil
}

// Enroll creates a new pass bound to an NFC tag.  The pass_id is generated
// here and immutable afterwards.  Role restrictions are enforced at the
// HTTP layer.
func (s *PassService) Enroll(ctx context.Context, req types.EnrollRequest, op types.Operator) (types.Pass, error) {
	uid := strings.TrimSpace(req.UID)
	category := strings.TrimSpace(req.Category)

	if uid == "" {
		return types.Pass{}, ErrInvalidUID
	}
	if !req.PassType.Valid() {
		return types.Pass{}, ErrInvalidPassType
	}
	if category == "" {
		return types.Pass{}, ErrInvalidCategory
	}

	people := req.PeopleAllowed
	if people == 0 {
		people = 1
	}
	if people < 1 {
		return types.Pass{}, ErrInvalidPeopleAllowed
	}

	maxUses := req.MaxUses
	if maxUses <= 0 {
		maxUses = s.defaultMaxUses(req.PassType)
	}

	rec := store.PassRecord{
		PassID:        uuid.NewString(),
		UID:           uid,
		PassType:      req.PassType,
		Category:      category,
		PeopleAllowed: people,
		MaxUses:       maxUses,
		Status:        types.PassStatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.passes.Create(ctx, rec); err != nil {
		return types.Pass{}, err
	}

	s.recordScan(ctx, uid, rec.PassID, "", op, "enrolled", 0, rec.CreatedAt)

	return passSnapshot(rec), nil
}

func (s *PassService) defaultMaxUses(t types.PassType) int {
	switch t {
	case types.PassTypeDaily:
		return 1
	case types.PassTypeSession:
		return s.cfg.SessionDefaultUses
	case types.PassTypeSeasonal:
		return s.cfg.SeasonalDefaultUses
	case types.PassTypeUnlimited:
		return types.UnlimitedUses
	}
	return 1
}

// Reset returns a pass to a fresh state: used_count zero, status active,
// usage timestamps cleared.  Admin/manager only (enforced at the HTTP
// layer); the reason lands in the audit log outcome.
func (s *PassService) Reset(ctx context.Context, passID, reason string, op types.Operator) (types.Pass, error) {
	passID = strings.TrimSpace(passID)
	if passID == "" {
		return types.Pass{}, ErrPassNotFound
	}

	updated, err := s.passes.UpdateByID(ctx, passID, func(p *store.PassRecord) error {
		p.UsedCount = 0
		p.Status = types.PassStatusActive
		p.LastUsedAt = nil
		p.LastScanAt = nil
		return nil
	})
	if err != nil {
		return types.Pass{}, err
	}

	outcome := "reset"
	if reason = strings.TrimSpace(reason); reason != "" {
		outcome = "reset: " + reason
	}
	s.recordScan(ctx, updated.UID, updated.PassID, "", op, outcome, 0, time.Now().UTC())

	return passSnapshot(updated), nil
}

// Delete permanently removes a pass.  Irreversible, admin only (enforced
// at the HTTP layer).  Open prompts for the pass die with it.
func (s *PassService) Delete(ctx context.Context, passID string, op types.Operator) error {
	passID = strings.TrimSpace(passID)
	if passID == "" {
		return ErrPassNotFound
	}

	rec, err := s.passes.GetByID(ctx, passID)
	if err != nil {
		return err
	}
	if err := s.passes.Delete(ctx, passID); err != nil {
		return err
	}

	s.recordScan(ctx, rec.UID, rec.PassID, "", op, "deleted", 0, time.Now().UTC())
	return nil
}
