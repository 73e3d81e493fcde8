package service

import (
	"context"

	"tripsplit/internal/config"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
)

// QuotaService enforces the per-trip creation ceiling. The count is per
// trip per creator over currently-existing payment requests, so deleting
// a request frees up quota.
type QuotaService struct {
	store repository.Store
	cfg   config.QuotaConfig
}

func NewQuotaService(store repository.Store, cfg config.QuotaConfig) *QuotaService {
	return &QuotaService{store: store, cfg: cfg}
}

func (s *QuotaService) ceilingFor(tier string) int {
	switch tier {
	case domain.TierPlus:
		return s.cfg.PlusCeiling
	case domain.TierPro:
		return s.cfg.ProCeiling
	default:
		return s.cfg.FreeCeiling
	}
}

// CheckCreate returns a *domain.QuotaExceededError when the member is at
// their ceiling for the trip, nil when creation is allowed.
func (s *QuotaService) CheckCreate(ctx context.Context, member *domain.Member, tripID string) error {
	if member.AdminOverride {
		return nil
	}
	ceiling := s.ceilingFor(member.Tier)
	if ceiling == domain.UnlimitedQuota {
		return nil
	}

	count, err := s.store.CountByCreator(ctx, tripID, member.ID)
	if err != nil {
		return err
	}
	if count >= ceiling {
		return &domain.QuotaExceededError{MemberID: member.ID, TripID: tripID, Ceiling: ceiling}
	}
	return nil
}

// Remaining returns how many more requests the member may create in the
// trip; domain.UnlimitedQuota (-1) means no ceiling applies.
func (s *QuotaService) Remaining(ctx context.Context, member *domain.Member, tripID string) (int, error) {
	if member.AdminOverride {
		return domain.UnlimitedQuota, nil
	}
	ceiling := s.ceilingFor(member.Tier)
	if ceiling == domain.UnlimitedQuota {
		return domain.UnlimitedQuota, nil
	}

	count, err := s.store.CountByCreator(ctx, tripID, member.ID)
	if err != nil {
		return 0, err
	}
	remaining := ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
