package service

import (
	"context"

	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
	"tripsplit/internal/splitter"
)

// BalanceService derives per-viewer balance summaries. Summaries are
// recomputed fully on every call; there is no cache to invalidate.
type BalanceService struct {
	store repository.Store
}

func NewBalanceService(store repository.Store) *BalanceService {
	return &BalanceService{store: store}
}

// Summary aggregates the trip's unsettled splits from the viewer's
// perspective. An empty trip yields an all-zero summary, not an error.
func (s *BalanceService) Summary(ctx context.Context, tripID, viewerID string) (domain.BalanceSummary, error) {
	payments, err := s.store.ListByTrip(ctx, tripID)
	if err != nil {
		return domain.BalanceSummary{}, err
	}
	return splitter.Summarize(tripID, viewerID, payments), nil
}
