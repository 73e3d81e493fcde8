package service

import (
	"context"
	"log/slog"
	"time"

	"tripsplit/internal/clients"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
)

// SettlementService toggles individual splits between settled and
// unsettled. Settlement is self-reported; no money moves.
type SettlementService struct {
	store   repository.Store
	members repository.MemberDirectory
	ws      *clients.WebSocketClient

	// forwardOnly refuses settled → unsettled transitions for
	// deployments that want strict forward-only settlement.
	forwardOnly bool
}

func NewSettlementService(store repository.Store, members repository.MemberDirectory, ws *clients.WebSocketClient, forwardOnly bool) *SettlementService {
	return &SettlementService{store: store, members: members, ws: ws, forwardOnly: forwardOnly}
}

// ToggleResult carries the mutated split plus the parent's derived
// settlement state, recomputed after the toggle.
type ToggleResult struct {
	Split        *domain.PaymentSplit
	SettledCount int
	SplitCount   int
	IsSettled    bool
}

// Toggle sets a split's settled flag. Setting settled stamps the time
// and method (the payment's first preferred method, or "manual", when
// none is given); unsettling clears both. A member may always toggle
// their own split; the payment creator and admins may toggle any.
func (s *SettlementService) Toggle(ctx context.Context, splitID string, expectedVersion int64, settled bool, method *string, caller *domain.Member, caps domain.Capabilities) (*ToggleResult, error) {
	split, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.GetPayment(ctx, split.PaymentID)
	if err != nil {
		return nil, err
	}

	allowed := caller.ID == split.DebtorID ||
		caller.ID == payment.CreatedBy ||
		caps.SettleForOthers
	if !allowed {
		return nil, &domain.PermissionError{Message: "you may only report settlement of your own split"}
	}

	if s.forwardOnly && split.Settled && !settled {
		return nil, &domain.PermissionError{Message: "unsettling is disabled"}
	}

	if settled {
		now := time.Now().UTC()
		split.Settled = true
		split.SettledAt = &now
		m := domain.MethodManual
		if method != nil && *method != "" {
			m = *method
		} else if len(payment.Methods) > 0 {
			m = payment.Methods[0]
		}
		split.Method = &m
	} else {
		split.Settled = false
		split.SettledAt = nil
		split.Method = nil
	}

	if err := s.store.UpdateSplit(ctx, split, expectedVersion); err != nil {
		return nil, err
	}

	// Re-read the parent for the derived settled count; it is never
	// persisted, so this read is the source of truth.
	payment, err = s.store.GetPayment(ctx, split.PaymentID)
	if err != nil {
		return nil, err
	}

	slog.Info("split settlement toggled",
		"split_id", split.ID,
		"payment_id", payment.ID,
		"settled", settled,
		"settled_count", payment.SettledCount(),
		"split_count", len(payment.Splits),
	)

	s.notifyTrip(ctx, payment.TripID, payment.ID)

	return &ToggleResult{
		Split:        split,
		SettledCount: payment.SettledCount(),
		SplitCount:   len(payment.Splits),
		IsSettled:    payment.IsSettled(),
	}, nil
}

func (s *SettlementService) notifyTrip(ctx context.Context, tripID, paymentID string) {
	if s.ws == nil {
		return
	}
	members, err := s.members.ListTripMembers(ctx, tripID)
	if err != nil {
		slog.Warn("notify: failed to list trip members", "trip_id", tripID, "error", err)
		return
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	_ = s.ws.NotifyPaymentChanged(ctx, ids, tripID, paymentID, "split_settled")
}
