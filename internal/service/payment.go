package service

import (
	"context"
	"log/slog"

	"tripsplit/internal/clients"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
	"tripsplit/internal/splitter"
)

// CreatePaymentInput carries the caller-supplied fields for a new payment
// request. Amount is the raw decimal string from the wire; parsing it
// here keeps float drift out of the engine.
type CreatePaymentInput struct {
	TripID         string
	CreatorID      string
	Amount         string
	Currency       string
	Description    string
	ParticipantIDs []string
	Methods        []string
}

// PaymentService owns the lifecycle of payment requests: quota-gated
// creation, creator-only edits and deletion, and trip listings.
type PaymentService struct {
	store   repository.Store
	members repository.MemberDirectory
	quota   *QuotaService
	ws      *clients.WebSocketClient
}

func NewPaymentService(store repository.Store, members repository.MemberDirectory, quota *QuotaService, ws *clients.WebSocketClient) *PaymentService {
	return &PaymentService{store: store, members: members, quota: quota, ws: ws}
}

func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (*domain.PaymentRequest, error) {
	creator, err := s.members.GetMember(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}

	if err := s.quota.CheckCreate(ctx, creator, in.TripID); err != nil {
		return nil, err
	}

	amount, err := domain.ParseAmount(in.Amount, in.Currency)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Message: err.Error()}
	}

	drafts, err := splitter.ComputeSplits(amount, in.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	participants := make([]string, len(drafts))
	splits := make([]domain.PaymentSplit, len(drafts))
	for i, d := range drafts {
		participants[i] = d.DebtorID
		splits[i] = domain.PaymentSplit{
			DebtorID:   d.DebtorID,
			AmountOwed: d.AmountOwed,
		}
	}

	p := &domain.PaymentRequest{
		TripID:         in.TripID,
		Description:    in.Description,
		Amount:         amount,
		CreatedBy:      in.CreatorID,
		ParticipantIDs: participants,
		Methods:        in.Methods,
		Splits:         splits,
	}

	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("payment created", "payment_id", p.ID, "trip_id", p.TripID, "creator", p.CreatedBy, "splits", len(p.Splits))

	s.notifyTrip(ctx, p.TripID, p.ID, "payment_created")
	return p, nil
}

// Update applies a patch to a payment request. Only the creator (or a
// caller with the manage capability) may edit; split amounts are
// recomputed and retained debtors keep their settlement state.
func (s *PaymentService) Update(ctx context.Context, paymentID string, expectedVersion int64, patch domain.PaymentPatch, caller *domain.Member, caps domain.Capabilities) (*domain.PaymentRequest, error) {
	existing, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if existing.CreatedBy != caller.ID && !caps.ManageAnyPayment {
		return nil, &domain.PermissionError{Message: "only the creator may edit this payment request"}
	}

	// Fail fast on a version the caller already knows is stale; the
	// store re-checks under the write lock either way.
	if existing.Version != expectedVersion {
		return nil, &domain.ConflictError{
			ExpectedVersion: expectedVersion,
			ActualVersion:   existing.Version,
			Current:         existing,
		}
	}

	updated := *existing
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, &domain.ValidationError{Field: "amount", Message: "must be greater than zero"}
		}
		updated.Amount = *patch.Amount
	}
	if patch.ParticipantIDs != nil {
		updated.ParticipantIDs = patch.ParticipantIDs
	}
	if patch.Methods != nil {
		updated.Methods = patch.Methods
	}

	drafts, err := splitter.ComputeSplits(updated.Amount, updated.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	updated.ParticipantIDs = make([]string, len(drafts))
	updated.Splits = make([]domain.PaymentSplit, len(drafts))
	for i, d := range drafts {
		updated.ParticipantIDs[i] = d.DebtorID
		updated.Splits[i] = domain.PaymentSplit{
			DebtorID:   d.DebtorID,
			AmountOwed: d.AmountOwed,
		}
	}

	if err := s.store.UpdatePayment(ctx, &updated, expectedVersion); err != nil {
		return nil, err
	}
	slog.Info("payment updated", "payment_id", updated.ID, "version", updated.Version)

	s.notifyTrip(ctx, updated.TripID, updated.ID, "payment_updated")
	return &updated, nil
}

// Delete removes a payment request and its splits. Permitted only for
// the creator or a caller with the manage capability.
func (s *PaymentService) Delete(ctx context.Context, paymentID string, caller *domain.Member, caps domain.Capabilities) error {
	existing, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if existing.CreatedBy != caller.ID && !caps.ManageAnyPayment {
		return &domain.PermissionError{Message: "only the creator may delete this payment request"}
	}

	if err := s.store.DeletePayment(ctx, paymentID); err != nil {
		return err
	}
	slog.Info("payment deleted", "payment_id", paymentID, "trip_id", existing.TripID)

	s.notifyTrip(ctx, existing.TripID, paymentID, "payment_deleted")
	return nil
}

// ListByTrip returns the trip's payment requests with nested splits,
// newest first. Used both by the API and the export pipeline.
func (s *PaymentService) ListByTrip(ctx context.Context, tripID string) ([]domain.PaymentRequest, error) {
	return s.store.ListByTrip(ctx, tripID)
}

func (s *PaymentService) notifyTrip(ctx context.Context, tripID, paymentID, event string) {
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
	_ = s.ws.NotifyPaymentChanged(ctx, ids, tripID, paymentID, event)
}
