// Package repository provides persistence for payment requests and their
// splits. Store is the single write authority over durable state; the
// services are written once against it and do not know which backend is
// active.
package repository

import (
	"context"

	"tripsplit/internal/domain"
)

// Store is the payment record store. All mutating operations that take an
// expected version return *domain.ConflictError carrying the authoritative
// current record when the version is stale, and domain.ErrNotFound when the
// target no longer exists.
type Store interface {
	// CreatePayment persists a payment request and its splits atomically.
	// Missing ids and timestamps are assigned; version starts at 1.
	CreatePayment(ctx context.Context, p *domain.PaymentRequest) error

	// GetPayment returns a payment request with its splits.
	GetPayment(ctx context.Context, id string) (*domain.PaymentRequest, error)

	// ListByTrip returns all payment requests of a trip with nested
	// splits, newest first.
	ListByTrip(ctx context.Context, tripID string) ([]domain.PaymentRequest, error)

	// UpdatePayment applies the already-patched payment if the stored
	// version still equals expectedVersion. Splits of retained debtors
	// keep their settlement state and id; removed debtors' splits are
	// deleted and new debtors get fresh splits. Bumps version by one.
	UpdatePayment(ctx context.Context, p *domain.PaymentRequest, expectedVersion int64) error

	// DeletePayment removes a payment request and its splits atomically.
	DeletePayment(ctx context.Context, id string) error

	// GetSplit returns a single split.
	GetSplit(ctx context.Context, id string) (*domain.PaymentSplit, error)

	// UpdateSplit applies the split's settlement fields if the stored
	// version still equals expectedVersion. Bumps version by one.
	UpdateSplit(ctx context.Context, s *domain.PaymentSplit, expectedVersion int64) error

	// CountByCreator counts currently-existing payment requests created
	// by a member within a trip. Deleted requests free up quota.
	CountByCreator(ctx context.Context, tripID, memberID string) (int, error)

	Close() error
}

// MemberDirectory resolves trip membership. Owned by the surrounding
// application; the engine only reads it.
type MemberDirectory interface {
	GetMember(ctx context.Context, memberID string) (*domain.Member, error)
	ListTripMembers(ctx context.Context, tripID string) ([]domain.Member, error)
}
