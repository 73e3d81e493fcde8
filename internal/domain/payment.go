package domain

import "time"

// Settlement method tags. Informational only; the engine never moves money.
const (
	MethodManual   = "manual"
	MethodCash     = "cash"
	MethodTransfer = "bank_transfer"
	MethodPayPal   = "paypal"
)

// PaymentRequest is a single shared expense entered by one member and
// divided equally among a set of participants.
type PaymentRequest struct {
	ID          string
	TripID      string
	Description string
	Amount      Money

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	// SplitCount equals len(ParticipantIDs); persisted so the invariant
	// survives partial reads.
	SplitCount     int
	ParticipantIDs []string

	// Methods is the creator's ordered preference of settlement methods.
	Methods []string

	Splits []PaymentSplit

	// Version increases by exactly one on every accepted mutation.
	Version int64
}

// SettledCount returns how many child splits are settled.
func (p *PaymentRequest) SettledCount() int {
	n := 0
	for i := range p.Splits {
		if p.Splits[i].Settled {
			n++
		}
	}
	return n
}

// IsSettled is derived at read time, never persisted.
func (p *PaymentRequest) IsSettled() bool {
	return len(p.Splits) > 0 && p.SettledCount() == len(p.Splits)
}

// HasParticipant reports whether memberID is in the participant set.
func (p *PaymentRequest) HasParticipant(memberID string) bool {
	for _, id := range p.ParticipantIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// PaymentSplit is one participant's share of a payment request,
// independently trackable as settled or not.
type PaymentSplit struct {
	ID        string
	PaymentID string
	DebtorID  string

	AmountOwed Money

	Settled   bool
	SettledAt *time.Time
	Method    *string

	UpdatedAt time.Time
	Version   int64
}

// PaymentPatch is the set of editable fields on a payment request.
// Nil fields are left unchanged; changing Amount or Participants
// recomputes all child splits.
type PaymentPatch struct {
	Description    *string
	Amount         *Money
	ParticipantIDs []string
	Methods        []string
}
