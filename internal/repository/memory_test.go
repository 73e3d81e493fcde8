package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripsplit/internal/domain"
)

func newPayment(tripID, creator string, amount int64, debtors ...string) *domain.PaymentRequest {
	splits := make([]domain.PaymentSplit, len(debtors))
	share := amount / int64(len(debtors))
	for i, d := range debtors {
		splits[i] = domain.PaymentSplit{
			DebtorID:   d,
			AmountOwed: domain.Money{Amount: share, Currency: "EUR"},
		}
	}
	return &domain.PaymentRequest{
		TripID:         tripID,
		Description:    "dinner",
		Amount:         domain.Money{Amount: amount, Currency: "EUR"},
		CreatedBy:      creator,
		ParticipantIDs: debtors,
		Splits:         splits,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := newPayment("t1", "alice", 9000, "alice", "bob", "carol")
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected payment id to be assigned")
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}

	got, err := store.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SplitCount != 3 || len(got.Splits) != 3 {
		t.Fatalf("expected 3 splits, got %d/%d", got.SplitCount, len(got.Splits))
	}
	for _, s := range got.Splits {
		if s.ID == "" || s.PaymentID != p.ID || s.Version != 1 {
			t.Fatalf("split not initialized: %+v", s)
		}
	}

	if _, err := store.GetPayment(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := newPayment("t1", "alice", 9000, "alice", "bob")
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := store.GetPayment(ctx, p.ID)
	first.Description = "brunch"
	if err := store.UpdatePayment(ctx, first, 1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("expected version 2, got %d", first.Version)
	}

	// second writer still holds version 1
	stale, _ := store.GetPayment(ctx, p.ID)
	stale.Description = "lunch"
	err := store.UpdatePayment(ctx, stale, 1)

	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ActualVersion != 2 {
		t.Fatalf("expected actual version 2, got %d", conflict.ActualVersion)
	}
	current, ok := conflict.Current.(*domain.PaymentRequest)
	if !ok {
		t.Fatalf("expected current payment in conflict, got %T", conflict.Current)
	}
	if current.Description != "brunch" {
		t.Fatalf("expected authoritative record, got %q", current.Description)
	}
}

func TestMemoryStoreSplitReconciliation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := newPayment("t1", "alice", 9000, "alice", "bob", "carol")
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	// bob settles his share
	var bobSplit domain.PaymentSplit
	for _, s := range p.Splits {
		if s.DebtorID == "bob" {
			bobSplit = s
		}
	}
	now := time.Now().UTC()
	method := domain.MethodCash
	bobSplit.Settled = true
	bobSplit.SettledAt = &now
	bobSplit.Method = &method
	if err := store.UpdateSplit(ctx, &bobSplit, 1); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// edit drops carol, keeps alice and bob
	edited, _ := store.GetPayment(ctx, p.ID)
	edited.ParticipantIDs = []string{"alice", "bob"}
	edited.Splits = []domain.PaymentSplit{
		{DebtorID: "alice", AmountOwed: domain.Money{Amount: 4500, Currency: "EUR"}},
		{DebtorID: "bob", AmountOwed: domain.Money{Amount: 4500, Currency: "EUR"}},
	}
	if err := store.UpdatePayment(ctx, edited, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.GetPayment(ctx, p.ID)
	if len(got.Splits) != 2 {
		t.Fatalf("expected 2 splits, got %d", len(got.Splits))
	}
	for _, s := range got.Splits {
		switch s.DebtorID {
		case "bob":
			if !s.Settled || s.SettledAt == nil || s.Method == nil {
				t.Fatalf("expected bob's settlement state preserved, got %+v", s)
			}
			if s.ID != bobSplit.ID {
				t.Fatal("expected bob's split id to be stable across the edit")
			}
			if s.AmountOwed.Amount != 4500 {
				t.Fatalf("expected recomputed share 4500, got %d", s.AmountOwed.Amount)
			}
		case "alice":
			if s.Settled {
				t.Fatal("alice's split should stay unsettled")
			}
		default:
			t.Fatalf("unexpected debtor %s", s.DebtorID)
		}
	}

	// carol's removed split is gone
	for _, s := range p.Splits {
		if s.DebtorID == "carol" {
			if _, err := store.GetSplit(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected removed split to be gone, got %v", err)
			}
		}
	}
}

func TestMemoryStoreUpdateSplitConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := newPayment("t1", "alice", 6000, "alice", "bob")
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	split := p.Splits[1]

	split.Settled = true
	if err := store.UpdateSplit(ctx, &split, 1); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if split.Version != 2 {
		t.Fatalf("expected version 2, got %d", split.Version)
	}

	// retry with the consumed version
	stale := split
	err := store.UpdateSplit(ctx, &stale, 1)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, ok := conflict.Current.(*domain.PaymentSplit); !ok {
		t.Fatalf("expected current split in conflict, got %T", conflict.Current)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := newPayment("t1", "alice", 6000, "alice", "bob")
	if err := store.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.DeletePayment(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetPayment(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.GetSplit(ctx, p.Splits[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected splits gone after delete, got %v", err)
	}
	if err := store.DeletePayment(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemoryStoreCountByCreator(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		if err := store.CreatePayment(ctx, newPayment("t1", "alice", 6000, "alice", "bob")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := store.CreatePayment(ctx, newPayment("t1", "bob", 6000, "alice", "bob")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreatePayment(ctx, newPayment("t2", "alice", 6000, "alice", "bob")); err != nil {
		t.Fatalf("create: %v", err)
	}

	count, err := store.CountByCreator(ctx, "t1", "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}
