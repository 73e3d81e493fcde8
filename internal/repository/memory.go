package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripsplit/internal/domain"
)

// MemoryStore is the in-memory fixture backend. It mirrors the semantics
// of the postgres store so the services cannot tell them apart; used for
// the demo path and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*domain.PaymentRequest
	splits   map[string]string // split id -> payment id
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]*domain.PaymentRequest),
		splits:   make(map[string]string),
	}
}

func (m *MemoryStore) Close() error { return nil }

func clonePayment(p *domain.PaymentRequest) *domain.PaymentRequest {
	cp := *p
	cp.ParticipantIDs = append([]string(nil), p.ParticipantIDs...)
	cp.Methods = append([]string(nil), p.Methods...)
	cp.Splits = make([]domain.PaymentSplit, len(p.Splits))
	for i := range p.Splits {
		cp.Splits[i] = cloneSplit(&p.Splits[i])
	}
	return &cp
}

func cloneSplit(s *domain.PaymentSplit) domain.PaymentSplit {
	cs := *s
	if s.SettledAt != nil {
		t := *s.SettledAt
		cs.SettledAt = &t
	}
	if s.Method != nil {
		v := *s.Method
		cs.Method = &v
	}
	return cs
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *domain.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	p.SplitCount = len(p.ParticipantIDs)

	for i := range p.Splits {
		s := &p.Splits[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.PaymentID = p.ID
		s.Version = 1
		s.UpdatedAt = now
	}

	stored := clonePayment(p)
	m.payments[p.ID] = stored
	for i := range stored.Splits {
		m.splits[stored.Splits[i].ID] = p.ID
	}
	return nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MemoryStore) ListByTrip(ctx context.Context, tripID string) ([]domain.PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.PaymentRequest
	for _, p := range m.payments {
		if p.TripID == tripID {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdatePayment(ctx context.Context, p *domain.PaymentRequest, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.payments[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return &domain.ConflictError{
			ExpectedVersion: expectedVersion,
			ActualVersion:   stored.Version,
			Current:         clonePayment(stored),
		}
	}

	now := time.Now().UTC()
	byDebtor := make(map[string]*domain.PaymentSplit, len(stored.Splits))
	for i := range stored.Splits {
		byDebtor[stored.Splits[i].DebtorID] = &stored.Splits[i]
	}

	for i := range p.Splits {
		s := &p.Splits[i]
		if old, ok := byDebtor[s.DebtorID]; ok {
			s.ID = old.ID
			s.Settled = old.Settled
			s.SettledAt = old.SettledAt
			s.Method = old.Method
			s.Version = old.Version + 1
		} else {
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			s.Version = 1
		}
		s.PaymentID = p.ID
		s.UpdatedAt = now
	}

	p.SplitCount = len(p.ParticipantIDs)
	p.Version = expectedVersion + 1
	p.UpdatedAt = now
	p.CreatedAt = stored.CreatedAt
	p.CreatedBy = stored.CreatedBy
	p.TripID = stored.TripID

	for i := range stored.Splits {
		delete(m.splits, stored.Splits[i].ID)
	}
	next := clonePayment(p)
	m.payments[p.ID] = next
	for i := range next.Splits {
		m.splits[next.Splits[i].ID] = p.ID
	}
	return nil
}

func (m *MemoryStore) DeletePayment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range p.Splits {
		delete(m.splits, p.Splits[i].ID)
	}
	delete(m.payments, id)
	return nil
}

func (m *MemoryStore) GetSplit(ctx context.Context, id string) (*domain.PaymentSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.findSplit(id)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	cs := cloneSplit(s)
	return &cs, nil
}

// findSplit must be called with the lock held.
func (m *MemoryStore) findSplit(id string) *domain.PaymentSplit {
	paymentID, ok := m.splits[id]
	if !ok {
		return nil
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return nil
	}
	for i := range p.Splits {
		if p.Splits[i].ID == id {
			return &p.Splits[i]
		}
	}
	return nil
}

func (m *MemoryStore) UpdateSplit(ctx context.Context, s *domain.PaymentSplit, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.findSplit(s.ID)
	if stored == nil {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		cs := cloneSplit(stored)
		return &domain.ConflictError{
			ExpectedVersion: expectedVersion,
			ActualVersion:   stored.Version,
			Current:         &cs,
		}
	}

	now := time.Now().UTC()
	stored.Settled = s.Settled
	if s.SettledAt != nil {
		t := *s.SettledAt
		stored.SettledAt = &t
	} else {
		stored.SettledAt = nil
	}
	if s.Method != nil {
		v := *s.Method
		stored.Method = &v
	} else {
		stored.Method = nil
	}
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now

	s.Version = stored.Version
	s.UpdatedAt = now
	return nil
}

func (m *MemoryStore) CountByCreator(ctx context.Context, tripID, memberID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.payments {
		if p.TripID == tripID && p.CreatedBy == memberID {
			count++
		}
	}
	return count, nil
}
