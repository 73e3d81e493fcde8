package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tripsplit/internal/domain"
)

// MemberRepository reads the membership directory tables. The engine never
// writes them; member identity is owned by the surrounding application.
type MemberRepository struct {
	db *sql.DB
}

var _ MemberDirectory = (*MemberRepository)(nil)

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	m := &domain.Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, avatar, tier, role, admin_override, created_at
		 FROM members WHERE id = $1`, memberID,
	).Scan(&m.ID, &m.DisplayName, &m.Avatar, &m.Tier, &m.Role, &m.AdminOverride, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *MemberRepository) ListTripMembers(ctx context.Context, tripID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.display_name, m.avatar, m.tier, m.role, m.admin_override, m.created_at
		 FROM members m
		 JOIN trip_members tm ON tm.member_id = m.id
		 WHERE tm.trip_id = $1
		 ORDER BY m.display_name`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list trip members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.Avatar, &m.Tier, &m.Role, &m.AdminOverride, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// MemoryMemberDirectory is the fixture counterpart of MemberRepository.
type MemoryMemberDirectory struct {
	Members map[string]domain.Member
	Trips   map[string][]string // trip id -> member ids
}

var _ MemberDirectory = (*MemoryMemberDirectory)(nil)

func NewMemoryMemberDirectory() *MemoryMemberDirectory {
	return &MemoryMemberDirectory{
		Members: make(map[string]domain.Member),
		Trips:   make(map[string][]string),
	}
}

func (d *MemoryMemberDirectory) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	m, ok := d.Members[memberID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (d *MemoryMemberDirectory) ListTripMembers(ctx context.Context, tripID string) ([]domain.Member, error) {
	var out []domain.Member
	for _, id := range d.Trips[tripID] {
		if m, ok := d.Members[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
