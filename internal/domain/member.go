package domain

import "time"

// Subscription tiers. The ceiling per tier comes from configuration.
const (
	TierFree = "free"
	TierPlus = "plus"
	TierPro  = "pro"
)

// UnlimitedQuota marks a tier without a creation ceiling.
const UnlimitedQuota = -1

// Member is supplied by the membership directory. The engine references
// members by opaque id and never invents identities.
type Member struct {
	ID          string
	DisplayName string
	Avatar      string

	Tier string
	Role string

	// AdminOverride bypasses the tier ceiling unconditionally.
	AdminOverride bool

	CreatedAt time.Time
}

// Roles within a trip.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Capabilities is the per-request capability set derived once at the API
// boundary from the member's role, instead of ad hoc permission booleans
// threaded through every call.
type Capabilities struct {
	// SettleForOthers allows toggling settlement on splits the caller
	// does not own. Creators additionally get it for their own payments.
	SettleForOthers bool

	// ManageAnyPayment allows editing or deleting payments regardless of
	// creator.
	ManageAnyPayment bool
}

// CapabilitiesFor maps a role to its capability set.
func CapabilitiesFor(role string) Capabilities {
	if role == RoleAdmin {
		return Capabilities{SettleForOthers: true, ManageAnyPayment: true}
	}
	return Capabilities{}
}

// AccessToken is a bearer token resolved by the auth middleware.
type AccessToken struct {
	ID        int64
	MemberID  string
	TokenHash string
	ExpiresAt *time.Time
}
