package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is the marketplace view of a user: just enough identity to gate
// bidding, escrow actions and arbitration. Profile data lives elsewhere.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Role int

const (
	RoleBuyer Role = iota
	RoleSeller
	RoleAdmin
	RoleArbitrator
	RoleEscrowOfficer
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	case RoleAdmin:
		return "admin"
	case RoleArbitrator:
		return "arbitrator"
	case RoleEscrowOfficer:
		return "escrow_officer"
	default:
		return "unknown"
	}
}

// ParseRole maps the wire representation back to a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "buyer":
		return RoleBuyer, true
	case "seller":
		return RoleSeller, true
	case "admin":
		return RoleAdmin, true
	case "arbitrator":
		return RoleArbitrator, true
	case "escrow_officer":
		return RoleEscrowOfficer, true
	default:
		return RoleBuyer, false
	}
}

// CanSettleEscrow reports whether the role may release or refund escrows
// directly.
func (r Role) CanSettleEscrow() bool {
	return r == RoleEscrowOfficer || r == RoleAdmin
}

type Status int

const (
	StatusActive Status = iota
	StatusSuspended
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus maps the stored representation back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "suspended":
		return StatusSuspended
	case "closed":
		return StatusClosed
	default:
		return StatusActive
	}
}

// New creates an active account with the given role.
func New(email string, role Role) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Email:     email,
		Role:      role,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
