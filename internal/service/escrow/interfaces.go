package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
)

// Service owns the escrow lifecycle between a sold auction and final
// settlement.
type Service interface {
	GetEscrow(ctx context.Context, escrowID uuid.UUID) (*escrow.Escrow, error)
	// ProposeCondition records an officer's settlement condition.
	ProposeCondition(ctx context.Context, escrowID, officerID uuid.UUID, condition string) (*escrow.Escrow, error)
	// InitiateDispute opens a dispute and marks the escrow Disputed in one
	// atomic step. Only the buyer or seller on the escrow may initiate.
	InitiateDispute(ctx context.Context, escrowID, initiatorID uuid.UUID, reason string) (*dispute.Dispute, error)
	// Release settles in the seller's favor by officer action.
	Release(ctx context.Context, escrowID, officerID uuid.UUID) (*escrow.Escrow, error)
	// Refund settles in the buyer's favor by officer action.
	Refund(ctx context.Context, escrowID, officerID uuid.UUID) (*escrow.Escrow, error)
}

// Settler is the orchestrator-facing surface: it applies a dispute verdict to
// a Disputed escrow, bypassing the officer checks that guard direct actions.
type Settler interface {
	SettleFromVerdict(ctx context.Context, escrowID uuid.UUID, outcome escrow.Outcome) (*escrow.Escrow, error)
}

// EscrowRepository persists escrows with optimistic concurrency.
type EscrowRepository interface {
	Create(ctx context.Context, e *escrow.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error)
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*escrow.Escrow, error)
	Update(ctx context.Context, e *escrow.Escrow) error
}

// DisputeRepository persists disputes; only Create is needed on this side.
type DisputeRepository interface {
	Create(ctx context.Context, d *dispute.Dispute) error
}

// IdentityDirectory resolves user references and roles.
type IdentityDirectory interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
	RoleOf(ctx context.Context, userID uuid.UUID) (account.Role, error)
}

// Notifier delivers fire-and-forget escrow events.
type Notifier interface {
	NotifyEscrowDisputed(ctx context.Context, e *escrow.Escrow, d *dispute.Dispute)
	NotifyEscrowSettled(ctx context.Context, e *escrow.Escrow)
}
