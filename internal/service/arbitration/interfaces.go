package arbitration

import (
	"context"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
)

// Service runs the arbitration workflow: panel assignment and voting.
type Service interface {
	GetDispute(ctx context.Context, disputeID uuid.UUID) (*dispute.Dispute, error)
	// AssignArbitrators seats a panel on an open dispute. Admin only; every
	// panelist must hold the arbitrator role.
	AssignArbitrators(ctx context.Context, disputeID, adminID uuid.UUID, arbitratorIDs []uuid.UUID) (*dispute.Dispute, error)
	// CastVote records an arbitrator's decision. The vote that completes the
	// panel resolves the dispute and hands the verdict to settlement.
	CastVote(ctx context.Context, disputeID, arbitratorID uuid.UUID, decision dispute.Decision) (*dispute.Dispute, error)
}

// DisputeRepository persists disputes with optimistic concurrency.
type DisputeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error)
	Update(ctx context.Context, d *dispute.Dispute) error
}

// IdentityDirectory resolves user references and roles.
type IdentityDirectory interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (account.Role, error)
}

// Notifier delivers fire-and-forget dispute events.
type Notifier interface {
	NotifyDisputeResolved(ctx context.Context, d *dispute.Dispute)
}

// ResolutionHook is invoked exactly once per dispute, when the final vote
// lands. The settlement orchestrator implements it.
type ResolutionHook interface {
	OnDisputeResolved(ctx context.Context, d *dispute.Dispute) error
}
