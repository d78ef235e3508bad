package escrow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/clock"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/locks"
	"github.com/autolot/vehicle-exchange-backend/internal/metrics"
)

// service implements Service and Settler.
type service struct {
	escrowRepo  EscrowRepository
	disputeRepo DisputeRepository
	directory   IdentityDirectory
	notifier    Notifier
	clock       clock.Clock
	logger      *slog.Logger

	// Per-escrow serialization. An initiateDispute racing a release resolves
	// deterministically: first to commit wins, the loser sees InvalidStateError.
	escrowLocks *locks.KeyedMutex
}

// NewService creates the escrow service. The same instance is returned as
// the party/officer-facing Service and as the orchestrator-facing Settler so
// both views share one per-escrow lock table.
func NewService(
	escrowRepo EscrowRepository,
	disputeRepo DisputeRepository,
	directory IdentityDirectory,
	notifier Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) (Service, Settler) {
	s := &service{
		escrowRepo:  escrowRepo,
		disputeRepo: disputeRepo,
		directory:   directory,
		notifier:    notifier,
		clock:       clk,
		logger:      logger,
		escrowLocks: locks.NewKeyedMutex(),
	}
	return s, s
}

func (s *service) GetEscrow(ctx context.Context, escrowID uuid.UUID) (*escrow.Escrow, error) {
	return s.escrowRepo.GetByID(ctx, escrowID)
}

// ProposeCondition records a settlement condition on a live escrow.
func (s *service) ProposeCondition(ctx context.Context, escrowID, officerID uuid.UUID, condition string) (*escrow.Escrow, error) {
	if err := s.requireOfficer(ctx, officerID); err != nil {
		return nil, err
	}

	s.escrowLocks.Lock(escrowID)
	defer s.escrowLocks.Unlock(escrowID)

	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if err := e.ProposeCondition(condition, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.escrowRepo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "escrow condition proposed", "escrow_id", e.ID, "officer_id", officerID)
	return e, nil
}

// InitiateDispute atomically creates the dispute and marks the escrow
// Disputed under the per-escrow lock.
func (s *service) InitiateDispute(ctx context.Context, escrowID, initiatorID uuid.UUID, reason string) (*dispute.Dispute, error) {
	s.escrowLocks.Lock(escrowID)
	defer s.escrowLocks.Unlock(escrowID)

	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	if !e.IsParty(initiatorID) {
		return nil, errors.NewAuthorizationError("only the buyer or seller on the escrow can initiate a dispute")
	}
	if e.Status.IsTerminal() || e.Status == escrow.StatusDisputed {
		return nil, errors.NewInvalidStateError("escrow cannot be disputed while " + e.Status.String())
	}

	d, err := dispute.NewDispute(escrowID, initiatorID, reason)
	if err != nil {
		return nil, err
	}
	if err := e.MarkDisputed(d.ID, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.disputeRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	if err := s.escrowRepo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.notifier.NotifyEscrowDisputed(ctx, e, d)
	metrics.DisputesOpened.Inc()

	s.logger.InfoContext(ctx, "escrow disputed",
		"escrow_id", e.ID,
		"dispute_id", d.ID,
		"initiator_id", initiatorID)
	return d, nil
}

// Release settles in the seller's favor by direct officer action.
func (s *service) Release(ctx context.Context, escrowID, officerID uuid.UUID) (*escrow.Escrow, error) {
	return s.settleByOfficer(ctx, escrowID, officerID, escrow.OutcomeReleased)
}

// Refund settles in the buyer's favor by direct officer action.
func (s *service) Refund(ctx context.Context, escrowID, officerID uuid.UUID) (*escrow.Escrow, error) {
	return s.settleByOfficer(ctx, escrowID, officerID, escrow.OutcomeRefunded)
}

func (s *service) settleByOfficer(ctx context.Context, escrowID, officerID uuid.UUID, outcome escrow.Outcome) (*escrow.Escrow, error) {
	if err := s.requireOfficer(ctx, officerID); err != nil {
		return nil, err
	}

	s.escrowLocks.Lock(escrowID)
	defer s.escrowLocks.Unlock(escrowID)

	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	// Direct officer override is not allowed while arbitration is in
	// progress; only the verdict path settles a Disputed escrow.
	if e.Status == escrow.StatusDisputed {
		return nil, errors.NewInvalidStateError("escrow is under dispute; settlement requires the arbitration verdict")
	}

	return s.settle(ctx, e, outcome)
}

// SettleFromVerdict applies a dispute verdict. Only legal while the escrow is
// still Disputed; a manual override that won the race surfaces as
// AlreadyResolvedError.
func (s *service) SettleFromVerdict(ctx context.Context, escrowID uuid.UUID, outcome escrow.Outcome) (*escrow.Escrow, error) {
	s.escrowLocks.Lock(escrowID)
	defer s.escrowLocks.Unlock(escrowID)

	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	if e.Status != escrow.StatusDisputed {
		return nil, errors.NewAlreadyResolvedError("escrow is no longer disputed: " + e.Status.String())
	}

	return s.settle(ctx, e, outcome)
}

func (s *service) settle(ctx context.Context, e *escrow.Escrow, outcome escrow.Outcome) (*escrow.Escrow, error) {
	now := s.clock.Now()

	var err error
	if outcome == escrow.OutcomeRefunded {
		err = e.Refund(now)
	} else {
		err = e.Release(now)
	}
	if err != nil {
		return nil, err
	}

	if err := s.escrowRepo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.notifier.NotifyEscrowSettled(ctx, e)
	metrics.EscrowsSettled.WithLabelValues(outcome.String()).Inc()

	s.logger.InfoContext(ctx, "escrow settled",
		"escrow_id", e.ID,
		"outcome", outcome.String(),
		"amount", e.Amount.String())
	return e, nil
}

func (s *service) requireOfficer(ctx context.Context, officerID uuid.UUID) error {
	role, err := s.directory.RoleOf(ctx, officerID)
	if err != nil {
		return errors.NewNotFoundError("officer")
	}
	if !role.CanSettleEscrow() {
		return errors.NewAuthorizationError("actor is not an escrow officer")
	}
	return nil
}
