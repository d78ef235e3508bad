package arbitration

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/clock"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/locks"
	"github.com/autolot/vehicle-exchange-backend/internal/metrics"
)

type service struct {
	disputeRepo DisputeRepository
	directory   IdentityDirectory
	notifier    Notifier
	resolution  ResolutionHook
	clock       clock.Clock
	logger      *slog.Logger

	// Per-dispute serialization. Two simultaneous final votes cannot both
	// observe an incomplete panel.
	disputeLocks *locks.KeyedMutex
}

// NewService creates the arbitration service.
func NewService(
	disputeRepo DisputeRepository,
	directory IdentityDirectory,
	notifier Notifier,
	resolution ResolutionHook,
	clk clock.Clock,
	logger *slog.Logger,
) Service {
	return &service{
		disputeRepo:  disputeRepo,
		directory:    directory,
		notifier:     notifier,
		resolution:   resolution,
		clock:        clk,
		logger:       logger,
		disputeLocks: locks.NewKeyedMutex(),
	}
}

func (s *service) GetDispute(ctx context.Context, disputeID uuid.UUID) (*dispute.Dispute, error) {
	return s.disputeRepo.GetByID(ctx, disputeID)
}

// AssignArbitrators seats the panel and opens voting.
func (s *service) AssignArbitrators(ctx context.Context, disputeID, adminID uuid.UUID, arbitratorIDs []uuid.UUID) (*dispute.Dispute, error) {
	adminRole, err := s.directory.RoleOf(ctx, adminID)
	if err != nil {
		return nil, errors.NewNotFoundError("admin")
	}
	if adminRole != account.RoleAdmin {
		return nil, errors.NewAuthorizationError("only an admin can assign arbitrators")
	}

	for _, id := range arbitratorIDs {
		role, err := s.directory.RoleOf(ctx, id)
		if err != nil {
			return nil, errors.NewNotFoundError("arbitrator " + id.String())
		}
		if role != account.RoleArbitrator {
			return nil, errors.NewValidationError("NOT_AN_ARBITRATOR", "user is not an arbitrator: "+id.String())
		}
	}

	s.disputeLocks.Lock(disputeID)
	defer s.disputeLocks.Unlock(disputeID)

	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := d.AssignArbitrators(arbitratorIDs, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.disputeRepo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "arbitration panel assigned",
		"dispute_id", d.ID,
		"admin_id", adminID,
		"panel_size", len(d.Arbitrators))
	return d, nil
}

// CastVote records the vote and, if it completes the panel, drives the
// verdict through settlement before releasing the dispute lock.
func (s *service) CastVote(ctx context.Context, disputeID, arbitratorID uuid.UUID, decision dispute.Decision) (*dispute.Dispute, error) {
	s.disputeLocks.Lock(disputeID)
	defer s.disputeLocks.Unlock(disputeID)

	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == dispute.StatusResolved {
		return nil, errors.NewAlreadyResolvedError(disputeID.String())
	}

	resolved, err := d.CastVote(arbitratorID, decision, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.disputeRepo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "arbitration vote cast",
		"dispute_id", d.ID,
		"arbitrator_id", arbitratorID,
		"decision", decision.String())

	if resolved {
		metrics.DisputesResolved.WithLabelValues(d.Verdict.String()).Inc()
		s.logger.InfoContext(ctx, "dispute resolved",
			"dispute_id", d.ID,
			"verdict", d.Verdict.String(),
			"votes", len(d.Votes))

		// The verdict applies to the escrow exactly once. A failure here is
		// logged rather than returned: the vote itself committed, and the
		// settlement path rejects a second application on retry.
		if err := s.resolution.OnDisputeResolved(ctx, d); err != nil {
			s.logger.ErrorContext(ctx, "verdict settlement failed", "dispute_id", d.ID, "error", err)
		}
		s.notifier.NotifyDisputeResolved(ctx, d)
	}

	return d, nil
}
