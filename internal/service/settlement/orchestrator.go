package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/metrics"
)

// AuctionReader loads the sold auction whose outcome is being settled.
type AuctionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
}

// EscrowRepository persists escrows. GetByAuctionID backs the idempotence
// check; a NotFoundError there means no escrow has been opened yet.
type EscrowRepository interface {
	Create(ctx context.Context, e *escrow.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error)
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*escrow.Escrow, error)
}

// VerdictSettler applies a dispute verdict to a disputed escrow.
type VerdictSettler interface {
	SettleFromVerdict(ctx context.Context, escrowID uuid.UUID, outcome escrow.Outcome) (*escrow.Escrow, error)
}

// Notifier delivers fire-and-forget settlement events.
type Notifier interface {
	NotifyEscrowOpened(ctx context.Context, e *escrow.Escrow)
}

// Orchestrator bridges the auction and escrow lifecycles: it opens the escrow
// when an auction sells, and translates an arbitration verdict into the
// escrow's final outcome. It implements bidding.SettlementHook and
// arbitration.ResolutionHook.
type Orchestrator struct {
	auctions AuctionReader
	escrows  EscrowRepository
	settler  VerdictSettler
	notifier Notifier
	logger   *slog.Logger
}

// NewOrchestrator creates the settlement orchestrator.
func NewOrchestrator(
	auctions AuctionReader,
	escrows EscrowRepository,
	settler VerdictSettler,
	notifier Notifier,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		auctions: auctions,
		escrows:  escrows,
		settler:  settler,
		notifier: notifier,
		logger:   logger,
	}
}

// OnAuctionSold opens the escrow for a sold auction: buyer is the winning
// bidder, the held amount is the winning bid. Idempotent per auction, so the
// handoff can be re-driven after a crash or logged failure.
func (o *Orchestrator) OnAuctionSold(ctx context.Context, auctionID uuid.UUID) error {
	if existing, err := o.escrows.GetByAuctionID(ctx, auctionID); err == nil && existing != nil {
		o.logger.InfoContext(ctx, "escrow already open for auction",
			"auction_id", auctionID, "escrow_id", existing.ID)
		return nil
	}

	a, err := o.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != auction.StatusSold {
		return errors.NewInvalidStateError("auction is not sold: " + a.Status.String())
	}
	if a.HighBid == nil {
		return errors.NewInternalError("sold auction has no winning bid")
	}

	e, err := escrow.NewEscrow(a.ID, a.VehicleID, a.HighBid.BidderID, a.SellerID, a.HighBid.Amount)
	if err != nil {
		return err
	}
	if err := o.escrows.Create(ctx, e); err != nil {
		// A concurrent handoff for the same auction won the race; the unique
		// constraint makes that a success from this side.
		if errors.IsType(err, errors.ErrorTypeConflict) {
			return nil
		}
		return err
	}

	o.notifier.NotifyEscrowOpened(ctx, e)
	metrics.EscrowsCreated.Inc()

	o.logger.InfoContext(ctx, "escrow opened",
		"escrow_id", e.ID,
		"auction_id", a.ID,
		"buyer_id", e.BuyerID,
		"seller_id", e.SellerID,
		"amount", e.Amount.String())
	return nil
}

// OnDisputeResolved maps the verdict onto the escrow outcome and applies it.
// The plaintiff is the party who initiated the dispute: for_plaintiff grants
// the outcome they sought, a refund when the buyer initiated or a release
// when the seller did; for_defendant grants the opposite.
func (o *Orchestrator) OnDisputeResolved(ctx context.Context, d *dispute.Dispute) error {
	if d.Verdict == nil {
		return errors.NewInvalidStateError("dispute has no verdict")
	}

	e, err := o.escrows.GetByID(ctx, d.EscrowID)
	if err != nil {
		return err
	}

	outcome, err := verdictOutcome(e, d)
	if err != nil {
		return err
	}

	if _, err := o.settler.SettleFromVerdict(ctx, d.EscrowID, outcome); err != nil {
		// Already settled means nothing is left to apply; report it, do not
		// retry.
		if errors.HasCode(err, errors.CodeAlreadyResolved) {
			o.logger.WarnContext(ctx, "verdict arrived after escrow was settled",
				"dispute_id", d.ID, "escrow_id", d.EscrowID)
			return nil
		}
		return err
	}

	o.logger.InfoContext(ctx, "verdict applied",
		"dispute_id", d.ID,
		"escrow_id", d.EscrowID,
		"verdict", d.Verdict.String(),
		"outcome", outcome.String())
	return nil
}

// verdictOutcome resolves which side of the escrow the verdict favors.
func verdictOutcome(e *escrow.Escrow, d *dispute.Dispute) (escrow.Outcome, error) {
	buyerInitiated := d.InitiatorID == e.BuyerID
	if !buyerInitiated && d.InitiatorID != e.SellerID {
		return 0, errors.NewInternalError("dispute initiator is not a party to the escrow")
	}

	plaintiffWins := *d.Verdict == dispute.ForPlaintiff
	if buyerInitiated == plaintiffWins {
		return escrow.OutcomeRefunded, nil
	}
	return escrow.OutcomeReleased, nil
}
