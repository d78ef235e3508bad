package bidding

import (
	"context"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/clock"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/locks"
	"github.com/autolot/vehicle-exchange-backend/internal/metrics"
)

const historyPageSize = 100

// service implements the Service interface
type service struct {
	auctionRepo AuctionRepository
	bidRepo     BidRepository
	directory   IdentityDirectory
	cache       HighBidCache
	notifier    Notifier
	settlement  SettlementHook
	clock       clock.Clock
	logger      *slog.Logger

	// Per-auction serialization point. Concurrent bids on different auctions
	// never block each other.
	auctionLocks *locks.KeyedMutex

	limiter *bidRateLimiter
}

// NewService creates the bidding service.
func NewService(
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	directory IdentityDirectory,
	cache HighBidCache,
	notifier Notifier,
	settlement SettlementHook,
	clk clock.Clock,
	logger *slog.Logger,
) Service {
	return &service{
		auctionRepo:  auctionRepo,
		bidRepo:      bidRepo,
		directory:    directory,
		cache:        cache,
		notifier:     notifier,
		settlement:   settlement,
		clock:        clk,
		logger:       logger,
		auctionLocks: locks.NewKeyedMutex(),
		limiter:      newBidRateLimiter(defaultBidRate, defaultBidBurst),
	}
}

// CreateAuction lists a vehicle for timed sale.
func (s *service) CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*auction.Auction, error) {
	ok, err := s.directory.Exists(ctx, req.SellerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to resolve seller").WithCause(err)
	}
	if !ok {
		return nil, errors.NewNotFoundError("seller")
	}

	a, err := auction.NewAuction(req.VehicleID, req.SellerID, req.ReservePrice, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	if err := s.auctionRepo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "auction created",
		"auction_id", a.ID,
		"seller_id", a.SellerID,
		"reserve", a.ReservePrice.String(),
		"ends_at", a.EndTime)
	return a, nil
}

// GetAuction returns the auction after applying any due time-based
// transitions. Lazy evaluation keeps correctness independent of the sweeper.
func (s *service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	s.auctionLocks.Lock(auctionID)
	defer s.auctionLocks.Unlock(auctionID)

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return s.progress(ctx, a)
}

// PlaceBid is the single serialization point per auction.
func (s *service) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*auction.Bid, error) {
	if err := s.validateBidRequest(req); err != nil {
		return nil, err
	}

	if !s.limiter.allow(req.BidderID) {
		return nil, errors.NewRateLimitError("bid rate limit exceeded")
	}

	ok, err := s.directory.Exists(ctx, req.BidderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to resolve bidder").WithCause(err)
	}
	if !ok {
		metrics.BidsRejected.WithLabelValues(errors.CodeUnknownBidder).Inc()
		return nil, errors.NewUnknownBidderError(req.BidderID.String())
	}

	s.auctionLocks.Lock(req.AuctionID)
	defer s.auctionLocks.Unlock(req.AuctionID)

	// Idempotent retry: the exact same bid resubmitted under its id is a
	// success, not a duplicate. A reused id that names a different bid is a
	// conflict, never silently answered with the unrelated bid.
	if req.BidID != uuid.Nil {
		if existing, err := s.bidRepo.GetByID(ctx, req.BidID); err == nil && existing != nil {
			if existing.AuctionID != req.AuctionID || existing.BidderID != req.BidderID || !existing.Amount.Equal(req.Amount) {
				return nil, errors.NewConflictError("bid ID is already bound to a different bid")
			}
			return existing, nil
		}
	}

	a, err := s.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}
	if a, err = s.progress(ctx, a); err != nil {
		return nil, err
	}

	b, err := auction.NewBid(req.AuctionID, req.BidderID, req.Amount, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if req.BidID != uuid.Nil {
		b.ID = req.BidID
	}

	if err := a.AdmitBid(b, s.clock.Now()); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			metrics.BidsRejected.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}

	// Single atomic commit: ledger append plus high-bid pointer advance.
	// A concurrent writer on another instance surfaces here as a conflict.
	if err := s.bidRepo.Append(ctx, a, b); err != nil {
		return nil, err
	}

	if err := s.cache.SetHighBid(ctx, a.ID, a.HighBid); err != nil {
		s.logger.WarnContext(ctx, "high bid cache update failed", "auction_id", a.ID, "error", err)
	}

	s.notifier.NotifyBidAccepted(ctx, a, b)
	metrics.BidsAccepted.Inc()
	metrics.BidAmount.Observe(b.Amount.ToFloat64())

	s.logger.InfoContext(ctx, "bid accepted",
		"auction_id", a.ID,
		"bid_id", b.ID,
		"bidder_id", b.BidderID,
		"amount", b.Amount.String())
	return b, nil
}

// CancelAuction is the seller's side exit from Active.
func (s *service) CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) error {
	s.auctionLocks.Lock(auctionID)
	defer s.auctionLocks.Unlock(auctionID)

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if a, err = s.progress(ctx, a); err != nil {
		return err
	}

	if a.SellerID != sellerID {
		return errors.NewAuthorizationError("only the listing seller can cancel the auction")
	}
	if err := a.Cancel(s.clock.Now()); err != nil {
		return err
	}
	if err := s.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, a.ID); err != nil {
		s.logger.WarnContext(ctx, "high bid cache invalidation failed", "auction_id", a.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "auction cancelled", "auction_id", a.ID, "seller_id", sellerID)
	return nil
}

// HighBid answers the current leader in O(1) via the cache, falling back to
// the auction row.
func (s *service) HighBid(ctx context.Context, auctionID uuid.UUID) (*auction.HighBid, error) {
	if hb, hit, err := s.cache.GetHighBid(ctx, auctionID); err == nil && hit {
		return hb, nil
	}

	a, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetHighBid(ctx, auctionID, a.HighBid); err != nil {
		s.logger.WarnContext(ctx, "high bid cache backfill failed", "auction_id", auctionID, "error", err)
	}
	return a.HighBid, nil
}

// History streams the ledger in acceptance order, paging lazily. Each range
// over the sequence restarts from the beginning.
func (s *service) History(ctx context.Context, auctionID uuid.UUID) iter.Seq2[*auction.Bid, error] {
	return func(yield func(*auction.Bid, error) bool) {
		offset := 0
		for {
			page, err := s.bidRepo.ListByAuction(ctx, auctionID, offset, historyPageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, b := range page {
				if !yield(b, nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
			offset += len(page)
		}
	}
}

// SweepDue nudges due auctions through activation and close. Errors on
// individual auctions are logged and do not stop the sweep.
func (s *service) SweepDue(ctx context.Context) error {
	due, err := s.auctionRepo.ListDue(ctx, s.clock.Now(), 100)
	if err != nil {
		return err
	}

	for _, a := range due {
		s.auctionLocks.Lock(a.ID)
		fresh, err := s.auctionRepo.GetByID(ctx, a.ID)
		if err == nil {
			_, err = s.progress(ctx, fresh)
		}
		s.auctionLocks.Unlock(a.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep failed for auction", "auction_id", a.ID, "error", err)
		}
	}
	return nil
}

// progress applies due time-based transitions under the caller-held auction
// lock: Pending→Active at start time, Active→Closed at end time, and
// Closed→Sold when a qualifying bid exists. A version conflict means another
// instance progressed the auction first; the fresh row wins.
func (s *service) progress(ctx context.Context, a *auction.Auction) (*auction.Auction, error) {
	now := s.clock.Now()
	changed := false
	sold := false

	if a.Status == auction.StatusPending && !now.Before(a.StartTime) {
		if err := a.Activate(now); err != nil {
			return nil, err
		}
		changed = true
	}

	if a.Status == auction.StatusActive && !now.Before(a.EndTime) {
		if err := a.Close(now); err != nil {
			return nil, err
		}
		changed = true

		if a.HasQualifyingBid() {
			if err := a.MarkSold(now); err != nil {
				return nil, err
			}
			sold = true
		} else {
			metrics.AuctionsClosedUnsold.Inc()
			s.logger.InfoContext(ctx, "auction closed unsold", "auction_id", a.ID)
		}
	}

	if !changed {
		return a, nil
	}

	if err := s.auctionRepo.Update(ctx, a); err != nil {
		if errors.IsType(err, errors.ErrorTypeConflict) {
			return s.auctionRepo.GetByID(ctx, a.ID)
		}
		return nil, err
	}

	if sold {
		metrics.AuctionsSold.Inc()
		s.logger.InfoContext(ctx, "auction sold",
			"auction_id", a.ID,
			"winning_bid", a.HighBid.BidID,
			"amount", a.HighBid.Amount.String())

		// Escrow creation is idempotent per auction, so a logged failure here
		// can be re-driven safely; it is never surfaced to the bidder.
		if err := s.settlement.OnAuctionSold(ctx, a.ID); err != nil {
			s.logger.ErrorContext(ctx, "settlement handoff failed", "auction_id", a.ID, "error", err)
		}
		s.notifier.NotifyAuctionSold(ctx, a)
	}

	return a, nil
}

func (s *service) validateBidRequest(req *PlaceBidRequest) error {
	if req.AuctionID == uuid.Nil {
		return errors.NewValidationError("MISSING_AUCTION_ID", "auction ID is required")
	}
	if req.BidderID == uuid.Nil {
		return errors.NewValidationError("MISSING_BIDDER_ID", "bidder ID is required")
	}
	if !req.Amount.IsPositive() {
		return errors.NewValidationError("INVALID_BID_AMOUNT", "bid amount must be positive")
	}
	return nil
}
