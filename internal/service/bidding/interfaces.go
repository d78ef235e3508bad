package bidding

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// Service owns the auction lifecycle and is the only entry point for bid
// admission.
type Service interface {
	// CreateAuction lists a vehicle for timed sale, starting Pending.
	CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*auction.Auction, error)
	// GetAuction returns the auction after applying any due time-based transitions.
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)
	// PlaceBid validates and appends a bid; the serialization point per auction.
	PlaceBid(ctx context.Context, req *PlaceBidRequest) (*auction.Bid, error)
	// CancelAuction is the seller's side exit, legal only before the first bid.
	CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) error
	// HighBid returns the current leader, or nil when there are no bids yet.
	HighBid(ctx context.Context, auctionID uuid.UUID) (*auction.HighBid, error)
	// History streams accepted bids in acceptance order. The sequence is lazy
	// and restartable; each range re-reads from the ledger.
	History(ctx context.Context, auctionID uuid.UUID) iter.Seq2[*auction.Bid, error]
	// SweepDue nudges due auctions through their time-based transitions.
	// Correctness never depends on it; it exists for freshness.
	SweepDue(ctx context.Context) error
}

// AuctionRepository persists auctions with optimistic concurrency: Update
// matches on Version and bumps it, failing with a ConflictError when the row
// moved underneath the writer.
type AuctionRepository interface {
	Create(ctx context.Context, a *auction.Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)
	Update(ctx context.Context, a *auction.Auction) error
	// ListDue returns pending auctions whose start time has passed and active
	// auctions whose end time has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)
}

// BidRepository is the append-only ledger of accepted bids.
type BidRepository interface {
	// Append commits the bid together with the auction's advanced high-bid
	// pointer in one atomic write. It is idempotent for a retried bid ID and
	// fails with a ConflictError when the auction version moved.
	Append(ctx context.Context, a *auction.Auction, b *auction.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error)
	// ListByAuction returns accepted bids in acceptance order, oldest first.
	ListByAuction(ctx context.Context, auctionID uuid.UUID, offset, limit int) ([]*auction.Bid, error)
}

// IdentityDirectory resolves user references against the account store.
type IdentityDirectory interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// HighBidCache answers the current leader in O(1) without touching the
// auction row. Best effort: a miss or error falls back to the repository.
type HighBidCache interface {
	GetHighBid(ctx context.Context, auctionID uuid.UUID) (*auction.HighBid, bool, error)
	SetHighBid(ctx context.Context, auctionID uuid.UUID, hb *auction.HighBid) error
	Invalidate(ctx context.Context, auctionID uuid.UUID) error
}

// Notifier delivers fire-and-forget events to the external sink. Failures are
// the sink's problem; none propagate into state transitions.
type Notifier interface {
	NotifyBidAccepted(ctx context.Context, a *auction.Auction, b *auction.Bid)
	NotifyAuctionSold(ctx context.Context, a *auction.Auction)
}

// SettlementHook is invoked exactly when an auction transitions Closed→Sold.
// Implementations must be idempotent per auction ID.
type SettlementHook interface {
	OnAuctionSold(ctx context.Context, auctionID uuid.UUID) error
}

// CreateAuctionRequest lists a vehicle for auction.
type CreateAuctionRequest struct {
	VehicleID    uuid.UUID
	SellerID     uuid.UUID
	ReservePrice values.Money
	StartTime    time.Time
	EndTime      time.Time
}

// PlaceBidRequest submits a bid. BidID is optional; clients retrying a
// submission reuse it to make the append idempotent.
type PlaceBidRequest struct {
	BidID     uuid.UUID
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    values.Money
}
