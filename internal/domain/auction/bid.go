package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// Bid is one accepted entry in the ledger. Immutable once accepted; the
// ledger only ever appends.
type Bid struct {
	ID        uuid.UUID    `json:"id"`
	AuctionID uuid.UUID    `json:"auction_id"`
	BidderID  uuid.UUID    `json:"bidder_id"`
	Amount    values.Money `json:"amount"`
	PlacedAt  time.Time    `json:"placed_at"`
}

// NewBid creates a candidate bid. Admission against the auction's window and
// high-bid pointer happens in Auction.AdmitBid.
func NewBid(auctionID, bidderID uuid.UUID, amount values.Money, placedAt time.Time) (*Bid, error) {
	if auctionID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_AUCTION_ID", "auction ID is required")
	}
	if bidderID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_BIDDER_ID", "bidder ID is required")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_BID_AMOUNT", "bid amount must be positive")
	}

	return &Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  placedAt,
	}, nil
}
