package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// Auction is a timed sale for one vehicle. The entity owns its lifecycle;
// all state changes go through the methods below so the invariants hold
// regardless of which service touches it.
type Auction struct {
	ID           uuid.UUID    `json:"id"`
	VehicleID    uuid.UUID    `json:"vehicle_id"`
	SellerID     uuid.UUID    `json:"seller_id"`
	ReservePrice values.Money `json:"reserve_price"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
	Status       Status       `json:"status"`

	// HighBid caches the ledger's current leader; nil when no bids yet.
	// Invariant: equals the maximum accepted bid for this auction.
	HighBid  *HighBid `json:"high_bid,omitempty"`
	BidCount int      `json:"bid_count"`

	// Version supports optimistic concurrency in the repository layer.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HighBid is the cached pointer to the ledger's current leader.
type HighBid struct {
	BidID    uuid.UUID    `json:"bid_id"`
	BidderID uuid.UUID    `json:"bidder_id"`
	Amount   values.Money `json:"amount"`
}

type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusClosed
	StatusSold
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusSold:
		return "sold"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps the stored representation back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "active":
		return StatusActive
	case "closed":
		return StatusClosed
	case "sold":
		return StatusSold
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPending
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSold || s == StatusCancelled
}

// NewAuction creates a Pending auction for a vehicle listing.
func NewAuction(vehicleID, sellerID uuid.UUID, reserve values.Money, start, end time.Time) (*Auction, error) {
	if vehicleID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_VEHICLE_ID", "vehicle ID is required")
	}
	if sellerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_SELLER_ID", "seller ID is required")
	}
	if !reserve.IsPositive() {
		return nil, errors.NewValidationError("INVALID_RESERVE", "reserve price must be positive")
	}
	if !end.After(start) {
		return nil, errors.NewValidationError("INVALID_WINDOW", "end time must be after start time")
	}

	now := time.Now().UTC()
	return &Auction{
		ID:           uuid.New(),
		VehicleID:    vehicleID,
		SellerID:     sellerID,
		ReservePrice: reserve,
		StartTime:    start,
		EndTime:      end,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Activate moves Pending → Active once the start time has been reached.
func (a *Auction) Activate(now time.Time) error {
	if a.Status != StatusPending {
		return errors.NewInvalidStateError("auction is not pending: " + a.Status.String())
	}
	if now.Before(a.StartTime) {
		return errors.NewInvalidStateError("auction start time has not been reached")
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	return nil
}

// Close moves Active → Closed once the end time has been reached.
func (a *Auction) Close(now time.Time) error {
	if a.Status != StatusActive {
		return errors.NewInvalidStateError("auction is not active: " + a.Status.String())
	}
	if now.Before(a.EndTime) {
		return errors.NewInvalidStateError("auction end time has not been reached")
	}
	a.Status = StatusClosed
	a.UpdatedAt = now
	return nil
}

// Cancel is the seller's side exit from Active. Disallowed once bidding has
// started, to protect bidders.
func (a *Auction) Cancel(now time.Time) error {
	if a.Status != StatusActive {
		return errors.NewInvalidStateError("only active auctions can be cancelled")
	}
	if a.BidCount > 0 {
		return errors.NewInvalidStateError("auction already has bids and cannot be cancelled")
	}
	a.Status = StatusCancelled
	a.UpdatedAt = now
	return nil
}

// HasQualifyingBid reports whether the high bid meets the reserve.
func (a *Auction) HasQualifyingBid() bool {
	return a.HighBid != nil && a.HighBid.Amount.Compare(a.ReservePrice) >= 0
}

// MarkSold moves Closed → Sold. Requires a qualifying high bid.
func (a *Auction) MarkSold(now time.Time) error {
	if a.Status != StatusClosed {
		return errors.NewInvalidStateError("auction is not closed: " + a.Status.String())
	}
	if !a.HasQualifyingBid() {
		return errors.NewInvalidStateError("auction has no qualifying bid")
	}
	a.Status = StatusSold
	a.UpdatedAt = now
	return nil
}

// AdmitBid validates a candidate bid against the live window and the cached
// high-bid pointer, and on success advances the pointer. The caller must hold
// the per-auction lock; this method is the serialization point's core check.
func (a *Auction) AdmitBid(b *Bid, now time.Time) error {
	if a.Status != StatusActive {
		return errors.NewAuctionNotActiveError("auction is not active: " + a.Status.String())
	}
	if !now.Before(a.EndTime) {
		return errors.NewAuctionNotActiveError("auction bidding window has ended")
	}
	// Currency must match before any amount comparison; Money comparisons
	// across currencies panic.
	if b.Amount.Currency() != a.ReservePrice.Currency() {
		return errors.NewInvalidBidError("bid currency " + b.Amount.Currency() + " does not match auction currency " + a.ReservePrice.Currency())
	}
	if b.Amount.LessThan(a.ReservePrice) {
		return errors.NewInvalidBidError("bid is below reserve price " + a.ReservePrice.String())
	}
	// Strict inequality: equal-amount bids are rejected, first leader keeps it.
	if a.HighBid != nil && !b.Amount.GreaterThan(a.HighBid.Amount) {
		return errors.NewInvalidBidError("bid must exceed current high bid " + a.HighBid.Amount.String())
	}

	a.HighBid = &HighBid{
		BidID:    b.ID,
		BidderID: b.BidderID,
		Amount:   b.Amount,
	}
	a.BidCount++
	a.UpdatedAt = now
	return nil
}
