package rest

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
)

var validate = validator.New()

// CreateAuctionRequest lists a vehicle for timed sale. The seller is the
// authenticated caller.
type CreateAuctionRequest struct {
	VehicleID    uuid.UUID `json:"vehicle_id" validate:"required"`
	ReservePrice string    `json:"reserve_price" validate:"required"`
	Currency     string    `json:"currency" validate:"omitempty,len=3"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// PlaceBidRequest submits a bid. BidID is optional; clients reuse it when
// retrying so the append stays idempotent.
type PlaceBidRequest struct {
	BidID    uuid.UUID `json:"bid_id"`
	Amount   string    `json:"amount" validate:"required"`
	Currency string    `json:"currency" validate:"omitempty,len=3"`
}

// ProposeConditionRequest records an officer's settlement condition.
type ProposeConditionRequest struct {
	Condition string `json:"condition" validate:"required,max=1000"`
}

// InitiateDisputeRequest opens a dispute against an escrow.
type InitiateDisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// AssignArbitratorsRequest seats the arbitration panel.
type AssignArbitratorsRequest struct {
	ArbitratorIDs []uuid.UUID `json:"arbitrator_ids" validate:"required,min=1,dive,required"`
}

// CastVoteRequest records an arbitrator's decision.
type CastVoteRequest struct {
	Decision string `json:"decision" validate:"required,oneof=for_plaintiff for_defendant"`
}

// AuctionResponse is the wire form of an auction.
type AuctionResponse struct {
	ID           uuid.UUID        `json:"id"`
	VehicleID    uuid.UUID        `json:"vehicle_id"`
	SellerID     uuid.UUID        `json:"seller_id"`
	ReservePrice string           `json:"reserve_price"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Status       string           `json:"status"`
	HighBid      *HighBidResponse `json:"high_bid,omitempty"`
	BidCount     int              `json:"bid_count"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HighBidResponse is the wire form of the current leader.
type HighBidResponse struct {
	BidID    uuid.UUID `json:"bid_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   string    `json:"amount"`
}

// BidResponse is the wire form of a ledger entry.
type BidResponse struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    string    `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

// EscrowResponse is the wire form of an escrow.
type EscrowResponse struct {
	ID         uuid.UUID  `json:"id"`
	AuctionID  uuid.UUID  `json:"auction_id"`
	VehicleID  uuid.UUID  `json:"vehicle_id"`
	BuyerID    uuid.UUID  `json:"buyer_id"`
	SellerID   uuid.UUID  `json:"seller_id"`
	Amount     string     `json:"amount"`
	Status     string     `json:"status"`
	Conditions []string   `json:"conditions,omitempty"`
	DisputeID  *uuid.UUID `json:"dispute_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DisputeResponse is the wire form of a dispute.
type DisputeResponse struct {
	ID          uuid.UUID   `json:"id"`
	EscrowID    uuid.UUID   `json:"escrow_id"`
	InitiatorID uuid.UUID   `json:"initiator_id"`
	Reason      string      `json:"reason"`
	Status      string      `json:"status"`
	Arbitrators []uuid.UUID `json:"arbitrators,omitempty"`
	VotesCast   int         `json:"votes_cast"`
	Verdict     *string     `json:"verdict,omitempty"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

func toAuctionResponse(a *auction.Auction) *AuctionResponse {
	resp := &AuctionResponse{
		ID:           a.ID,
		VehicleID:    a.VehicleID,
		SellerID:     a.SellerID,
		ReservePrice: a.ReservePrice.String(),
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       a.Status.String(),
		BidCount:     a.BidCount,
		CreatedAt:    a.CreatedAt,
	}
	if a.HighBid != nil {
		resp.HighBid = toHighBidResponse(a.HighBid)
	}
	return resp
}

func toHighBidResponse(hb *auction.HighBid) *HighBidResponse {
	return &HighBidResponse{
		BidID:    hb.BidID,
		BidderID: hb.BidderID,
		Amount:   hb.Amount.String(),
	}
}

func toBidResponse(b *auction.Bid) *BidResponse {
	return &BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.String(),
		PlacedAt:  b.PlacedAt,
	}
}

func toEscrowResponse(e *escrow.Escrow) *EscrowResponse {
	return &EscrowResponse{
		ID:         e.ID,
		AuctionID:  e.AuctionID,
		VehicleID:  e.VehicleID,
		BuyerID:    e.BuyerID,
		SellerID:   e.SellerID,
		Amount:     e.Amount.String(),
		Status:     e.Status.String(),
		Conditions: e.Conditions,
		DisputeID:  e.DisputeID,
		CreatedAt:  e.CreatedAt,
	}
}

func toDisputeResponse(d *dispute.Dispute) *DisputeResponse {
	resp := &DisputeResponse{
		ID:          d.ID,
		EscrowID:    d.EscrowID,
		InitiatorID: d.InitiatorID,
		Reason:      d.Reason,
		Status:      d.Status.String(),
		Arbitrators: d.Arbitrators,
		VotesCast:   len(d.Votes),
		ResolvedAt:  d.ResolvedAt,
	}
	if d.Verdict != nil {
		v := d.Verdict.String()
		resp.Verdict = &v
	}
	return resp
}
