// Package events is the fire-and-forget notification sink. Publishing never
// blocks a state transition and never fails one: when the queue is full the
// event is dropped and counted.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the lifecycle moment an event describes.
type EventType string

const (
	EventBidAccepted     EventType = "bid_accepted"
	EventAuctionSold     EventType = "auction_sold"
	EventEscrowOpened    EventType = "escrow_opened"
	EventEscrowDisputed  EventType = "escrow_disputed"
	EventEscrowSettled   EventType = "escrow_settled"
	EventDisputeResolved EventType = "dispute_resolved"
)

// Event is one notification on its way to subscribers.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// BidAcceptedPayload announces a new ledger entry and the advanced leader.
type BidAcceptedPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidID     uuid.UUID `json:"bid_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    string    `json:"amount"`
	BidCount  int       `json:"bid_count"`
}

// AuctionSoldPayload announces a Closed→Sold transition.
type AuctionSoldPayload struct {
	AuctionID    uuid.UUID `json:"auction_id"`
	VehicleID    uuid.UUID `json:"vehicle_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	WinnerID     uuid.UUID `json:"winner_id"`
	WinningBidID uuid.UUID `json:"winning_bid_id"`
	Amount       string    `json:"amount"`
}

// EscrowOpenedPayload announces the settlement handoff for a sold auction.
type EscrowOpenedPayload struct {
	EscrowID  uuid.UUID `json:"escrow_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Amount    string    `json:"amount"`
}

// EscrowDisputedPayload announces a new dispute over an escrow.
type EscrowDisputedPayload struct {
	EscrowID    uuid.UUID `json:"escrow_id"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	InitiatorID uuid.UUID `json:"initiator_id"`
	Reason      string    `json:"reason"`
}

// EscrowSettledPayload announces a terminal escrow outcome.
type EscrowSettledPayload struct {
	EscrowID uuid.UUID `json:"escrow_id"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	SellerID uuid.UUID `json:"seller_id"`
	Outcome  string    `json:"outcome"`
	Amount   string    `json:"amount"`
}

// DisputeResolvedPayload announces a verdict.
type DisputeResolvedPayload struct {
	DisputeID uuid.UUID `json:"dispute_id"`
	EscrowID  uuid.UUID `json:"escrow_id"`
	Verdict   string    `json:"verdict"`
	Votes     int       `json:"votes"`
}
