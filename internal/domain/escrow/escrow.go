package escrow

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// Escrow is the neutral holding state between a sold auction and the final
// release or refund. Never deleted, only terminalized.
type Escrow struct {
	ID        uuid.UUID    `json:"id"`
	AuctionID uuid.UUID    `json:"auction_id"`
	VehicleID uuid.UUID    `json:"vehicle_id"`
	BuyerID   uuid.UUID    `json:"buyer_id"`
	SellerID  uuid.UUID    `json:"seller_id"`
	Amount    values.Money `json:"amount"`
	Status    Status       `json:"status"`

	// Conditions are officer-proposed settlement terms (condition notes).
	Conditions []string `json:"conditions,omitempty"`

	// DisputeID is set only while Disputed.
	DisputeID *uuid.UUID `json:"dispute_id,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusConditionsProposed
	StatusDisputed
	StatusReleased
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConditionsProposed:
		return "conditions_proposed"
	case StatusDisputed:
		return "disputed"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// ParseStatus maps the stored representation back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "conditions_proposed":
		return StatusConditionsProposed
	case "disputed":
		return StatusDisputed
	case "released":
		return StatusReleased
	case "refunded":
		return StatusRefunded
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the escrow has been settled.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// Outcome is the terminal resolution applied to an escrow.
type Outcome int

const (
	OutcomeReleased Outcome = iota
	OutcomeRefunded
)

func (o Outcome) String() string {
	if o == OutcomeRefunded {
		return "refunded"
	}
	return "released"
}

// NewEscrow creates a Pending escrow for a sold auction.
func NewEscrow(auctionID, vehicleID, buyerID, sellerID uuid.UUID, amount values.Money) (*Escrow, error) {
	if auctionID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_AUCTION_ID", "auction ID is required")
	}
	if vehicleID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_VEHICLE_ID", "vehicle ID is required")
	}
	if buyerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_BUYER_ID", "buyer ID is required")
	}
	if sellerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_SELLER_ID", "seller ID is required")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "escrow amount must be positive")
	}

	now := time.Now().UTC()
	return &Escrow{
		ID:        uuid.New(),
		AuctionID: auctionID,
		VehicleID: vehicleID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsParty reports whether the given user is the buyer or seller on this escrow.
func (e *Escrow) IsParty(userID uuid.UUID) bool {
	return userID == e.BuyerID || userID == e.SellerID
}

// ProposeCondition records a settlement condition. Allowed only from
// Pending or ConditionsProposed.
func (e *Escrow) ProposeCondition(condition string, now time.Time) error {
	if condition == "" {
		return errors.NewValidationError("MISSING_CONDITION", "condition text is required")
	}
	if e.Status != StatusPending && e.Status != StatusConditionsProposed {
		return errors.NewInvalidStateError("conditions cannot be proposed while escrow is " + e.Status.String())
	}
	e.Conditions = append(e.Conditions, condition)
	e.Status = StatusConditionsProposed
	e.UpdatedAt = now
	return nil
}

// MarkDisputed moves the escrow into Disputed, recording the back-reference.
// Must happen atomically with dispute creation; the service holds the
// per-escrow lock across both.
func (e *Escrow) MarkDisputed(disputeID uuid.UUID, now time.Time) error {
	if e.Status.IsTerminal() {
		return errors.NewInvalidStateError("escrow already settled: " + e.Status.String())
	}
	if e.Status == StatusDisputed {
		return errors.NewInvalidStateError("escrow is already disputed")
	}
	e.Status = StatusDisputed
	e.DisputeID = &disputeID
	e.UpdatedAt = now
	return nil
}

// Release terminalizes the escrow in the seller's favor.
func (e *Escrow) Release(now time.Time) error {
	return e.settle(StatusReleased, now)
}

// Refund terminalizes the escrow in the buyer's favor.
func (e *Escrow) Refund(now time.Time) error {
	return e.settle(StatusRefunded, now)
}

func (e *Escrow) settle(target Status, now time.Time) error {
	if e.Status.IsTerminal() {
		return errors.NewInvalidStateError("escrow already settled: " + e.Status.String())
	}
	e.Status = target
	e.DisputeID = nil
	e.UpdatedAt = now
	return nil
}
