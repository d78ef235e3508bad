package dispute

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
)

// Dispute is a contested escrow outcome adjudicated by assigned arbitrators.
// The initiating party is the plaintiff; the other party on the escrow is the
// defendant.
type Dispute struct {
	ID          uuid.UUID `json:"id"`
	EscrowID    uuid.UUID `json:"escrow_id"`
	InitiatorID uuid.UUID `json:"initiator_id"`
	Reason      string    `json:"reason"`
	Status      Status    `json:"status"`

	// Arbitrators is non-empty from VotingInProgress on.
	Arbitrators []uuid.UUID `json:"arbitrators,omitempty"`

	// Votes maps arbitrator → decision; at most one vote per arbitrator.
	Votes map[uuid.UUID]Decision `json:"votes,omitempty"`

	// Verdict is derived exactly once, when the last assigned arbitrator votes.
	Verdict *Decision `json:"verdict,omitempty"`

	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type Status int

const (
	StatusOpen Status = iota
	StatusVotingInProgress
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusVotingInProgress:
		return "voting_in_progress"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// ParseStatus maps the stored representation back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "open":
		return StatusOpen
	case "voting_in_progress":
		return StatusVotingInProgress
	case "resolved":
		return StatusResolved
	default:
		return StatusOpen
	}
}

// Decision is an arbitrator's vote.
type Decision int

const (
	ForPlaintiff Decision = iota
	ForDefendant
)

func (d Decision) String() string {
	if d == ForPlaintiff {
		return "for_plaintiff"
	}
	return "for_defendant"
}

// ParseDecision maps the wire representation back to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "for_plaintiff":
		return ForPlaintiff, true
	case "for_defendant":
		return ForDefendant, true
	default:
		return ForDefendant, false
	}
}

// NewDispute opens a dispute against an escrow.
func NewDispute(escrowID, initiatorID uuid.UUID, reason string) (*Dispute, error) {
	if escrowID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_ESCROW_ID", "escrow ID is required")
	}
	if initiatorID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_INITIATOR_ID", "initiator ID is required")
	}
	if reason == "" {
		return nil, errors.NewValidationError("MISSING_REASON", "dispute reason is required")
	}

	now := time.Now().UTC()
	return &Dispute{
		ID:          uuid.New(),
		EscrowID:    escrowID,
		InitiatorID: initiatorID,
		Reason:      reason,
		Status:      StatusOpen,
		Votes:       make(map[uuid.UUID]Decision),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AssignArbitrators moves Open → VotingInProgress with a non-empty panel.
func (d *Dispute) AssignArbitrators(arbitratorIDs []uuid.UUID, now time.Time) error {
	if d.Status != StatusOpen {
		return errors.NewInvalidStateError("arbitrators can only be assigned to an open dispute")
	}
	if len(arbitratorIDs) == 0 {
		return errors.NewValidationError("EMPTY_PANEL", "at least one arbitrator is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(arbitratorIDs))
	for _, id := range arbitratorIDs {
		if id == uuid.Nil {
			return errors.NewValidationError("INVALID_ARBITRATOR", "arbitrator ID cannot be nil")
		}
		if _, dup := seen[id]; dup {
			return errors.NewValidationError("DUPLICATE_ARBITRATOR", "arbitrator assigned twice: "+id.String())
		}
		seen[id] = struct{}{}
	}

	d.Arbitrators = append([]uuid.UUID(nil), arbitratorIDs...)
	d.Status = StatusVotingInProgress
	d.UpdatedAt = now
	return nil
}

// IsAssigned reports whether the arbitrator sits on this dispute's panel.
func (d *Dispute) IsAssigned(arbitratorID uuid.UUID) bool {
	for _, id := range d.Arbitrators {
		if id == arbitratorID {
			return true
		}
	}
	return false
}

// CastVote records a vote. When the last assigned arbitrator votes, the
// verdict is computed and the dispute becomes Resolved; resolved reports
// whether this vote completed the panel. The caller must hold the per-dispute
// lock so that two simultaneous final votes cannot both observe an
// incomplete panel.
func (d *Dispute) CastVote(arbitratorID uuid.UUID, decision Decision, now time.Time) (resolved bool, err error) {
	if d.Status != StatusVotingInProgress {
		return false, errors.NewInvalidStateError("dispute is not accepting votes: " + d.Status.String())
	}
	if !d.IsAssigned(arbitratorID) {
		return false, errors.NewAuthorizationError("arbitrator is not assigned to this dispute")
	}
	if _, voted := d.Votes[arbitratorID]; voted {
		return false, errors.NewDuplicateVoteError(arbitratorID.String())
	}

	d.Votes[arbitratorID] = decision
	d.UpdatedAt = now

	if len(d.Votes) < len(d.Arbitrators) {
		return false, nil
	}

	verdict := d.tallyVerdict()
	d.Verdict = &verdict
	d.Status = StatusResolved
	resolvedAt := now
	d.ResolvedAt = &resolvedAt
	return true, nil
}

// tallyVerdict returns the majority decision. A tie defaults to ForDefendant,
// preserving the status quo.
func (d *Dispute) tallyVerdict() Decision {
	var plaintiff, defendant int
	for _, v := range d.Votes {
		if v == ForPlaintiff {
			plaintiff++
		} else {
			defendant++
		}
	}
	if plaintiff > defendant {
		return ForPlaintiff
	}
	return ForDefendant
}
