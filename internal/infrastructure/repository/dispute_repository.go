package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
)

// disputeRepository implements the dispute store over PostgreSQL. The panel
// and the votes are small and read together with the dispute, so they live in
// JSONB columns rather than child tables.
type disputeRepository struct {
	db *sql.DB
}

// NewDisputeRepository creates a dispute repository.
func NewDisputeRepository(db *sql.DB) *disputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	arbitratorsJSON, votesJSON, err := marshalPanel(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO disputes (
			id, escrow_id, initiator_id, reason, status,
			arbitrators, votes, verdict,
			version, created_at, updated_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.EscrowID, d.InitiatorID, d.Reason, d.Status.String(),
		arbitratorsJSON, votesJSON, verdictString(d),
		d.Version, d.CreatedAt, d.UpdatedAt, d.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("dispute already exists")
		}
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	query := `
		SELECT
			id, escrow_id, initiator_id, reason, status,
			arbitrators, votes, verdict,
			version, created_at, updated_at, resolved_at
		FROM disputes
		WHERE id = $1
	`

	var d dispute.Dispute
	var statusStr string
	var arbitratorsJSON, votesJSON []byte
	var verdictStr sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.EscrowID, &d.InitiatorID, &d.Reason, &statusStr,
		&arbitratorsJSON, &votesJSON, &verdictStr,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.ResolvedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("dispute")
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}

	d.Status = dispute.ParseStatus(statusStr)
	if len(arbitratorsJSON) > 0 {
		if err := json.Unmarshal(arbitratorsJSON, &d.Arbitrators); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arbitrators: %w", err)
		}
	}
	d.Votes = make(map[uuid.UUID]dispute.Decision)
	if len(votesJSON) > 0 {
		var raw map[string]string
		if err := json.Unmarshal(votesJSON, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal votes: %w", err)
		}
		for k, v := range raw {
			arbID, err := uuid.Parse(k)
			if err != nil {
				return nil, fmt.Errorf("invalid arbitrator id in votes: %w", err)
			}
			decision, ok := dispute.ParseDecision(v)
			if !ok {
				return nil, fmt.Errorf("invalid decision in votes: %s", v)
			}
			d.Votes[arbID] = decision
		}
	}
	if verdictStr.Valid {
		verdict, ok := dispute.ParseDecision(verdictStr.String)
		if !ok {
			return nil, fmt.Errorf("invalid verdict: %s", verdictStr.String)
		}
		d.Verdict = &verdict
	}

	return &d, nil
}

func (r *disputeRepository) Update(ctx context.Context, d *dispute.Dispute) error {
	arbitratorsJSON, votesJSON, err := marshalPanel(d)
	if err != nil {
		return err
	}

	query := `
		UPDATE disputes SET
			status = $3, arbitrators = $4, votes = $5, verdict = $6,
			version = version + 1, updated_at = $7, resolved_at = $8
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		d.ID, d.Version, d.Status.String(),
		arbitratorsJSON, votesJSON, verdictString(d),
		d.UpdatedAt, d.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update dispute: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update dispute: %w", err)
	}
	if rows == 0 {
		return errors.NewConflictError("dispute was modified concurrently")
	}

	d.Version++
	return nil
}

func marshalPanel(d *dispute.Dispute) (arbitrators, votes []byte, err error) {
	arbitrators, err = json.Marshal(d.Arbitrators)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal arbitrators: %w", err)
	}

	raw := make(map[string]string, len(d.Votes))
	for k, v := range d.Votes {
		raw[k.String()] = v.String()
	}
	votes, err = json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal votes: %w", err)
	}
	return arbitrators, votes, nil
}

func verdictString(d *dispute.Dispute) any {
	if d.Verdict == nil {
		return nil
	}
	return d.Verdict.String()
}
