package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// escrowRepository implements the escrow store over PostgreSQL. The unique
// index on auction_id makes escrow creation idempotent per auction.
type escrowRepository struct {
	db *sql.DB
}

// NewEscrowRepository creates an escrow repository.
func NewEscrowRepository(db *sql.DB) *escrowRepository {
	return &escrowRepository{db: db}
}

func (r *escrowRepository) Create(ctx context.Context, e *escrow.Escrow) error {
	conditionsJSON, err := json.Marshal(e.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
		INSERT INTO escrows (
			id, auction_id, vehicle_id, buyer_id, seller_id,
			amount, currency, status, conditions, dispute_id,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.AuctionID, e.VehicleID, e.BuyerID, e.SellerID,
		e.Amount.Amount().String(), e.Amount.Currency(), e.Status.String(),
		conditionsJSON, e.DisputeID,
		e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("escrow already exists for auction")
		}
		return fmt.Errorf("failed to create escrow: %w", err)
	}
	return nil
}

func (r *escrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	return r.getOne(ctx, escrowSelect+` WHERE id = $1`, id)
}

func (r *escrowRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*escrow.Escrow, error) {
	return r.getOne(ctx, escrowSelect+` WHERE auction_id = $1`, auctionID)
}

func (r *escrowRepository) getOne(ctx context.Context, query string, arg any) (*escrow.Escrow, error) {
	e, err := scanEscrow(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("escrow")
		}
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return e, nil
}

func (r *escrowRepository) Update(ctx context.Context, e *escrow.Escrow) error {
	conditionsJSON, err := json.Marshal(e.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
		UPDATE escrows SET
			status = $3, conditions = $4, dispute_id = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Version, e.Status.String(), conditionsJSON, e.DisputeID, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update escrow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update escrow: %w", err)
	}
	if rows == 0 {
		return errors.NewConflictError("escrow was modified concurrently")
	}

	e.Version++
	return nil
}

const escrowSelect = `
	SELECT
		id, auction_id, vehicle_id, buyer_id, seller_id,
		amount, currency, status, conditions, dispute_id,
		version, created_at, updated_at
	FROM escrows`

func scanEscrow(row rowScanner) (*escrow.Escrow, error) {
	var e escrow.Escrow
	var amountStr, currency, statusStr string
	var conditionsJSON []byte
	var disputeID sql.NullString

	err := row.Scan(
		&e.ID, &e.AuctionID, &e.VehicleID, &e.BuyerID, &e.SellerID,
		&amountStr, &currency, &statusStr, &conditionsJSON, &disputeID,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Amount, err = values.NewMoneyFromString(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow amount: %w", err)
	}
	e.Status = escrow.ParseStatus(statusStr)

	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &e.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}
	if disputeID.Valid {
		id, err := uuid.Parse(disputeID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid dispute id: %w", err)
		}
		e.DisputeID = &id
	}

	return &e, nil
}
