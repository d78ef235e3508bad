package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// auctionRepository implements bidding.AuctionRepository over PostgreSQL.
// All updates use optimistic concurrency on the version column.
type auctionRepository struct {
	db *sql.DB
}

// NewAuctionRepository creates an auction repository.
func NewAuctionRepository(db *sql.DB) *auctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (
			id, vehicle_id, seller_id, reserve_amount, reserve_currency,
			start_time, end_time, status, bid_count, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.VehicleID, a.SellerID,
		a.ReservePrice.Amount().String(), a.ReservePrice.Currency(),
		a.StartTime, a.EndTime, a.Status.String(), a.BidCount, a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("auction already exists")
		}
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := auctionSelect + ` WHERE id = $1`
	a, err := scanAuction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("auction")
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// Update persists the auction if nobody else advanced it first. The version
// check is the cross-process half of the per-auction serialization story.
func (r *auctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions SET
			status = $3,
			high_bid_id = $4, high_bidder_id = $5, high_bid_amount = $6,
			bid_count = $7, version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2
	`

	var highBidID, highBidderID any
	var highAmount any
	if a.HighBid != nil {
		highBidID = a.HighBid.BidID
		highBidderID = a.HighBid.BidderID
		highAmount = a.HighBid.Amount.Amount().String()
	}

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Version, a.Status.String(),
		highBidID, highBidderID, highAmount,
		a.BidCount, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if rows == 0 {
		return errors.NewConflictError("auction was modified concurrently")
	}

	a.Version++
	return nil
}

// ListDue returns auctions with a pending time-based transition: Pending past
// their start, or Active past their end.
func (r *auctionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := auctionSelect + `
		WHERE (status = 'pending' AND start_time <= $1)
		   OR (status = 'active' AND end_time <= $1)
		ORDER BY end_time
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due auctions: %w", err)
	}
	defer rows.Close()

	var due []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due auction: %w", err)
		}
		due = append(due, a)
	}
	return due, rows.Err()
}

const auctionSelect = `
	SELECT
		id, vehicle_id, seller_id, reserve_amount, reserve_currency,
		start_time, end_time, status,
		high_bid_id, high_bidder_id, high_bid_amount,
		bid_count, version, created_at, updated_at
	FROM auctions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var reserveStr, currency, statusStr string
	var highBidID, highBidderID sql.NullString
	var highAmount sql.NullString

	err := row.Scan(
		&a.ID, &a.VehicleID, &a.SellerID, &reserveStr, &currency,
		&a.StartTime, &a.EndTime, &statusStr,
		&highBidID, &highBidderID, &highAmount,
		&a.BidCount, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ReservePrice, err = values.NewMoneyFromString(reserveStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid reserve price: %w", err)
	}
	a.Status = auction.ParseStatus(statusStr)

	if highBidID.Valid && highBidderID.Valid && highAmount.Valid {
		bidID, err := uuid.Parse(highBidID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid high bid id: %w", err)
		}
		bidderID, err := uuid.Parse(highBidderID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid high bidder id: %w", err)
		}
		amount, err := values.NewMoneyFromString(highAmount.String, currency)
		if err != nil {
			return nil, fmt.Errorf("invalid high bid amount: %w", err)
		}
		a.HighBid = &auction.HighBid{BidID: bidID, BidderID: bidderID, Amount: amount}
	}

	return &a, nil
}
