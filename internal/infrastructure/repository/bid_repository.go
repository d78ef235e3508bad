package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// bidRepository implements bidding.BidRepository over PostgreSQL. The ledger
// is append-only: bids are never updated or deleted, and acceptance order is
// the seq column assigned at insert.
type bidRepository struct {
	db *sql.DB
}

// NewBidRepository creates a bid repository.
func NewBidRepository(db *sql.DB) *bidRepository {
	return &bidRepository{db: db}
}

// Append commits the accepted bid and the advanced high-bid pointer in one
// transaction. The auction side uses the version check, so a concurrent
// writer on another instance rolls the whole commit back and surfaces as a
// conflict; the ledger and the pointer can never diverge.
func (r *bidRepository) Append(ctx context.Context, a *auction.Auction, b *auction.Bid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bid transaction: %w", err)
	}
	defer tx.Rollback()

	insertBid := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, currency, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertBid,
		b.ID, b.AuctionID, b.BidderID,
		b.Amount.Amount().String(), b.Amount.Currency(), b.PlacedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("bid already recorded")
		}
		return fmt.Errorf("failed to append bid: %w", err)
	}

	updateAuction := `
		UPDATE auctions SET
			high_bid_id = $3, high_bidder_id = $4, high_bid_amount = $5,
			bid_count = $6, version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $2
	`
	res, err := tx.ExecContext(ctx, updateAuction,
		a.ID, a.Version,
		a.HighBid.BidID, a.HighBid.BidderID, a.HighBid.Amount.Amount().String(),
		a.BidCount, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to advance high bid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to advance high bid: %w", err)
	}
	if rows == 0 {
		return errors.NewConflictError("auction was modified concurrently")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bid: %w", err)
	}

	a.Version++
	return nil
}

func (r *bidRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, currency, placed_at
		FROM bids
		WHERE id = $1
	`
	b, err := scanBid(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("bid")
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return b, nil
}

// ListByAuction pages the ledger in acceptance order.
func (r *bidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, offset, limit int) ([]*auction.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, currency, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY seq
		OFFSET $2 LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, auctionID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*auction.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func scanBid(row rowScanner) (*auction.Bid, error) {
	var b auction.Bid
	var amountStr, currency string

	err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amountStr, &currency, &b.PlacedAt)
	if err != nil {
		return nil, err
	}

	b.Amount, err = values.NewMoneyFromString(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid bid amount: %w", err)
	}
	return &b, nil
}
