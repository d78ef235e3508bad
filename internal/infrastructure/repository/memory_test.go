package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

func newTestAuction(t *testing.T) *auction.Auction {
	t.Helper()
	start := time.Now().UTC()
	a, err := auction.NewAuction(
		uuid.New(), uuid.New(),
		values.MustNewMoneyFromFloat(5000, values.USD),
		start, start.Add(time.Hour),
	)
	require.NoError(t, err)
	return a
}

func TestMemoryAuctionRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuctionRepository()

	a := newTestAuction(t)
	require.NoError(t, repo.Create(ctx, a))

	first, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, first.Activate(first.StartTime))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.Activate(second.StartTime))
	err = repo.Update(ctx, second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestMemoryBidRepository_AppendAdvancesPointer(t *testing.T) {
	ctx := context.Background()
	auctions := NewMemoryAuctionRepository()
	bids := NewMemoryBidRepository(auctions)

	a := newTestAuction(t)
	require.NoError(t, a.Activate(a.StartTime))
	require.NoError(t, auctions.Create(ctx, a))

	a, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)

	b, err := auction.NewBid(a.ID, uuid.New(), values.MustNewMoneyFromFloat(5500, values.USD), time.Now())
	require.NoError(t, err)
	require.NoError(t, a.AdmitBid(b, time.Now()))
	require.NoError(t, bids.Append(ctx, a, b))

	stored, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.HighBid)
	assert.Equal(t, b.ID, stored.HighBid.BidID)
	assert.Equal(t, 1, stored.BidCount)

	got, err := bids.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestMemoryBidRepository_AppendStaleVersionLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	auctions := NewMemoryAuctionRepository()
	bids := NewMemoryBidRepository(auctions)

	a := newTestAuction(t)
	require.NoError(t, a.Activate(a.StartTime))
	require.NoError(t, auctions.Create(ctx, a))

	stale, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)
	fresh, err := auctions.GetByID(ctx, a.ID)
	require.NoError(t, err)

	b1, err := auction.NewBid(a.ID, uuid.New(), values.MustNewMoneyFromFloat(5500, values.USD), time.Now())
	require.NoError(t, err)
	require.NoError(t, fresh.AdmitBid(b1, time.Now()))
	require.NoError(t, bids.Append(ctx, fresh, b1))

	b2, err := auction.NewBid(a.ID, uuid.New(), values.MustNewMoneyFromFloat(6000, values.USD), time.Now())
	require.NoError(t, err)
	require.NoError(t, stale.AdmitBid(b2, time.Now()))

	err = bids.Append(ctx, stale, b2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// The losing bid must not appear in the ledger.
	_, err = bids.GetByID(ctx, b2.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	page, err := bids.ListByAuction(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestMemoryBidRepository_ListByAuctionPreservesOrder(t *testing.T) {
	ctx := context.Background()
	auctions := NewMemoryAuctionRepository()
	bids := NewMemoryBidRepository(auctions)

	a := newTestAuction(t)
	require.NoError(t, a.Activate(a.StartTime))
	require.NoError(t, auctions.Create(ctx, a))

	amounts := []float64{5000, 5500, 6000, 6500}
	var placed []uuid.UUID
	for _, amt := range amounts {
		cur, err := auctions.GetByID(ctx, a.ID)
		require.NoError(t, err)
		b, err := auction.NewBid(a.ID, uuid.New(), values.MustNewMoneyFromFloat(amt, values.USD), time.Now())
		require.NoError(t, err)
		require.NoError(t, cur.AdmitBid(b, time.Now()))
		require.NoError(t, bids.Append(ctx, cur, b))
		placed = append(placed, b.ID)
	}

	page, err := bids.ListByAuction(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, len(placed))
	for i, b := range page {
		assert.Equal(t, placed[i], b.ID)
	}

	tail, err := bids.ListByAuction(ctx, a.ID, 2, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, placed[2], tail[0].ID)
}

func TestMemoryEscrowRepository_UniquePerAuction(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()

	auctionID := uuid.New()
	e1, err := escrow.NewEscrow(auctionID, uuid.New(), uuid.New(), uuid.New(),
		values.MustNewMoneyFromFloat(7000, values.USD))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, e1))

	e2, err := escrow.NewEscrow(auctionID, uuid.New(), uuid.New(), uuid.New(),
		values.MustNewMoneyFromFloat(7000, values.USD))
	require.NoError(t, err)
	err = repo.Create(ctx, e2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	got, err := repo.GetByAuctionID(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, e1.ID, got.ID)
}

func TestMemoryAccountRepository_DirectoryResolution(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	officer := account.New("officer@autolot.test", account.RoleEscrowOfficer)
	require.NoError(t, repo.Create(ctx, officer))

	suspended := account.New("suspended@autolot.test", account.RoleBuyer)
	suspended.Status = account.StatusSuspended
	require.NoError(t, repo.Create(ctx, suspended))

	ok, err := repo.Exists(ctx, officer.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, suspended.ID)
	require.NoError(t, err)
	assert.False(t, ok, "suspended accounts do not resolve")

	role, err := repo.RoleOf(ctx, officer.ID)
	require.NoError(t, err)
	assert.True(t, role.CanSettleEscrow())

	_, err = repo.RoleOf(ctx, uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
