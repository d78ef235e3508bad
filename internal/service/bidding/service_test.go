package bidding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/cache"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/clock"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/repository"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/telemetry"
	"github.com/autolot/vehicle-exchange-backend/internal/testutil/fixtures"
)

type stubNotifier struct {
	mu       sync.Mutex
	accepted []uuid.UUID
	sold     []uuid.UUID
}

func (n *stubNotifier) NotifyBidAccepted(_ context.Context, _ *auction.Auction, b *auction.Bid) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, b.ID)
}

func (n *stubNotifier) NotifyAuctionSold(_ context.Context, a *auction.Auction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sold = append(n.sold, a.ID)
}

type stubSettlement struct {
	mu   sync.Mutex
	sold []uuid.UUID
}

func (h *stubSettlement) OnAuctionSold(_ context.Context, auctionID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sold = append(h.sold, auctionID)
	return nil
}

type biddingFixture struct {
	svc        Service
	clock      *clock.Fake
	auctions   *repository.MemoryAuctionRepository
	bids       *repository.MemoryBidRepository
	accounts   *repository.MemoryAccountRepository
	notifier   *stubNotifier
	settlement *stubSettlement

	seller *account.Account
	buyer  *account.Account
	rival  *account.Account
}

func newBiddingFixture(t *testing.T) *biddingFixture {
	t.Helper()

	f := &biddingFixture{
		clock:      clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		auctions:   repository.NewMemoryAuctionRepository(),
		accounts:   repository.NewMemoryAccountRepository(),
		notifier:   &stubNotifier{},
		settlement: &stubSettlement{},
		seller:     fixtures.Account(account.RoleSeller),
		buyer:      fixtures.Account(account.RoleBuyer),
		rival:      fixtures.Account(account.RoleBuyer),
	}
	f.bids = repository.NewMemoryBidRepository(f.auctions)

	for _, a := range []*account.Account{f.seller, f.buyer, f.rival} {
		require.NoError(t, f.accounts.Create(t.Context(), a))
	}

	f.svc = NewService(
		f.auctions, f.bids, f.accounts,
		cache.NewMemoryHighBidCache(time.Minute),
		f.notifier, f.settlement, f.clock,
		telemetry.SetupLogger("error"),
	)
	return f
}

func (f *biddingFixture) activeAuction(t *testing.T, reserve float64) *auction.Auction {
	t.Helper()
	a := fixtures.ActiveAuction(t, f.seller.ID, reserve, f.clock.Now())
	require.NoError(t, f.auctions.Create(t.Context(), a))
	return a
}

func (f *biddingFixture) bid(t *testing.T, auctionID, bidderID uuid.UUID, amount float64) (*auction.Bid, error) {
	t.Helper()
	return f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    fixtures.Money(amount),
	})
}

func TestPlaceBid_AcceptsAndAdvancesHighBid(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 5000)

	b, err := f.bid(t, a.ID, f.buyer.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, f.buyer.ID, b.BidderID)

	hb, err := f.svc.HighBid(t.Context(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, hb)
	assert.Equal(t, b.ID, hb.BidID)

	stored, err := f.auctions.GetByID(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BidCount)
	assert.Len(t, f.notifier.accepted, 1)
}

func TestPlaceBid_MustExceedCurrentHigh(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)

	_, err := f.bid(t, a.ID, f.buyer.ID, 1000)
	require.NoError(t, err)
	_, err = f.bid(t, a.ID, f.rival.ID, 1500)
	require.NoError(t, err)

	// A later, lower bid never displaces the leader.
	_, err = f.bid(t, a.ID, f.buyer.ID, 1200)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidBid))

	// And an equal bid loses to the earlier one.
	_, err = f.bid(t, a.ID, f.buyer.ID, 1500)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidBid))

	ledger, err := f.bids.ListByAuction(t.Context(), a.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestPlaceBid_BelowReserveRejected(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 5000)

	_, err := f.bid(t, a.ID, f.buyer.ID, 4999)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidBid))
}

func TestPlaceBid_ConcurrentEqualBidsAdmitExactlyOne(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, bidder := range []uuid.UUID{f.buyer.ID, f.rival.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.PlaceBid(context.Background(), &PlaceBidRequest{
				AuctionID: a.ID,
				BidderID:  bidder,
				Amount:    fixtures.Money(2000),
			})
		}()
	}
	wg.Wait()

	var accepted, rejected int
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			assert.True(t, errors.HasCode(err, errors.CodeInvalidBid))
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)

	stored, err := f.auctions.GetByID(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BidCount)
}

func TestPlaceBid_IdempotentRetry(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)
	bidID := uuid.New()

	first, err := f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		BidID:     bidID,
		AuctionID: a.ID,
		BidderID:  f.buyer.ID,
		Amount:    fixtures.Money(1500),
	})
	require.NoError(t, err)

	retry, err := f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		BidID:     bidID,
		AuctionID: a.ID,
		BidderID:  f.buyer.ID,
		Amount:    fixtures.Money(1500),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)

	ledger, err := f.bids.ListByAuction(t.Context(), a.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestPlaceBid_ReusedBidIDConflicts(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)
	other := f.activeAuction(t, 1000)
	bidID := uuid.New()

	_, err := f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		BidID:     bidID,
		AuctionID: a.ID,
		BidderID:  f.buyer.ID,
		Amount:    fixtures.Money(1500),
	})
	require.NoError(t, err)

	// Same id on another auction is not a retry of the original bid.
	_, err = f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		BidID:     bidID,
		AuctionID: other.ID,
		BidderID:  f.buyer.ID,
		Amount:    fixtures.Money(1500),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// Nor is the same id with a different amount on the same auction.
	_, err = f.svc.PlaceBid(t.Context(), &PlaceBidRequest{
		BidID:     bidID,
		AuctionID: a.ID,
		BidderID:  f.buyer.ID,
		Amount:    fixtures.Money(1800),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	ledger, err := f.bids.ListByAuction(t.Context(), other.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestPlaceBid_UnknownBidder(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)

	_, err := f.bid(t, a.ID, uuid.New(), 1500)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnknownBidder))
}

func TestPlaceBid_PendingAuctionActivatesAtStartTime(t *testing.T) {
	f := newBiddingFixture(t)
	now := f.clock.Now()
	a := fixtures.Auction(t, f.seller.ID, 1000, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, f.auctions.Create(t.Context(), a))

	_, err := f.bid(t, a.ID, f.buyer.ID, 1500)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeAuctionNotActive))

	f.clock.Advance(time.Hour)
	_, err = f.bid(t, a.ID, f.buyer.ID, 1500)
	require.NoError(t, err)

	stored, err := f.auctions.GetByID(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, stored.Status)
}

func TestGetAuction_SellsAfterEndWithQualifyingBid(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 5000)

	winning, err := f.bid(t, a.ID, f.buyer.ID, 6200)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	got, err := f.svc.GetAuction(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusSold, got.Status)
	assert.Equal(t, winning.ID, got.HighBid.BidID)

	require.Len(t, f.settlement.sold, 1)
	assert.Equal(t, a.ID, f.settlement.sold[0])
	assert.Len(t, f.notifier.sold, 1)

	// A bid arriving after close is turned away.
	_, err = f.bid(t, a.ID, f.rival.ID, 7000)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeAuctionNotActive))
}

func TestGetAuction_ClosesUnsoldWithoutBids(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 5000)

	f.clock.Advance(2 * time.Hour)
	got, err := f.svc.GetAuction(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusClosed, got.Status)
	assert.Empty(t, f.settlement.sold)
}

func TestCancelAuction(t *testing.T) {
	f := newBiddingFixture(t)

	t.Run("only the seller may cancel", func(t *testing.T) {
		a := f.activeAuction(t, 1000)
		err := f.svc.CancelAuction(t.Context(), a.ID, f.buyer.ID)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
	})

	t.Run("not after the first bid", func(t *testing.T) {
		a := f.activeAuction(t, 1000)
		_, err := f.bid(t, a.ID, f.buyer.ID, 1500)
		require.NoError(t, err)

		err = f.svc.CancelAuction(t.Context(), a.ID, f.seller.ID)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
	})

	t.Run("clean cancel before bids", func(t *testing.T) {
		a := f.activeAuction(t, 1000)
		require.NoError(t, f.svc.CancelAuction(t.Context(), a.ID, f.seller.ID))

		stored, err := f.auctions.GetByID(t.Context(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, auction.StatusCancelled, stored.Status)
	})
}

func TestHistory_StreamsInAcceptanceOrder(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1000)

	amounts := []float64{1000, 1500, 2200}
	for _, amount := range amounts {
		_, err := f.bid(t, a.ID, f.buyer.ID, amount)
		require.NoError(t, err)
	}

	var seen []string
	for b, err := range f.svc.History(t.Context(), a.ID) {
		require.NoError(t, err)
		seen = append(seen, b.Amount.String())
	}
	assert.Equal(t, []string{"1000.00 USD", "1500.00 USD", "2200.00 USD"}, seen)

	// The sequence restarts from the top on a second range.
	count := 0
	for _, err := range f.svc.History(t.Context(), a.ID) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 3, count)
}

func TestPlaceBid_RateLimited(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 1)

	var limited bool
	for i := 1; i <= defaultBidBurst+1; i++ {
		_, err := f.bid(t, a.ID, f.buyer.ID, float64(i))
		if err != nil && errors.GetStatusCode(err) == 429 {
			limited = true
			break
		}
		require.NoError(t, err)
	}
	assert.True(t, limited, "expected the burst allowance to run out")
}

func TestSweepDue_ProgressesDueAuctions(t *testing.T) {
	f := newBiddingFixture(t)
	a := f.activeAuction(t, 5000)
	_, err := f.bid(t, a.ID, f.buyer.ID, 5500)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.svc.SweepDue(t.Context()))

	stored, err := f.auctions.GetByID(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusSold, stored.Status)
	assert.Len(t, f.settlement.sold, 1)
}
