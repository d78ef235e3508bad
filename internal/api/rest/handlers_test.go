package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/cache"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/clock"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/config"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/events"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/repository"
	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/telemetry"
	"github.com/autolot/vehicle-exchange-backend/internal/service/arbitration"
	"github.com/autolot/vehicle-exchange-backend/internal/service/bidding"
	escrowsvc "github.com/autolot/vehicle-exchange-backend/internal/service/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/service/settlement"
)

const testSecret = "test-secret"

type testEnv struct {
	server   *Server
	clock    *clock.Fake
	accounts *repository.MemoryAccountRepository
	escrows  *repository.MemoryEscrowRepository

	seller     *account.Account
	buyer      *account.Account
	rival      *account.Account
	admin      *account.Account
	officer    *account.Account
	arbitrator [3]*account.Account
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := telemetry.SetupLogger("error")

	accounts := repository.NewMemoryAccountRepository()
	auctions := repository.NewMemoryAuctionRepository()
	bids := repository.NewMemoryBidRepository(auctions)
	escrows := repository.NewMemoryEscrowRepository()
	disputes := repository.NewMemoryDisputeRepository()

	publisher := events.NewPublisher(64, zap.NewNop(), events.NewLogSink(zap.NewNop()))
	t.Cleanup(publisher.Close)

	escrowService, settler := escrowsvc.NewService(escrows, disputes, accounts, publisher, clk, logger)
	orchestrator := settlement.NewOrchestrator(auctions, escrows, settler, publisher, logger)
	biddingService := bidding.NewService(
		auctions, bids, accounts,
		cache.NewMemoryHighBidCache(time.Minute),
		publisher, orchestrator, clk, logger,
	)
	arbitrationService := arbitration.NewService(disputes, accounts, publisher, orchestrator, clk, logger)

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Security.JWTSecret = testSecret

	env := &testEnv{
		clock:    clk,
		accounts: accounts,
		escrows:  escrows,
	}
	env.server = NewServer(cfg, Services{
		Bidding:     biddingService,
		Escrow:      escrowService,
		Arbitration: arbitrationService,
	}, nil, logger)

	env.seller = env.addAccount(t, account.RoleSeller)
	env.buyer = env.addAccount(t, account.RoleBuyer)
	env.rival = env.addAccount(t, account.RoleBuyer)
	env.admin = env.addAccount(t, account.RoleAdmin)
	env.officer = env.addAccount(t, account.RoleEscrowOfficer)
	for i := range env.arbitrator {
		env.arbitrator[i] = env.addAccount(t, account.RoleArbitrator)
	}

	return env
}

func (e *testEnv) addAccount(t *testing.T, role account.Role) *account.Account {
	t.Helper()
	a := account.New(fmt.Sprintf("%s-%s@autolot.test", role, uuid.NewString()[:8]), role)
	require.NoError(t, e.accounts.Create(t.Context(), a))
	return a
}

func (e *testEnv) request(t *testing.T, actor *account.Account, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		token, err := GenerateToken(testSecret, actor.ID, actor.Role.String(), time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) findEscrowID(t *testing.T, auctionID uuid.UUID) uuid.UUID {
	t.Helper()
	esc, err := e.escrows.GetByAuctionID(t.Context(), auctionID)
	require.NoError(t, err)
	return esc.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (e *testEnv) createActiveAuction(t *testing.T, reserve string) *AuctionResponse {
	t.Helper()
	now := e.clock.Now()
	rec := e.request(t, e.seller, http.MethodPost, "/api/v1/auctions", CreateAuctionRequest{
		VehicleID:    uuid.New(),
		ReservePrice: reserve,
		StartTime:    now.Add(-time.Minute),
		EndTime:      now.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeBody[AuctionResponse](t, rec)
	return &a
}

func (e *testEnv) placeBid(t *testing.T, bidder *account.Account, auctionID uuid.UUID, amount string) *httptest.ResponseRecorder {
	t.Helper()
	return e.request(t, bidder, http.MethodPost,
		"/api/v1/auctions/"+auctionID.String()+"/bids",
		PlaceBidRequest{Amount: amount})
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, nil, http.MethodGet, "/api/v1/auctions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_BidFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	rec := env.placeBid(t, env.buyer, a.ID, "5000")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[BidResponse](t, rec)
	assert.Equal(t, env.buyer.ID, first.BidderID)

	// An equal amount does not displace the leader.
	rec = env.placeBid(t, env.rival, a.ID, "5000")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "INVALID_BID", errResp.Error.Code)

	rec = env.placeBid(t, env.rival, a.ID, "5500")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, env.buyer, http.MethodGet, "/api/v1/auctions/"+a.ID.String()+"/high-bid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	high := decodeBody[struct {
		HighBid *HighBidResponse `json:"high_bid"`
	}](t, rec)
	require.NotNil(t, high.HighBid)
	assert.Equal(t, env.rival.ID, high.HighBid.BidderID)

	rec = env.request(t, env.buyer, http.MethodGet, "/api/v1/auctions/"+a.ID.String()+"/bids", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[struct {
		Bids []*BidResponse `json:"bids"`
	}](t, rec)
	require.Len(t, history.Bids, 2)
	assert.Equal(t, env.buyer.ID, history.Bids[0].BidderID)
	assert.Equal(t, env.rival.ID, history.Bids[1].BidderID)
}

func TestAPI_CrossCurrencyBidRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	rec := env.request(t, env.buyer, http.MethodPost,
		"/api/v1/auctions/"+a.ID.String()+"/bids",
		PlaceBidRequest{Amount: "6000", Currency: "EUR"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "INVALID_BID", errResp.Error.Code)
}

func TestAPI_UnknownBidderRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	ghost := account.New("ghost@autolot.test", account.RoleBuyer)
	rec := env.placeBid(t, ghost, a.ID, "6000")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "UNKNOWN_BIDDER", errResp.Error.Code)
}

func TestAPI_CancelAuctionAuthorization(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	rec := env.request(t, env.buyer, http.MethodDelete, "/api/v1/auctions/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, env.seller, http.MethodDelete, "/api/v1/auctions/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_FullLifecycleWithDispute(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	rec := env.placeBid(t, env.buyer, a.ID, "6200")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Past the end time the next read closes and sells the auction.
	env.clock.Advance(2 * time.Hour)
	rec = env.request(t, env.seller, http.MethodGet, "/api/v1/auctions/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sold := decodeBody[AuctionResponse](t, rec)
	require.Equal(t, "sold", sold.Status)

	// Bidding after close is rejected.
	rec = env.placeBid(t, env.rival, a.ID, "7000")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "AUCTION_NOT_ACTIVE", errResp.Error.Code)

	// The settlement handoff opened an escrow for the winner.
	escrowID := env.findEscrowID(t, a.ID)

	rec = env.request(t, env.buyer, http.MethodPost,
		"/api/v1/escrows/"+escrowID.String()+"/disputes",
		InitiateDisputeRequest{Reason: "odometer reading disputed"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decodeBody[DisputeResponse](t, rec)
	assert.Equal(t, "open", d.Status)

	// Officer settlement is blocked while the dispute is live.
	rec = env.request(t, env.officer, http.MethodPost, "/api/v1/escrows/"+escrowID.String()+"/release", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Admin seats a three-arbitrator panel.
	panel := []uuid.UUID{env.arbitrator[0].ID, env.arbitrator[1].ID, env.arbitrator[2].ID}
	rec = env.request(t, env.admin, http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/arbitrators",
		AssignArbitratorsRequest{ArbitratorIDs: panel})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Two votes for the plaintiff, one against: buyer initiated, so the
	// escrow refunds.
	votes := []string{"for_plaintiff", "for_defendant", "for_plaintiff"}
	for i, decision := range votes {
		rec = env.request(t, env.arbitrator[i], http.MethodPost,
			"/api/v1/disputes/"+d.ID.String()+"/votes",
			CastVoteRequest{Decision: decision})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = env.request(t, env.admin, http.MethodGet, "/api/v1/disputes/"+d.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decodeBody[DisputeResponse](t, rec)
	require.Equal(t, "resolved", resolved.Status)
	require.NotNil(t, resolved.Verdict)
	assert.Equal(t, "for_plaintiff", *resolved.Verdict)

	rec = env.request(t, env.buyer, http.MethodGet, "/api/v1/escrows/"+escrowID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settled := decodeBody[EscrowResponse](t, rec)
	assert.Equal(t, "refunded", settled.Status)
	assert.Nil(t, settled.DisputeID)

	// A late vote after resolution is rejected.
	rec = env.request(t, env.arbitrator[0], http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/votes",
		CastVoteRequest{Decision: "for_defendant"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_DuplicateVoteRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActiveAuction(t, "5000")

	rec := env.placeBid(t, env.buyer, a.ID, "5100")
	require.Equal(t, http.StatusCreated, rec.Code)
	env.clock.Advance(2 * time.Hour)
	rec = env.request(t, env.seller, http.MethodGet, "/api/v1/auctions/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	escrowID := env.findEscrowID(t, a.ID)
	rec = env.request(t, env.seller, http.MethodPost,
		"/api/v1/escrows/"+escrowID.String()+"/disputes",
		InitiateDisputeRequest{Reason: "payment terms contested"})
	require.Equal(t, http.StatusCreated, rec.Code)
	d := decodeBody[DisputeResponse](t, rec)

	panel := []uuid.UUID{env.arbitrator[0].ID, env.arbitrator[1].ID}
	rec = env.request(t, env.admin, http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/arbitrators",
		AssignArbitratorsRequest{ArbitratorIDs: panel})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, env.arbitrator[0], http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/votes",
		CastVoteRequest{Decision: "for_plaintiff"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, env.arbitrator[0], http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/votes",
		CastVoteRequest{Decision: "for_defendant"})
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "DUPLICATE_VOTE", errResp.Error.Code)

	// An unassigned arbitrator cannot vote at all.
	rec = env.request(t, env.arbitrator[2], http.MethodPost,
		"/api/v1/disputes/"+d.ID.String()+"/votes",
		CastVoteRequest{Decision: "for_plaintiff"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
