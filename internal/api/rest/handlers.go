package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
	"github.com/autolot/vehicle-exchange-backend/internal/service/bidding"
)

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	reserve, err := values.NewMoneyFromString(req.ReservePrice, currencyOrUSD(req.Currency))
	if err != nil {
		writeError(w, r, s.logger, errors.NewValidationError("INVALID_RESERVE", "reserve price is not a valid amount"))
		return
	}

	a, err := s.services.Bidding.CreateAuction(r.Context(), &bidding.CreateAuctionRequest{
		VehicleID:    req.VehicleID,
		SellerID:     actorFrom(r.Context()).UserID,
		ReservePrice: reserve,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuctionResponse(a))
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	a, err := s.services.Bidding.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResponse(a))
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req PlaceBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	amount, err := values.NewMoneyFromString(req.Amount, currencyOrUSD(req.Currency))
	if err != nil {
		writeError(w, r, s.logger, errors.NewValidationError("INVALID_BID_AMOUNT", "bid amount is not a valid amount"))
		return
	}

	b, err := s.services.Bidding.PlaceBid(r.Context(), &bidding.PlaceBidRequest{
		BidID:     req.BidID,
		AuctionID: auctionID,
		BidderID:  actorFrom(r.Context()).UserID,
		Amount:    amount,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBidResponse(b))
}

func (s *Server) handleCancelAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	if err := s.services.Bidding.CancelAuction(r.Context(), auctionID, actorFrom(r.Context()).UserID); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHighBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	hb, err := s.services.Bidding.HighBid(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if hb == nil {
		writeJSON(w, http.StatusOK, struct {
			HighBid *HighBidResponse `json:"high_bid"`
		}{})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		HighBid *HighBidResponse `json:"high_bid"`
	}{HighBid: toHighBidResponse(hb)})
}

func (s *Server) handleBidHistory(w http.ResponseWriter, r *http.Request) {
	auctionID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	bids := make([]*BidResponse, 0)
	for b, err := range s.services.Bidding.History(r.Context(), auctionID) {
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		bids = append(bids, toBidResponse(b))
	}
	writeJSON(w, http.StatusOK, struct {
		Bids []*BidResponse `json:"bids"`
	}{Bids: bids})
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	e, err := s.services.Escrow.GetEscrow(r.Context(), escrowID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEscrowResponse(e))
}

func (s *Server) handleProposeCondition(w http.ResponseWriter, r *http.Request) {
	escrowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req ProposeConditionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	e, err := s.services.Escrow.ProposeCondition(r.Context(), escrowID, actorFrom(r.Context()).UserID, req.Condition)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEscrowResponse(e))
}

func (s *Server) handleInitiateDispute(w http.ResponseWriter, r *http.Request) {
	escrowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req InitiateDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	d, err := s.services.Escrow.InitiateDispute(r.Context(), escrowID, actorFrom(r.Context()).UserID, req.Reason)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeResponse(d))
}

func (s *Server) handleReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	s.handleSettleEscrow(w, r, s.services.Escrow.Release)
}

func (s *Server) handleRefundEscrow(w http.ResponseWriter, r *http.Request) {
	s.handleSettleEscrow(w, r, s.services.Escrow.Refund)
}

func (s *Server) handleSettleEscrow(w http.ResponseWriter, r *http.Request, settle func(ctx context.Context, escrowID, officerID uuid.UUID) (*escrow.Escrow, error)) {
	escrowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	e, err := settle(r.Context(), escrowID, actorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEscrowResponse(e))
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	disputeID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	d, err := s.services.Arbitration.GetDispute(r.Context(), disputeID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleAssignArbitrators(w http.ResponseWriter, r *http.Request) {
	disputeID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req AssignArbitratorsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	d, err := s.services.Arbitration.AssignArbitrators(r.Context(), disputeID, actorFrom(r.Context()).UserID, req.ArbitratorIDs)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	disputeID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req CastVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	decision, ok := dispute.ParseDecision(req.Decision)
	if !ok {
		writeError(w, r, s.logger, errors.NewValidationError("INVALID_DECISION", "decision must be for_plaintiff or for_defendant"))
		return
	}

	d, err := s.services.Arbitration.CastVote(r.Context(), disputeID, actorFrom(r.Context()).UserID, decision)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(d))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}{Status: "ok", Version: s.version})
}

func currencyOrUSD(currency string) string {
	if currency == "" {
		return values.USD
	}
	return currency
}
