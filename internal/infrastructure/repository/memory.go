package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
)

// In-memory repositories back the standalone dev mode and the service tests.
// They honor the same optimistic concurrency contract as the PostgreSQL
// implementations: Update fails with a conflict when the stored version does
// not match, and bid appends are atomic with the high-bid advance.

// MemoryAccountRepository is an in-memory identity directory.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[uuid.UUID]*account.Account)}
}

func (r *MemoryAccountRepository) Create(_ context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; ok {
		return errors.NewConflictError("account already exists")
	}
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, errors.NewNotFoundError("account")
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAccountRepository) Exists(_ context.Context, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[userID]
	return ok && a.Status == account.StatusActive, nil
}

func (r *MemoryAccountRepository) RoleOf(_ context.Context, userID uuid.UUID) (account.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[userID]
	if !ok || a.Status != account.StatusActive {
		return 0, errors.NewNotFoundError("account")
	}
	return a.Role, nil
}

// MemoryAuctionRepository stores auctions with version checking.
type MemoryAuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*auction.Auction
}

func NewMemoryAuctionRepository() *MemoryAuctionRepository {
	return &MemoryAuctionRepository{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *MemoryAuctionRepository) Create(_ context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.auctions[a.ID]; ok {
		return errors.NewConflictError("auction already exists")
	}
	r.auctions[a.ID] = cloneAuction(a)
	return nil
}

func (r *MemoryAuctionRepository) GetByID(_ context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, errors.NewNotFoundError("auction")
	}
	return cloneAuction(a), nil
}

func (r *MemoryAuctionRepository) Update(_ context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(a)
}

func (r *MemoryAuctionRepository) updateLocked(a *auction.Auction) error {
	stored, ok := r.auctions[a.ID]
	if !ok {
		return errors.NewNotFoundError("auction")
	}
	if stored.Version != a.Version {
		return errors.NewConflictError("auction was modified concurrently")
	}
	a.Version++
	r.auctions[a.ID] = cloneAuction(a)
	return nil
}

func (r *MemoryAuctionRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*auction.Auction
	for _, a := range r.auctions {
		pendingDue := a.Status == auction.StatusPending && !now.Before(a.StartTime)
		activeDue := a.Status == auction.StatusActive && !now.Before(a.EndTime)
		if pendingDue || activeDue {
			due = append(due, cloneAuction(a))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndTime.Before(due[j].EndTime) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MemoryBidRepository keeps the append-only ledger. It shares the auction
// store so that Append can commit the bid and the pointer advance atomically.
type MemoryBidRepository struct {
	mu       sync.RWMutex
	auctions *MemoryAuctionRepository
	byID     map[uuid.UUID]*auction.Bid
	ledger   map[uuid.UUID][]*auction.Bid
}

func NewMemoryBidRepository(auctions *MemoryAuctionRepository) *MemoryBidRepository {
	return &MemoryBidRepository{
		auctions: auctions,
		byID:     make(map[uuid.UUID]*auction.Bid),
		ledger:   make(map[uuid.UUID][]*auction.Bid),
	}
}

func (r *MemoryBidRepository) Append(_ context.Context, a *auction.Auction, b *auction.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions.mu.Lock()
	defer r.auctions.mu.Unlock()

	if _, ok := r.byID[b.ID]; ok {
		return errors.NewConflictError("bid already recorded")
	}
	if err := r.auctions.updateLocked(a); err != nil {
		return err
	}

	cp := *b
	r.byID[b.ID] = &cp
	r.ledger[b.AuctionID] = append(r.ledger[b.AuctionID], &cp)
	return nil
}

func (r *MemoryBidRepository) GetByID(_ context.Context, id uuid.UUID) (*auction.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("bid")
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBidRepository) ListByAuction(_ context.Context, auctionID uuid.UUID, offset, limit int) ([]*auction.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger := r.ledger[auctionID]
	if offset >= len(ledger) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ledger) {
		end = len(ledger)
	}

	page := make([]*auction.Bid, 0, end-offset)
	for _, b := range ledger[offset:end] {
		cp := *b
		page = append(page, &cp)
	}
	return page, nil
}

// MemoryEscrowRepository stores escrows, unique per auction.
type MemoryEscrowRepository struct {
	mu        sync.RWMutex
	escrows   map[uuid.UUID]*escrow.Escrow
	byAuction map[uuid.UUID]uuid.UUID
}

func NewMemoryEscrowRepository() *MemoryEscrowRepository {
	return &MemoryEscrowRepository{
		escrows:   make(map[uuid.UUID]*escrow.Escrow),
		byAuction: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *MemoryEscrowRepository) Create(_ context.Context, e *escrow.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAuction[e.AuctionID]; ok {
		return errors.NewConflictError("escrow already exists for auction")
	}
	r.escrows[e.ID] = cloneEscrow(e)
	r.byAuction[e.AuctionID] = e.ID
	return nil
}

func (r *MemoryEscrowRepository) GetByID(_ context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.escrows[id]
	if !ok {
		return nil, errors.NewNotFoundError("escrow")
	}
	return cloneEscrow(e), nil
}

func (r *MemoryEscrowRepository) GetByAuctionID(_ context.Context, auctionID uuid.UUID) (*escrow.Escrow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAuction[auctionID]
	if !ok {
		return nil, errors.NewNotFoundError("escrow")
	}
	return cloneEscrow(r.escrows[id]), nil
}

func (r *MemoryEscrowRepository) Update(_ context.Context, e *escrow.Escrow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.escrows[e.ID]
	if !ok {
		return errors.NewNotFoundError("escrow")
	}
	if stored.Version != e.Version {
		return errors.NewConflictError("escrow was modified concurrently")
	}
	e.Version++
	r.escrows[e.ID] = cloneEscrow(e)
	return nil
}

// MemoryDisputeRepository stores disputes.
type MemoryDisputeRepository struct {
	mu       sync.RWMutex
	disputes map[uuid.UUID]*dispute.Dispute
}

func NewMemoryDisputeRepository() *MemoryDisputeRepository {
	return &MemoryDisputeRepository{disputes: make(map[uuid.UUID]*dispute.Dispute)}
}

func (r *MemoryDisputeRepository) Create(_ context.Context, d *dispute.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disputes[d.ID]; ok {
		return errors.NewConflictError("dispute already exists")
	}
	r.disputes[d.ID] = cloneDispute(d)
	return nil
}

func (r *MemoryDisputeRepository) GetByID(_ context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, errors.NewNotFoundError("dispute")
	}
	return cloneDispute(d), nil
}

func (r *MemoryDisputeRepository) Update(_ context.Context, d *dispute.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.disputes[d.ID]
	if !ok {
		return errors.NewNotFoundError("dispute")
	}
	if stored.Version != d.Version {
		return errors.NewConflictError("dispute was modified concurrently")
	}
	d.Version++
	r.disputes[d.ID] = cloneDispute(d)
	return nil
}

func cloneAuction(a *auction.Auction) *auction.Auction {
	cp := *a
	if a.HighBid != nil {
		hb := *a.HighBid
		cp.HighBid = &hb
	}
	return &cp
}

func cloneEscrow(e *escrow.Escrow) *escrow.Escrow {
	cp := *e
	cp.Conditions = append([]string(nil), e.Conditions...)
	if e.DisputeID != nil {
		id := *e.DisputeID
		cp.DisputeID = &id
	}
	return &cp
}

func cloneDispute(d *dispute.Dispute) *dispute.Dispute {
	cp := *d
	cp.Arbitrators = append([]uuid.UUID(nil), d.Arbitrators...)
	cp.Votes = make(map[uuid.UUID]dispute.Decision, len(d.Votes))
	for k, v := range d.Votes {
		cp.Votes[k] = v
	}
	if d.Verdict != nil {
		verdict := *d.Verdict
		cp.Verdict = &verdict
	}
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
