package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/metrics"
)

// Sink receives events off the queue. Delivery is at-most-once.
type Sink interface {
	Deliver(event *Event)
}

// Publisher is the async notifier behind every service's Notify* call. It
// satisfies the Notifier interfaces of the bidding, escrow, arbitration and
// settlement services.
type Publisher struct {
	queue  chan *Event
	sinks  []Sink
	logger *zap.Logger

	// mu guards closed so no publish can be mid-send when Close closes the
	// queue; late publishers drop their event instead of panicking.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewPublisher starts a publisher draining into the given sinks.
func NewPublisher(queueSize int, logger *zap.Logger, sinks ...Sink) *Publisher {
	p := &Publisher{
		queue:  make(chan *Event, queueSize),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		for _, sink := range p.sinks {
			sink.Deliver(event)
		}
		metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.queue)
		<-p.done
	})
}

// publish enqueues without blocking; a full or closed queue drops the event.
func (p *Publisher) publish(eventType EventType, payload any) {
	event := &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.EventsDropped.Inc()
		p.logger.Warn("publisher closed, dropping event",
			zap.String("type", string(eventType)))
		return
	}

	select {
	case p.queue <- event:
	default:
		metrics.EventsDropped.Inc()
		p.logger.Warn("event queue full, dropping event",
			zap.String("type", string(eventType)))
	}
}

func (p *Publisher) NotifyBidAccepted(_ context.Context, a *auction.Auction, b *auction.Bid) {
	p.publish(EventBidAccepted, &BidAcceptedPayload{
		AuctionID: a.ID,
		BidID:     b.ID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.String(),
		BidCount:  a.BidCount,
	})
}

func (p *Publisher) NotifyAuctionSold(_ context.Context, a *auction.Auction) {
	p.publish(EventAuctionSold, &AuctionSoldPayload{
		AuctionID:    a.ID,
		VehicleID:    a.VehicleID,
		SellerID:     a.SellerID,
		WinnerID:     a.HighBid.BidderID,
		WinningBidID: a.HighBid.BidID,
		Amount:       a.HighBid.Amount.String(),
	})
}

func (p *Publisher) NotifyEscrowOpened(_ context.Context, e *escrow.Escrow) {
	p.publish(EventEscrowOpened, &EscrowOpenedPayload{
		EscrowID:  e.ID,
		AuctionID: e.AuctionID,
		BuyerID:   e.BuyerID,
		SellerID:  e.SellerID,
		Amount:    e.Amount.String(),
	})
}

func (p *Publisher) NotifyEscrowDisputed(_ context.Context, e *escrow.Escrow, d *dispute.Dispute) {
	p.publish(EventEscrowDisputed, &EscrowDisputedPayload{
		EscrowID:    e.ID,
		DisputeID:   d.ID,
		InitiatorID: d.InitiatorID,
		Reason:      d.Reason,
	})
}

func (p *Publisher) NotifyEscrowSettled(_ context.Context, e *escrow.Escrow) {
	p.publish(EventEscrowSettled, &EscrowSettledPayload{
		EscrowID: e.ID,
		BuyerID:  e.BuyerID,
		SellerID: e.SellerID,
		Outcome:  e.Status.String(),
		Amount:   e.Amount.String(),
	})
}

func (p *Publisher) NotifyDisputeResolved(_ context.Context, d *dispute.Dispute) {
	p.publish(EventDisputeResolved, &DisputeResolvedPayload{
		DisputeID: d.ID,
		EscrowID:  d.EscrowID,
		Verdict:   d.Verdict.String(),
		Votes:     len(d.Votes),
	})
}
