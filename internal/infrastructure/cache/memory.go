package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
)

// memoryHighBidCache is the single-process fallback used when no Redis is
// configured.
type memoryHighBidCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	hb      *auction.HighBid
	expires time.Time
}

// NewMemoryHighBidCache creates an in-process high-bid cache.
func NewMemoryHighBidCache(ttl time.Duration) HighBidCache {
	return &memoryHighBidCache{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
	}
}

func (c *memoryHighBidCache) GetHighBid(_ context.Context, auctionID uuid.UUID) (*auction.HighBid, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[auctionID]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false, nil
	}
	if entry.hb == nil {
		return nil, true, nil
	}
	hb := *entry.hb
	return &hb, true, nil
}

func (c *memoryHighBidCache) SetHighBid(_ context.Context, auctionID uuid.UUID, hb *auction.HighBid) error {
	var cp *auction.HighBid
	if hb != nil {
		v := *hb
		cp = &v
	}

	c.mu.Lock()
	c.entries[auctionID] = memoryEntry{hb: cp, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *memoryHighBidCache) Invalidate(_ context.Context, auctionID uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, auctionID)
	c.mu.Unlock()
	return nil
}
