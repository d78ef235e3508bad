package bidding

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultBidRate  = 5  // bids per second per bidder
	defaultBidBurst = 10 // burst allowance
)

// bidRateLimiter throttles bid submission per bidder. Limiters are created
// lazily and kept for the process lifetime.
type bidRateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newBidRateLimiter(perSecond float64, burst int) *bidRateLimiter {
	return &bidRateLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *bidRateLimiter) allow(bidderID uuid.UUID) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[bidderID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[bidderID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
