package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions for the vehicle exchange API.

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vex",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method", "handler"},
	)

	// Auction domain metrics
	BidsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "auction",
			Name:      "bids_accepted_total",
			Help:      "Total number of accepted bids",
		},
	)

	BidsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "auction",
			Name:      "bids_rejected_total",
			Help:      "Total number of rejected bids by reason code",
		},
		[]string{"code"},
	)

	BidAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vex",
			Subsystem: "auction",
			Name:      "bid_amount",
			Help:      "Distribution of accepted bid amounts",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 12), // $100 to ~$200k
		},
	)

	AuctionsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "auction",
			Name:      "sold_total",
			Help:      "Total number of auctions that closed with a qualifying bid",
		},
	)

	AuctionsClosedUnsold = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "auction",
			Name:      "closed_unsold_total",
			Help:      "Total number of auctions that closed without a qualifying bid",
		},
	)

	// Escrow domain metrics
	EscrowsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "escrow",
			Name:      "created_total",
			Help:      "Total number of escrows created",
		},
	)

	EscrowsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "escrow",
			Name:      "settled_total",
			Help:      "Total number of settled escrows by outcome",
		},
		[]string{"outcome"},
	)

	// Dispute domain metrics
	DisputesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "dispute",
			Name:      "opened_total",
			Help:      "Total number of disputes opened",
		},
	)

	DisputesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "dispute",
			Name:      "resolved_total",
			Help:      "Total number of resolved disputes by verdict",
		},
		[]string{"verdict"},
	)

	// Notification sink metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events handed to the notification sink",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vex",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of events dropped because the sink queue was full",
		},
	)
)
