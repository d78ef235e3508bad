package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autolot/vehicle-exchange-backend/internal/infrastructure/config"
	"github.com/autolot/vehicle-exchange-backend/internal/service/arbitration"
	"github.com/autolot/vehicle-exchange-backend/internal/service/bidding"
	escrowsvc "github.com/autolot/vehicle-exchange-backend/internal/service/escrow"
)

// Services holds the service surfaces the REST API exposes.
type Services struct {
	Bidding     bidding.Service
	Escrow      escrowsvc.Service
	Arbitration arbitration.Service
}

// Server is the HTTP front of the marketplace.
type Server struct {
	httpServer *http.Server
	services   Services
	logger     *slog.Logger
	jwtSecret  string
	version    string

	// eventsHandler streams lifecycle events over websocket; nil disables the
	// endpoint.
	eventsHandler http.Handler
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, services Services, eventsHandler http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		services:      services,
		logger:        logger,
		jwtSecret:     cfg.Security.JWTSecret,
		version:       cfg.Version,
		eventsHandler: eventsHandler,
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated API.
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/auctions", s.handleCreateAuction)
	api.HandleFunc("GET /api/v1/auctions/{id}", s.handleGetAuction)
	api.HandleFunc("DELETE /api/v1/auctions/{id}", s.handleCancelAuction)
	api.HandleFunc("POST /api/v1/auctions/{id}/bids", s.handlePlaceBid)
	api.HandleFunc("GET /api/v1/auctions/{id}/bids", s.handleBidHistory)
	api.HandleFunc("GET /api/v1/auctions/{id}/high-bid", s.handleHighBid)

	api.HandleFunc("GET /api/v1/escrows/{id}", s.handleGetEscrow)
	api.HandleFunc("POST /api/v1/escrows/{id}/conditions", s.handleProposeCondition)
	api.HandleFunc("POST /api/v1/escrows/{id}/disputes", s.handleInitiateDispute)
	api.HandleFunc("POST /api/v1/escrows/{id}/release", s.handleReleaseEscrow)
	api.HandleFunc("POST /api/v1/escrows/{id}/refund", s.handleRefundEscrow)

	api.HandleFunc("GET /api/v1/disputes/{id}", s.handleGetDispute)
	api.HandleFunc("POST /api/v1/disputes/{id}/arbitrators", s.handleAssignArbitrators)
	api.HandleFunc("POST /api/v1/disputes/{id}/votes", s.handleCastVote)

	if eventsHandler != nil {
		api.Handle("GET /api/v1/events", eventsHandler)
	}

	mux.Handle("/api/v1/", s.authMiddleware(api))

	handler := requestIDMiddleware(
		s.metricsMiddleware(
			s.loggingMiddleware(
				s.recoveryMiddleware(mux))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Handler exposes the middleware-wrapped root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
