// Command api runs the vehicle exchange HTTP server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/autolot/vehicle-exchange-backend/internal/api/rest"
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

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)

	zlog, err := zap.NewProduction()
	if cfg.Environment == "development" {
		zlog, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("building zap logger: %w", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg := telemetry.DefaultConfig()
	otelCfg.ServiceVersion = cfg.Version
	otelCfg.Environment = cfg.Environment
	otelCfg.Enabled = cfg.Telemetry.Enabled
	otelCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	otelCfg.SamplingRate = cfg.Telemetry.SamplingRate

	provider, err := telemetry.InitializeOpenTelemetry(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Storage. An empty database URL selects in-memory repositories for local
	// development; everything else goes through postgres.
	var (
		accounts bidding.IdentityDirectory
		roles    escrowsvc.IdentityDirectory
		auctions bidding.AuctionRepository
		bids     bidding.BidRepository
		escrows  escrowsvc.EscrowRepository
		disputes arbitration.DisputeRepository
		creates  escrowsvc.DisputeRepository
	)
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory repositories")
		memAccounts := repository.NewMemoryAccountRepository()
		memAuctions := repository.NewMemoryAuctionRepository()
		memDisputes := repository.NewMemoryDisputeRepository()
		accounts, roles = memAccounts, memAccounts
		auctions = memAuctions
		bids = repository.NewMemoryBidRepository(memAuctions)
		escrows = repository.NewMemoryEscrowRepository()
		disputes, creates = memDisputes, memDisputes
	} else {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("pinging database: %w", err)
		}
		defer db.Close()

		pgAccounts := repository.NewAccountRepository(db)
		pgDisputes := repository.NewDisputeRepository(db)
		accounts, roles = pgAccounts, pgAccounts
		auctions = repository.NewAuctionRepository(db)
		bids = repository.NewBidRepository(db)
		escrows = repository.NewEscrowRepository(db)
		disputes, creates = pgDisputes, pgDisputes
	}

	var highBids bidding.HighBidCache
	if cfg.Redis.URL == "" {
		highBids = cache.NewMemoryHighBidCache(cfg.Auction.HighBidTTL)
	} else {
		highBids, err = cache.NewRedisHighBidCache(&cfg.Redis, cfg.Auction.HighBidTTL, zlog)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	}

	hub := events.NewWebSocketHub(zlog)
	publisher := events.NewPublisher(256, zlog, events.NewLogSink(zlog), hub)
	defer publisher.Close()

	escrowService, settler := escrowsvc.NewService(escrows, creates, roles, publisher, clock.System(), logger)
	orchestrator := settlement.NewOrchestrator(auctions, escrows, settler, publisher, logger)
	biddingService := bidding.NewService(auctions, bids, accounts, highBids, publisher, orchestrator, clock.System(), logger)
	arbitrationService := arbitration.NewService(disputes, roles, publisher, orchestrator, clock.System(), logger)

	sweeper := bidding.NewSweeper(biddingService, cfg.Auction.SweepInterval, logger)
	go sweeper.Run(ctx)

	server := rest.NewServer(cfg, rest.Services{
		Bidding:     biddingService,
		Escrow:      escrowService,
		Arbitration: arbitrationService,
	}, hub, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
