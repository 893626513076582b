package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/handlers"
	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/metrics"
	"github.com/nkiryanov/vtumart/internal/repository"
	"github.com/nkiryanov/vtumart/internal/repository/postgres"
	"github.com/nkiryanov/vtumart/internal/service/catalog"
	"github.com/nkiryanov/vtumart/internal/service/notify"
	"github.com/nkiryanov/vtumart/internal/service/principal"
	"github.com/nkiryanov/vtumart/internal/service/provider"
	"github.com/nkiryanov/vtumart/internal/service/purchase"
	"github.com/nkiryanov/vtumart/internal/service/reconciler"
	"github.com/nkiryanov/vtumart/internal/service/requestid"
	"github.com/nkiryanov/vtumart/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	reconciler *purchase.Reconciler
	poller     *reconciler.Poller
	pollOwner  uuid.UUID
	dispatcher *notify.ChannelDispatcher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := repository.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	verifier, err := principal.NewVerifier(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("error while creating principal verifier. Err: %w", err)
	}

	providerClient := provider.NewClient(c.ProviderBaseURL, c.ProviderAPIKey, logger)
	ledger := wallet.NewLedger(storage, logger)
	planCatalog := catalog.New(providerClient, logger)

	channelDispatcher := notify.NewChannelDispatcher(128, logger)
	dispatcher := metrics.NewDispatcher(channelDispatcher)

	orchestrator := purchase.NewOrchestrator(
		storage,
		ledger,
		providerClient,
		requestid.New(),
		dispatcher,
		logger,
	)
	purchaseReconciler := purchase.NewReconciler(orchestrator, logger)
	walletPoller := reconciler.NewPoller(providerClient, ledger, dispatcher, logger)
	walletPoller.Interval = c.PollInterval

	var pollOwner uuid.UUID
	if c.WalletOwnerID != "" {
		pollOwner, err = uuid.Parse(c.WalletOwnerID)
		if err != nil {
			return nil, fmt.Errorf("error while parsing wallet owner id. Err: %w", err)
		}
		if _, err := ledger.EnsureWallet(ctx, pollOwner); err != nil {
			return nil, fmt.Errorf("error while ensuring owner wallet. Err: %w", err)
		}
	}

	mux := handlers.NewRouter(
		orchestrator,
		planCatalog,
		ledger,
		verifier,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		reconciler: purchaseReconciler,
		poller:     walletPoller,
		pollOwner:  pollOwner,
		dispatcher: channelDispatcher,
	}, nil
}

// Run starts the background processors and the http server, closing
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	reconcilerStopped := s.reconciler.Run(srvCtx)

	var pollerStopped <-chan struct{}
	if s.pollOwner != uuid.Nil {
		pollerStopped = s.poller.Run(srvCtx, s.pollOwner)
	} else {
		s.logger.Warn("Wallet owner not configured, balance reconciliation disabled")
		closed := make(chan struct{})
		close(closed)
		pollerStopped = closed
	}

	// Drain notifications into the log until a real sink is attached
	go func() {
		for e := range s.dispatcher.Events() {
			switch e.Type {
			case notify.EventPurchase:
				s.logger.Info("Purchase event", "ref", e.Purchase.Ref, "status", e.Purchase.Status)
			case notify.EventBalance:
				s.logger.Info("Balance event", "user_id", e.UserID, "main", e.Wallet.Main)
			case notify.EventPollErr:
				s.logger.Warn("Poll failure event", "error", e.Err)
			}
		}
	}()

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reconcilerStopped
	<-pollerStopped

	return err
}
